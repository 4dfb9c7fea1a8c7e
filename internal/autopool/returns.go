package autopool

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"autopoolScope/internal/history"
)

const secondsPerYear = int64(365 * 24 * time.Hour / time.Second)

// ReturnPoint is the annualized NAV growth ending at one row.
type ReturnPoint struct {
	Column    string
	Time      time.Time
	Timestamp uint64
	// FromTimestamp is the timestamp of the row the window starts at.
	FromTimestamp uint64
	NAV           decimal.Decimal
	APR           decimal.Decimal
}

// TrailingAPR annualizes the change in column over the last window rows:
// (nav_t / nav_{t-window} - 1) * secondsPerYear / (ts_t - ts_{t-window}).
// Rows where either NAV is null or the earlier NAV is zero are skipped.
func TrailingAPR(table *history.Table, column string, window int) ([]ReturnPoint, error) {
	if window <= 0 {
		return nil, fmt.Errorf("apr window must be positive, got %d", window)
	}
	if table.Len() <= window {
		return nil, nil
	}

	year := decimal.NewFromInt(secondsPerYear)
	out := make([]ReturnPoint, 0, table.Len()-window)
	for i := window; i < table.Len(); i++ {
		cur, prev := table.Rows[i], table.Rows[i-window]
		nav, ok := asDecimal(cur.Values[column])
		if !ok {
			continue
		}
		base, ok := asDecimal(prev.Values[column])
		if !ok || base.IsZero() {
			continue
		}
		if cur.Timestamp <= prev.Timestamp {
			continue
		}
		elapsed := decimal.NewFromInt(int64(cur.Timestamp - prev.Timestamp))

		apr := nav.Div(base).Sub(decimal.NewFromInt(1)).Mul(year).Div(elapsed)
		out = append(out, ReturnPoint{
			Column:        column,
			Time:          cur.Time,
			Timestamp:     cur.Timestamp,
			FromTimestamp: prev.Timestamp,
			NAV:           nav,
			APR:           apr,
		})
	}
	return out, nil
}

func asDecimal(v interface{}) (decimal.Decimal, bool) {
	switch typed := v.(type) {
	case decimal.Decimal:
		return typed, true
	case *big.Int:
		if typed == nil {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromBigInt(typed, 0), true
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(typed), 0), true
	default:
		return decimal.Decimal{}, false
	}
}
