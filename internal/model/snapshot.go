package model

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SnapshotRecord is one sampled block written as a JSON line.
type SnapshotRecord struct {
	ChainID     uint64             `json:"chain_id"`
	Timestamp   uint64             `json:"timestamp"`
	Time        string             `json:"time"`
	BlockNumber *uint64            `json:"block_number,omitempty"`
	Values      map[string]*string `json:"values"`
}

// SnapshotValue is a single cell of a snapshot in long format.
type SnapshotValue struct {
	ChainID     uint64
	BlockTime   time.Time
	BlockNumber *uint64
	Column      string
	Value       *string
}

// ReturnRecord is one trailing APR point.
type ReturnRecord struct {
	ChainID       uint64 `json:"chain_id"`
	Column        string `json:"column"`
	Timestamp     uint64 `json:"timestamp"`
	FromTimestamp uint64 `json:"from_timestamp"`
	Time          string `json:"time"`
	NAV           string `json:"nav"`
	APR           string `json:"apr"`
}

// FormatValue renders a decoded call value as text. Nil stays nil.
func FormatValue(v interface{}) *string {
	var s string
	switch typed := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		s = typed.String()
	case *big.Int:
		if typed == nil {
			return nil
		}
		s = typed.String()
	case uint64:
		s = strconv.FormatUint(typed, 10)
	case bool:
		s = strconv.FormatBool(typed)
	case string:
		s = typed
	case common.Address:
		s = typed.Hex()
	case []common.Address:
		parts := make([]string, 0, len(typed))
		for _, addr := range typed {
			parts = append(parts, addr.Hex())
		}
		s = strings.Join(parts, ",")
	case []byte:
		s = "0x" + hex.EncodeToString(typed)
	default:
		s = fmt.Sprintf("%v", typed)
	}
	return &s
}
