package storage

import (
	"time"

	"autopoolScope/internal/autopool"
	"autopoolScope/internal/history"
	"autopoolScope/internal/model"
	"autopoolScope/internal/multicall"
)

// SnapshotSink receives assembled snapshot rows.
type SnapshotSink interface {
	PutSnapshots(records []model.SnapshotRecord) error
}

// ReturnSink receives trailing return points.
type ReturnSink interface {
	PutReturns(records []model.ReturnRecord) error
}

// SnapshotRecords flattens a table into one record per row.
func SnapshotRecords(chainID uint64, table *history.Table) []model.SnapshotRecord {
	out := make([]model.SnapshotRecord, 0, table.Len())
	for _, row := range table.Rows {
		rec := model.SnapshotRecord{
			ChainID:     chainID,
			Timestamp:   row.Timestamp,
			Time:        row.Time.Format(time.RFC3339),
			BlockNumber: rowBlock(row),
			Values:      make(map[string]*string, len(row.Values)),
		}
		for _, col := range table.Columns {
			if col == multicall.NameBlock {
				continue
			}
			rec.Values[col] = model.FormatValue(row.Values[col])
		}
		out = append(out, rec)
	}
	return out
}

// SnapshotValues flattens a table into one value per row and column.
func SnapshotValues(chainID uint64, table *history.Table) []model.SnapshotValue {
	out := make([]model.SnapshotValue, 0, table.Len()*len(table.Columns))
	for _, row := range table.Rows {
		block := rowBlock(row)
		for _, col := range table.Columns {
			if col == multicall.NameBlock {
				continue
			}
			out = append(out, model.SnapshotValue{
				ChainID:     chainID,
				BlockTime:   row.Time,
				BlockNumber: block,
				Column:      col,
				Value:       model.FormatValue(row.Values[col]),
			})
		}
	}
	return out
}

func ReturnRecords(chainID uint64, points []autopool.ReturnPoint) []model.ReturnRecord {
	out := make([]model.ReturnRecord, 0, len(points))
	for _, p := range points {
		out = append(out, model.ReturnRecord{
			ChainID:       chainID,
			Column:        p.Column,
			Timestamp:     p.Timestamp,
			FromTimestamp: p.FromTimestamp,
			Time:          p.Time.Format(time.RFC3339),
			NAV:           p.NAV.String(),
			APR:           p.APR.String(),
		})
	}
	return out
}

func rowBlock(row history.Row) *uint64 {
	block, ok := row.Values[multicall.NameBlock].(uint64)
	if !ok {
		return nil
	}
	return &block
}
