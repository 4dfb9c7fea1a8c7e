package history

import (
	"sort"
	"time"

	"autopoolScope/internal/multicall"
)

// Row is one sampled block. Timestamp is the block's own timestamp and is
// the row's index in the table.
type Row struct {
	Time      time.Time
	Timestamp uint64
	Values    map[string]interface{}
}

// Table is a time series of rows sorted by ascending timestamp.
type Table struct {
	Columns []string
	Rows    []Row

	// Requested is the number of heights asked for and Missing the ones that
	// produced no row. Both are set by Resolver.
	Requested int
	Missing   []uint64
}

// Assemble builds a table from batch results. The block column is dropped
// unless keepBlock is set. Zero results is ErrEmptyResult.
func Assemble(results []multicall.Result, columns []string, keepBlock bool) (*Table, error) {
	if len(results) == 0 {
		return nil, ErrEmptyResult
	}

	cols := make([]string, 0, len(columns)+1)
	if keepBlock {
		cols = append(cols, multicall.NameBlock)
	}
	cols = append(cols, columns...)

	ordered := append([]multicall.Result(nil), results...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp != ordered[j].Timestamp {
			return ordered[i].Timestamp < ordered[j].Timestamp
		}
		return ordered[i].Block < ordered[j].Block
	})

	rows := make([]Row, 0, len(ordered))
	for _, res := range ordered {
		values := make(map[string]interface{}, len(cols))
		for _, col := range columns {
			values[col] = res.Values[col]
		}
		if keepBlock {
			values[multicall.NameBlock] = res.Block
		}
		rows = append(rows, Row{
			Time:      time.Unix(int64(res.Timestamp), 0).UTC(),
			Timestamp: res.Timestamp,
			Values:    values,
		})
	}

	return &Table{Columns: cols, Rows: rows, Requested: len(results)}, nil
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Timestamps returns the table index.
func (t *Table) Timestamps() []uint64 {
	out := make([]uint64, 0, t.Len())
	for _, row := range t.Rows {
		out = append(out, row.Timestamp)
	}
	return out
}

// Column returns one column's values in row order. Missing columns yield nils.
func (t *Table) Column(name string) []interface{} {
	out := make([]interface{}, 0, t.Len())
	for _, row := range t.Rows {
		out = append(out, row.Values[name])
	}
	return out
}

// Complete reports whether every requested height produced a row.
func (t *Table) Complete() bool {
	return len(t.Missing) == 0 && t.Len() == t.Requested
}
