package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopoolScope/internal/autopool"
	"autopoolScope/internal/history"
	"autopoolScope/internal/multicall"
)

func sampleTable(keepBlock bool) *history.Table {
	results := []multicall.Result{
		{Block: 20_730_108, Timestamp: 1_726_000_000, Values: map[string]interface{}{
			"autoETH.nav_per_share": decimal.RequireFromString("1.02"),
			"autoETH.paused":        false,
		}},
		{Block: 20_722_908, Timestamp: 1_725_913_600, Values: map[string]interface{}{
			"autoETH.nav_per_share": decimal.RequireFromString("1.01"),
			"autoETH.paused":        nil,
		}},
	}
	table, err := history.Assemble(results, []string{"autoETH.nav_per_share", "autoETH.paused"}, keepBlock)
	if err != nil {
		panic(err)
	}
	return table
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestJsonlStorageAppendsSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "snapshots.jsonl")
	sink := NewJsonlStorage(path)
	assert.Equal(t, path, sink.Path())

	records := SnapshotRecords(1, sampleTable(false))
	require.NoError(t, sink.PutSnapshots(records))
	require.NoError(t, sink.PutSnapshots(records[:1]))
	require.NoError(t, sink.PutSnapshots(nil))

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, float64(1_725_913_600), lines[0]["timestamp"])
	assert.Equal(t, "2024-09-09T20:26:40Z", lines[0]["time"])
	assert.NotContains(t, lines[0], "block_number")

	values := lines[0]["values"].(map[string]interface{})
	assert.Equal(t, "1.01", values["autoETH.nav_per_share"])
	assert.Nil(t, values["autoETH.paused"])
}

func TestSnapshotRecordsCarryBlockWhenKept(t *testing.T) {
	records := SnapshotRecords(8453, sampleTable(true))
	require.Len(t, records, 2)
	require.NotNil(t, records[0].BlockNumber)
	assert.Equal(t, uint64(20_722_908), *records[0].BlockNumber)
	assert.NotContains(t, records[0].Values, multicall.NameBlock)
	assert.Equal(t, uint64(8453), records[1].ChainID)
}

func TestSnapshotValuesLongFormat(t *testing.T) {
	values := SnapshotValues(1, sampleTable(true))
	require.Len(t, values, 4)

	assert.Equal(t, "autoETH.nav_per_share", values[0].Column)
	assert.Equal(t, "1.01", *values[0].Value)
	assert.Equal(t, "autoETH.paused", values[1].Column)
	assert.Nil(t, values[1].Value)
	assert.Equal(t, "false", *values[3].Value)
	assert.Equal(t, uint64(20_730_108), *values[3].BlockNumber)
	assert.Equal(t, time.Unix(1_726_000_000, 0).UTC(), values[3].BlockTime)
}

func TestJsonlStorageReturns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "returns.jsonl")
	sink := NewJsonlStorage(path)

	points := []autopool.ReturnPoint{{
		Column:        "autoETH.nav_per_share",
		Time:          time.Unix(1_726_000_000, 0).UTC(),
		Timestamp:     1_726_000_000,
		FromTimestamp: 1_725_913_600,
		NAV:           decimal.RequireFromString("1.02"),
		APR:           decimal.RequireFromString("0.0365"),
	}}
	require.NoError(t, sink.PutReturns(ReturnRecords(1, points)))

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "0.0365", lines[0]["apr"])
	assert.Equal(t, "1.02", lines[0]["nav"])
	assert.Equal(t, "autoETH.nav_per_share", lines[0]["column"])
}

var _ SnapshotSink = (*JsonlStorage)(nil)
var _ ReturnSink = (*JsonlStorage)(nil)
