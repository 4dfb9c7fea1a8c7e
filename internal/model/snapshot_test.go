package model

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	cases := []struct {
		in   interface{}
		want string
	}{
		{decimal.RequireFromString("1.25"), "1.25"},
		{big.NewInt(42), "42"},
		{uint64(7), "7"},
		{true, "true"},
		{"autoETH", "autoETH"},
		{addr, addr.Hex()},
		{[]common.Address{addr, addr}, addr.Hex() + "," + addr.Hex()},
		{[]byte{0xde, 0xad}, "0xdead"},
	}
	for _, tc := range cases {
		got := FormatValue(tc.in)
		require.NotNil(t, got, "%T", tc.in)
		assert.Equal(t, tc.want, *got)
	}

	assert.Nil(t, FormatValue(nil))
	assert.Nil(t, FormatValue((*big.Int)(nil)))
}

func TestSnapshotRecordOmitsBlockWhenUnset(t *testing.T) {
	rec := SnapshotRecord{
		ChainID:   1,
		Timestamp: 1700000000,
		Time:      "2023-11-14T22:13:20Z",
		Values:    map[string]*string{"autoETH.paused": nil},
	}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"chain_id":1,"timestamp":1700000000,"time":"2023-11-14T22:13:20Z","values":{"autoETH.paused":null}}`, string(b))
}
