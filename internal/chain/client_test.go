package chain_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopoolScope/internal/chain"
	"autopoolScope/internal/history"
	"autopoolScope/internal/multicall"
)

var (
	_ multicall.Caller   = (*chain.Client)(nil)
	_ history.HeadReader = (*chain.Client)(nil)
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// rpcServer answers a fixed set of JSON-RPC methods and records every method called.
func rpcServer(t *testing.T, results map[string]string) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu      sync.Mutex
		methods []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		methods = append(methods, req.Method)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		result, ok := results[req.Method]
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]interface{}{"code": -32601, "message": "method not found"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), methods...)
	}
}

func TestClientChainIDAndHead(t *testing.T) {
	srv, called := rpcServer(t, map[string]string{
		"eth_chainId":     "0x1",
		"eth_blockNumber": "0x13c6030",
	})
	client, err := chain.NewClient(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	defer client.Close()

	id, err := client.GetChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Int64())

	head, err := client.LatestBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(20_734_000), head)

	assert.Equal(t, []string{"eth_chainId", "eth_blockNumber"}, called())
}

func TestClientCallContractIsOneRoundTrip(t *testing.T) {
	word := "0x" + common.Bytes2Hex(common.LeftPadBytes([]byte{42}, 32))
	srv, called := rpcServer(t, map[string]string{"eth_call": word})
	client, err := chain.NewClient(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	defer client.Close()

	to := multicall.DefaultAddress
	out, err := client.CallContract(context.Background(), ethereum.CallMsg{To: &to, Data: []byte{1, 2, 3, 4}}, big.NewInt(20_722_908))
	require.NoError(t, err)
	assert.Equal(t, common.LeftPadBytes([]byte{42}, 32), out)
	assert.Equal(t, []string{"eth_call"}, called())
}

func TestClientPropagatesRPCErrors(t *testing.T) {
	srv, _ := rpcServer(t, nil)
	client, err := chain.NewClient(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.LatestBlockNumber(context.Background())
	assert.Error(t, err)
}
