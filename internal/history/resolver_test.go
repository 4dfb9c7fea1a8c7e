package history_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopoolScope/internal/chain"
	"autopoolScope/internal/history"
	"autopoolScope/internal/multicall"
	"autopoolScope/internal/multicall/multicalltest"
)

var target = common.HexToAddress("0x1111111111111111111111111111111111111111")

func mainnet(t *testing.T) chain.Network {
	t.Helper()
	network, ok := chain.NetworkByChainID(1)
	require.True(t, ok)
	return network
}

func abcCalls(t *testing.T) []multicall.Call {
	t.Helper()
	return []multicall.Call{
		multicall.MustCall(target, "a()(uint256)", "a", multicall.Uint64),
		multicall.MustCall(target, "b()(uint256)", "b", multicall.Uint64),
		multicall.MustCall(target, "c()(uint256)", "c", multicall.Uint64),
	}
}

func abcEndpoint() *multicalltest.Endpoint {
	return multicalltest.NewEndpoint(multicalltest.Constant(map[string]uint64{"a()": 1, "b()": 2, "c()": 3}))
}

func newResolver(t *testing.T, cfg history.Config, endpoint *multicalltest.Endpoint) *history.Resolver {
	t.Helper()
	if cfg.Network.Name == "" {
		cfg.Network = mainnet(t)
	}
	r, err := history.NewResolver(cfg, endpoint, nil)
	require.NoError(t, err)
	return r
}

func TestResolveThreeHeights(t *testing.T) {
	endpoint := abcEndpoint()
	r := newResolver(t, history.Config{}, endpoint)

	heights := []uint64{100_000_003, 100_000_001, 100_000_002}
	table, err := r.Resolve(context.Background(), abcCalls(t), heights)
	require.NoError(t, err)

	assert.Equal(t, []uint64{1_200_000_012, 1_200_000_024, 1_200_000_036}, table.Timestamps())
	assert.Equal(t, []string{"a", "b", "c"}, table.Columns)
	for _, row := range table.Rows {
		assert.Equal(t, map[string]interface{}{"a": uint64(1), "b": uint64(2), "c": uint64(3)}, row.Values)
		assert.Equal(t, int64(row.Timestamp), row.Time.Unix())
	}
	assert.True(t, table.Complete())
	assert.Equal(t, 3, endpoint.Calls())
}

func TestResolveIsIdempotent(t *testing.T) {
	r := newResolver(t, history.Config{}, abcEndpoint())
	heights := []uint64{100_000_001, 100_000_002, 100_000_003, 100_000_004}

	first, err := r.Resolve(context.Background(), abcCalls(t), heights)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), abcCalls(t), heights)
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
}

func TestResolveKeepsBlockColumnOnRequest(t *testing.T) {
	r := newResolver(t, history.Config{KeepBlock: true}, abcEndpoint())

	table, err := r.Resolve(context.Background(), abcCalls(t), []uint64{100_000_001})
	require.NoError(t, err)

	assert.Equal(t, []string{multicall.NameBlock, "a", "b", "c"}, table.Columns)
	assert.Equal(t, []interface{}{uint64(100_000_001)}, table.Column(multicall.NameBlock))
}

func TestResolveRetriesFailedHeightsAtLowerTiers(t *testing.T) {
	heights := []uint64{100_000_001, 100_000_002, 100_000_003}

	baseline, err := newResolver(t, history.Config{}, abcEndpoint()).Resolve(context.Background(), abcCalls(t), heights)
	require.NoError(t, err)

	endpoint := abcEndpoint()
	endpoint.FailFirst(100_000_002, 3)
	r := newResolver(t, history.Config{Tiers: []int{4, 2, 2, 1}}, endpoint)

	table, err := r.Resolve(context.Background(), abcCalls(t), heights)
	require.NoError(t, err)

	assert.Equal(t, baseline.Rows, table.Rows)
	assert.Equal(t, 4, endpoint.Attempts(100_000_002))
	assert.Equal(t, 1, endpoint.Attempts(100_000_001))
}

func TestResolveSingleUnresolvableHeightIsEmpty(t *testing.T) {
	endpoint := abcEndpoint()
	endpoint.FailFirst(100_000_001, -1)
	r := newResolver(t, history.Config{Tiers: []int{3, 1}, AllowPartial: true}, endpoint)

	_, err := r.Resolve(context.Background(), abcCalls(t), []uint64{100_000_001})
	assert.ErrorIs(t, err, history.ErrEmptyResult)
	assert.Equal(t, 2, endpoint.Attempts(100_000_001))
}

func TestResolvePartialTableReportsMissing(t *testing.T) {
	endpoint := abcEndpoint()
	endpoint.FailFirst(100_000_002, -1)
	r := newResolver(t, history.Config{Tiers: []int{3, 1}, AllowPartial: true}, endpoint)

	table, err := r.Resolve(context.Background(), abcCalls(t), []uint64{100_000_001, 100_000_002, 100_000_003})
	require.NoError(t, err)

	assert.Equal(t, []uint64{1_200_000_012, 1_200_000_036}, table.Timestamps())
	assert.Equal(t, 3, table.Requested)
	assert.Equal(t, []uint64{100_000_002}, table.Missing)
	assert.False(t, table.Complete())
}

func TestResolveStrictByDefault(t *testing.T) {
	endpoint := abcEndpoint()
	endpoint.FailFirst(100_000_002, -1)
	r := newResolver(t, history.Config{Tiers: []int{3, 1}}, endpoint)

	_, err := r.Resolve(context.Background(), abcCalls(t), []uint64{100_000_001, 100_000_002, 100_000_003})
	require.ErrorIs(t, err, history.ErrIncomplete)

	var incomplete *history.IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []uint64{100_000_002}, incomplete.Missing)
	assert.Equal(t, 3, incomplete.Requested)
}

func TestResolveRejectsHeightsAtOrBeforeDeployment(t *testing.T) {
	endpoint := abcEndpoint()
	network := mainnet(t)
	r := newResolver(t, history.Config{Network: network}, endpoint)

	_, err := r.Resolve(context.Background(), abcCalls(t), []uint64{100_000_001, network.MulticallDeployBlock})
	assert.ErrorIs(t, err, history.ErrInvalidHeight)
	assert.Equal(t, 0, endpoint.Calls())
}

func TestResolveRejectsDuplicateHeights(t *testing.T) {
	endpoint := abcEndpoint()
	r := newResolver(t, history.Config{}, endpoint)

	_, err := r.Resolve(context.Background(), abcCalls(t), []uint64{100_000_001, 100_000_001})
	assert.ErrorIs(t, err, history.ErrInvalidHeight)
	assert.Equal(t, 0, endpoint.Calls())
}

func TestResolveRejectsDuplicateNames(t *testing.T) {
	endpoint := abcEndpoint()
	r := newResolver(t, history.Config{}, endpoint)

	calls := append(abcCalls(t), multicall.MustCall(target, "c()(uint256)", "a", multicall.Uint64))
	_, err := r.Resolve(context.Background(), calls, []uint64{100_000_001})
	assert.ErrorIs(t, err, multicall.ErrDuplicateName)
	assert.Equal(t, 0, endpoint.Calls())
}

func TestResolveRevertedCallIsNil(t *testing.T) {
	r := newResolver(t, history.Config{}, abcEndpoint())
	calls := append(abcCalls(t), multicall.MustCall(target, "d()(uint256)", "d", multicall.Uint64))

	table, err := r.Resolve(context.Background(), calls, []uint64{100_000_001})
	require.NoError(t, err)

	v, ok := table.Rows[0].Values["d"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, uint64(1), table.Rows[0].Values["a"])
}

func TestResolveCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newResolver(t, history.Config{}, abcEndpoint())
	_, err := r.Resolve(ctx, abcCalls(t), []uint64{100_000_001})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewResolverRejectsBadTiers(t *testing.T) {
	_, err := history.NewResolver(history.Config{Network: mainnet(t), Tiers: []int{10, 30, 1}}, abcEndpoint(), nil)
	assert.ErrorIs(t, err, history.ErrInvalidTiers)
}
