package chain

import (
	"github.com/ethereum/go-ethereum/common"
)

var multicall3 = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

// Network holds the per-chain constants the historical fetcher depends on.
type Network struct {
	ChainID uint64
	Name    string

	// Multicall3 is the aggregation contract and MulticallDeployBlock the block
	// it was deployed in. Heights at or below it cannot be queried.
	Multicall3           common.Address
	MulticallDeployBlock uint64

	// BlocksPerDay is the approximate daily sampling step.
	BlocksPerDay uint64

	// AutopoolStartBlock is the default first sampled height, zero if unknown.
	AutopoolStartBlock uint64
}

var networks = map[uint64]Network{
	// Ethereum Mainnet, ~12s blocks.
	1: {
		ChainID:              1,
		Name:                 "mainnet",
		Multicall3:           multicall3,
		MulticallDeployBlock: 14353601,
		BlocksPerDay:         7200,
		AutopoolStartBlock:   20722908,
	},
	// Base, ~2s blocks.
	8453: {
		ChainID:              8453,
		Name:                 "base",
		Multicall3:           multicall3,
		MulticallDeployBlock: 5022,
		BlocksPerDay:         43200,
		AutopoolStartBlock:   21241103,
	},
	// Arbitrum One, ~0.25s blocks.
	42161: {
		ChainID:              42161,
		Name:                 "arbitrum",
		Multicall3:           multicall3,
		MulticallDeployBlock: 7654707,
		BlocksPerDay:         345600,
	},
}

// NetworkByChainID returns the constants for a supported chain.
func NetworkByChainID(chainID uint64) (Network, bool) {
	n, ok := networks[chainID]
	return n, ok
}
