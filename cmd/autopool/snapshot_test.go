package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"autopoolScope/internal/chain"
	"autopoolScope/internal/config"
)

func TestLastContiguous(t *testing.T) {
	heights := []uint64{10, 20, 30, 40}

	last, ok := lastContiguous(heights, nil)
	assert.True(t, ok)
	assert.Equal(t, uint64(40), last)

	last, ok = lastContiguous(heights, []uint64{30, 40})
	assert.True(t, ok)
	assert.Equal(t, uint64(20), last)

	_, ok = lastContiguous(heights, []uint64{10})
	assert.False(t, ok)

	_, ok = lastContiguous(nil, nil)
	assert.False(t, ok)
}

func TestPlanDefaults(t *testing.T) {
	mainnet, _ := chain.NetworkByChainID(1)

	start, step, err := plan(config.Config{}, mainnet)
	assert.NoError(t, err)
	assert.Equal(t, mainnet.AutopoolStartBlock, start)
	assert.Equal(t, uint64(7200), step)

	start, step, err = plan(config.Config{Start: 21_000_000, Step: 100}, mainnet)
	assert.NoError(t, err)
	assert.Equal(t, uint64(21_000_000), start)
	assert.Equal(t, uint64(100), step)

	arbitrum, _ := chain.NetworkByChainID(42161)
	_, _, err = plan(config.Config{}, arbitrum)
	assert.Error(t, err)
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := newLogger("loud")
	assert.Error(t, err)

	logger, err := newLogger("debug")
	assert.NoError(t, err)
	assert.NotNil(t, logger)
}
