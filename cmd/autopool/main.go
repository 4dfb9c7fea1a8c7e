package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"autopoolScope/internal/chain"
	"autopoolScope/internal/config"
	"autopoolScope/internal/history"
)

func main() {
	root := &cobra.Command{
		Use:          "autopool",
		Short:        "Historical Autopool state sampler",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	blocksCmd := &cobra.Command{
		Use:   "blocks",
		Short: "Print the daily sampling heights for the connected chain",
		RunE:  runBlocks,
	}
	addChainFlags(blocksCmd)
	root.AddCommand(blocksCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Sample Autopool state at every planned height and persist it",
		RunE:  runSnapshot,
	}
	addChainFlags(snapshotCmd)
	snapshotCmd.Flags().StringSlice("autopool", nil, "autopools as label=address[:decimals] (comma-separated)")
	snapshotCmd.Flags().Bool("discover", false, "read decimals and destinations from each autopool at the first height")
	snapshotCmd.Flags().IntSlice("tiers", history.DefaultTiers, "concurrency tiers, non-increasing and ending at 1")
	snapshotCmd.Flags().Bool("keep-block", false, "keep the block number column")
	snapshotCmd.Flags().Bool("allow-partial", false, "write a partial table when some heights stay unresolved")
	snapshotCmd.Flags().Int("apr-window", 30, "samples per trailing APR window")
	snapshotCmd.Flags().String("out", "./data/snapshots.jsonl", "output snapshots JSONL")
	snapshotCmd.Flags().String("returns-out", "./data/returns.jsonl", "output returns JSONL")
	snapshotCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	snapshotCmd.Flags().Int("db-batch-size", 1000, "batch size for DB writes")
	snapshotCmd.Flags().String("state-file", "", "optional local state file for resuming")
	snapshotCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	root.AddCommand(snapshotCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "archive RPC URL")
	cmd.Flags().Duration("rpc-timeout", 30*time.Second, "per-request RPC timeout")
	cmd.Flags().Uint64("start", 0, "first sampled height, 0 means the network default")
	cmd.Flags().Uint64("step", 0, "blocks between samples, 0 means about one day")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts for head lookups")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}

	if cfg.RPCURL == "" {
		return config.Config{}, nil, fmt.Errorf("rpc url is required")
	}
	return cfg, logger, nil
}

// connect dials the RPC and resolves the network it serves.
func connect(ctx context.Context, cfg config.Config) (*chain.Client, chain.Network, error) {
	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		return nil, chain.Network{}, fmt.Errorf("connect rpc: %w", err)
	}

	id, err := client.GetChainID(ctx)
	if err != nil {
		client.Close()
		return nil, chain.Network{}, fmt.Errorf("get chain id: %w", err)
	}
	network, ok := chain.NetworkByChainID(id.Uint64())
	if !ok {
		client.Close()
		return nil, chain.Network{}, fmt.Errorf("unsupported chain id %s", id)
	}
	return client, network, nil
}

// plan resolves start and step against network defaults.
func plan(cfg config.Config, network chain.Network) (start, step uint64, err error) {
	start, step = cfg.Start, cfg.Step
	if start == 0 {
		start = network.AutopoolStartBlock
	}
	if start == 0 {
		return 0, 0, fmt.Errorf("start height is required on %s", network.Name)
	}
	if step == 0 {
		step = network.BlocksPerDay
	}
	return start, step, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
