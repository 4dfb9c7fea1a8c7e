package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autopoolScope/internal/autopool"
	"autopoolScope/internal/history"
	"autopoolScope/internal/multicall"
	"autopoolScope/internal/storage"
	"autopoolScope/internal/storage/postgres"
	"autopoolScope/internal/telemetry"
)

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	vaults := make([]autopool.Vault, 0, len(cfg.Autopools))
	for _, raw := range cfg.Autopools {
		v, err := autopool.ParseVault(raw)
		if err != nil {
			return err
		}
		vaults = append(vaults, v)
	}
	if len(vaults) == 0 {
		return fmt.Errorf("at least one autopool is required")
	}
	if err := history.ValidateTiers(cfg.Tiers); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		if err := telemetry.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
			return err
		}
	}

	client, network, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	start, step, err := plan(cfg, network)
	if err != nil {
		return err
	}

	var (
		state   storage.StateStore
		pgStore *postgres.Store
	)
	if cfg.PGDSN != "" {
		pgStore, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		if err := pgStore.Migrate(ctx); err != nil {
			return err
		}
		state = &storage.DBStateStore{Store: pgStore, Name: cfg.StateName + "/" + network.Name}
	} else if cfg.StateFile != "" {
		state = &storage.FileStateStore{Path: cfg.StateFile}
	}

	resume, err := storage.ResumeHeight(ctx, state, start, step)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	planner := history.NewPlanner(client, history.PlanConfig{
		Step:         step,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	heights, err := planner.PlanBlocks(ctx, resume)
	if errors.Is(err, history.ErrStartBeyondHead) {
		logger.Info("nothing to sample", zap.String("chain", network.Name), zap.Uint64("resume", resume))
		return nil
	}
	if err != nil {
		return err
	}

	invoker := multicall.NewInvoker(client, network.Multicall3)
	if cfg.Discover {
		for i, v := range vaults {
			found, err := autopool.Discover(ctx, invoker, v, heights[len(heights)-1])
			if err != nil {
				return err
			}
			logger.Info("autopool discovered",
				zap.String("autopool", found.Label),
				zap.Uint8("decimals", found.Decimals),
				zap.Int("destinations", len(found.Destinations)),
			)
			vaults[i] = found
		}
	}

	calls, err := autopool.AllCalls(vaults)
	if err != nil {
		return err
	}

	resolver, err := history.NewResolverWithInvoker(history.Config{
		Network:      network,
		Tiers:        cfg.Tiers,
		KeepBlock:    cfg.KeepBlock,
		AllowPartial: cfg.AllowPartial,
	}, invoker, logger)
	if err != nil {
		return err
	}

	logger.Info("snapshot start",
		zap.String("chain", network.Name),
		zap.Int("autopools", len(vaults)),
		zap.Int("calls", len(calls)),
		zap.Int("heights", len(heights)),
		zap.Uint64("from", heights[0]),
		zap.Uint64("to", heights[len(heights)-1]),
		zap.Ints("tiers", cfg.Tiers),
		zap.String("multicall", invoker.Address().Hex()),
	)
	for _, call := range calls {
		logger.Debug("call",
			zap.String("name", call.Name()),
			zap.String("target", call.Target().Hex()),
			zap.String("signature", call.Signature()),
		)
	}

	table, err := resolver.Resolve(ctx, calls, heights)
	if err != nil {
		return err
	}

	snapshots := storage.NewJsonlStorage(cfg.Out)
	if err := snapshots.PutSnapshots(storage.SnapshotRecords(network.ChainID, table)); err != nil {
		return err
	}

	var points []autopool.ReturnPoint
	for _, v := range vaults {
		vp, err := autopool.TrailingAPR(table, autopool.NAVColumn(v.Label), cfg.APRWindow)
		if err != nil {
			return err
		}
		points = append(points, vp...)
	}
	returns := storage.NewJsonlStorage(cfg.ReturnsOut)
	if err := returns.PutReturns(storage.ReturnRecords(network.ChainID, points)); err != nil {
		return err
	}

	if pgStore != nil {
		if err := pgStore.UpsertSnapshotValues(ctx, storage.SnapshotValues(network.ChainID, table), cfg.DBBatchSize); err != nil {
			return err
		}
	}

	if last, ok := lastContiguous(heights, table.Missing); ok && state != nil {
		if err := state.Save(ctx, last); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}

	logger.Info("snapshot complete",
		zap.Int("rows", table.Len()),
		zap.Int("missing", len(table.Missing)),
		zap.Int("returns", len(points)),
		zap.String("out", snapshots.Path()),
		zap.String("returns_out", returns.Path()),
	)
	return nil
}

// lastContiguous returns the highest planned height below the first missing
// one, so a resumed run retries every gap. heights and missing are ascending.
func lastContiguous(heights, missing []uint64) (uint64, bool) {
	if len(heights) == 0 {
		return 0, false
	}
	if len(missing) == 0 {
		return heights[len(heights)-1], true
	}
	var (
		last  uint64
		found bool
	)
	for _, h := range heights {
		if h >= missing[0] {
			break
		}
		last, found = h, true
	}
	return last, found
}
