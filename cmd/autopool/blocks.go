package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autopoolScope/internal/history"
)

func runBlocks(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, network, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	start, step, err := plan(cfg, network)
	if err != nil {
		return err
	}

	planner := history.NewPlanner(client, history.PlanConfig{
		Step:         step,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	heights, err := planner.PlanBlocks(ctx, start)
	if err != nil {
		return err
	}

	logger.Info("blocks planned",
		zap.String("chain", network.Name),
		zap.Uint64("start", start),
		zap.Uint64("step", step),
		zap.Int("count", len(heights)),
	)

	out := cmd.OutOrStdout()
	for _, h := range heights {
		fmt.Fprintln(out, h)
	}
	return nil
}
