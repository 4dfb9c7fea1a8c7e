package history

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// HeadReader reports the current chain head. *chain.Client satisfies it.
type HeadReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// PlanConfig controls block sampling.
type PlanConfig struct {
	// Step is the number of blocks between samples, about one day's worth.
	Step         uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Planner produces the heights to sample, from a start height up to the live head.
type Planner struct {
	head   HeadReader
	cfg    PlanConfig
	logger *zap.Logger
}

func NewPlanner(head HeadReader, cfg PlanConfig, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{head: head, cfg: cfg, logger: logger}
}

// PlanBlocks returns start, start+step, ... up to the current chain head.
// The cadence is approximate; block times drift.
func (p *Planner) PlanBlocks(ctx context.Context, start uint64) ([]uint64, error) {
	if p.head == nil {
		return nil, fmt.Errorf("head reader is nil")
	}

	head, err := p.chainHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain head: %w", err)
	}

	if start > head {
		return nil, fmt.Errorf("%w: %d > %d", ErrStartBeyondHead, start, head)
	}
	heights, err := StepHeights(start, head, p.cfg.Step)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("planned blocks",
		zap.Uint64("start", start),
		zap.Uint64("head", head),
		zap.Uint64("step", p.cfg.Step),
		zap.Int("count", len(heights)),
	)
	return heights, nil
}

// chainHead retries the head query with exponential backoff.
func (p *Planner) chainHead(ctx context.Context) (uint64, error) {
	delay := p.cfg.RetryBackoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	maxRetries := p.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		head, err := p.head.LatestBlockNumber(ctx)
		if err == nil {
			return head, nil
		}
		if attempt >= maxRetries {
			return 0, err
		}
		p.logger.Warn("chain head fetch failed",
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

// StepHeights returns start, start+step, ... while <= end.
func StepHeights(start, end, step uint64) ([]uint64, error) {
	if step == 0 {
		return nil, fmt.Errorf("step must be greater than zero")
	}
	if end < start {
		return nil, fmt.Errorf("start block %d is beyond end block %d", start, end)
	}

	heights := make([]uint64, 0, (end-start)/step+1)
	for h := start; h <= end; h += step {
		heights = append(heights, h)
		if end-h < step {
			break
		}
	}
	return heights, nil
}
