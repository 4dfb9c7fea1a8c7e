package history

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"autopoolScope/internal/multicall"
	"autopoolScope/internal/telemetry"
)

// DefaultTiers starts wide for a healthy endpoint and backs off to serial.
var DefaultTiers = []int{300, 100, 30, 10, 1}

// BatchInvoker evaluates one batch in a single round trip. *multicall.Invoker satisfies it.
type BatchInvoker interface {
	Invoke(ctx context.Context, batch multicall.Batch) (multicall.Result, error)
}

// ValidateTiers checks that tiers are positive, non-increasing and end at 1.
func ValidateTiers(tiers []int) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: at least one tier is required", ErrInvalidTiers)
	}
	for i, tier := range tiers {
		if tier <= 0 {
			return fmt.Errorf("%w: tier %d must be positive", ErrInvalidTiers, tier)
		}
		if i > 0 && tier > tiers[i-1] {
			return fmt.Errorf("%w: %d follows %d", ErrInvalidTiers, tier, tiers[i-1])
		}
	}
	if last := tiers[len(tiers)-1]; last != 1 {
		return fmt.Errorf("%w: last tier must be 1, got %d", ErrInvalidTiers, last)
	}
	return nil
}

// Scheduler drives batches through decreasing concurrency tiers. Each tier
// retries only what failed in the previous one.
type Scheduler struct {
	invoker BatchInvoker
	tiers   []int
	chain   string
	logger  *zap.Logger
}

func NewScheduler(invoker BatchInvoker, tiers []int, chainName string, logger *zap.Logger) (*Scheduler, error) {
	if invoker == nil {
		return nil, fmt.Errorf("invoker is nil")
	}
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		invoker: invoker,
		tiers:   append([]int(nil), tiers...),
		chain:   chainName,
		logger:  logger,
	}, nil
}

// Run resolves batches tier by tier and returns the successful results along
// with the batches that still failed at the last tier. The only error is
// context cancellation; per-batch failures never abort the run.
func (s *Scheduler) Run(ctx context.Context, batches []multicall.Batch) ([]multicall.Result, []multicall.Batch, error) {
	results := make([]multicall.Result, 0, len(batches))
	remaining := batches

	for _, tier := range s.tiers {
		if len(remaining) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return results, remaining, err
		}

		var succeeded []multicall.Result
		succeeded, remaining = s.runTier(ctx, tier, remaining)
		results = append(results, succeeded...)
	}

	if err := ctx.Err(); err != nil && len(remaining) > 0 {
		return results, remaining, err
	}
	return results, remaining, nil
}

// runTier runs every batch with at most tier of them in flight and
// partitions the outcomes, keeping failures in submission order.
func (s *Scheduler) runTier(ctx context.Context, tier int, batches []multicall.Batch) ([]multicall.Result, []multicall.Batch) {
	pool := pond.NewPool(tier)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	succeeded := xsync.NewMap[int, multicall.Result]()
	tierLabel := strconv.Itoa(tier)
	started := time.Now()

	for i, batch := range batches {
		group.Submit(func() {
			begin := time.Now()
			res, err := s.invoker.Invoke(ctx, batch)
			if err != nil {
				telemetry.MetricInvokeDuration.WithLabelValues(s.chain, "failure").Observe(time.Since(begin).Seconds())
				telemetry.MetricTierJobsTotal.WithLabelValues(s.chain, tierLabel, "failure").Inc()
				s.logger.Warn("batch failed",
					zap.Int("tier", tier),
					zap.Uint64("height", batch.Height),
					zap.Error(err),
				)
				return
			}
			telemetry.MetricInvokeDuration.WithLabelValues(s.chain, "success").Observe(time.Since(begin).Seconds())
			telemetry.MetricTierJobsTotal.WithLabelValues(s.chain, tierLabel, "success").Inc()
			succeeded.Store(i, res)
		})
	}
	if err := group.Wait(); err != nil {
		s.logger.Debug("tier group stopped", zap.Int("tier", tier), zap.Error(err))
	}

	results := make([]multicall.Result, 0, succeeded.Size())
	failing := make([]multicall.Batch, 0, len(batches)-succeeded.Size())
	for i, batch := range batches {
		if res, ok := succeeded.Load(i); ok {
			results = append(results, res)
			continue
		}
		failing = append(failing, batch)
	}

	s.logger.Info("tier complete",
		zap.Int("tier", tier),
		zap.Int("submitted", len(batches)),
		zap.Int("succeeded", len(results)),
		zap.Int("failed", len(failing)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return results, failing
}
