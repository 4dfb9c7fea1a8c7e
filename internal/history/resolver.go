package history

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"autopoolScope/internal/chain"
	"autopoolScope/internal/multicall"
	"autopoolScope/internal/telemetry"
)

// Config controls how a Resolver fetches and assembles history.
type Config struct {
	Network chain.Network
	// Tiers defaults to DefaultTiers.
	Tiers []int
	// KeepBlock retains the block column in the table.
	KeepBlock bool
	// AllowPartial returns a table even when some heights stayed unresolved,
	// recording them in Table.Missing instead of failing.
	AllowPartial bool
	// RequireSuccess fails a whole batch when any single call reverts.
	RequireSuccess bool
}

// Resolver evaluates a set of calls at many historical heights.
type Resolver struct {
	cfg       Config
	scheduler *Scheduler
	logger    *zap.Logger
}

// NewResolver builds a Resolver over caller, which the caller owns and closes.
func NewResolver(cfg Config, caller multicall.Caller, logger *zap.Logger) (*Resolver, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is nil")
	}
	return NewResolverWithInvoker(cfg, multicall.NewInvoker(caller, cfg.Network.Multicall3), logger)
}

// NewResolverWithInvoker builds a Resolver around an existing batch invoker.
func NewResolverWithInvoker(cfg Config, invoker BatchInvoker, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = DefaultTiers
	}

	scheduler, err := NewScheduler(invoker, cfg.Tiers, cfg.Network.Name, logger)
	if err != nil {
		return nil, err
	}
	return &Resolver{cfg: cfg, scheduler: scheduler, logger: logger}, nil
}

// Resolve evaluates every call at every height and returns a table with one
// row per height, indexed by block timestamp. Invalid heights fail before any
// RPC. Unless AllowPartial is set, unresolved heights yield an *IncompleteError.
func (r *Resolver) Resolve(ctx context.Context, calls []multicall.Call, heights []uint64) (*Table, error) {
	if err := multicall.ValidateNames(calls); err != nil {
		return nil, err
	}
	if err := r.validateHeights(heights); err != nil {
		return nil, err
	}

	batches := make([]multicall.Batch, 0, len(heights))
	for _, height := range heights {
		batches = append(batches, multicall.Batch{
			Calls:          calls,
			Height:         height,
			RequireSuccess: r.cfg.RequireSuccess,
		})
	}

	results, unresolved, err := r.scheduler.Run(ctx, batches)
	if err != nil {
		return nil, err
	}

	missing := make([]uint64, 0, len(unresolved))
	for _, batch := range unresolved {
		missing = append(missing, batch.Height)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	if len(missing) > 0 {
		telemetry.MetricUnresolvedHeightsTotal.WithLabelValues(r.cfg.Network.Name).Add(float64(len(missing)))
		r.logger.Warn("heights unresolved after all tiers",
			zap.Int("requested", len(heights)),
			zap.Int("missing", len(missing)),
			zap.Uint64s("heights", missing),
		)
	}

	columns := make([]string, 0, len(calls))
	for _, call := range calls {
		columns = append(columns, call.Name())
	}

	table, err := Assemble(results, columns, r.cfg.KeepBlock)
	if err != nil {
		return nil, err
	}
	table.Requested = len(heights)
	table.Missing = missing
	telemetry.MetricResolveRows.WithLabelValues(r.cfg.Network.Name).Set(float64(table.Len()))

	if len(missing) > 0 && !r.cfg.AllowPartial {
		return nil, &IncompleteError{Requested: len(heights), Missing: missing}
	}
	return table, nil
}

func (r *Resolver) validateHeights(heights []uint64) error {
	deployed := r.cfg.Network.MulticallDeployBlock
	seen := make(map[uint64]struct{}, len(heights))
	for _, height := range heights {
		if height <= deployed {
			return fmt.Errorf("%w: %d is at or before multicall deployment block %d on %s",
				ErrInvalidHeight, height, deployed, r.cfg.Network.Name)
		}
		if _, ok := seen[height]; ok {
			return fmt.Errorf("%w: %d requested twice", ErrInvalidHeight, height)
		}
		seen[height] = struct{}{}
	}
	return nil
}
