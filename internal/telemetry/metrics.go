package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	MetricTierJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autopool",
		Subsystem: "history",
		Name:      "tier_jobs_total",
		Help:      "Batch jobs run per concurrency tier, by outcome.",
	}, []string{"chain", "tier", "outcome"})

	MetricInvokeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "autopool",
		Subsystem: "history",
		Name:      "invoke_duration_seconds",
		Help:      "Duration of one aggregated call round trip.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"chain", "outcome"})

	MetricUnresolvedHeightsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autopool",
		Subsystem: "history",
		Name:      "unresolved_heights_total",
		Help:      "Block heights still failing after the last concurrency tier.",
	}, []string{"chain"})

	MetricResolveRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "autopool",
		Subsystem: "history",
		Name:      "resolve_rows",
		Help:      "Rows in the most recently resolved table.",
	}, []string{"chain"})
)

// Serve exposes /metrics on addr until ctx is done. Only binding the
// address can fail synchronously.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	serve(ctx, ln, logger)
	return nil
}

func serve(ctx context.Context, ln net.Listener, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", ln.Addr().String()), zap.Error(err))
		}
	}()
}
