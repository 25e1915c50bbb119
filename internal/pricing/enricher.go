package pricing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// windowResolver is satisfied by WindowFetcher.
type windowResolver interface {
	WindowFor(ctx context.Context, sig domain.Signal) (domain.PriceWindow, error)
}

// Enricher attaches price windows to signals one request at a time.
type Enricher struct {
	windows     windowResolver
	signalStore storage.SignalStore
	delay       time.Duration
	logger      *zap.Logger
}

// EnricherOptions contains configuration for creating an Enricher.
type EnricherOptions struct {
	Windows     windowResolver
	SignalStore storage.SignalStore // optional: windows are also persisted when set
	Delay       time.Duration       // pause between requests
	Logger      *zap.Logger
}

// EnrichStats counts the outcome of an enrichment pass.
type EnrichStats struct {
	Enriched int
	Failed   int
	Skipped  int // already had a window
}

// NewEnricher creates a new enricher.
func NewEnricher(opts EnricherOptions) *Enricher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		windows:     opts.Windows,
		signalStore: opts.SignalStore,
		delay:       opts.Delay,
		logger:      logger,
	}
}

// Enrich fills the missing windows of signals in place. Per-signal failures
// are logged and leave the window nil; only ctx cancellation aborts the pass.
func (e *Enricher) Enrich(ctx context.Context, signals []*domain.PricedSignal) (EnrichStats, error) {
	var stats EnrichStats
	requested := false

	for _, ps := range signals {
		if ps.Window != nil {
			stats.Skipped++
			continue
		}

		if requested && e.delay > 0 {
			if err := sleep(ctx, e.delay); err != nil {
				return stats, err
			}
		}
		requested = true

		w, err := e.windows.WindowFor(ctx, ps.Signal)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Failed++
			e.logger.Warn("price window unavailable",
				zap.String("coin", ps.Signal.Coin),
				zap.Time("timestamp", ps.Signal.Timestamp),
				zap.Error(err),
			)
			continue
		}

		ps.Window = &w
		stats.Enriched++

		if e.signalStore != nil && ps.Signal.SignalID != "" {
			if err := e.signalStore.SetWindow(ctx, ps.Signal.SignalID, w); err != nil {
				e.logger.Error("persist price window", zap.String("signal_id", ps.Signal.SignalID), zap.Error(err))
			}
		}
	}

	e.logger.Info("price enrichment finished",
		zap.Int("enriched", stats.Enriched),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
