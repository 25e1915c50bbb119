package ingestion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/observability"
)

// Cutoff returns the earliest message date kept for a months-back window.
func Cutoff(now time.Time, monthsBack int) time.Time {
	if monthsBack <= 0 {
		return time.Time{}
	}
	return now.UTC().AddDate(0, -monthsBack, 0)
}

// CollectSignals reads messages from src and keeps those that parse as signals.
// Signals are returned in ascending timestamp order. On error the signals
// collected so far are returned with it.
func CollectSignals(ctx context.Context, src MessageSource, since time.Time, logger *zap.Logger) ([]domain.Signal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var signals []domain.Signal
	err := src.Messages(ctx, since, func(m Message) error {
		observability.RecordMessageSeen()

		sig, ok := ParseSignal(m.Text, m.Date)
		if !ok {
			return nil
		}
		observability.RecordSignalIngested(sig.Direction)
		logger.Debug("signal extracted",
			zap.Int("message_id", m.ID),
			zap.String("coin", sig.Coin),
			zap.String("direction", sig.Direction),
		)
		signals = append(signals, sig)
		return nil
	})

	SortSignals(signals)
	return signals, err
}
