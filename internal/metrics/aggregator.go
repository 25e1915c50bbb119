package metrics

import (
	"context"
	"errors"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator computes summaries from stored trade results.
type Aggregator struct {
	tradeResultStore storage.TradeResultStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tradeStore storage.TradeResultStore) *Aggregator {
	return &Aggregator{
		tradeResultStore: tradeStore,
	}
}

// SessionTrades loads a session's stored results in timestamp order.
// An empty paramsID covers every parameter set stored for the session.
func (a *Aggregator) SessionTrades(ctx context.Context, sessionID, paramsID string) ([]*domain.TradeResult, error) {
	if paramsID == "" {
		return a.tradeResultStore.GetBySession(ctx, sessionID)
	}
	return a.tradeResultStore.GetBySessionParams(ctx, sessionID, paramsID)
}

// SessionSummary summarizes a session's stored results.
// Returns ErrNoTrades if nothing is stored.
func (a *Aggregator) SessionSummary(ctx context.Context, sessionID, paramsID string) (Summary, error) {
	trades, err := a.SessionTrades(ctx, sessionID, paramsID)
	if err != nil {
		return Summary{}, err
	}

	if len(trades) == 0 {
		return Summary{}, ErrNoTrades
	}

	return Summarize(trades), nil
}
