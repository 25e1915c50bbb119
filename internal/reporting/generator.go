package reporting

import (
	"context"
	"fmt"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/metrics"
	"signal-backtest-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	sessionStore      storage.SessionStore
	trades            *metrics.Aggregator
	optimizationStore storage.OptimizationStore
	now               func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
// optStore may be nil when no optimization results are kept.
func NewGenerator(
	sessionStore storage.SessionStore,
	tradeStore storage.TradeResultStore,
	optStore storage.OptimizationStore,
) *Generator {
	return &Generator{
		sessionStore:      sessionStore,
		trades:            metrics.NewAggregator(tradeStore),
		optimizationStore: optStore,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the report of the named session.
// An empty paramsID covers every stored parameter set.
func (g *Generator) Generate(ctx context.Context, sessionName, paramsID string) (*Report, error) {
	session, err := g.sessionStore.GetByName(ctx, sessionName)
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", sessionName, err)
	}

	results, err := g.trades.SessionTrades(ctx, session.SessionID, paramsID)
	if err != nil {
		return nil, fmt.Errorf("load trade results: %w", err)
	}

	optimization, err := g.latestOptimization(ctx, session.SessionID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt:  g.now(),
		Session:      *session,
		ParamsID:     paramsID,
		Summary:      metrics.Summarize(results),
		Outcomes:     OutcomeCountsOf(results),
		Setups:       SetupCountsOf(results),
		Coins:        CoinPerformanceOf(results),
		Optimization: optimization,
	}

	// Find date range from trade timestamps
	for i, r := range results {
		if i == 0 || r.Timestamp.Before(report.DateRangeStart) {
			report.DateRangeStart = r.Timestamp
		}
		if i == 0 || r.Timestamp.After(report.DateRangeEnd) {
			report.DateRangeEnd = r.Timestamp
		}
	}

	return report, nil
}

// latestOptimization returns the cells of the most recent run, best first.
func (g *Generator) latestOptimization(ctx context.Context, sessionID string) ([]domain.OptimizationResult, error) {
	if g.optimizationStore == nil {
		return nil, nil
	}

	cells, err := g.optimizationStore.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load optimization results: %w", err)
	}
	if len(cells) == 0 {
		return nil, nil
	}

	// Store order is newest run first, best cell first within a run
	runID := cells[0].RunID
	var out []domain.OptimizationResult
	for _, c := range cells {
		if c.RunID == runID {
			out = append(out, *c)
		}
	}
	return out, nil
}
