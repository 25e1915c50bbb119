// Package orchestrator coordinates a session's backtest pipeline:
// load signals -> classify -> persist -> summarize, and the grid sweep
// over stored results.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/equity"
	"signal-backtest-lab/internal/metrics"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/simulation"
	"signal-backtest-lab/internal/storage"
	"signal-backtest-lab/internal/strategy"
)

// Orchestrator errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMixedParams     = errors.New("session holds results of several parameter sets; pick one")
)

// Orchestrator runs backtests and optimizations for stored sessions.
type Orchestrator struct {
	// Stores
	sessionStore      storage.SessionStore
	signalStore       storage.SignalStore
	tradeResultStore  storage.TradeResultStore
	optimizationStore storage.OptimizationStore

	runner      *simulation.Runner
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	SessionStore     storage.SessionStore
	SignalStore      storage.SignalStore
	TradeResultStore storage.TradeResultStore

	// Optional: optimization runs are not persisted when nil
	OptimizationStore storage.OptimizationStore

	Concurrency int // optimizer cells in flight; <= 0 uses GOMAXPROCS
	Logger      *zap.Logger
	Now         func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{
		sessionStore:      opts.SessionStore,
		signalStore:       opts.SignalStore,
		tradeResultStore:  opts.TradeResultStore,
		optimizationStore: opts.OptimizationStore,
		runner: simulation.NewRunner(simulation.RunnerOptions{
			TradeResultStore: opts.TradeResultStore,
			Logger:           logger,
		}),
		concurrency: opts.Concurrency,
		logger:      logger,
		now:         now,
	}
}

// RunResult contains the outcome of a backtest run.
type RunResult struct {
	Session *domain.Session
	Batch   *simulation.Batch
	Summary metrics.Summary
}

// Run backtests the named session.
// Phases:
//  1. Load the session and its priced signals
//  2. Classify every signal (skips are counted, not fatal)
//  3. Persist new trade results (re-runs leave stored trades untouched)
//  4. Summarize
func (o *Orchestrator) Run(ctx context.Context, sessionName string, params strategy.Params) (*RunResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orchestrator.Run")
	defer span.Finish()
	span.SetTag("session", sessionName)
	span.SetTag("params", params.ID())

	started := time.Now()

	// Phase 1: Load
	session, err := o.loadSession(ctx, sessionName)
	if err != nil {
		return nil, err
	}

	signals, err := o.loadSignals(ctx, session.SessionID)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (load signals) failed: %w", err)
	}
	span.SetTag("signals", len(signals))

	// Phases 2-3: Classify and persist
	batch, err := o.classify(ctx, session.SessionID, signals, params)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (classify) failed: %w", err)
	}

	// Phase 4: Summarize
	summary := batch.Summary()
	observability.RecordBacktestRun(time.Since(started).Seconds(), o.now().Unix())

	o.logger.Info("backtest finished",
		zap.String("session", sessionName),
		zap.String("params", batch.ParamsID),
		zap.Int("signals", len(signals)),
		zap.Int("trades", summary.Total),
		zap.Int("skipped", summary.Skipped),
		zap.Float64("win_rate", summary.WinRate),
	)

	return &RunResult{Session: session, Batch: batch, Summary: summary}, nil
}

// OptimizeOptions configures one grid sweep.
type OptimizeOptions struct {
	ParamsID       string // empty uses every stored result, which must share one parameter set
	InitialBalance float64
	RiskPerTrade   float64

	// OnCell receives each finished cell; see equity.OptimizerOptions.
	OnCell func(domain.OptimizationResult)
}

// OptimizeResult contains the cells of one sweep, best first.
type OptimizeResult struct {
	RunID   string
	Session *domain.Session
	Cells   []domain.OptimizationResult
}

// Optimize sweeps the grid over the session's stored trade results and
// persists the cells under a new run ID when an optimization store is set.
func (o *Orchestrator) Optimize(ctx context.Context, sessionName string, grid equity.Grid, opts OptimizeOptions) (*OptimizeResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orchestrator.Optimize")
	defer span.Finish()
	span.SetTag("session", sessionName)
	span.SetTag("cells", grid.Size())

	started := time.Now()

	session, err := o.loadSession(ctx, sessionName)
	if err != nil {
		return nil, err
	}

	results, err := o.loadResults(ctx, session.SessionID, opts.ParamsID)
	if err != nil {
		return nil, err
	}

	cells, err := o.sweep(ctx, equity.RowsFromResults(results), grid, opts)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	createdAt := o.now()
	for i := range cells {
		cells[i].RunID = runID
		cells[i].SessionID = session.SessionID
		cells[i].CreatedAt = createdAt
	}

	if o.optimizationStore != nil {
		if err := o.persistCells(ctx, cells); err != nil {
			return nil, err
		}
	}

	observability.RecordOptimizerRun(len(cells), time.Since(started).Seconds())
	span.SetTag("run_id", runID)

	o.logger.Info("optimization finished",
		zap.String("session", sessionName),
		zap.String("run_id", runID),
		zap.Int("trades", len(results)),
		zap.Int("cells", len(cells)),
	)

	return &OptimizeResult{RunID: runID, Session: session, Cells: cells}, nil
}

// loadSession resolves a session name.
func (o *Orchestrator) loadSession(ctx context.Context, name string) (*domain.Session, error) {
	session, err := o.sessionStore.GetByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", name, err)
	}
	return session, nil
}

func (o *Orchestrator) loadSignals(ctx context.Context, sessionID string) ([]*domain.PricedSignal, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orchestrator.loadSignals")
	defer span.Finish()
	return o.signalStore.GetBySession(ctx, sessionID)
}

func (o *Orchestrator) classify(ctx context.Context, sessionID string, signals []*domain.PricedSignal, params strategy.Params) (*simulation.Batch, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orchestrator.classify")
	defer span.Finish()
	return o.runner.Run(ctx, sessionID, signals, params)
}

// loadResults returns stored results in timestamp order. Without a paramsID
// the results must all come from one parameter set.
func (o *Orchestrator) loadResults(ctx context.Context, sessionID, paramsID string) ([]*domain.TradeResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orchestrator.loadResults")
	defer span.Finish()

	results, err := metrics.NewAggregator(o.tradeResultStore).SessionTrades(ctx, sessionID, paramsID)
	if err != nil {
		return nil, fmt.Errorf("load trade results: %w", err)
	}
	if paramsID != "" {
		return results, nil
	}
	for _, r := range results {
		if r.ParamsID != results[0].ParamsID {
			return nil, ErrMixedParams
		}
	}
	return results, nil
}

func (o *Orchestrator) sweep(ctx context.Context, rows []equity.Row, grid equity.Grid, opts OptimizeOptions) ([]domain.OptimizationResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orchestrator.sweep")
	defer span.Finish()

	return equity.Optimize(ctx, rows, grid, equity.OptimizerOptions{
		InitialBalance: opts.InitialBalance,
		RiskPerTrade:   opts.RiskPerTrade,
		Concurrency:    o.concurrency,
		OnCell:         opts.OnCell,
	})
}

func (o *Orchestrator) persistCells(ctx context.Context, cells []domain.OptimizationResult) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orchestrator.persistCells")
	defer span.Finish()

	ptrs := make([]*domain.OptimizationResult, len(cells))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	if err := o.optimizationStore.InsertBulk(ctx, ptrs); err != nil {
		return fmt.Errorf("persist optimization run: %w", err)
	}
	return nil
}

// Sessions lists stored sessions, most recently updated first.
func (o *Orchestrator) Sessions(ctx context.Context) ([]*domain.Session, error) {
	return o.sessionStore.List(ctx)
}

// Results returns the stored results of the named session. An empty paramsID
// is accepted only while the session holds a single parameter set;
// otherwise ErrMixedParams is returned.
func (o *Orchestrator) Results(ctx context.Context, sessionName, paramsID string) (*domain.Session, []*domain.TradeResult, error) {
	session, err := o.loadSession(ctx, sessionName)
	if err != nil {
		return nil, nil, err
	}

	results, err := o.loadResults(ctx, session.SessionID, paramsID)
	if err != nil {
		return nil, nil, err
	}
	return session, results, nil
}
