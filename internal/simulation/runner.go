package simulation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/idhash"
	"signal-backtest-lab/internal/metrics"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/storage"
	"signal-backtest-lab/internal/strategy"
)

// SkipReason explains why a signal produced no trade result.
type SkipReason string

// Skip reasons.
const (
	SkipUnknownDirection SkipReason = "UNKNOWN_DIRECTION"
	SkipMissingWindow    SkipReason = "MISSING_WINDOW"
	SkipInvalidInput     SkipReason = "INVALID_INPUT"
)

// ErrNilSignal is the Skip.Err of a nil batch entry.
var ErrNilSignal = errors.New("nil signal")

// Skip describes a signal that was not classified.
type Skip struct {
	Reason SkipReason
	Err    error // underlying validation error, nil for UNKNOWN_DIRECTION/MISSING_WINDOW
}

// ItemResult is the per-signal outcome of a batch: exactly one of Result or Skip is set.
type ItemResult struct {
	Signal domain.Signal
	Result *domain.TradeResult
	Skip   *Skip
}

// Batch is the output of a runner pass.
type Batch struct {
	SessionID string
	ParamsID  string
	Items     []ItemResult          // one per input, in input order
	Results   []*domain.TradeResult // classified trades, in input order
	Skipped   map[SkipReason]int
}

// SkippedTotal returns the number of skipped signals.
func (b *Batch) SkippedTotal() int {
	n := 0
	for _, c := range b.Skipped {
		n += c
	}
	return n
}

// Summary computes aggregate statistics over the classified trades.
func (b *Batch) Summary() metrics.Summary {
	s := metrics.Summarize(b.Results)
	s.Skipped = b.SkippedTotal()
	return s
}

// Runner applies the outcome classifier across ordered signals.
type Runner struct {
	tradeResultStore storage.TradeResultStore
	logger           *zap.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	TradeResultStore storage.TradeResultStore // optional; results are persisted when set
	Logger           *zap.Logger
}

// NewRunner creates a batch runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		tradeResultStore: opts.TradeResultStore,
		logger:           logger,
	}
}

// Run classifies each signal in the given order.
// Steps:
//  1. Validate params (invalid params fail the batch)
//  2. Per signal: normalize direction, require a window, classify
//  3. Count skips by reason; per-item problems never fail the batch
//  4. Persist new results (already stored trade IDs are left untouched)
func (r *Runner) Run(ctx context.Context, sessionID string, items []*domain.PricedSignal, params strategy.Params) (*Batch, error) {
	// 1. Validate params
	if err := params.Validate(); err != nil {
		return nil, err
	}

	batch := &Batch{
		SessionID: sessionID,
		ParamsID:  params.ID(),
		Items:     make([]ItemResult, 0, len(items)),
		Skipped:   make(map[SkipReason]int),
	}

	// 2. Classify in input order
	for _, item := range items {
		if item == nil {
			skip := &Skip{Reason: SkipInvalidInput, Err: ErrNilSignal}
			batch.Items = append(batch.Items, ItemResult{Skip: skip})
			batch.Skipped[skip.Reason]++
			observability.RecordSignalSkipped(string(skip.Reason))
			r.logger.Debug("signal skipped", zap.String("reason", string(skip.Reason)), zap.Error(skip.Err))
			continue
		}
		res, skip := r.classifyOne(sessionID, item, params)
		batch.Items = append(batch.Items, ItemResult{Signal: item.Signal, Result: res, Skip: skip})

		// 3. Count
		if skip != nil {
			batch.Skipped[skip.Reason]++
			observability.RecordSignalSkipped(string(skip.Reason))
			r.logger.Debug("signal skipped",
				zap.String("coin", item.Signal.Coin),
				zap.String("direction", item.Signal.Direction),
				zap.Time("timestamp", item.Signal.Timestamp),
				zap.String("reason", string(skip.Reason)),
				zap.Error(skip.Err),
			)
			continue
		}
		batch.Results = append(batch.Results, res)
		observability.RecordTradeClassified(string(res.Outcome))
	}

	// 4. Persist
	if r.tradeResultStore != nil {
		if err := r.persist(ctx, batch.Results); err != nil {
			return nil, err
		}
	}

	r.logger.Info("backtest batch complete",
		zap.String("session_id", sessionID),
		zap.String("params", batch.ParamsID),
		zap.Int("trades", len(batch.Results)),
		zap.Int("skipped", batch.SkippedTotal()),
	)

	return batch, nil
}

func (r *Runner) classifyOne(sessionID string, item *domain.PricedSignal, params strategy.Params) (*domain.TradeResult, *Skip) {
	sig := item.Signal

	dir, ok := domain.ParseDirection(sig.Direction)
	if !ok {
		return nil, &Skip{Reason: SkipUnknownDirection}
	}
	if item.Window == nil {
		return nil, &Skip{Reason: SkipMissingWindow}
	}

	c, err := strategy.Classify(dir, *item.Window, params)
	if err != nil {
		return nil, &Skip{Reason: SkipInvalidInput, Err: err}
	}

	signalID := sig.SignalID
	if signalID == "" {
		signalID = idhash.ComputeSignalID(sessionID, sig.Coin, sig.Direction, sig.Timestamp.UnixMilli(), sig.RawMessage)
	}
	paramsID := params.ID()

	return &domain.TradeResult{
		TradeID:     idhash.ComputeTradeID(sessionID, signalID, paramsID),
		SessionID:   sessionID,
		SignalID:    signalID,
		ParamsID:    paramsID,
		Timestamp:   sig.Timestamp,
		Coin:        sig.Coin,
		Direction:   dir,
		RawMessage:  sig.RawMessage,
		EntryPrice:  c.EntryPrice,
		TPPrice:     c.TPPrice,
		SLPrice:     c.SLPrice,
		GainPct:     c.GainPct,
		DrawdownPct: c.DrawdownPct,
		Outcome:     c.Outcome,
	}, nil
}

// persist inserts results whose trade_id is not stored yet.
func (r *Runner) persist(ctx context.Context, results []*domain.TradeResult) error {
	pending := make([]*domain.TradeResult, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, res := range results {
		if _, dup := seen[res.TradeID]; dup {
			continue
		}
		seen[res.TradeID] = struct{}{}

		_, err := r.tradeResultStore.GetByID(ctx, res.TradeID)
		switch {
		case err == nil:
			continue
		case errors.Is(err, storage.ErrNotFound):
			pending = append(pending, res)
		default:
			return fmt.Errorf("lookup trade %s: %w", res.TradeID, err)
		}
	}

	if err := r.tradeResultStore.InsertBulk(ctx, pending); err != nil {
		return fmt.Errorf("persist trade results: %w", err)
	}
	return nil
}
