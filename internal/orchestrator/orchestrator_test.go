package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/equity"
	"signal-backtest-lab/internal/idhash"
	"signal-backtest-lab/internal/storage/memory"
	"signal-backtest-lab/internal/strategy"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testStores struct {
	sessions *memory.SessionStore
	signals  *memory.SignalStore
	trades   *memory.TradeResultStore
	opt      *memory.OptimizationStore
}

func createTestStores() *testStores {
	return &testStores{
		sessions: memory.NewSessionStore(),
		signals:  memory.NewSignalStore(),
		trades:   memory.NewTradeResultStore(),
		opt:      memory.NewOptimizationStore(),
	}
}

func (s *testStores) orchestrator() *Orchestrator {
	return New(Options{
		SessionStore:      s.sessions,
		SignalStore:       s.signals,
		TradeResultStore:  s.trades,
		OptimizationStore: s.opt,
		Now:               func() time.Time { return t0.Add(24 * time.Hour) },
	})
}

func priced(sessionID, coin, dir string, ts time.Time, w *domain.PriceWindow) *domain.PricedSignal {
	raw := "#" + coin + " " + dir
	return &domain.PricedSignal{
		Signal: domain.Signal{
			SignalID:   idhash.ComputeSignalID(sessionID, coin, dir, ts.UnixMilli(), raw),
			SessionID:  sessionID,
			Timestamp:  ts,
			Coin:       coin,
			Direction:  dir,
			RawMessage: raw,
		},
		Window: w,
	}
}

// seedSession stores a session with four signals: one SL, one TP, one
// unknown direction and one without a price window.
func seedSession(t *testing.T, s *testStores) {
	t.Helper()
	ctx := context.Background()

	if err := s.sessions.Insert(ctx, &domain.Session{SessionID: "sess-1", Name: "march", CreatedAt: t0, UpdatedAt: t0}); err != nil {
		t.Fatalf("insert session: %v", err)
	}

	signals := []*domain.PricedSignal{
		priced("sess-1", "BTC", "Bullish", t0, &domain.PriceWindow{EntryPrice: 100, FutureHigh: 101, FutureLow: 94}),
		priced("sess-1", "ETH", "bearish", t0.Add(time.Hour), &domain.PriceWindow{EntryPrice: 100, FutureHigh: 103, FutureLow: 80}),
		priced("sess-1", "SOL", "sideways", t0.Add(2*time.Hour), &domain.PriceWindow{EntryPrice: 100, FutureHigh: 101, FutureLow: 99}),
		priced("sess-1", "XRP", "Bullish", t0.Add(3*time.Hour), nil),
	}
	if err := s.signals.InsertBulk(ctx, signals); err != nil {
		t.Fatalf("insert signals: %v", err)
	}
}

func defaultParams(t *testing.T) strategy.Params {
	t.Helper()
	p, err := strategy.NewParams(0.05, 3, nil)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	return p
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedSession(t, stores)
	orch := stores.orchestrator()

	result, err := orch.Run(ctx, "march", defaultParams(t))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if result.Summary.Total != 2 {
		t.Errorf("expected 2 trades, got %d", result.Summary.Total)
	}
	if result.Summary.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", result.Summary.Skipped)
	}
	if result.Summary.Wins != 1 || result.Summary.Losses != 1 {
		t.Errorf("expected 1 win and 1 loss, got %+v", result.Summary)
	}
	if result.Session.Name != "march" {
		t.Errorf("unexpected session %+v", result.Session)
	}

	stored, err := stores.trades.GetBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load trades: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored trades, got %d", len(stored))
	}
	if stored[0].Outcome != domain.OutcomeSL || stored[1].Outcome != domain.OutcomeTP {
		t.Errorf("unexpected stored outcomes: %s, %s", stored[0].Outcome, stored[1].Outcome)
	}
}

func TestOrchestrator_Run_Idempotent(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedSession(t, stores)
	orch := stores.orchestrator()

	for i := 0; i < 2; i++ {
		if _, err := orch.Run(ctx, "march", defaultParams(t)); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	stored, err := stores.trades.GetBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load trades: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("expected re-run to keep 2 trades, got %d", len(stored))
	}
}

func TestOrchestrator_Run_UnknownSession(t *testing.T) {
	orch := createTestStores().orchestrator()

	_, err := orch.Run(context.Background(), "nope", defaultParams(t))
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestOrchestrator_Run_InvalidParams(t *testing.T) {
	stores := createTestStores()
	seedSession(t, stores)

	_, err := stores.orchestrator().Run(context.Background(), "march", strategy.Params{StopLossPct: 0})
	if !errors.Is(err, strategy.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
}

func TestOrchestrator_Optimize(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedSession(t, stores)
	orch := stores.orchestrator()

	if _, err := orch.Run(ctx, "march", defaultParams(t)); err != nil {
		t.Fatalf("run: %v", err)
	}

	var (
		mu   sync.Mutex
		seen int
	)
	grid := equity.Grid{StopLossPcts: []float64{2, 5}, TakeProfitPcts: []float64{10, 15}}
	result, err := orch.Optimize(ctx, "march", grid, OptimizeOptions{
		InitialBalance: 1000,
		RiskPerTrade:   0.01,
		OnCell: func(domain.OptimizationResult) {
			mu.Lock()
			seen++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(result.Cells) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(result.Cells))
	}
	if seen != 4 {
		t.Errorf("expected 4 cell callbacks, got %d", seen)
	}
	for i, c := range result.Cells {
		if c.RunID != result.RunID || c.SessionID != "sess-1" {
			t.Errorf("cell %d not stamped: %+v", i, c)
		}
		if c.Trades != 2 {
			t.Errorf("cell %d: expected 2 trades, got %d", i, c.Trades)
		}
		if i > 0 && c.FinalBalance > result.Cells[i-1].FinalBalance {
			t.Errorf("cells not sorted by final balance at %d", i)
		}
	}

	stored, err := stores.opt.GetByRunID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if len(stored) != 4 {
		t.Errorf("expected 4 persisted cells, got %d", len(stored))
	}
}

func TestOrchestrator_Optimize_MixedParams(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedSession(t, stores)
	orch := stores.orchestrator()

	other, err := strategy.NewParams(0.02, 2, nil)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	for _, p := range []strategy.Params{defaultParams(t), other} {
		if _, err := orch.Run(ctx, "march", p); err != nil {
			t.Fatalf("run: %v", err)
		}
	}

	grid := equity.Grid{StopLossPcts: []float64{2}, TakeProfitPcts: []float64{6}}
	opts := OptimizeOptions{InitialBalance: 1000, RiskPerTrade: 0.01}

	if _, err := orch.Optimize(ctx, "march", grid, opts); !errors.Is(err, ErrMixedParams) {
		t.Errorf("expected ErrMixedParams, got %v", err)
	}

	opts.ParamsID = other.ID()
	if _, err := orch.Optimize(ctx, "march", grid, opts); err != nil {
		t.Errorf("expected explicit params to succeed, got %v", err)
	}
}

func TestOrchestrator_Optimize_EmptyGrid(t *testing.T) {
	stores := createTestStores()
	seedSession(t, stores)

	_, err := stores.orchestrator().Optimize(context.Background(), "march", equity.Grid{}, OptimizeOptions{InitialBalance: 1000, RiskPerTrade: 0.01})
	if !errors.Is(err, equity.ErrEmptyGrid) {
		t.Errorf("expected ErrEmptyGrid, got %v", err)
	}
}

func TestOrchestrator_Results(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedSession(t, stores)
	orch := stores.orchestrator()

	if _, err := orch.Run(ctx, "march", defaultParams(t)); err != nil {
		t.Fatalf("run: %v", err)
	}

	session, results, err := orch.Results(ctx, "march", defaultParams(t).ID())
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if session.SessionID != "sess-1" || len(results) != 2 {
		t.Errorf("unexpected results: %+v, %d", session, len(results))
	}

	sessions, err := orch.Sessions(ctx)
	if err != nil || len(sessions) != 1 {
		t.Errorf("expected 1 session, got %d (%v)", len(sessions), err)
	}
}

func TestOrchestrator_Results_MixedParams(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedSession(t, stores)
	orch := stores.orchestrator()

	if _, err := orch.Run(ctx, "march", defaultParams(t)); err != nil {
		t.Fatalf("run: %v", err)
	}

	_, results, err := orch.Results(ctx, "march", "")
	if err != nil {
		t.Fatalf("single parameter set: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}

	other, err := strategy.NewParams(0.02, 2, nil)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if _, err := orch.Run(ctx, "march", other); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, _, err := orch.Results(ctx, "march", ""); !errors.Is(err, ErrMixedParams) {
		t.Errorf("expected ErrMixedParams, got %v", err)
	}

	_, results, err = orch.Results(ctx, "march", other.ID())
	if err != nil {
		t.Fatalf("explicit params: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected one result per signal, got %d", len(results))
	}
	for _, r := range results {
		if r.ParamsID != other.ID() {
			t.Errorf("result %s has params %s", r.TradeID, r.ParamsID)
		}
	}
}
