package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage/memory"
)

func TestEnricher_Enrich(t *testing.T) {
	src := &fakeKlines{
		data: map[string][]Kline{
			"BTCUSDT": {{High: 120, Low: 95, Close: 100}},
		},
		err: map[string]error{
			"FOOUSDT": errors.New("invalid symbol"),
		},
	}

	ctx := context.Background()
	store := memory.NewSignalStore()
	signals := []*domain.PricedSignal{
		{Signal: domain.Signal{SignalID: "s1", SessionID: "sess", Coin: "BTC", Timestamp: t0}},
		{Signal: domain.Signal{SignalID: "s2", SessionID: "sess", Coin: "FOO", Timestamp: t0}},
		{Signal: domain.Signal{SignalID: "s3", SessionID: "sess", Coin: "ETH", Timestamp: t0},
			Window: &domain.PriceWindow{EntryPrice: 1, FutureHigh: 1, FutureLow: 1}},
	}
	if err := store.InsertBulk(ctx, []*domain.PricedSignal{{Signal: signals[0].Signal}}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	e := NewEnricher(EnricherOptions{
		Windows:     NewWindowFetcher(src, "1m", time.Hour),
		SignalStore: store,
	})

	stats, err := e.Enrich(ctx, signals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats != (EnrichStats{Enriched: 1, Failed: 1, Skipped: 1}) {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if signals[0].Window == nil || signals[0].Window.FutureHigh != 120 {
		t.Errorf("expected BTC window, got %+v", signals[0].Window)
	}
	if signals[1].Window != nil {
		t.Error("expected failed signal to stay without window")
	}
	if len(src.calls) != 2 {
		t.Errorf("expected 2 requests, got %v", src.calls)
	}

	stored, err := store.GetBySession(ctx, "sess")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 1 || stored[0].Window == nil {
		t.Errorf("expected window to be persisted, got %+v", stored)
	}
}

func TestEnricher_CancelDuringDelay(t *testing.T) {
	src := &fakeKlines{data: map[string][]Kline{"BTCUSDT": {{High: 1, Low: 1, Close: 1}}}}
	e := NewEnricher(EnricherOptions{
		Windows: NewWindowFetcher(src, "1m", time.Hour),
		Delay:   time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	signals := []*domain.PricedSignal{
		{Signal: domain.Signal{Coin: "BTC", Timestamp: t0}},
		{Signal: domain.Signal{Coin: "BTC", Timestamp: t0.Add(time.Minute)}},
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	stats, err := e.Enrich(ctx, signals)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stats.Enriched != 1 {
		t.Errorf("expected first signal enriched before cancel, got %+v", stats)
	}
}
