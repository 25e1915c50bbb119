package memory

import (
	"context"
	"errors"
	"testing"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

func TestOptimizationStore_InsertAndGetByRun(t *testing.T) {
	store := NewOptimizationStore()
	ctx := context.Background()

	cells := []*domain.OptimizationResult{
		{RunID: "r1", SessionID: "s1", SLPct: 1, TPPct: 3, FinalBalance: 990, CreatedAt: baseTime},
		{RunID: "r1", SessionID: "s1", SLPct: 2, TPPct: 3, FinalBalance: 1020, CreatedAt: baseTime, EquityCurve: []float64{1000, 1020}},
		{RunID: "r2", SessionID: "s1", SLPct: 1, TPPct: 3, FinalBalance: 1500, CreatedAt: baseTime},
	}
	if err := store.InsertBulk(ctx, cells); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 cells, got %d", len(got))
	}
	if got[0].FinalBalance != 1020 {
		t.Errorf("Expected best cell first, got %v", got[0].FinalBalance)
	}

	got[0].EquityCurve[0] = 0
	again, _ := store.GetByRunID(ctx, "r1")
	if again[0].EquityCurve[0] != 1000 {
		t.Errorf("Store was mutated through returned slice")
	}
}

func TestOptimizationStore_DuplicateCell(t *testing.T) {
	store := NewOptimizationStore()
	ctx := context.Background()

	cells := []*domain.OptimizationResult{
		{RunID: "r1", SLPct: 1, TPPct: 3},
		{RunID: "r1", SLPct: 1, TPPct: 3},
	}
	if err := store.InsertBulk(ctx, cells); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}
