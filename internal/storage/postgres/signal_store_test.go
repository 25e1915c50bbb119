package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

func createTestSignal(sessionID, signalID, coin string, offset time.Duration, w *domain.PriceWindow) *domain.PricedSignal {
	return &domain.PricedSignal{
		Signal: domain.Signal{
			SignalID:   signalID,
			SessionID:  sessionID,
			Timestamp:  baseTime.Add(offset),
			Coin:       coin,
			Direction:  "Bullish",
			RawMessage: "#" + coin + " bullish",
		},
		Window: w,
	}
}

func TestSignalStore_InsertBulkAndGetBySession(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	sessionID := createTestSession(t, ctx, pool, "sig-sess-1")
	store := NewSignalStore(pool)

	window := &domain.PriceWindow{EntryPrice: 100, FutureHigh: 120, FutureLow: 97}
	err := store.InsertBulk(ctx, []*domain.PricedSignal{
		createTestSignal(sessionID, "sig-2", "ETH", time.Minute, nil),
		createTestSignal(sessionID, "sig-1", "BTC", 0, window),
		createTestSignal(sessionID, "sig-3", "SOL", time.Minute, nil),
	})
	require.NoError(t, err)

	got, err := store.GetBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Timestamp ASC, insertion order on ties
	assert.Equal(t, "sig-1", got[0].Signal.SignalID)
	assert.Equal(t, "sig-2", got[1].Signal.SignalID)
	assert.Equal(t, "sig-3", got[2].Signal.SignalID)

	require.NotNil(t, got[0].Window)
	assert.InDelta(t, 120.0, got[0].Window.FutureHigh, 1e-9)
	assert.Nil(t, got[1].Window)
	assert.True(t, baseTime.Equal(got[0].Signal.Timestamp))
}

func TestSignalStore_InsertBulkDuplicateRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	sessionID := createTestSession(t, ctx, pool, "sig-sess-2")
	store := NewSignalStore(pool)

	err := store.InsertBulk(ctx, []*domain.PricedSignal{
		createTestSignal(sessionID, "dup", "BTC", 0, nil),
		createTestSignal(sessionID, "dup", "ETH", time.Minute, nil),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSignalStore_SetWindow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	sessionID := createTestSession(t, ctx, pool, "sig-sess-3")
	store := NewSignalStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricedSignal{
		createTestSignal(sessionID, "sig-1", "BTC", 0, nil),
	}))

	w := domain.PriceWindow{EntryPrice: 50, FutureHigh: 55, FutureLow: 45}
	require.NoError(t, store.SetWindow(ctx, "sig-1", w))

	got, err := store.GetBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Window)
	assert.Equal(t, w, *got[0].Window)

	assert.ErrorIs(t, store.SetWindow(ctx, "missing", w), storage.ErrNotFound)
}
