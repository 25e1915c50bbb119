package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage/memory"
)

func TestOpenStores_Memory(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStores(ctx, &config.Config{}, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &memory.SessionStore{}, s.Sessions)
	assert.IsType(t, &memory.OptimizationStore{}, s.Optimizations)

	sess, n, err := s.Manager(nil).IngestSession(ctx, "march", []*domain.PricedSignal{
		{Signal: domain.Signal{Coin: "BTC", Direction: "Bullish", RawMessage: "#BTC bullish"},
			Window: &domain.PriceWindow{EntryPrice: 100, FutureHigh: 120, FutureLow: 99}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sessions, err := s.Orchestrator(nil).Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sess.SessionID, sessions[0].SessionID)
}
