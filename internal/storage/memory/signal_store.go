package memory

import (
	"context"
	"sort"
	"sync"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

type signalEntry struct {
	signal domain.PricedSignal
	seq    int
}

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*signalEntry // keyed by signal_id
	seq  int
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*signalEntry),
	}
}

// InsertBulk adds multiple signals atomically. Fails entire batch on duplicate signal_id.
func (s *SignalStore) InsertBulk(_ context.Context, signals []*domain.PricedSignal) error {
	if len(signals) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(signals))
	for _, ps := range signals {
		if ps == nil || ps.Signal.SignalID == "" || ps.Signal.SessionID == "" {
			return storage.ErrInvalidInput
		}
		id := ps.Signal.SignalID
		if _, exists := s.data[id]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[id]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[id] = struct{}{}
	}

	for _, ps := range signals {
		s.seq++
		s.data[ps.Signal.SignalID] = &signalEntry{signal: clonePricedSignal(ps), seq: s.seq}
	}

	return nil
}

// GetBySession retrieves all signals of a session, ordered by timestamp ASC.
func (s *SignalStore) GetBySession(_ context.Context, sessionID string) ([]*domain.PricedSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*signalEntry
	for _, e := range s.data {
		if e.signal.Signal.SessionID == sessionID {
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].signal.Signal.Timestamp, entries[j].signal.Signal.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return entries[i].seq < entries[j].seq
	})

	result := make([]*domain.PricedSignal, len(entries))
	for i, e := range entries {
		ps := clonePricedSignal(&e.signal)
		result[i] = &ps
	}
	return result, nil
}

// SetWindow attaches a price window to a signal. Returns ErrNotFound if not exists.
func (s *SignalStore) SetWindow(_ context.Context, signalID string, w domain.PriceWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data[signalID]
	if !exists {
		return storage.ErrNotFound
	}

	e.signal.Window = &w
	return nil
}

func clonePricedSignal(ps *domain.PricedSignal) domain.PricedSignal {
	out := domain.PricedSignal{Signal: ps.Signal}
	if ps.Window != nil {
		w := *ps.Window
		out.Window = &w
	}
	return out
}

var _ storage.SignalStore = (*SignalStore)(nil)
