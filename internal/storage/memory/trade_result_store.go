package memory

import (
	"context"
	"sort"
	"sync"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

type tradeResultEntry struct {
	result domain.TradeResult
	seq    int
}

// TradeResultStore is an in-memory implementation of storage.TradeResultStore.
type TradeResultStore struct {
	mu   sync.RWMutex
	data map[string]*tradeResultEntry // keyed by trade_id
	seq  int
}

// NewTradeResultStore creates a new in-memory trade result store.
func NewTradeResultStore() *TradeResultStore {
	return &TradeResultStore{
		data: make(map[string]*tradeResultEntry),
	}
}

// Insert adds a new trade result. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeResultStore) Insert(_ context.Context, r *domain.TradeResult) error {
	if r == nil || r.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	s.put(r)
	return nil
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *TradeResultStore) InsertBulk(_ context.Context, results []*domain.TradeResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(results))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range results {
		if r == nil || r.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.TradeID] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range results {
		s.put(r)
	}

	return nil
}

func (s *TradeResultStore) put(r *domain.TradeResult) {
	s.seq++
	s.data[r.TradeID] = &tradeResultEntry{result: *r, seq: s.seq}
}

// GetByID retrieves a trade result by its ID. Returns ErrNotFound if not exists.
func (s *TradeResultStore) GetByID(_ context.Context, tradeID string) (*domain.TradeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := e.result
	return &copy, nil
}

// GetBySession retrieves all results of a session, ordered by timestamp ASC.
func (s *TradeResultStore) GetBySession(_ context.Context, sessionID string) ([]*domain.TradeResult, error) {
	return s.filter(func(r *domain.TradeResult) bool {
		return r.SessionID == sessionID
	}), nil
}

// GetBySessionParams retrieves results of a session for one parameter set.
func (s *TradeResultStore) GetBySessionParams(_ context.Context, sessionID, paramsID string) ([]*domain.TradeResult, error) {
	return s.filter(func(r *domain.TradeResult) bool {
		return r.SessionID == sessionID && r.ParamsID == paramsID
	}), nil
}

func (s *TradeResultStore) filter(keep func(*domain.TradeResult) bool) []*domain.TradeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*tradeResultEntry
	for _, e := range s.data {
		if keep(&e.result) {
			entries = append(entries, e)
		}
	}

	// Timestamp ASC, insertion order on ties
	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].result.Timestamp, entries[j].result.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return entries[i].seq < entries[j].seq
	})

	result := make([]*domain.TradeResult, len(entries))
	for i, e := range entries {
		copy := e.result
		result[i] = &copy
	}
	return result
}

var _ storage.TradeResultStore = (*TradeResultStore)(nil)
