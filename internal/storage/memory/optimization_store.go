package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// OptimizationStore is an in-memory implementation of storage.OptimizationStore.
type OptimizationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OptimizationResult // keyed by run_id|sl|tp
}

// NewOptimizationStore creates a new in-memory optimization store.
func NewOptimizationStore() *OptimizationStore {
	return &OptimizationStore{
		data: make(map[string]*domain.OptimizationResult),
	}
}

func optimizationKey(r *domain.OptimizationResult) string {
	return fmt.Sprintf("%s|%v|%v", r.RunID, r.SLPct, r.TPPct)
}

// InsertBulk adds all cells of a run atomically. Fails entire batch on duplicate.
func (s *OptimizationStore) InsertBulk(_ context.Context, results []*domain.OptimizationResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
		key := optimizationKey(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range results {
		c := cloneOptimizationResult(r)
		s.data[optimizationKey(r)] = &c
	}

	return nil
}

// GetByRunID retrieves the cells of a run, ordered by final_balance DESC.
func (s *OptimizationStore) GetByRunID(_ context.Context, runID string) ([]*domain.OptimizationResult, error) {
	return s.filter(func(r *domain.OptimizationResult) bool { return r.RunID == runID }), nil
}

// GetBySession retrieves all cells for a session, newest run first.
func (s *OptimizationStore) GetBySession(_ context.Context, sessionID string) ([]*domain.OptimizationResult, error) {
	return s.filter(func(r *domain.OptimizationResult) bool { return r.SessionID == sessionID }), nil
}

func (s *OptimizationStore) filter(keep func(*domain.OptimizationResult) bool) []*domain.OptimizationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OptimizationResult
	for _, r := range s.data {
		if keep(r) {
			c := cloneOptimizationResult(r)
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.RunID != b.RunID {
			return a.RunID < b.RunID
		}
		if a.FinalBalance != b.FinalBalance {
			return a.FinalBalance > b.FinalBalance
		}
		if a.SLPct != b.SLPct {
			return a.SLPct < b.SLPct
		}
		return a.TPPct < b.TPPct
	})

	return result
}

func cloneOptimizationResult(r *domain.OptimizationResult) domain.OptimizationResult {
	c := *r
	if r.EquityCurve != nil {
		c.EquityCurve = append([]float64(nil), r.EquityCurve...)
	}
	return c
}

var _ storage.OptimizationStore = (*OptimizationStore)(nil)
