package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// SessionStore is an in-memory implementation of storage.SessionStore.
type SessionStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Session // keyed by session_id
	byName map[string]string          // name -> session_id
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data:   make(map[string]*domain.Session),
		byName: make(map[string]string),
	}
}

// Insert adds a new session. Returns ErrDuplicateKey if session_id or name exists.
func (s *SessionStore) Insert(_ context.Context, sess *domain.Session) error {
	if sess == nil || sess.SessionID == "" || sess.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sess.SessionID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byName[sess.Name]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *sess
	s.data[sess.SessionID] = &copy
	s.byName[sess.Name] = sess.SessionID
	return nil
}

// GetByID retrieves a session by its ID. Returns ErrNotFound if not exists.
func (s *SessionStore) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.data[sessionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *sess
	return &copy, nil
}

// GetByName retrieves a session by its name. Returns ErrNotFound if not exists.
func (s *SessionStore) GetByName(_ context.Context, name string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byName[name]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *s.data[id]
	return &copy, nil
}

// List retrieves all sessions, ordered by updated_at DESC.
func (s *SessionStore) List(_ context.Context) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Session, 0, len(s.data))
	for _, sess := range s.data {
		copy := *sess
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].Name < result[j].Name
	})

	return result, nil
}

// UpdateStats sets signal_count and updated_at. Returns ErrNotFound if not exists.
func (s *SessionStore) UpdateStats(_ context.Context, sessionID string, signalCount int, updatedAt time.Time) error {
	if signalCount < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.data[sessionID]
	if !exists {
		return storage.ErrNotFound
	}

	sess.SignalCount = signalCount
	sess.UpdatedAt = updatedAt
	return nil
}

var _ storage.SessionStore = (*SessionStore)(nil)
