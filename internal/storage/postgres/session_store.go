package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// SessionStore implements storage.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

const sessionColumns = `session_id, name, created_at, updated_at, signal_count`

// Insert adds a new session. Returns ErrDuplicateKey if session_id or name exists.
func (s *SessionStore) Insert(ctx context.Context, sess *domain.Session) (err error) {
	if sess == nil || sess.SessionID == "" || sess.Name == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("session_insert", start, err) }(time.Now())

	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.pool.Exec(ctx, query,
		sess.SessionID, sess.Name, sess.CreatedAt.UTC(), sess.UpdatedAt.UTC(), sess.SignalCount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its ID. Returns ErrNotFound if not exists.
func (s *SessionStore) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.getOne(ctx, "session_get_by_id", `WHERE session_id = $1`, sessionID)
}

// GetByName retrieves a session by its name. Returns ErrNotFound if not exists.
func (s *SessionStore) GetByName(ctx context.Context, name string) (*domain.Session, error) {
	return s.getOne(ctx, "session_get_by_name", `WHERE name = $1`, name)
}

func (s *SessionStore) getOne(ctx context.Context, op, where, arg string) (sess *domain.Session, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	query := `SELECT ` + sessionColumns + ` FROM sessions ` + where

	sess, err = scanSession(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// List retrieves all sessions, ordered by updated_at DESC.
func (s *SessionStore) List(ctx context.Context) (sessions []*domain.Session, err error) {
	defer func(start time.Time) { observe("session_list", start, err) }(time.Now())

	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		ORDER BY updated_at DESC, name ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}

	return sessions, nil
}

// UpdateStats sets signal_count and updated_at. Returns ErrNotFound if not exists.
func (s *SessionStore) UpdateStats(ctx context.Context, sessionID string, signalCount int, updatedAt time.Time) (err error) {
	defer func(start time.Time) { observe("session_update_stats", start, err) }(time.Now())

	query := `
		UPDATE sessions
		SET signal_count = $2, updated_at = $3
		WHERE session_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, sessionID, signalCount, updatedAt.UTC())
	if err != nil {
		return fmt.Errorf("update session stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanSession scans a single row into a Session.
func scanSession(row pgx.Row) (*domain.Session, error) {
	var sess domain.Session
	if err := row.Scan(&sess.SessionID, &sess.Name, &sess.CreatedAt, &sess.UpdatedAt, &sess.SignalCount); err != nil {
		return nil, err
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	return &sess, nil
}
