package storage

import (
	"context"
	"time"

	"signal-backtest-lab/internal/domain"
)

// SessionStore provides access to sessions storage.
type SessionStore interface {
	// Insert adds a new session. Returns ErrDuplicateKey if session_id or name exists.
	Insert(ctx context.Context, s *domain.Session) error

	// GetByID retrieves a session by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)

	// GetByName retrieves a session by its name. Returns ErrNotFound if not exists.
	GetByName(ctx context.Context, name string) (*domain.Session, error)

	// List retrieves all sessions, ordered by updated_at DESC.
	List(ctx context.Context) ([]*domain.Session, error)

	// UpdateStats sets signal_count and updated_at. Returns ErrNotFound if not exists.
	UpdateStats(ctx context.Context, sessionID string, signalCount int, updatedAt time.Time) error
}

// SignalStore provides access to signals storage.
type SignalStore interface {
	// InsertBulk adds multiple signals atomically. Fails entire batch on duplicate signal_id.
	InsertBulk(ctx context.Context, signals []*domain.PricedSignal) error

	// GetBySession retrieves all signals of a session, ordered by timestamp ASC.
	GetBySession(ctx context.Context, sessionID string) ([]*domain.PricedSignal, error)

	// SetWindow attaches a price window to a signal. Returns ErrNotFound if not exists.
	SetWindow(ctx context.Context, signalID string, w domain.PriceWindow) error
}

// TradeResultStore provides access to trade_results storage.
type TradeResultStore interface {
	// Insert adds a new trade result. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, r *domain.TradeResult) error

	// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, results []*domain.TradeResult) error

	// GetByID retrieves a trade result by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeResult, error)

	// GetBySession retrieves all results of a session, ordered by timestamp ASC.
	GetBySession(ctx context.Context, sessionID string) ([]*domain.TradeResult, error)

	// GetBySessionParams retrieves results of a session for one parameter set,
	// ordered by timestamp ASC.
	GetBySessionParams(ctx context.Context, sessionID, paramsID string) ([]*domain.TradeResult, error)
}

// OptimizationStore provides access to optimization_results storage.
type OptimizationStore interface {
	// InsertBulk adds all cells of a run atomically. Fails entire batch on duplicate (run_id, sl_pct, tp_pct).
	InsertBulk(ctx context.Context, results []*domain.OptimizationResult) error

	// GetByRunID retrieves the cells of a run, ordered by final_balance DESC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.OptimizationResult, error)

	// GetBySession retrieves all cells for a session, ordered by created_at DESC then final_balance DESC.
	GetBySession(ctx context.Context, sessionID string) ([]*domain.OptimizationResult, error)
}
