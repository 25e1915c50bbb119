package postgres

import (
	"context"
	"fmt"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// InsertBulk adds multiple signals atomically. Fails entire batch on duplicate signal_id.
func (s *SignalStore) InsertBulk(ctx context.Context, signals []*domain.PricedSignal) (err error) {
	if len(signals) == 0 {
		return nil
	}
	for _, ps := range signals {
		if ps == nil || ps.Signal.SignalID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer func(start time.Time) { observe("signal_insert_bulk", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO signals (
			signal_id, session_id, ts, coin, direction, raw_message,
			entry_price, future_high, future_low
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9
		)
	`

	for _, ps := range signals {
		sig := ps.Signal
		var entry, high, low *float64
		if ps.Window != nil {
			entry, high, low = &ps.Window.EntryPrice, &ps.Window.FutureHigh, &ps.Window.FutureLow
		}

		_, err = tx.Exec(ctx, query,
			sig.SignalID, sig.SessionID, sig.Timestamp.UTC(), sig.Coin, sig.Direction, sig.RawMessage,
			nullable(entry), nullable(high), nullable(low),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert signal in bulk: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySession retrieves all signals of a session, ordered by timestamp ASC.
func (s *SignalStore) GetBySession(ctx context.Context, sessionID string) (signals []*domain.PricedSignal, err error) {
	defer func(start time.Time) { observe("signal_get_by_session", start, err) }(time.Now())

	query := `
		SELECT
			signal_id, session_id, ts, coin, direction, raw_message,
			entry_price, future_high, future_low
		FROM signals
		WHERE session_id = $1
		ORDER BY ts ASC, seq ASC
	`

	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get signals by session: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ps               domain.PricedSignal
			entry, high, low *float64
		)
		err = rows.Scan(
			&ps.Signal.SignalID, &ps.Signal.SessionID, &ps.Signal.Timestamp,
			&ps.Signal.Coin, &ps.Signal.Direction, &ps.Signal.RawMessage,
			&entry, &high, &low,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		ps.Signal.Timestamp = ps.Signal.Timestamp.UTC()
		if entry != nil && high != nil && low != nil {
			ps.Window = &domain.PriceWindow{EntryPrice: *entry, FutureHigh: *high, FutureLow: *low}
		}
		signals = append(signals, &ps)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}

	return signals, nil
}

// SetWindow attaches a price window to a signal. Returns ErrNotFound if not exists.
func (s *SignalStore) SetWindow(ctx context.Context, signalID string, w domain.PriceWindow) (err error) {
	defer func(start time.Time) { observe("signal_set_window", start, err) }(time.Now())

	query := `
		UPDATE signals
		SET entry_price = $2, future_high = $3, future_low = $4
		WHERE signal_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, signalID, w.EntryPrice, w.FutureHigh, w.FutureLow)
	if err != nil {
		return fmt.Errorf("set signal window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
