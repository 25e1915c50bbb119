package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// TradeResultStore implements storage.TradeResultStore using PostgreSQL.
type TradeResultStore struct {
	pool *Pool
}

// NewTradeResultStore creates a new TradeResultStore.
func NewTradeResultStore(pool *Pool) *TradeResultStore {
	return &TradeResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeResultStore = (*TradeResultStore)(nil)

const tradeResultInsert = `
	INSERT INTO trade_results (
		trade_id, session_id, signal_id, params_id,
		ts, coin, direction, raw_message,
		entry_price, tp_price, sl_price,
		gain_pct, drawdown_pct, outcome
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11,
		$12, $13, $14
	)
`

const tradeResultSelect = `
	SELECT
		trade_id, session_id, signal_id, params_id,
		ts, coin, direction, raw_message,
		entry_price, tp_price, sl_price,
		gain_pct, drawdown_pct, outcome
	FROM trade_results
`

func tradeResultArgs(r *domain.TradeResult) []any {
	return []any{
		r.TradeID, r.SessionID, r.SignalID, r.ParamsID,
		r.Timestamp.UTC(), r.Coin, string(r.Direction), r.RawMessage,
		r.EntryPrice, r.TPPrice, r.SLPrice,
		r.GainPct, r.DrawdownPct, string(r.Outcome),
	}
}

// Insert adds a new trade result. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeResultStore) Insert(ctx context.Context, r *domain.TradeResult) (err error) {
	if r == nil || r.TradeID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("trade_result_insert", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, tradeResultInsert, tradeResultArgs(r)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade result: %w", err)
	}
	return nil
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *TradeResultStore) InsertBulk(ctx context.Context, results []*domain.TradeResult) (err error) {
	if len(results) == 0 {
		return nil
	}
	for _, r := range results {
		if r == nil || r.TradeID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer func(start time.Time) { observe("trade_result_insert_bulk", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range results {
		if _, err = tx.Exec(ctx, tradeResultInsert, tradeResultArgs(r)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade result in bulk: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade result by its ID. Returns ErrNotFound if not exists.
func (s *TradeResultStore) GetByID(ctx context.Context, tradeID string) (r *domain.TradeResult, err error) {
	defer func(start time.Time) { observe("trade_result_get_by_id", start, err) }(time.Now())

	r, err = scanTradeResult(s.pool.QueryRow(ctx, tradeResultSelect+`WHERE trade_id = $1`, tradeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade result by id: %w", err)
	}
	return r, nil
}

// GetBySession retrieves all results of a session, ordered by timestamp ASC.
func (s *TradeResultStore) GetBySession(ctx context.Context, sessionID string) (results []*domain.TradeResult, err error) {
	defer func(start time.Time) { observe("trade_result_get_by_session", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, tradeResultSelect+`
		WHERE session_id = $1
		ORDER BY ts ASC, seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get trade results by session: %w", err)
	}
	defer rows.Close()

	return scanTradeResults(rows)
}

// GetBySessionParams retrieves results of a session for one parameter set,
// ordered by timestamp ASC.
func (s *TradeResultStore) GetBySessionParams(ctx context.Context, sessionID, paramsID string) (results []*domain.TradeResult, err error) {
	defer func(start time.Time) { observe("trade_result_get_by_session_params", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, tradeResultSelect+`
		WHERE session_id = $1 AND params_id = $2
		ORDER BY ts ASC, seq ASC
	`, sessionID, paramsID)
	if err != nil {
		return nil, fmt.Errorf("get trade results by session/params: %w", err)
	}
	defer rows.Close()

	return scanTradeResults(rows)
}

// scanTradeResult scans a single row into a TradeResult.
func scanTradeResult(row pgx.Row) (*domain.TradeResult, error) {
	var (
		r                  domain.TradeResult
		direction, outcome string
	)

	err := row.Scan(
		&r.TradeID, &r.SessionID, &r.SignalID, &r.ParamsID,
		&r.Timestamp, &r.Coin, &direction, &r.RawMessage,
		&r.EntryPrice, &r.TPPrice, &r.SLPrice,
		&r.GainPct, &r.DrawdownPct, &outcome,
	)
	if err != nil {
		return nil, err
	}

	r.Timestamp = r.Timestamp.UTC()
	r.Direction = domain.Direction(direction)
	r.Outcome = domain.Outcome(outcome)
	return &r, nil
}

// scanTradeResults scans multiple rows into a slice of TradeResult.
func scanTradeResults(rows pgx.Rows) ([]*domain.TradeResult, error) {
	var results []*domain.TradeResult

	for rows.Next() {
		r, err := scanTradeResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade result row: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade result rows: %w", err)
	}

	return results, nil
}
