package clickhouse

import (
	"context"
	"fmt"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// OptimizationStore implements storage.OptimizationStore using ClickHouse.
type OptimizationStore struct {
	conn *Conn
}

// NewOptimizationStore creates a new OptimizationStore.
func NewOptimizationStore(conn *Conn) *OptimizationStore {
	return &OptimizationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OptimizationStore = (*OptimizationStore)(nil)

const optimizationColumns = `
	run_id, session_id, sl_pct, tp_pct,
	initial_balance, final_balance, total_return_pct,
	trades, equity_curve, created_at
`

// InsertBulk adds all cells of a run atomically. Fails entire batch on duplicate (run_id, sl_pct, tp_pct).
func (s *OptimizationStore) InsertBulk(ctx context.Context, results []*domain.OptimizationResult) (err error) {
	if len(results) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("optimization_insert_bulk", start, err) }(time.Now())

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(results))
	runs := make(map[string]struct{})
	for _, r := range results {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
		key := fmt.Sprintf("%s|%v|%v", r.RunID, r.SLPct, r.TPPct)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		runs[r.RunID] = struct{}{}
	}

	// ReplacingMergeTree would silently replace; keep append-only semantics
	for runID := range runs {
		existing, err := s.countRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if existing > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO optimization_results (`+optimizationColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range results {
		curve := r.EquityCurve
		if curve == nil {
			curve = []float64{}
		}
		err = batch.Append(
			r.RunID, r.SessionID, r.SLPct, r.TPPct,
			r.InitialBalance, r.FinalBalance, r.TotalReturnPct,
			uint32(r.Trades), curve, r.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves the cells of a run, ordered by final_balance DESC.
func (s *OptimizationStore) GetByRunID(ctx context.Context, runID string) (results []*domain.OptimizationResult, err error) {
	defer func(start time.Time) { observe("optimization_get_by_run", start, err) }(time.Now())

	query := `
		SELECT ` + optimizationColumns + `
		FROM optimization_results FINAL
		WHERE run_id = ?
		ORDER BY final_balance DESC, sl_pct ASC, tp_pct ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanOptimizationResults(rows)
}

// GetBySession retrieves all cells for a session, newest run first.
func (s *OptimizationStore) GetBySession(ctx context.Context, sessionID string) (results []*domain.OptimizationResult, err error) {
	defer func(start time.Time) { observe("optimization_get_by_session", start, err) }(time.Now())

	query := `
		SELECT ` + optimizationColumns + `
		FROM optimization_results FINAL
		WHERE session_id = ?
		ORDER BY created_at DESC, run_id ASC, final_balance DESC, sl_pct ASC, tp_pct ASC
	`

	rows, err := s.conn.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query by session: %w", err)
	}
	defer rows.Close()

	return scanOptimizationResults(rows)
}

// countRun returns the number of stored cells of a run.
func (s *OptimizationStore) countRun(ctx context.Context, runID string) (uint64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM optimization_results FINAL WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanOptimizationResults scans multiple rows into a slice.
func scanOptimizationResults(rows chRows) ([]*domain.OptimizationResult, error) {
	var results []*domain.OptimizationResult

	for rows.Next() {
		var (
			r      domain.OptimizationResult
			trades uint32
		)
		err := rows.Scan(
			&r.RunID, &r.SessionID, &r.SLPct, &r.TPPct,
			&r.InitialBalance, &r.FinalBalance, &r.TotalReturnPct,
			&trades, &r.EquityCurve, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan optimization row: %w", err)
		}
		r.Trades = int(trades)
		r.CreatedAt = r.CreatedAt.UTC()
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate optimization rows: %w", err)
	}

	return results, nil
}
