package equity

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/strategy"
)

// Row is one realised trade as consumed by the optimizer.
// GainPct and DrawdownPct are the direction-adjusted excursions (percent).
type Row struct {
	Direction   string
	GainPct     float64
	DrawdownPct float64
}

// RowsFromResults converts trade results into optimizer rows, keeping order.
func RowsFromResults(results []*domain.TradeResult) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, Row{
			Direction:   string(r.Direction),
			GainPct:     r.GainPct,
			DrawdownPct: r.DrawdownPct,
		})
	}
	return rows
}

// Grid holds the stop-loss and take-profit values to sweep (percent).
type Grid struct {
	StopLossPcts   []float64 `yaml:"sl_values" mapstructure:"sl_values" json:"sl_values"`
	TakeProfitPcts []float64 `yaml:"tp_values" mapstructure:"tp_values" json:"tp_values"`
}

// Validate checks that both axes are non-empty, finite, non-negative and unique.
func (g Grid) Validate() error {
	if len(g.StopLossPcts) == 0 || len(g.TakeProfitPcts) == 0 {
		return ErrEmptyGrid
	}
	for _, axis := range [][]float64{g.StopLossPcts, g.TakeProfitPcts} {
		seen := make(map[float64]struct{}, len(axis))
		for _, v := range axis {
			if !isFinite(v) || v < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidGrid, v)
			}
			if _, dup := seen[v]; dup {
				return fmt.Errorf("%w: duplicate %v", ErrInvalidGrid, v)
			}
			seen[v] = struct{}{}
		}
	}
	return nil
}

// Size returns the number of cells.
func (g Grid) Size() int {
	return len(g.StopLossPcts) * len(g.TakeProfitPcts)
}

// OptimizerOptions configures a grid sweep.
type OptimizerOptions struct {
	InitialBalance float64
	RiskPerTrade   float64 // fraction of balance (0.01 = 1%)
	Concurrency    int     // max cells in flight; <= 0 uses GOMAXPROCS

	// OnCell, when set, receives each cell as soon as it is computed.
	// Calls are serialized; cell order is not deterministic.
	OnCell func(domain.OptimizationResult)
}

// Optimize replays rows in their original order once per (sl, tp) cell
// and returns the cells sorted by FinalBalance DESC (grid order on ties).
//
// Per row: drawdown >= sl -> -sl, else gain >= tp -> tp, else gain
// (see strategy.CapGain). Rows with an unrecognized direction or
// non-finite values are left out of compounding and of the trade count.
//
// Cells are independent: each reads the shared rows and writes its own
// slot, so they run concurrently without locking.
func Optimize(ctx context.Context, rows []Row, grid Grid, opts OptimizerOptions) ([]domain.OptimizationResult, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if err := validateAccount(opts.InitialBalance, opts.RiskPerTrade); err != nil {
		return nil, err
	}

	usable := usableRows(rows)

	results := make([]domain.OptimizationResult, grid.Size())

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var cbMu sync.Mutex
	nTP := len(grid.TakeProfitPcts)
	for i, sl := range grid.StopLossPcts {
		for j, tp := range grid.TakeProfitPcts {
			slot := i*nTP + j
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				cell := replayCell(usable, sl, tp, opts.InitialBalance, opts.RiskPerTrade)
				results[slot] = cell
				if opts.OnCell != nil {
					cbMu.Lock()
					opts.OnCell(cell)
					cbMu.Unlock()
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].FinalBalance > results[b].FinalBalance
	})

	return results, nil
}

// usableRows drops rows the optimizer does not trade.
func usableRows(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if _, ok := domain.ParseDirection(r.Direction); !ok {
			continue
		}
		if !isFinite(r.GainPct) || !isFinite(r.DrawdownPct) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// replayCell compounds one grid cell. The curve starts at the initial balance.
func replayCell(rows []Row, sl, tp, initial, risk float64) domain.OptimizationResult {
	curve := make([]float64, 0, len(rows)+1)
	balance := initial
	curve = append(curve, balance)

	for _, r := range rows {
		adj := strategy.CapGain(r.GainPct, math.Abs(r.DrawdownPct), sl, tp)
		balance = step(balance, risk, adj)
		curve = append(curve, balance)
	}

	return domain.OptimizationResult{
		SLPct:          sl,
		TPPct:          tp,
		InitialBalance: initial,
		FinalBalance:   balance,
		TotalReturnPct: (balance - initial) / initial * 100,
		Trades:         len(rows),
		EquityCurve:    curve,
	}
}
