// Command optimize sweeps a stop-loss/take-profit grid over trade results.
//
// Usage:
//
//	optimize --input results.csv [--grid-file grid.yaml] [--output optimization.csv] [--heatmap heatmap.md]
//	optimize --session march       # stored results; persisted to ClickHouse when configured
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signal-backtest-lab/internal/app"
	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/equity"
	"signal-backtest-lab/internal/logging"
	"signal-backtest-lab/internal/orchestrator"
	"signal-backtest-lab/internal/reporting"
	"signal-backtest-lab/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	input := flag.String("input", "", "Trade results CSV")
	sessionName := flag.String("session", "", "Stored session to optimize (instead of --input)")
	paramsID := flag.String("params", "", "Parameter set of the stored results (with --session)")
	gridFile := flag.String("grid-file", "", "YAML grid file (sl_values, tp_values)")
	output := flag.String("output", "optimization.csv", "Optimization summary CSV (- for stdout)")
	heatmap := flag.String("heatmap", "", "Write the Total Return % heatmap as Markdown")
	balance := flag.Float64("balance", 0, "Initial balance (default from config)")
	risk := flag.Float64("risk", 0, "Risk per trade as a fraction of balance (default from config)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Must(cfg.LogLevel, "optimize")
	defer func() { _ = logger.Sync() }()

	if (*input == "") == (*sessionName == "") {
		logger.Fatal("exactly one of --input or --session is required")
	}

	grid := cfg.Grid
	if *gridFile != "" {
		if grid, err = config.LoadGrid(*gridFile); err != nil {
			logger.Fatal("load grid", zap.Error(err))
		}
	}

	opts := cfg.OptimizerOptions()
	if *balance > 0 {
		opts.InitialBalance = *balance
	}
	if *risk > 0 {
		opts.RiskPerTrade = *risk
	}

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	var cells []domain.OptimizationResult
	if *input != "" {
		cells, err = optimizeFile(ctx, *input, grid, opts, cfg, logger)
	} else {
		cells, err = optimizeSession(ctx, *sessionName, *paramsID, grid, opts, cfg, logger)
	}
	if err != nil {
		logger.Fatal("optimization failed", zap.Error(err))
	}

	csvOut, err := reporting.RenderOptimizationCSV(cells)
	if err != nil {
		logger.Fatal("render optimization", zap.Error(err))
	}
	if *output == "-" {
		fmt.Print(csvOut)
	} else if err := os.WriteFile(*output, []byte(csvOut), 0o644); err != nil {
		logger.Fatal("write optimization", zap.Error(err))
	}

	if *heatmap != "" {
		md := reporting.RenderHeatmapMarkdown(reporting.HeatmapOf(cells))
		if err := os.WriteFile(*heatmap, []byte(md), 0o644); err != nil {
			logger.Fatal("write heatmap", zap.Error(err))
		}
	}

	if len(cells) > 0 {
		best := cells[0]
		logger.Info("best cell",
			zap.Float64("sl_pct", best.SLPct),
			zap.Float64("tp_pct", best.TPPct),
			zap.Float64("final_balance", best.FinalBalance),
			zap.Float64("total_return_pct", best.TotalReturnPct),
		)
	}
}

// optimizeFile sweeps the grid over a results CSV. The run is persisted to
// ClickHouse when configured, under a session named after the file.
func optimizeFile(ctx context.Context, path string, grid equity.Grid, opts equity.OptimizerOptions, cfg *config.Config, logger *zap.Logger) ([]domain.OptimizationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	results, err := reporting.ParseTradeResultsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	started := time.Now()
	cells, err := equity.Optimize(ctx, equity.RowsFromResults(results), grid, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("grid swept",
		zap.Int("rows", len(results)),
		zap.Int("cells", len(cells)),
		zap.Duration("elapsed", time.Since(started)),
	)

	if cfg.ClickHouse.DSN == "" {
		return cells, nil
	}

	stores, err := app.OpenStores(ctx, &config.Config{ClickHouse: cfg.ClickHouse}, logger)
	if err != nil {
		return nil, err
	}
	defer stores.Close()

	runID := uuid.NewString()
	now := time.Now().UTC()
	ptrs := make([]*domain.OptimizationResult, len(cells))
	for i := range cells {
		cells[i].RunID = runID
		cells[i].SessionID = path
		cells[i].CreatedAt = now
		ptrs[i] = &cells[i]
	}
	if err := persist(ctx, stores.Optimizations, ptrs); err != nil {
		return nil, err
	}
	logger.Info("optimization run stored", zap.String("run_id", runID))
	return cells, nil
}

func persist(ctx context.Context, store storage.OptimizationStore, cells []*domain.OptimizationResult) error {
	if err := store.InsertBulk(ctx, cells); err != nil {
		return fmt.Errorf("persist optimization run: %w", err)
	}
	return nil
}

// optimizeSession sweeps the grid over a stored session's results.
func optimizeSession(ctx context.Context, name, paramsID string, grid equity.Grid, opts equity.OptimizerOptions, cfg *config.Config, logger *zap.Logger) ([]domain.OptimizationResult, error) {
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer stores.Close()

	res, err := stores.Orchestrator(logger).Optimize(ctx, name, grid, orchestrator.OptimizeOptions{
		ParamsID:       paramsID,
		InitialBalance: opts.InitialBalance,
		RiskPerTrade:   opts.RiskPerTrade,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("optimization run stored", zap.String("run_id", res.RunID))
	return res.Cells, nil
}
