// Command backtest classifies a session CSV and writes the trade results.
//
// Usage:
//
//	backtest --input sessions/march.csv --output results.csv [--report report.md]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"signal-backtest-lab/internal/app"
	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/ingestion"
	"signal-backtest-lab/internal/logging"
	"signal-backtest-lab/internal/metrics"
	"signal-backtest-lab/internal/numfmt"
	"signal-backtest-lab/internal/reporting"
	"signal-backtest-lab/internal/strategy"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML config file")
	input := flag.String("input", "", "Session CSV with price windows (required)")
	sessionName := flag.String("session", "", "Session name (default: input file name)")
	output := flag.String("output", "results.csv", "Trade results CSV (- for stdout)")
	reportPath := flag.String("report", "", "Write a Markdown report to this path")
	outputJSON := flag.Bool("json", false, "Print the summary as JSON")

	// Classifier overrides; negative keeps the configured value
	stopLoss := flag.Float64("sl", -1, "Stop-loss as a fraction of entry (0.05 = 5%)")
	riskReward := flag.Float64("rr", -1, "Take-profit distance as a multiple of stop-loss")
	takeProfit := flag.Float64("tp", -1, "Direct take-profit fraction, overrides --rr")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Must(cfg.LogLevel, "backtest")
	defer func() { _ = logger.Sync() }()

	if *input == "" {
		logger.Fatal("--input is required")
	}
	if *sessionName == "" {
		*sessionName = strings.TrimSuffix(filepath.Base(*input), filepath.Ext(*input))
	}

	params, err := buildParams(cfg, *stopLoss, *riskReward, *takeProfit)
	if err != nil {
		logger.Fatal("invalid parameters", zap.Error(err))
	}

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()

	// Load signals into the session
	f, err := os.Open(*input)
	if err != nil {
		logger.Fatal("open input", zap.Error(err))
	}
	signals, err := ingestion.ReadSessionCSV(f)
	f.Close()
	if err != nil {
		logger.Fatal("read session csv", zap.String("path", *input), zap.Error(err))
	}

	if _, _, err := stores.Manager(logger).IngestSession(ctx, *sessionName, signals); err != nil {
		logger.Fatal("ingest session", zap.Error(err))
	}

	// Run
	result, err := stores.Orchestrator(logger).Run(ctx, *sessionName, params)
	if err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}

	csvOut, err := reporting.RenderTradeResultsCSV(result.Batch.Results)
	if err != nil {
		logger.Fatal("render results", zap.Error(err))
	}
	if err := writeOutput(*output, csvOut); err != nil {
		logger.Fatal("write results", zap.Error(err))
	}

	if *reportPath != "" {
		report, err := reporting.NewGenerator(stores.Sessions, stores.TradeResults, stores.Optimizations).
			Generate(ctx, *sessionName, result.Batch.ParamsID)
		if err != nil {
			logger.Fatal("generate report", zap.Error(err))
		}
		if err := os.WriteFile(*reportPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
			logger.Fatal("write report", zap.Error(err))
		}
	}

	// Output summary
	if *outputJSON {
		out, _ := sonic.ConfigStd.MarshalIndent(result.Summary, "", "  ")
		fmt.Println(string(out))
	} else {
		printSummary(result.Batch.ParamsID, result.Summary)
	}
}

// buildParams applies flag overrides to the configured classifier parameters.
func buildParams(cfg *config.Config, sl, rr, tp float64) (strategy.Params, error) {
	stopLoss, riskReward := cfg.Backtest.StopLossPct, cfg.Backtest.RiskReward
	if sl >= 0 {
		stopLoss = sl
	}
	if rr >= 0 {
		riskReward = rr
	}
	var takeProfit *float64
	if tp >= 0 {
		takeProfit = &tp
	}
	return strategy.NewParams(stopLoss, riskReward, takeProfit)
}

func writeOutput(path, content string) error {
	if path == "-" {
		_, err := fmt.Print(content)
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// printSummary outputs a human-readable summary.
func printSummary(paramsID string, s metrics.Summary) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "=== Backtest Summary ===")
	fmt.Fprintf(os.Stderr, "Params:             %s\n", paramsID)
	fmt.Fprintf(os.Stderr, "Trades:             %d (skipped %d)\n", s.Total, s.Skipped)
	fmt.Fprintf(os.Stderr, "TP / SL / None:     %d / %d / %d\n", s.Wins, s.Losses, s.Undecided)
	fmt.Fprintf(os.Stderr, "Win Rate:           %s%%\n", numfmt.Fixed(s.WinRate, 2))
	fmt.Fprintf(os.Stderr, "Loss Rate:          %s%%\n", numfmt.Fixed(s.LossRate, 2))
	fmt.Fprintf(os.Stderr, "Undecided Rate:     %s%%\n", numfmt.Fixed(s.UndecidedRate, 2))
	fmt.Fprintf(os.Stderr, "Avg Gain:           %s%%\n", numfmt.Fixed(s.AvgGainPct, 2))
	fmt.Fprintf(os.Stderr, "Max / Min Gain:     %s%% / %s%%\n", numfmt.Fixed(s.MaxGainPct, 2), numfmt.Fixed(s.MinGainPct, 2))
	fmt.Fprintf(os.Stderr, "Avg Drawdown:       %s%%\n", numfmt.Fixed(s.AvgDrawdownPct, 2))
}
