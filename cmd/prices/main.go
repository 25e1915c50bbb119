// Command prices attaches Binance price windows to the signals of a session.
//
// Usage:
//
//	prices --input sessions/march.csv [--output sessions/march_priced.csv]
//	prices --session march     # enrich a stored session in place
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/app"
	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/ingestion"
	"signal-backtest-lab/internal/logging"
	"signal-backtest-lab/internal/pricing"
	"signal-backtest-lab/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	input := flag.String("input", "", "Session CSV to enrich")
	output := flag.String("output", "", "Priced session CSV (defaults to --input, - for stdout)")
	sessionName := flag.String("session", "", "Stored session to enrich (instead of --input)")
	interval := flag.String("interval", "", "Kline interval (default from config)")
	lookahead := flag.Duration("lookahead", 0, "Price window horizon (default from config)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Must(cfg.LogLevel, "prices")
	defer func() { _ = logger.Sync() }()

	if (*input == "") == (*sessionName == "") {
		logger.Fatal("exactly one of --input or --session is required")
	}
	if *interval != "" {
		cfg.Binance.Interval = *interval
	}
	if *lookahead > 0 {
		cfg.Binance.Lookahead = *lookahead
	}

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	client := pricing.NewBinanceClient(pricing.BinanceOptions{
		BaseURL: cfg.Binance.BaseURL,
		Timeout: cfg.Binance.Timeout,
	})
	windows := pricing.NewWindowFetcher(client, cfg.Binance.Interval, cfg.Binance.Lookahead)

	var (
		signals     []*domain.PricedSignal
		signalStore storage.SignalStore
	)

	// Phase 1: load signals
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			logger.Fatal("open input", zap.Error(err))
		}
		signals, err = ingestion.ReadSessionCSV(f)
		f.Close()
		if err != nil {
			logger.Fatal("read session", zap.String("path", *input), zap.Error(err))
		}
	} else {
		stores, err := app.OpenStores(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("open stores", zap.Error(err))
		}
		defer stores.Close()

		session, err := stores.Sessions.GetByName(ctx, *sessionName)
		if err != nil {
			logger.Fatal("load session", zap.String("session", *sessionName), zap.Error(err))
		}
		if signals, err = stores.Signals.GetBySession(ctx, session.SessionID); err != nil {
			logger.Fatal("load signals", zap.Error(err))
		}
		signalStore = stores.Signals
	}

	// Phase 2: fetch windows
	enricher := pricing.NewEnricher(pricing.EnricherOptions{
		Windows:     windows,
		SignalStore: signalStore,
		Delay:       cfg.Binance.RequestDelay,
		Logger:      logger,
	})
	stats, err := enricher.Enrich(ctx, signals)
	if err != nil {
		logger.Warn("enrichment interrupted", zap.Error(err))
	}

	// Phase 3: write CSV
	if *input == "" && *output == "" {
		printStats(stats)
		return
	}
	dest := *output
	if dest == "" {
		dest = *input
	}

	var buf bytes.Buffer
	if err := ingestion.WriteSessionCSV(&buf, signals); err != nil {
		logger.Fatal("render session", zap.Error(err))
	}
	if dest == "-" {
		_, _ = os.Stdout.Write(buf.Bytes())
	} else if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
		logger.Fatal("write session", zap.Error(err))
	}

	printStats(stats)
}

func printStats(s pricing.EnrichStats) {
	fmt.Fprintf(os.Stderr, "Enriched: %d  Failed: %d  Already priced: %d\n", s.Enriched, s.Failed, s.Skipped)
}
