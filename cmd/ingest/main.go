// Command ingest collects trade signals from a Telegram channel into a session.
//
// Usage:
//
//	ingest --session march --output sessions/march.csv   # listen to the configured channel
//	ingest --import-dir sessions                          # load existing session CSVs into storage
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/app"
	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/ingestion"
	"signal-backtest-lab/internal/logging"
	"signal-backtest-lab/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	sessionName := flag.String("session", "", "Session name (defaults to the output file name)")
	output := flag.String("output", "", "Session CSV to write (- for stdout)")
	importDir := flag.String("import-dir", "", "Import every *.csv in this directory as a session and exit")
	monthsBack := flag.Int("months-back", 0, "Ignore messages older than this many months (default from config)")
	channelID := flag.Int64("channel-id", 0, "Telegram channel ID (default from config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Must(cfg.LogLevel, "ingest")
	defer func() { _ = logger.Sync() }()

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()

	manager := stores.Manager(logger)

	if *importDir != "" {
		sessions, err := manager.ImportDir(ctx, *importDir)
		if err != nil {
			logger.Fatal("import sessions", zap.Error(err))
		}
		for _, s := range sessions {
			logger.Info("session imported", zap.String("session", s.Name), zap.String("session_id", s.SessionID))
		}
		return
	}

	if *output == "" && *sessionName == "" {
		logger.Fatal("--output or --session is required")
	}
	name := *sessionName
	if name == "" && *output != "-" {
		name = strings.TrimSuffix(filepath.Base(*output), filepath.Ext(*output))
	}

	months := cfg.Telegram.MonthsBack
	if *monthsBack > 0 {
		months = *monthsBack
	}
	channel := cfg.Telegram.ChannelID
	if *channelID != 0 {
		channel = *channelID
	}

	src, err := ingestion.NewTelegramSource(ingestion.TelegramOptions{
		Token:       cfg.Telegram.BotToken,
		ChannelID:   channel,
		IdleTimeout: cfg.Telegram.IdleTimeout,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("telegram", zap.Error(err))
	}

	since := ingestion.Cutoff(time.Now().UTC(), months)
	logger.Info("collecting signals", zap.Int64("channel_id", channel), zap.Time("since", since))

	signals, err := ingestion.CollectSignals(ctx, src, since, logger)
	if err != nil && ctx.Err() == nil {
		logger.Fatal("collect signals", zap.Error(err))
	}

	priced := make([]*domain.PricedSignal, len(signals))
	for i := range signals {
		priced[i] = &domain.PricedSignal{Signal: signals[i]}
	}

	// Interrupted runs still keep what was collected so far.
	persistCtx := context.WithoutCancel(ctx)

	if *output != "" {
		if err := writeSession(*output, priced); err != nil {
			logger.Fatal("write session", zap.Error(err))
		}
	}

	if name != "" {
		session, added, err := manager.IngestSession(persistCtx, name, priced)
		if err != nil {
			logger.Fatal("store session", zap.Error(err))
		}
		logger.Info("session stored",
			zap.String("session", session.Name),
			zap.Int("signals", len(priced)),
			zap.Int("new", added),
		)
	}
}

func writeSession(path string, signals []*domain.PricedSignal) error {
	if path == "-" {
		return ingestion.WriteSessionCSV(os.Stdout, signals)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ingestion.WriteSessionCSV(f, signals); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server", zap.Error(err))
	}
}
