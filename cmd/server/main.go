// Command server runs the dashboard API: sessions, backtests, charts and
// grid optimization, with Prometheus metrics and Jaeger tracing.
//
// Usage:
//
//	server [--config config.yaml] [--import-dir sessions]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"signal-backtest-lab/internal/api"
	"signal-backtest-lab/internal/app"
	"signal-backtest-lab/internal/cache"
	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/logging"
	"signal-backtest-lab/internal/orchestrator"
	"signal-backtest-lab/internal/tracing"
)

const serviceName = "signal-backtest-lab"

// flags are the command-line overrides supplied to the fx graph.
type flags struct {
	configPath string
	importDir  string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "YAML config file")
	flag.StringVar(&f.importDir, "import-dir", "", "Import session CSVs from this directory on startup (default from config)")
	flag.Parse()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if f.importDir == "" {
		f.importDir = cfg.SessionsDir
	}

	gin.SetMode(gin.ReleaseMode)

	fx.New(
		fx.Supply(cfg, f),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Provide(
			newLogger,
			newStores,
			newOrchestrator,
			newChartCache,
			newAPIServer,
		),
		fx.Invoke(
			initTracing,
			importSessions,
			runHTTP,
		),
	).Run()
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.LogLevel, serviceName)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func newStores(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*app.Stores, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			stores.Close()
			return nil
		},
	})
	return stores, nil
}

func newOrchestrator(stores *app.Stores, logger *zap.Logger) *orchestrator.Orchestrator {
	return stores.Orchestrator(logger)
}

// newChartCache connects to Redis when configured. Without it the API
// serves every chart from storage.
func newChartCache(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (api.ChartCache, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("redis not configured, chart cache disabled")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := cache.New(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return c.Close()
		},
	})
	logger.Info("chart cache ready", zap.String("addr", cfg.Redis.Addr))
	return c, nil
}

func newAPIServer(cfg *config.Config, orch *orchestrator.Orchestrator, chartCache api.ChartCache, logger *zap.Logger) (*api.Server, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	return api.NewServer(api.Options{
		Orchestrator: orch,
		Cache:        chartCache,
		Defaults: api.Defaults{
			Params:         params,
			Grid:           cfg.Grid,
			InitialBalance: cfg.Backtest.StartingBalance,
			RiskPerTrade:   cfg.Backtest.RiskPerTrade,
		},
		Logger: logger,
	}), nil
}

func initTracing(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) error {
	_, closer, err := tracing.Init(cfg.TracerConfig(serviceName), logger)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
	return nil
}

// importSessions loads session CSVs found on disk before serving.
func importSessions(lc fx.Lifecycle, f flags, stores *app.Stores, logger *zap.Logger) {
	if f.importDir == "" {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := os.Stat(f.importDir); errors.Is(err, os.ErrNotExist) {
				logger.Warn("sessions directory not found", zap.String("dir", f.importDir))
				return nil
			}
			sessions, err := stores.Manager(logger).ImportDir(ctx, f.importDir)
			if err != nil {
				return err
			}
			logger.Info("sessions imported", zap.String("dir", f.importDir), zap.Int("count", len(sessions)))
			return nil
		},
	})
}

func runHTTP(lc fx.Lifecycle, cfg *config.Config, srv *api.Server, logger *zap.Logger) {
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.HTTP.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server", zap.Error(err))
				}
			}()
			logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	})
}
