// Package app wires configuration into stores and services shared by the binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/ingestion"
	"signal-backtest-lab/internal/orchestrator"
	"signal-backtest-lab/internal/storage"
	chstore "signal-backtest-lab/internal/storage/clickhouse"
	"signal-backtest-lab/internal/storage/memory"
	"signal-backtest-lab/internal/storage/migrations"
	pgstore "signal-backtest-lab/internal/storage/postgres"
)

// Stores holds all storage implementations.
type Stores struct {
	Sessions      storage.SessionStore
	Signals       storage.SignalStore
	TradeResults  storage.TradeResultStore
	Optimizations storage.OptimizationStore

	closers []func()
}

// OpenStores builds the stores described by cfg. Without a Postgres DSN
// sessions, signals and results live in memory; without a ClickHouse DSN so
// do optimization runs. Migrations are applied on connect.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Stores{
		Sessions:      memory.NewSessionStore(),
		Signals:       memory.NewSignalStore(),
		TradeResults:  memory.NewTradeResultStore(),
		Optimizations: memory.NewOptimizationStore(),
	}

	if cfg.Postgres.DSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			s.Close()
			return nil, err
		}
		logger.Info("postgres ready", zap.Strings("migrations", applied))

		s.Sessions = pgstore.NewSessionStore(pool)
		s.Signals = pgstore.NewSignalStore(pool)
		s.TradeResults = pgstore.NewTradeResultStore(pool)
	} else {
		logger.Info("postgres not configured, using in-memory session storage")
	}

	if cfg.ClickHouse.DSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		logger.Info("clickhouse ready")

		s.Optimizations = chstore.NewOptimizationStore(conn)
	} else {
		logger.Info("clickhouse not configured, using in-memory optimization storage")
	}

	return s, nil
}

// Close releases database connections in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Manager returns an ingestion manager over the stores.
func (s *Stores) Manager(logger *zap.Logger) *ingestion.Manager {
	return ingestion.NewManager(ingestion.ManagerOptions{
		SessionStore: s.Sessions,
		SignalStore:  s.Signals,
		Logger:       logger,
	})
}

// Orchestrator returns an orchestrator over the stores.
func (s *Stores) Orchestrator(logger *zap.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		SessionStore:      s.Sessions,
		SignalStore:       s.Signals,
		TradeResultStore:  s.TradeResults,
		OptimizationStore: s.Optimizations,
		Logger:            logger,
	})
}
