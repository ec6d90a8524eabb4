package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-dao-lab/internal/autocrat"
	"solana-dao-lab/internal/config"
	"solana-dao-lab/internal/launchpad"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/storage"
	chstore "solana-dao-lab/internal/storage/clickhouse"
	"solana-dao-lab/internal/storage/memory"
	"solana-dao-lab/internal/storage/migrations"
	pgstore "solana-dao-lab/internal/storage/postgres"
	"solana-dao-lab/internal/timelock"
	"solana-dao-lab/internal/token"
)

type stores struct {
	accounts storage.AccountStore
	events   storage.EventStore
	close    func()
}

// openStores returns in-memory stores, or postgres accounts with events in
// clickhouse (or postgres when no clickhouse DSN is configured). Migrations run first.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.UseMemory {
		logger.Info("using in-memory storage")
		return &stores{
			accounts: memory.NewAccountStore(),
			events:   memory.NewEventStore(),
			close:    func() {},
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	logger.Info("postgres ready")

	s := &stores{
		accounts: pgstore.NewAccountStore(pool),
		events:   pgstore.NewEventStore(pool),
		close:    pool.Close,
	}
	if cfg.ClickhouseDSN == "" {
		return s, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	logger.Info("clickhouse ready")

	s.events = chstore.NewEventStore(conn)
	s.close = func() {
		if err := conn.Close(); err != nil {
			logger.Warn("close clickhouse", zap.Error(err))
		}
		pool.Close()
	}
	return s, nil
}

// newRuntime builds a runtime with every program registered.
func newRuntime(s *stores, clock ledger.Clock, logger *zap.Logger) *ledger.Runtime {
	rt := ledger.NewRuntime(s.accounts, clock,
		ledger.WithEventStore(s.events),
		ledger.WithLogger(logger.Named("ledger")),
	)
	rt.Register(
		token.Program{},
		token.AssociatedProgram{},
		autocrat.Program{},
		launchpad.Program{},
		timelock.Program{},
	)
	return rt
}
