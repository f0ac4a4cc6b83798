// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/gatehouse/internal/accounts"
	"github.com/tomtom215/gatehouse/internal/audit"
	"github.com/tomtom215/gatehouse/internal/config"
	"github.com/tomtom215/gatehouse/internal/logging"
)

const startupProbeTimeout = 10 * time.Second

// openAccountStore returns the configured account store wrapped in a
// circuit breaker, plus its close function.
func openAccountStore(ctx context.Context, cfg *config.Config) (accounts.Store, func(), error) {
	breaker := accounts.BreakerSettings{
		Name:        "account-store",
		MaxFailures: cfg.Database.BreakerMaxFailures,
		Timeout:     cfg.Database.BreakerTimeout,
	}

	switch cfg.Database.Driver {
	case "postgres":
		pg, err := accounts.OpenPG(cfg.Database.DSN, accounts.PGOptions{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		probeCtx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
		defer cancel()
		if err := pg.EnsureSchema(probeCtx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		logging.Info().Msg("PostgreSQL account store ready")
		closeFn := func() {
			if err := pg.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing account store")
			}
		}
		return accounts.NewBreakerStore(pg, breaker), closeFn, nil

	default:
		mem := accounts.NewMemoryStore()
		if cfg.Database.SeedDemoData {
			if err := accounts.SeedDemo(mem, bcrypt.DefaultCost); err != nil {
				return nil, nil, err
			}
			logging.Warn().Msg("Demo accounts seeded (SEED_DEMO_DATA=true); do not use in production")
		}
		return accounts.NewBreakerStore(mem, breaker), func() {}, nil
	}
}

// openAuditLogger returns nil when auditing is disabled. The close function
// releases the DuckDB handle after the writer has drained.
func openAuditLogger(ctx context.Context, cfg *config.Config) (*audit.Logger, func(), error) {
	if !cfg.Audit.Enabled {
		logging.Info().Msg("Audit log disabled")
		return nil, func() {}, nil
	}

	loggerCfg := audit.DefaultConfig()
	loggerCfg.BufferSize = cfg.Audit.BufferSize
	loggerCfg.WriteTimeout = cfg.Audit.WriteTimeout
	loggerCfg.LogToStdout = cfg.Audit.LogToStdout

	switch cfg.Audit.Store {
	case "duckdb":
		db, err := audit.OpenDuckDB(cfg.Audit.Path)
		if err != nil {
			return nil, nil, err
		}
		store := audit.NewDuckDBStore(db)
		if err := store.CreateTable(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("create audit table: %w", err)
		}
		logging.Info().Str("path", cfg.Audit.Path).Msg("DuckDB audit store ready")
		closeFn := func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing audit store")
			}
		}
		return audit.NewLogger(store, loggerCfg), closeFn, nil

	default:
		return audit.NewLogger(audit.NewMemoryStore(cfg.Audit.MaxEvents), loggerCfg), func() {}, nil
	}
}
