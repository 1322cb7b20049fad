// Package bootstrap assembles the store, audit sink and ApplicationService from
// configuration. Both binaries share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"shop-ledger/internal/app"
	"shop-ledger/internal/audit"
	"shop-ledger/internal/config"
	"shop-ledger/internal/core"
	"shop-ledger/internal/db"
	"shop-ledger/internal/store/memory"
	"shop-ledger/internal/store/postgres"
)

const auditBuffer = 1024

// Runtime is a wired application. Close releases the pool and flushes the audit sink.
type Runtime struct {
	Service app.ApplicationService
	Pool    *pgxpool.Pool // nil for the memory driver

	closers []func()
}

func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Build connects the configured store, optionally migrates it, and wires the services.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{}

	var store core.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory store; data is lost on exit")
		store = memory.New()
	default:
		pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		rt.Pool = pool
		rt.closers = append(rt.closers, pool.Close)

		if cfg.MigrateOnStart {
			if err := db.Migrate(pool, db.Up, log); err != nil {
				rt.Close()
				return nil, err
			}
		}
		store = postgres.New(pool)
	}

	var recorder core.EventRecorder
	switch cfg.AuditSink {
	case config.AuditNone:
		recorder = core.NopRecorder
	case config.AuditPostgres:
		pg := audit.NewPostgresRecorder(rt.Pool, auditBuffer, log.With().Str("component", "audit").Logger())
		rt.closers = append(rt.closers, pg.Close)
		recorder = pg
	default:
		recorder = audit.NewLogRecorder(log.With().Str("component", "audit").Logger())
	}

	rt.Service = app.NewAppService(store, app.Options{
		Recorder:         recorder,
		LedgerDerivation: cfg.LedgerDerivation,
		Timeout:          cfg.OperationTimeout,
		Logger:           log.With().Str("component", "sales").Logger(),
	})
	log.Info().
		Str("store", cfg.StoreDriver).
		Str("audit", cfg.AuditSink).
		Str("ledger_derivation", string(cfg.LedgerDerivation)).
		Dur("operation_timeout", cfg.OperationTimeout).
		Msg("application wired")
	return rt, nil
}
