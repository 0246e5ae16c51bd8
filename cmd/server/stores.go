package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"payguard/internal/consent"
	"payguard/internal/ledger"
	"payguard/internal/platform/config"
	"payguard/internal/platform/redis"
	httptransport "payguard/internal/transport/http"
	"payguard/internal/velocity"
)

// backends holds the stores chosen from config plus what main must health-check and
// close.
type backends struct {
	ledger   ledger.Store
	spent    consent.SpentStore
	velocity velocity.Store
	health   []httptransport.HealthCheck
	closers  []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends selects storage per concern. The ledger follows
// LEDGER_BACKEND. Spent-token marks and velocity history prefer Redis so
// several instances share them; without Redis, spent marks fall back to
// Postgres when a database is configured and to memory otherwise.
func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	switch cfg.Ledger.Backend {
	case config.LedgerMemory:
		b.ledger = ledger.NewInMemoryStore()
	case config.LedgerSQLite:
		store, db, err := ledger.OpenSQLite(ctx, cfg.Ledger.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.ledger = store
		b.closers = append(b.closers, func() { _ = db.Close() })
		b.health = append(b.health, httptransport.HealthCheck{Name: "ledger", Check: db.PingContext})
	case config.LedgerPostgres:
		db, err := sql.Open("postgres", cfg.Ledger.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		b.closers = append(b.closers, func() { _ = db.Close() })
		store := ledger.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		b.ledger = store
		b.health = append(b.health, httptransport.HealthCheck{Name: "ledger", Check: db.PingContext})
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	switch {
	case rc != nil:
		b.closers = append(b.closers, func() { _ = rc.Close() })
		b.health = append(b.health, httptransport.HealthCheck{Name: "redis", Check: rc.Health})
		b.spent = consent.NewRedisSpentStore(rc.Client)
		b.velocity = velocity.NewRedisStore(rc.Client, velocity.DefaultLimits())
		logger.InfoContext(ctx, "using redis for spent tokens and velocity history")
	case cfg.Ledger.DatabaseURL != "":
		pool, err := pgxpool.New(ctx, cfg.Ledger.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres spent store: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		spent := consent.NewPostgresSpentStore(pool)
		if err := spent.Migrate(ctx); err != nil {
			return nil, err
		}
		b.spent = spent
		b.velocity = velocity.NewInMemoryStore(velocity.DefaultLimits())
		logger.InfoContext(ctx, "using postgres for spent tokens, velocity history is process-local")
	default:
		b.spent = consent.NewInMemorySpentStore()
		b.velocity = velocity.NewInMemoryStore(velocity.DefaultLimits())
		logger.WarnContext(ctx, "spent tokens and velocity history are process-local")
	}

	ok = true
	return b, nil
}
