package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/buildquote/leadmatch/internal/db"
	"github.com/buildquote/leadmatch/internal/matching"
	"github.com/buildquote/leadmatch/internal/registry"
	"github.com/buildquote/leadmatch/internal/store"
	"github.com/buildquote/leadmatch/pkg/geocode"
)

// env bundles the wired backends for a command invocation.
type env struct {
	Registry registry.Registry
	Leads    store.LeadStore
	Engine   *matching.Engine
	Resolver geocode.Resolver

	// Pool is set only for the postgres driver; the seed command uses it
	// for bulk loading.
	Pool db.Pool

	closers []func() error
}

// initEnv wires the resolver, registry, store, fixture fallback, and engine
// from config. Both database-backed commands and the server go through here.
func initEnv(ctx context.Context) (*env, error) {
	resolver := geocode.NewStaticResolver()

	var (
		reg   registry.Registry
		leads store.LeadStore
		err   error
	)
	e := &env{Resolver: resolver}

	switch cfg.Store.Driver {
	case "sqlite":
		reg, err = registry.NewSQLite(cfg.Store.DatabaseURL, resolver)
		if err != nil {
			return nil, err
		}
		leads, err = store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			reg.Close()
			return nil, err
		}
	case "postgres":
		// One pool shared by registry and store.
		pgxCfg, perr := pgxpool.ParseConfig(cfg.Store.DatabaseURL)
		if perr != nil {
			return nil, eris.Wrap(perr, "parse database url")
		}
		pgxCfg.MaxConns = 10
		pgxCfg.MinConns = 2
		pgxCfg.MaxConnLifetime = 30 * time.Minute
		pool, perr := pgxpool.NewWithConfig(ctx, pgxCfg)
		if perr != nil {
			return nil, eris.Wrap(perr, "connect postgres")
		}
		e.closers = append(e.closers, func() error { pool.Close(); return nil })
		e.Pool = pool
		reg = registry.NewPostgresWithPool(pool, resolver)
		leads = store.NewPostgresWithPool(pool)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	e.closers = append(e.closers, reg.Close, leads.Close)
	e.Registry = reg
	e.Leads = leads

	fallback, err := registry.NewFixture(ctx, resolver)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.Engine = matching.NewEngine(reg, fallback, leads, resolver, matchingConfig())
	return e, nil
}

// matchingConfig maps the file/env config onto the engine knobs.
func matchingConfig() matching.Config {
	m := cfg.Matching
	return matching.Config{
		SearchRadiusMiles: m.SearchRadiusMiles,
		PerRoleCap:        m.PerRoleCap,
		DistanceWeight:    m.DistanceWeight,
		RatingWeight:      m.RatingWeight,
		QueryTimeout:      time.Duration(m.QueryTimeoutSecs) * time.Second,
		QueryConcurrency:  m.QueryConcurrency,
		StoreRetry: m.Retry.Resilience(),
		Breaker:    m.Circuit.Resilience(),
	}
}

// Close releases backends in reverse wiring order.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}
