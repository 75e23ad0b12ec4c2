package app

import (
	"context"
	"fmt"
	"time"

	"ssod/cmd/internal/auth/account"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	dbApplicationName   = "ssod"
	dbHealthCheckPeriod = 30 * time.Second
	dbMaxConnIdleTime   = 5 * time.Minute
	dbConnectTimeout    = 3 * time.Second
)

// dbPoolConfig parses SSO_DATABASE_URL and applies the pool bounds.
// The account store needs few connections: writes serialize behind one advisory lock.
func dbPoolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: SSO_DATABASE_URL: %w", ErrConfig, err)
	}

	switch {
	case cfg.DBMaxConns <= 0:
		return nil, fmt.Errorf("%w: SSO_DB_MAX_CONNS must be positive, got %d", ErrConfig, cfg.DBMaxConns)
	case cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns:
		return nil, fmt.Errorf("%w: SSO_DB_MIN_CONNS must be within [0, %d], got %d", ErrConfig, cfg.DBMaxConns, cfg.DBMinConns)
	}
	pcfg.MaxConns = cfg.DBMaxConns
	pcfg.MinConns = cfg.DBMinConns
	pcfg.HealthCheckPeriod = dbHealthCheckPeriod
	pcfg.MaxConnIdleTime = dbMaxConnIdleTime

	if pcfg.ConnConfig.RuntimeParams == nil {
		pcfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if pcfg.ConnConfig.RuntimeParams["application_name"] == "" {
		pcfg.ConnConfig.RuntimeParams["application_name"] = dbApplicationName
	}
	if pcfg.ConnConfig.ConnectTimeout == 0 {
		pcfg.ConnConfig.ConnectTimeout = dbConnectTimeout
	}
	return pcfg, nil
}

// NewDBPool builds a pgxpool from cfg and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := dbPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := PingDB(ctx, pool, dbConnectTimeout); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}
	return pool, nil
}

// openPostgresRepo connects the pool and wraps it in the schema-scoped account store.
// The returned pool is owned by the caller; PostgresStore.Close does not close it.
func openPostgresRepo(ctx context.Context, cfg Config, log Logger) (*account.PostgresStore, *pgxpool.Pool, error) {
	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	pg, err := account.NewPostgresStore(pool, account.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("%w: SSO_DB_SCHEMA: %w", ErrConfig, err)
	}
	if cfg.DBAutoMigrate {
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("db.schema.ensured", "schema", cfg.DBSchema)
	}

	log.Info("db.enabled.postgres_store",
		"schema", cfg.DBSchema,
		"max_conns", pool.Config().MaxConns,
	)
	return pg, pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
