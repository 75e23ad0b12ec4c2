package app

import (
	"context"

	"ssod/cmd/internal/auth/account"
	"ssod/cmd/internal/credcache"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Stores owns the persistence backends: the account Repository and the
// credential cache. Both fall back to in-memory implementations when their
// URL is unset.
type Stores struct {
	Repo  account.Repository
	Cache *credcache.Sync

	dbPool *pgxpool.Pool
	rdb    *redis.Client
}

// OpenStores connects the configured backends. The caller owns Close.
func OpenStores(ctx context.Context, cfg Config, log Logger) (*Stores, error) {
	s := &Stores{}

	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		s.Repo = account.NewInMemoryStore()
	} else {
		pg, pool, err := openPostgresRepo(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		s.Repo = pg
		s.dbPool = pool
	}

	var backend credcache.Cache
	if cfg.RedisURL == "" {
		log.Info("cache.disabled.inmemory_cache")
		backend = credcache.NewInMemoryCache()
	} else {
		rdb, err := NewRedisClient(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		rc, err := credcache.NewRedisCache(rdb, cfg.CachePrefix)
		if err != nil {
			_ = rdb.Close()
			s.Close()
			return nil, err
		}
		log.Info("cache.enabled.redis", "prefix", cfg.CachePrefix)
		backend = rc
		s.rdb = rdb
	}
	s.Cache = credcache.NewSync(backend, log, cfg.CacheTimeout)

	return s, nil
}

// readyChecks returns a ping per configured network backend.
// In-memory stores are always ready and contribute none.
func (s *Stores) readyChecks() []readyCheck {
	var out []readyCheck
	if pool := s.dbPool; pool != nil {
		out = append(out, readyCheck{name: "db", ping: func(ctx context.Context) error {
			return PingDB(ctx, pool, readyTimeout)
		}})
	}
	if rdb := s.rdb; rdb != nil {
		out = append(out, readyCheck{name: "cache", ping: func(ctx context.Context) error {
			return PingRedis(ctx, rdb, readyTimeout)
		}})
	}
	return out
}

// Close releases the backends (idempotent).
func (s *Stores) Close() {
	if s.rdb != nil {
		_ = s.rdb.Close()
		s.rdb = nil
	}
	if s.dbPool != nil {
		s.dbPool.Close()
		s.dbPool = nil
	}
}
