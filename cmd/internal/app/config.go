package app

import (
	"errors"
	"fmt"
	"time"

	"ssod/cmd/internal/auth/account"
	authapi "ssod/cmd/internal/auth/api"
	"ssod/cmd/internal/auth/session"
	"ssod/cmd/internal/credcache"
	"ssod/cmd/internal/rpc"
)

// ErrConfig indicates invalid service configuration.
var ErrConfig = errors.New("app: invalid config")

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string

	LogLevel  string
	LogFormat string
	LogColor  bool

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration

	// Empty DatabaseURL selects the in-memory account store.
	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	DBSchema      string
	DBAutoMigrate bool

	// Empty RedisURL selects the in-memory credential cache.
	RedisURL     string
	CachePrefix  string
	CacheTimeout time.Duration

	Session session.Config
	AuthAPI authapi.Config
	RPC     rpc.Config
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() (Config, error) {
	env := &envReader{}
	cfg := Config{
		HTTPAddr: env.String("SSO_HTTP_ADDR", "127.0.0.1:8765"),

		LogLevel:  env.String("SSO_LOG_LEVEL", "info"),
		LogFormat: env.String("SSO_LOG_FORMAT", "json"),
		LogColor:  env.Bool("SSO_LOG_COLOR", false),

		ReadHeaderTimeout: env.Duration("SSO_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		IdleTimeout:       env.Duration("SSO_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    env.Int("SSO_HTTP_MAX_HEADER_BYTES", 1<<20, 1),
		ShutdownTimeout:   env.Duration("SSO_SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL:   env.String("SSO_DATABASE_URL", ""),
		DBMaxConns:    env.Int32("SSO_DB_MAX_CONNS", 10, 1),
		DBMinConns:    env.Int32("SSO_DB_MIN_CONNS", 0, 0),
		DBSchema:      env.String("SSO_DB_SCHEMA", "sso"),
		DBAutoMigrate: env.Bool("SSO_DB_AUTO_MIGRATE", false),

		RedisURL:     env.String("SSO_REDIS_URL", ""),
		CachePrefix:  env.String("SSO_CACHE_PREFIX", credcache.DefaultPrefix),
		CacheTimeout: env.Duration("SSO_CACHE_TIMEOUT", credcache.DefaultTimeout),
	}

	if err := env.Err(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	var err error
	if cfg.Session, err = session.LoadConfigFromEnv(); err != nil {
		return Config{}, fmt.Errorf("%w: session: %w", ErrConfig, err)
	}
	if cfg.AuthAPI, err = authapi.LoadConfigFromEnv(); err != nil {
		return Config{}, fmt.Errorf("%w: auth api: %w", ErrConfig, err)
	}
	if cfg.RPC, err = rpc.LoadConfigFromEnv(); err != nil {
		return Config{}, fmt.Errorf("%w: rpc: %w", ErrConfig, err)
	}

	switch cfg.LogFormat {
	case "json", "pretty":
	default:
		return Config{}, fmt.Errorf("%w: SSO_LOG_FORMAT must be json or pretty, got %q", ErrConfig, cfg.LogFormat)
	}
	if err := account.WithSchema(cfg.DBSchema)(&account.PostgresStore{}); err != nil {
		return Config{}, fmt.Errorf("%w: SSO_DB_SCHEMA: %w", ErrConfig, err)
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("%w: SSO_DB_MIN_CONNS exceeds SSO_DB_MAX_CONNS", ErrConfig)
	}

	return cfg, nil
}
