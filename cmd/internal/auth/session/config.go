package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines runtime configuration for the session manager.
type Config struct {
	// MaxAccounts bounds the number of distinct accounts kept on the device.
	MaxAccounts int

	// SignOutTimeout bounds each best-effort remote sign-out during logout.
	SignOutTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAccounts:    6,
		SignOutTimeout: 10 * time.Second,
	}
}

// Validate reports ErrConfig for out-of-range values.
func (c Config) Validate() error {
	if c.MaxAccounts < 1 || c.MaxAccounts > 64 {
		return ErrConfig
	}
	if c.SignOutTimeout <= 0 {
		return ErrConfig
	}
	return nil
}

// LoadConfigFromEnv loads manager configuration from environment variables.
//
// Optional:
//   - SSO_MAX_ACCOUNTS (1..64)
//   - SSO_SIGNOUT_TIMEOUT (Go duration, > 0)
//
// Returns ErrConfig if a set value is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("SSO_MAX_ACCOUNTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.MaxAccounts = n
	}

	if v := os.Getenv("SSO_SIGNOUT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.SignOutTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
