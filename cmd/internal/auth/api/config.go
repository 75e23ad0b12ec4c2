package authapi

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"ssod/cmd/security/token"
)

var ErrConfig = errors.New("authapi: invalid config")

const (
	DefaultBaseURL      = "http://127.0.0.1:3000"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 1 << 20 // 1 MiB
)

// Config controls the auth API client.
type Config struct {
	BaseURL      string
	Secret       token.SharedSecret
	Timeout      time.Duration
	MaxBodyBytes int64
}

// DefaultConfig returns the built-in defaults (local auth API, default shared secret).
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Secret:       token.SharedSecret{Header: token.DefaultHeader, Value: token.DefaultSecret},
		Timeout:      DefaultTimeout,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// LoadConfigFromEnv loads client config from environment variables with safe defaults.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = envString("SSO_AUTH_API_BASE_URL", DefaultBaseURL)
	cfg.Timeout = envDuration("SSO_AUTH_API_TIMEOUT", DefaultTimeout)
	cfg.MaxBodyBytes = envInt64("SSO_AUTH_API_MAX_BODY_BYTES", DefaultMaxBodyBytes)

	secret, err := token.SharedSecretFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg.Secret = secret

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config and normalizes BaseURL (no trailing slash).
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: base url must be an absolute http(s) url", ErrConfig)
	}
	if err := c.Secret.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
