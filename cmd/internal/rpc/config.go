package rpc

import (
	"errors"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrConfig indicates invalid gateway configuration.
var ErrConfig = errors.New("rpc: invalid config")

// Config defines runtime configuration for the gateway.
type Config struct {
	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration
	SendQueueSize   int

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	// AllowedOrigins restricts browser clients by Origin host.
	// Requests without an Origin header (native clients) are always accepted.
	AllowedOrigins []string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:      defaultWriteTimeout,
		ReadIdleTimeout:   defaultReadIdle,
		SendQueueSize:     defaultSendQueueSize,
		HeartbeatInterval: heartbeatInterval,
		HeartbeatTimeout:  heartbeatTimeout,
	}
}

// Validate reports ErrConfig for out-of-range values.
func (c Config) Validate() error {
	if c.WriteTimeout <= 0 || c.ReadIdleTimeout <= 0 {
		return ErrConfig
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatTimeout <= 0 {
		return ErrConfig
	}
	if c.SendQueueSize < minSendQueueSize {
		return ErrConfig
	}
	return nil
}

// LoadConfigFromEnv loads gateway configuration from environment variables.
//
// Optional:
//   - SSO_RPC_WRITE_TIMEOUT, SSO_RPC_READ_IDLE_TIMEOUT (Go durations)
//   - SSO_RPC_SEND_QUEUE (>= 8)
//   - SSO_RPC_HEARTBEAT_INTERVAL, SSO_RPC_HEARTBEAT_TIMEOUT (Go durations)
//   - SSO_RPC_ALLOWED_ORIGINS (comma-separated)
//
// Invalid durations and sizes fall back to the defaults.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.WriteTimeout = envDuration("SSO_RPC_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.ReadIdleTimeout = envDuration("SSO_RPC_READ_IDLE_TIMEOUT", cfg.ReadIdleTimeout)
	cfg.HeartbeatInterval = envDuration("SSO_RPC_HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	cfg.HeartbeatTimeout = envDuration("SSO_RPC_HEARTBEAT_TIMEOUT", cfg.HeartbeatTimeout)

	cfg.SendQueueSize = envInt("SSO_RPC_SEND_QUEUE", cfg.SendQueueSize)
	if cfg.SendQueueSize < minSendQueueSize {
		cfg.SendQueueSize = minSendQueueSize
	}

	cfg.AllowedOrigins = envCSV("SSO_RPC_ALLOWED_ORIGINS")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// originPatterns derives websocket.Accept host patterns from the allowlist.
// Accept matches against the origin's host:port, so each host also admits any port.
func originPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" {
			continue
		}
		seen[h] = struct{}{}
		seen[h+":*"] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = strings.TrimSpace(u.Host)
		if s == "" {
			return ""
		}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// ---- env helpers ----

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
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

func envCSV(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
