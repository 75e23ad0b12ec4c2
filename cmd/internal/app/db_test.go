package app

import (
	"errors"
	"testing"
	"time"
)

func TestDBPoolConfig_AppliesBounds(t *testing.T) {
	t.Parallel()

	cfg := Config{DatabaseURL: "postgres://ssod@127.0.0.1:5432/ssod", DBMaxConns: 4, DBMinConns: 1}
	pcfg, err := dbPoolConfig(cfg)
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	if pcfg.MaxConns != 4 || pcfg.MinConns != 1 {
		t.Fatalf("unexpected bounds max=%d min=%d", pcfg.MaxConns, pcfg.MinConns)
	}
	if pcfg.HealthCheckPeriod != dbHealthCheckPeriod || pcfg.MaxConnIdleTime != dbMaxConnIdleTime {
		t.Fatalf("unexpected pool timings: %v %v", pcfg.HealthCheckPeriod, pcfg.MaxConnIdleTime)
	}
	if got := pcfg.ConnConfig.RuntimeParams["application_name"]; got != "ssod" {
		t.Fatalf("application_name=%q", got)
	}
	if pcfg.ConnConfig.ConnectTimeout != dbConnectTimeout {
		t.Fatalf("connect timeout=%v", pcfg.ConnConfig.ConnectTimeout)
	}
}

func TestDBPoolConfig_KeepsURLSettings(t *testing.T) {
	t.Parallel()

	cfg := Config{
		DatabaseURL: "postgres://ssod@127.0.0.1:5432/ssod?application_name=device-agent&connect_timeout=7",
		DBMaxConns:  2,
	}
	pcfg, err := dbPoolConfig(cfg)
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	if got := pcfg.ConnConfig.RuntimeParams["application_name"]; got != "device-agent" {
		t.Fatalf("application_name=%q", got)
	}
	if pcfg.ConnConfig.ConnectTimeout != 7*time.Second {
		t.Fatalf("connect timeout=%v", pcfg.ConnConfig.ConnectTimeout)
	}
}

func TestDBPoolConfig_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "bad url", cfg: Config{DatabaseURL: "postgres://%zz", DBMaxConns: 2}},
		{name: "zero max", cfg: Config{DatabaseURL: "postgres://127.0.0.1/ssod", DBMaxConns: 0}},
		{name: "negative min", cfg: Config{DatabaseURL: "postgres://127.0.0.1/ssod", DBMaxConns: 2, DBMinConns: -1}},
		{name: "min above max", cfg: Config{DatabaseURL: "postgres://127.0.0.1/ssod", DBMaxConns: 2, DBMinConns: 3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := dbPoolConfig(tc.cfg); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
