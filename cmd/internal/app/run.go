package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run is the entrypoint used by `ssod serve`.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run(parent context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
