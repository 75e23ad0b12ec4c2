// Package app wires the ssod runtime: config, logging, stores, the session
// manager, and the HTTP listener carrying the RPC gateway and ops routes.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	authapi "ssod/cmd/internal/auth/api"
	"ssod/cmd/internal/auth/session"
	"ssod/cmd/internal/rpc"

	"golang.org/x/sync/errgroup"
)

// App is the ssod server runtime.
type App struct {
	cfg Config
	log Logger

	stores  *Stores
	manager *session.Manager
	gateway *rpc.Gateway
}

// New constructs a fully wired App from config and logger.
// The caller must call Run, which releases every resource on return.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}

	stores, err := OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	remote, err := authapi.NewClient(cfg.AuthAPI, log, nil)
	if err != nil {
		stores.Close()
		return nil, err
	}

	mgr, err := session.NewManager(cfg.Session, log, stores.Repo, stores.Cache, remote)
	if err != nil {
		stores.Close()
		return nil, err
	}

	gw, err := rpc.NewGateway(cfg.RPC, log, mgr)
	if err != nil {
		_ = mgr.Close(ctx)
		stores.Close()
		return nil, err
	}

	return &App{cfg: cfg, log: log, stores: stores, manager: mgr, gateway: gw}, nil
}

// Manager exposes the session manager (used by in-process callers and tests).
func (a *App) Manager() *session.Manager { return a.manager }

// Run listens on cfg.HTTPAddr and serves until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		a.shutdown()
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve runs the startup reconcile, then serves HTTP on ln until ctx is cancelled.
// On return the gateway, the manager and the stores are closed.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	defer a.shutdown()

	if err := a.manager.Open(ctx); err != nil {
		_ = ln.Close()
		return err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, routes{
		log:   a.log,
		ready: a.stores.readyChecks(),
		rpc:   a.gateway,
	})

	srv := &http.Server{
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", ln.Addr().String(),
		"db_enabled", a.stores.dbPool != nil,
		"redis_enabled", a.stores.rdb != nil,
		"max_accounts", a.cfg.Session.MaxAccounts,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()

		// Hijacked RPC connections are not tracked by Shutdown; close them first.
		a.gateway.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		if err := a.manager.Close(shutdownCtx); err != nil {
			a.log.Error("session.manager.close.fail", "err", err)
		}
		return nil
	})

	err := g.Wait()
	a.log.Info("server.stopped")
	return err
}

func (a *App) shutdown() {
	a.gateway.Close()
	_ = a.manager.Close(context.Background())
	a.stores.Close()
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
