package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ssod/cmd/internal/auth/account"
	"ssod/cmd/internal/credcache"
	"ssod/cmd/internal/ids"
	"ssod/cmd/internal/metrics"
)

// Manager runs account session operations against a repository, a credential cache and the auth API.
//
// Concurrency model:
//   - Every mutating call runs as its own task in one errgroup; tasks share a
//     context that Close cancels.
//   - active serializes the read-check-write sections (cap check, upsert,
//     delete/promote) and the cache sync that follows them. Remote calls run
//     outside it.
//   - lifecycle orders task scheduling against Close so no task starts after
//     Close has begun waiting.
type Manager struct {
	cfg    Config
	log    *slog.Logger
	repo   account.Repository
	cache  *credcache.Sync
	remote Remote

	active sync.Mutex

	lifecycle sync.RWMutex
	closed    atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	tasks     errgroup.Group
}

// NewManager constructs a Manager. cache may be nil, in which case an in-memory cache is used.
func NewManager(cfg Config, log *slog.Logger, repo account.Repository, cache *credcache.Sync, remote Remote) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, errors.New("session: nil repository")
	}
	if remote == nil {
		return nil, errors.New("session: nil remote")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cache == nil {
		cache = credcache.NewSync(nil, log, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:    cfg,
		log:    log,
		repo:   repo,
		cache:  cache,
		remote: remote,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Open runs the startup reconcile of the credential cache against the repository.
// A cache or repository failure is logged and does not fail Open.
func (m *Manager) Open(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	purged, err := m.cache.ReconcileWith(ctx, m.repo)
	if err != nil {
		m.log.Warn("session.open.reconcile.fail", "err", err)
		return nil
	}
	m.log.Info("session.open.reconciled", "purged", len(purged))
	return nil
}

// Reconcile purges cache entries whose mail is no longer in the repository and returns them.
func (m *Manager) Reconcile(ctx context.Context) ([]string, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	m.active.Lock()
	defer m.active.Unlock()
	return m.cache.ReconcileWith(ctx, m.repo)
}

// Close cancels in-flight tasks and waits for them to return, bounded by ctx.
// No callback is invoked once Close has started.
func (m *Manager) Close(ctx context.Context) error {
	m.lifecycle.Lock()
	already := m.closed.Swap(true)
	m.lifecycle.Unlock()
	if already {
		return nil
	}

	m.cancel()

	done := make(chan struct{})
	go func() {
		_ = m.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info("session.manager.closed")
		return nil
	case <-ctx.Done():
		m.log.Warn("session.manager.close.timeout", "err", ctx.Err())
		return ctx.Err()
	}
}

// GetActiveAccount returns the active account; ok is false when none is active.
func (m *Manager) GetActiveAccount(ctx context.Context) (account.Account, bool, error) {
	a, err := m.repo.GetActive(ctx)
	if account.IsNotFound(err) {
		return account.Account{}, false, nil
	}
	if err != nil {
		m.log.Warn("session.get_active_account.fail", "err", err)
		return account.Account{}, false, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return a, true, nil
}

// GetAllAccounts lists every account, ordered by mail. An empty slice is a valid answer.
func (m *Manager) GetAllAccounts(ctx context.Context) ([]account.Account, error) {
	all, err := m.repo.ListAll(ctx)
	if err != nil {
		m.log.Warn("session.get_all_accounts.fail", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if all == nil {
		all = []account.Account{}
	}
	return all, nil
}

// task is the body of one scheduled operation.
type task func(ctx context.Context, log *slog.Logger) Result

// spawn schedules fn and delivers its result to cb. Calls after Close are dropped.
func (m *Manager) spawn(op string, cb Callback, fn task) {
	m.lifecycle.RLock()
	defer m.lifecycle.RUnlock()

	if m.closed.Load() {
		m.log.Debug("session."+op+".dropped", "reason", "closed")
		return
	}

	log := m.log.With("op", op, "call_id", ids.MustULID())
	start := time.Now()
	metrics.InflightTasks.Inc()

	m.tasks.Go(func() error {
		defer metrics.InflightTasks.Dec()

		res := m.run(op, log, fn)
		m.finish(op, log, res, time.Since(start))
		m.deliver(log, cb, res)
		return nil
	})
}

// run executes fn, converting a panic into an internal failure.
func (m *Manager) run(op string, log *slog.Logger, fn task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("session."+op+".panic", "panic", fmt.Sprint(r))
			res = internalFailure(fmt.Errorf("panic: %v", r))
		}
	}()
	return fn(m.ctx, log)
}

func (m *Manager) finish(op string, log *slog.Logger, res Result, dur time.Duration) {
	metrics.OperationsTotal.WithLabelValues(op, string(res.Code)).Inc()
	metrics.OperationDuration.WithLabelValues(op).Observe(dur.Seconds())

	if res.Success {
		log.Info("session."+op+".ok", "msg", res.Message, "dur_ms", dur.Milliseconds())
		return
	}
	log.Warn("session."+op+".fail", "code", string(res.Code), "msg", res.Message, "err", res.Err, "dur_ms", dur.Milliseconds())
}

// reject delivers an immediate failure in the caller's goroutine, before any task is scheduled.
func (m *Manager) reject(op string, cb Callback, res Result) {
	m.finish(op, m.log.With("op", op), res, 0)
	m.deliver(m.log, cb, res)
}

// deliver hands res to cb. Delivery errors are logged at debug and dropped.
func (m *Manager) deliver(log *slog.Logger, cb Callback, res Result) {
	if cb == nil || m.closed.Load() {
		return
	}
	if err := cb.OnResult(res); err != nil {
		log.Debug("session.deliver.result.fail", "err", err)
		return
	}
	if !res.Success || res.Account == nil {
		return
	}
	if err := cb.OnAccountDelivered(res.Account.Clone()); err != nil {
		log.Debug("session.deliver.account.fail", "err", err)
	}
}

// syncCacheLocked mirrors upserted accounts, forgets removed mails, then reconciles.
// Caller holds m.active. Failures are logged by the cache layer and dropped.
func (m *Manager) syncCacheLocked(ctx context.Context, mirror []account.Account, forget []string) {
	for _, mail := range forget {
		_ = m.cache.Forget(ctx, mail)
	}
	for _, a := range mirror {
		_ = m.cache.Mirror(ctx, a)
	}
	_, _ = m.cache.ReconcileWith(ctx, m.repo)
}
