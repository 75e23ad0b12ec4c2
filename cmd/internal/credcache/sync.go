package credcache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"ssod/cmd/internal/auth/account"
	"ssod/cmd/internal/metrics"
	"ssod/cmd/security/token"
)

const DefaultTimeout = 5 * time.Second

// Lister is the slice of the account repository Reconcile needs.
type Lister interface {
	ListAll(ctx context.Context) ([]account.Account, error)
}

// Sync keeps a Cache in step with the account repository on a best-effort basis.
// Every call is bounded by its own timeout so a stalled cache cannot hold up a caller.
type Sync struct {
	cache   Cache
	log     *slog.Logger
	timeout time.Duration
}

// NewSync wraps cache. A nil logger discards logs; a non-positive timeout selects DefaultTimeout.
func NewSync(cache Cache, log *slog.Logger, timeout time.Duration) *Sync {
	if cache == nil {
		cache = NewInMemoryCache()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sync{cache: cache, log: log, timeout: timeout}
}

// Cache returns the wrapped backend.
func (s *Sync) Cache() Cache { return s.cache }

// Mirror writes a's credentials under its mail.
func (s *Sync) Mirror(ctx context.Context, a account.Account) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.cache.Upsert(ctx, EntryFromAccount(a)); err != nil {
		return s.fail("mirror", err, slog.String("guid", a.GUID), slog.String("token_fp", token.Fingerprint(a.SessionToken)))
	}
	s.log.Debug("credcache.mirror.ok", "guid", a.GUID)
	return nil
}

// Forget removes the entry for mail.
func (s *Sync) Forget(ctx context.Context, mail string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.cache.Remove(ctx, mail); err != nil {
		return s.fail("forget", err)
	}
	return nil
}

// ForgetAll removes every entry.
func (s *Sync) ForgetAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.cache.RemoveAll(ctx); err != nil {
		return s.fail("forget_all", err)
	}
	return nil
}

// Reconcile removes every cached mail not present in valid and returns the
// purged mails in sorted order. Removal continues past individual failures.
func (s *Sync) Reconcile(ctx context.Context, valid map[string]struct{}) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cached, err := s.cache.ListMails(ctx)
	if err != nil {
		return nil, s.fail("reconcile", err)
	}
	sort.Strings(cached)

	var (
		purged []string
		errs   []error
	)
	for _, mail := range cached {
		if _, ok := valid[mail]; ok {
			continue
		}
		if err := s.cache.Remove(ctx, mail); err != nil {
			errs = append(errs, err)
			continue
		}
		purged = append(purged, mail)
	}

	if len(purged) > 0 {
		metrics.CredCachePurgedTotal.Add(float64(len(purged)))
		s.log.Info("credcache.reconcile.purged", "count", len(purged))
	}
	if len(errs) > 0 {
		return purged, s.fail("reconcile", errors.Join(errs...))
	}
	return purged, nil
}

// ReconcileWith reads the full mail set from repo, then reconciles against it.
// A repo failure aborts without touching the cache.
func (s *Sync) ReconcileWith(ctx context.Context, repo Lister) ([]string, error) {
	all, err := repo.ListAll(ctx)
	if err != nil {
		return nil, s.fail("reconcile", err)
	}
	return s.Reconcile(ctx, account.Mails(all))
}

func (s *Sync) fail(op string, err error, attrs ...slog.Attr) error {
	metrics.CredCacheSyncFailures.WithLabelValues(op).Inc()

	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("err", err.Error()))
	for _, a := range attrs {
		args = append(args, a)
	}
	s.log.Warn("credcache."+op+".fail", args...)
	return err
}
