package account

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemoryStore is a Repository kept in process memory.
// It is the dev-mode fallback when no database is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account // guid -> account
}

// NewInMemoryStore constructs an empty in-memory Repository.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[string]Account)}
}

var _ Repository = (*InMemoryStore)(nil)

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// Get loads an account by guid.
func (s *InMemoryStore) Get(ctx context.Context, guid string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, storage("account.Get", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[strings.TrimSpace(guid)]
	if !ok {
		return Account{}, notFound("account.Get")
	}
	return a.Clone(), nil
}

// GetByMail loads the first account (guid order) with the given mail.
func (s *InMemoryStore) GetByMail(ctx context.Context, mail string) (Account, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return Account{}, err
	}
	mail = strings.TrimSpace(mail)
	for _, a := range all {
		if a.Mail == mail {
			return a, nil
		}
	}
	return Account{}, notFound("account.GetByMail")
}

// GetActive loads the active account.
func (s *InMemoryStore) GetActive(ctx context.Context) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, storage("account.GetActive", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.IsActive {
			return a.Clone(), nil
		}
	}
	return Account{}, notFound("account.GetActive")
}

// ListAll returns a snapshot ordered by mail, then guid.
func (s *InMemoryStore) ListAll(ctx context.Context) ([]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage("account.ListAll", err)
	}

	s.mu.RLock()
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Mail != out[j].Mail {
			return out[i].Mail < out[j].Mail
		}
		return out[i].GUID < out[j].GUID
	})
	return out, nil
}

// Count returns the number of stored accounts.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storage("account.Count", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

// UpsertActive clears all active flags and stores a as the active account, under one lock.
func (s *InMemoryStore) UpsertActive(ctx context.Context, a Account) (Account, error) {
	a = a.Normalized()
	if err := a.Validate(); err != nil {
		return Account{}, err
	}
	if err := ctx.Err(); err != nil {
		return Account{}, storage("account.UpsertActive", err)
	}

	stored := a.Clone()
	stored.IsActive = true

	s.mu.Lock()
	defer s.mu.Unlock()

	for guid, existing := range s.accounts {
		if existing.IsActive {
			existing.IsActive = false
			s.accounts[guid] = existing
		}
	}
	s.accounts[stored.GUID] = stored

	return stored.Clone(), nil
}

// DeleteByGUID removes an account (idempotent).
func (s *InMemoryStore) DeleteByGUID(ctx context.Context, guid string) error {
	if err := ctx.Err(); err != nil {
		return storage("account.DeleteByGUID", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, strings.TrimSpace(guid))
	return nil
}

// DeleteAll removes every account.
func (s *InMemoryStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return storage("account.DeleteAll", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[string]Account)
	return nil
}
