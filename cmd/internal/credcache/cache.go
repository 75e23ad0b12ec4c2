package credcache

import (
	"context"
	"errors"
	"strings"

	"ssod/cmd/internal/auth/account"
)

var (
	ErrInvalidEntry = errors.New("credcache: invalid entry")
	ErrUnavailable  = errors.New("credcache: unavailable")
)

// Entry is one cached credential, keyed by Mail.
type Entry struct {
	GUID         string
	Mail         string
	SessionToken string
	ProfileImage *string
}

// EntryFromAccount projects an account onto its cache entry.
func EntryFromAccount(a account.Account) Entry {
	c := a.Clone()
	return Entry{
		GUID:         c.GUID,
		Mail:         c.Mail,
		SessionToken: c.SessionToken,
		ProfileImage: c.ProfileImage,
	}
}

func (e Entry) validate() error {
	if strings.TrimSpace(e.Mail) == "" || strings.TrimSpace(e.GUID) == "" {
		return ErrInvalidEntry
	}
	return nil
}

// Cache is the storage contract for the credential mirror.
type Cache interface {
	// Upsert replaces the entry stored under e.Mail.
	Upsert(ctx context.Context, e Entry) error

	// Get returns the entry stored under mail; ok=false when absent.
	Get(ctx context.Context, mail string) (e Entry, ok bool, err error)

	// Remove deletes the entry under mail. Missing entries are not an error.
	Remove(ctx context.Context, mail string) error

	// RemoveAll deletes every entry.
	RemoveAll(ctx context.Context) error

	// ListMails returns every cached mail, in no particular order.
	ListMails(ctx context.Context) ([]string, error)
}
