package account

import (
	"context"
	"strings"
)

// Account is one signed-in identity on the device.
type Account struct {
	GUID         string
	Mail         string
	ProfileImage *string
	SessionToken string
	IsActive     bool
}

// Normalized returns a with surrounding whitespace removed from GUID and Mail,
// the form in which stores key and compare accounts.
func (a Account) Normalized() Account {
	a.GUID = strings.TrimSpace(a.GUID)
	a.Mail = strings.TrimSpace(a.Mail)
	return a
}

// Validate checks the fields every stored account must carry.
func (a Account) Validate() error {
	switch {
	case strings.TrimSpace(a.GUID) == "":
		return invalid("account.Validate", "missing guid")
	case strings.TrimSpace(a.Mail) == "":
		return invalid("account.Validate", "missing mail")
	case a.SessionToken == "":
		return invalid("account.Validate", "missing session token")
	}
	return nil
}

// Equal reports field-wise equality, comparing ProfileImage by value.
func (a Account) Equal(b Account) bool {
	if a.GUID != b.GUID || a.Mail != b.Mail || a.SessionToken != b.SessionToken || a.IsActive != b.IsActive {
		return false
	}
	switch {
	case a.ProfileImage == nil && b.ProfileImage == nil:
		return true
	case a.ProfileImage == nil || b.ProfileImage == nil:
		return false
	default:
		return *a.ProfileImage == *b.ProfileImage
	}
}

// Clone returns a copy that shares no pointers with a.
func (a Account) Clone() Account {
	if a.ProfileImage != nil {
		img := *a.ProfileImage
		a.ProfileImage = &img
	}
	return a
}

// StringPtr returns nil for empty s, a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Repository abstracts persistence for the account set.
//
// Implementations must make UpsertActive atomic: no reader may observe two
// active accounts or a half-applied update.
type Repository interface {
	// Get loads an account by guid. Returns ErrNotFound when absent.
	Get(ctx context.Context, guid string) (Account, error)

	// GetByMail loads the first account with the given mail. Returns ErrNotFound when absent.
	GetByMail(ctx context.Context, mail string) (Account, error)

	// GetActive loads the active account. Returns ErrNotFound when none is active.
	GetActive(ctx context.Context) (Account, error)

	// ListAll returns every account ordered by mail, then guid.
	ListAll(ctx context.Context) ([]Account, error)

	// Count returns the number of stored accounts.
	Count(ctx context.Context) (int, error)

	// UpsertActive clears every active flag, then updates the account with the
	// same guid in place or inserts it, marked active. Returns the stored record.
	UpsertActive(ctx context.Context, a Account) (Account, error)

	// DeleteByGUID removes an account. Deleting a missing guid is not an error.
	DeleteByGUID(ctx context.Context, guid string) error

	// DeleteAll removes every account.
	DeleteAll(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// Mails returns the mail set of accounts, for cache reconciliation.
func Mails(accounts []Account) map[string]struct{} {
	out := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		out[a.Mail] = struct{}{}
	}
	return out
}
