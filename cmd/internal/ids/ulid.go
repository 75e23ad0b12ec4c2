// Package ids provides ID primitives (ULID) used for call and frame identifiers.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string (26 chars).
// ULIDs sort by creation time, which keeps call ids ordered in logs.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustULID is NewULID for call sites that cannot return an error.
// It falls back to ulid.Make, which panics only if the entropy source fails.
func MustULID() string {
	id, err := NewULID(time.Now().UTC())
	if err != nil {
		return ulid.Make().String()
	}
	return id
}
