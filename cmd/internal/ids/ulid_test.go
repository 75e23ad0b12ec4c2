package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewULID_SortsByTime(t *testing.T) {
	t.Parallel()

	earlier := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewULID(earlier)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	b, err := NewULID(earlier.Add(time.Second))
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("expected 26-char ids, got %q and %q", a, b)
	}
	if a >= b {
		t.Fatalf("expected %q < %q", a, b)
	}

	parsed, err := ulid.Parse(a)
	if err != nil {
		t.Fatalf("ulid.Parse: %v", err)
	}
	if got := ulid.Time(parsed.Time()); !got.Equal(earlier) {
		t.Fatalf("timestamp mismatch: got=%v want=%v", got, earlier)
	}
}

func TestMustULID_NonEmpty(t *testing.T) {
	t.Parallel()

	if id := MustULID(); len(id) != 26 {
		t.Fatalf("MustULID()=%q", id)
	}
}
