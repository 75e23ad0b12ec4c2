package app

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString reads a string env var with a default.
func EnvString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// envReader reads typed SSO_* variables. Unset or blank keys take the default.
// A malformed value keeps the default and is recorded; Err reports all of them.
type envReader struct {
	errs []error
}

func (r *envReader) fail(key, v, want string) {
	r.errs = append(r.errs, fmt.Errorf("%s=%q: want %s", key, v, want))
}

func (r *envReader) String(key, def string) string { return EnvString(key, def) }

func (r *envReader) Bool(key string, def bool) bool {
	v := EnvString(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, "a boolean")
		return def
	}
	return b
}

// Int reads an int that must be at least floor.
func (r *envReader) Int(key string, def, floor int) int {
	v := EnvString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		r.fail(key, v, fmt.Sprintf("an integer >= %d", floor))
		return def
	}
	return n
}

// Int32 is Int for pool sizes.
func (r *envReader) Int32(key string, def, floor int32) int32 {
	n := r.Int(key, int(def), int(floor))
	if n > math.MaxInt32 {
		r.fail(key, strconv.Itoa(n), "a 32-bit integer")
		return def
	}
	return int32(n)
}

// Duration reads a positive Go duration ("5s", "2m").
func (r *envReader) Duration(key string, def time.Duration) time.Duration {
	v := EnvString(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.fail(key, v, "a positive duration")
		return def
	}
	return d
}

// Err joins every malformed value seen so far, or nil.
func (r *envReader) Err() error { return errors.Join(r.errs...) }
