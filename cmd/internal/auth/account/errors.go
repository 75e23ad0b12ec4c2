package account

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (stable for errors.Is and for mapping to result codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrStorage      = errors.New("storage_unavailable")
)

// OpError is a typed repository error with a stable Op + Kind contract.
// Err carries the underlying driver error when there is one; it is never shown to callers.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func notFound(op string) error { return OpError{Op: op, Kind: ErrNotFound} }

func invalid(op string, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Err: errors.New(msg)}
}

func storage(op string, err error) error { return OpError{Op: op, Kind: ErrStorage, Err: err} }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsStorage reports whether err represents ErrStorage.
func IsStorage(err error) bool { return errors.Is(err, ErrStorage) }
