package session

import "errors"

var (
	// ErrValidation is returned when a required argument is missing or empty.
	ErrValidation = errors.New("validation failed")

	// ErrCapacity is returned when adding a new account would exceed MaxAccounts.
	ErrCapacity = errors.New("account limit reached")

	// ErrNotFound is returned when the target account does not exist.
	// Logout and SwitchAccount treat it as a silent no-op.
	ErrNotFound = errors.New("account not found")

	// ErrNetwork is returned when the auth API fails or rejects a call.
	ErrNetwork = errors.New("auth api failure")

	// ErrStorage is returned when the account repository is unavailable.
	ErrStorage = errors.New("storage unavailable")

	// ErrInternal is returned when a task panics.
	ErrInternal = errors.New("internal error")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("manager closed")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
