package token

import "errors"

// Public, stable errors for callers.
var (
	ErrSecretMissing       = errors.New("shared secret missing")
	ErrSecretHeaderInvalid = errors.New("shared secret header name invalid")
)
