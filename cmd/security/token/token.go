package token

import (
	"encoding/hex"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	// SecretEnvKey is the env var name for the auth API shared secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SecretEnvKey = "SSO_AUTH_API_TOKEN"

	// HeaderEnvKey is the env var name for the header carrying the shared secret.
	HeaderEnvKey = "SSO_AUTH_API_TOKEN_HEADER"

	// DefaultHeader and DefaultSecret match the deployed auth backend.
	DefaultHeader = "x-token"
	// #nosec G101 -- deployment-wide static key, not a user credential.
	DefaultSecret = "pk-backend"

	fingerprintBytes = 8
)

// Fingerprint returns a short, stable, non-reversible identifier for a secret.
// Empty input yields an empty fingerprint so absent tokens stay visibly absent in logs.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:fingerprintBytes])
}

// SharedSecret is the header name/value pair attached to every auth API request.
type SharedSecret struct {
	Header string
	Value  string
}

// SharedSecretFromEnv resolves the shared secret, applying deployment defaults.
// A header set to whitespace or containing separators is rejected, as is an explicitly blank value.
func SharedSecretFromEnv() (SharedSecret, error) {
	header := DefaultHeader
	if raw, ok := os.LookupEnv(HeaderEnvKey); ok {
		header = strings.TrimSpace(raw)
	}

	value := DefaultSecret
	if raw, ok := os.LookupEnv(SecretEnvKey); ok {
		value = strings.TrimSpace(raw)
	}

	s := SharedSecret{Header: header, Value: value}
	if err := s.Validate(); err != nil {
		return SharedSecret{}, err
	}
	return s, nil
}

// Validate checks that the pair can be sent as an HTTP header.
func (s SharedSecret) Validate() error {
	if s.Header == "" || strings.ContainsAny(s.Header, " \t\r\n:") {
		return ErrSecretHeaderInvalid
	}
	if s.Value == "" {
		return ErrSecretMissing
	}
	return nil
}
