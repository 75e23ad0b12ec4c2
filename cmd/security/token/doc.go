// Package token provides secret-handling primitives for ssod.
//
// It is the single source of truth for two concerns:
//   - Fingerprinting session tokens so logs can correlate them without revealing them.
//   - Resolving the shared secret sent to the remote auth API on every request.
//
// Fingerprints are the first 8 bytes of a BLAKE2b-256 digest (16 hex chars).
//
// Environment:
//   - SSO_AUTH_API_TOKEN: shared secret value (default "pk-backend").
//   - SSO_AUTH_API_TOKEN_HEADER: header name carrying it (default "x-token").
package token
