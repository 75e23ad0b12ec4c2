// Package credcache mirrors the account set into a secondary credential cache.
//
// The cache is never authoritative. The account repository is the source of
// truth; entries are keyed by mail and any mail the repository no longer holds
// is stale and purged by Reconcile.
//
// Cache backends:
//   - RedisCache: one hash per mail plus a membership set, written with MULTI/EXEC.
//   - InMemoryCache: process-local map, used when no Redis URL is configured.
//
// Sync layers the best-effort contract on top of a Cache: failures are logged
// and counted, then returned for inspection, and callers are expected to carry
// on regardless.
package credcache
