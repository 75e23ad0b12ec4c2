// Package account owns the durable set of signed-in accounts.
//
// The Repository is the source of truth for which accounts exist on the device
// and which one is active. UpsertActive is the only write path that marks an
// account active and it clears every other active flag in the same atomic step,
// so at most one account is active before and after every call.
//
// Two implementations are provided: PostgresStore (pgx) for durable deployments
// and InMemoryStore for dev mode and tests.
package account
