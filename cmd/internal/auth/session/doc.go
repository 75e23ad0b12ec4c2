// Package session implements the device account session manager.
//
// The manager owns the signed-in account set: login, registration, logout,
// logout-all and switch-account, with at most one active account and at most
// Config.MaxAccounts accounts. Mutating operations run as independent tasks
// and report back through a per-call Callback; read-only queries run
// synchronously.
//
// The account repository is the source of truth. After every mutation the
// credential cache is mirrored and reconciled against it on a best-effort basis.
//
// Transport (RPC) integration is out of scope here; see package rpc.
package session
