// Package credstore provides the persistent credential store holding the
// access token, refresh token, and last-known tenant slug.
//
// The store is the only shared mutable state in the auth core. Session and
// tenant code receive a Store through their constructors so tests can inject
// an in-memory implementation. Four backends are provided:
//
//	memory - ephemeral, for tests and short-lived tools
//	file   - JSON file on disk, survives process restarts
//	sql    - database/sql (sqlite3 or postgres), namespaced by session
//	redis  - per-session key prefix, used by the gateway daemon
//
// Invariants shared by all backends: SetTokens writes both tokens
// atomically, and ClearTokens removes both tokens while preserving the
// tenant slug so the next login keeps its tenant context.
package credstore
