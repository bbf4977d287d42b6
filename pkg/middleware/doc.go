// Package middleware provides the gateway's HTTP middleware: per-session
// credential binding, tenant resolution, route guarding, and login rate
// limiting.
//
// The session middleware derives a session ID from a cookie, binds the
// request to that session's credential store and manager, refreshes the
// principal, and resolves the tenant from the request path. The guard
// middleware then enforces the resulting route decision.
package middleware
