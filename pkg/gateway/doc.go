// Package gateway assembles the forward-auth reverse proxy: session and
// guard middleware, auth endpoints (login, logout, profile, companies),
// and the authenticated proxy to the backend.
//
// Everything the gateway serves hangs off one mux router. Auth control
// endpoints live under /auth/; every other path is guarded and proxied to
// the backend with the session's bearer token attached.
package gateway
