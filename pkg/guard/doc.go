// Package guard turns a session snapshot and a tenant context into a
// route decision: serve the page, or redirect to login, the unauthorized
// page, or the role's allowed area.
//
// Decisions are pure; enforcement (issuing the actual redirect) lives in
// the gateway middleware.
package guard
