// Package apiclient implements the authenticated request pipeline against
// the multi-tenant REST backend.
//
// Every authenticated call attaches the bearer token from the credential
// store and obeys the refresh cycle: a 401 response triggers exactly one
// token refresh followed by one retry of the original request. A second 401,
// or a failed refresh, forces a logout (tokens cleared) and surfaces
// ErrSessionExpired. Concurrent callers hitting 401 at the same time share a
// single in-flight refresh through singleflight.
//
// Tenant scoping is explicit: operations take a Scope carrying the tenant
// slug instead of reading any ambient location state.
package apiclient
