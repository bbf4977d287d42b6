// Package tenant resolves which tenant a request addresses.
//
// The first path segment is the tenant slug candidate unless it names a
// system route, in which case the slug persisted in the credential store is
// used instead. Candidates are validated against the backend's company
// directory, cached with a TTL. Super admins bypass validation entirely.
//
// Resolution never fails a request by itself; it produces a Context whose
// Validated flag downstream guards act on.
package tenant
