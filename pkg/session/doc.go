// Package session owns the authenticated session lifecycle: login, logout,
// and profile refresh.
//
// Session state moves unauthenticated -> loading -> authenticated, and back
// to unauthenticated on logout or a fatal refresh failure. All mutation
// goes through the Manager; tokens themselves live in the credential store
// so they survive process restarts and are shared with the request
// pipeline.
package session
