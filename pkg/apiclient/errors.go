package apiclient

import (
	"errors"
	"fmt"
)

// Sentinel errors for the auth pipeline.
var (
	// ErrUnauthenticated means no access token was present; the call was
	// never sent to the backend.
	ErrUnauthenticated = errors.New("apiclient: not authenticated")

	// ErrSessionExpired means the refresh cycle failed: either the refresh
	// call itself failed or the retried request was rejected again. Tokens
	// have been cleared by the time this is returned.
	ErrSessionExpired = errors.New("apiclient: session expired")

	// ErrTimeout means an auth call exceeded the configured deadline.
	ErrTimeout = errors.New("apiclient: request timed out")
)

// InvalidCredentialsError is returned when the backend rejects a login.
// Detail carries the backend's message for user-facing display.
type InvalidCredentialsError struct {
	Detail string
}

func (e *InvalidCredentialsError) Error() string {
	if e.Detail == "" {
		return "invalid credentials"
	}
	return e.Detail
}

// IsInvalidCredentials reports whether err is a rejected login.
func IsInvalidCredentials(err error) bool {
	var ice *InvalidCredentialsError
	return errors.As(err, &ice)
}

// NetworkError wraps a transport-level failure reaching the backend.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is returned for unexpected non-2xx responses outside the
// refresh protocol.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}
