package apiclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

type scopeKey struct{}

// WithScope attaches the tenant scope to a context. The Transport reads it
// back when proxying, so handlers decide the scope once per request.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext returns the scope attached by WithScope, or the zero
// Scope.
func ScopeFromContext(ctx context.Context) Scope {
	if s, ok := ctx.Value(scopeKey{}).(Scope); ok {
		return s
	}
	return Scope{}
}

// Transport is an http.RoundTripper running proxied requests through the
// authenticated pipeline: bearer token attached from the credential store,
// one refresh-and-retry on 401, forced logout on repeat failure.
//
// It is used as the reverse proxy's transport so upstream requests get the
// same token semantics as the typed client operations.
type Transport struct {
	Client *Client
	// Base is the underlying transport. Nil means http.DefaultTransport.
	Base http.RoundTripper
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper. Returned pipeline errors
// (ErrUnauthenticated, ErrSessionExpired) are meant for the proxy's error
// handler to translate into login redirects.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	scope := ScopeFromContext(ctx)

	creds, err := t.Client.store.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if creds.AccessToken == "" {
		return nil, ErrUnauthenticated
	}

	// Buffer the body so the request can be replayed after a refresh.
	var body []byte
	if req.Body != nil {
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	resp, err := t.send(req, scope, creds.AccessToken, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	access, err := t.Client.RefreshAccessToken(ctx, scope)
	if err != nil {
		return nil, err
	}

	resp, err = t.send(req, scope, access, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		t.Client.forceLogout(ctx, scope)
		return nil, ErrSessionExpired
	}
	return resp, nil
}

func (t *Transport) send(req *http.Request, scope Scope, access string, body []byte) (*http.Response, error) {
	out := req.Clone(req.Context())
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
	}
	out.Header.Set("Authorization", "Bearer "+access)
	if scope.SuperAdmin {
		out.Header.Set("X-Super-Admin", "true")
	}

	start := time.Now()
	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, &NetworkError{URL: out.URL.String(), Err: err}
	}
	if t.Client.metrics != nil {
		t.Client.metrics.ObserveBackendRequest(out.Method, resp.StatusCode, time.Since(start))
	}
	return resp, nil
}
