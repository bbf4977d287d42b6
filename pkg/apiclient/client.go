package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tenantgate/tenantgate/pkg/credstore"
	"github.com/tenantgate/tenantgate/pkg/observability"
)

const defaultTimeout = 15 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the backend API root, e.g. "https://backend.example.com/api".
	BaseURL string
	// Timeout bounds each backend call. Zero means 15s.
	Timeout time.Duration
	// HTTPClient overrides the underlying client. Optional.
	HTTPClient *http.Client
	Logger     *observability.Logger
	Metrics    *observability.Metrics
}

// Client talks to the backend on behalf of one session. It reads and
// writes tokens through the session's credential store.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	store   credstore.Store
	logger  *observability.Logger
	metrics *observability.Metrics

	refreshGroup singleflight.Group

	// onSessionExpired, when set, is invoked after a forced logout has
	// cleared the tokens. The tenant slug of the failing call is passed
	// through so the callback can target the tenant's login page.
	onSessionExpired func(ctx context.Context, tenantSlug string)
}

// New creates a Client bound to the given credential store.
func New(cfg Config, store credstore.Store) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewDefaultLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		timeout: timeout,
		store:   store,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// OnSessionExpired registers a callback fired after a forced logout.
func (c *Client) OnSessionExpired(fn func(ctx context.Context, tenantSlug string)) {
	c.onSessionExpired = fn
}

// Login exchanges credentials for a token pair. On success both tokens are
// stored atomically. A 4xx rejection surfaces as InvalidCredentialsError
// carrying the backend's detail message.
func (c *Client) Login(ctx context.Context, scope Scope, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	var result LoginResult
	err := c.postJSON(ctx, scope.authPath("token"), body, &result)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
			c.observeLogin("rejected")
			return nil, &InvalidCredentialsError{Detail: se.Detail}
		}
		c.observeLogin("error")
		return nil, err
	}
	if result.Access == "" {
		c.observeLogin("error")
		return nil, fmt.Errorf("login response missing access token")
	}

	if err := c.store.SetTokens(ctx, result.Access, result.Refresh); err != nil {
		return nil, fmt.Errorf("storing tokens: %w", err)
	}
	c.observeLogin("success")
	return &result, nil
}

func (c *Client) observeLogin(outcome string) {
	if c.metrics != nil {
		c.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

// RefreshAccessToken performs the token refresh primitive: it posts the
// stored refresh token and persists the new access token. Concurrent
// callers share a single in-flight refresh. Failure clears both tokens
// and returns ErrSessionExpired.
func (c *Client) RefreshAccessToken(ctx context.Context, scope Scope) (string, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		return c.refreshOnce(ctx, scope)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refreshOnce(ctx context.Context, scope Scope) (string, error) {
	creds, err := c.store.Credentials(ctx)
	if err != nil {
		return "", fmt.Errorf("reading credentials: %w", err)
	}
	if creds.RefreshToken == "" {
		c.observeRefresh("missing_refresh_token")
		c.forceLogout(ctx, scope)
		return "", ErrSessionExpired
	}

	var result struct {
		Access string `json:"access"`
	}
	body := map[string]string{"refresh": creds.RefreshToken}
	if err := c.postJSON(ctx, scope.authPath("token", "refresh"), body, &result); err != nil {
		var ne *NetworkError
		if errors.As(err, &ne) || errors.Is(err, ErrTimeout) {
			// Do not destroy the session over a transient transport failure.
			c.observeRefresh("network_error")
			return "", err
		}
		c.observeRefresh("rejected")
		c.forceLogout(ctx, scope)
		return "", ErrSessionExpired
	}
	if result.Access == "" {
		c.observeRefresh("rejected")
		c.forceLogout(ctx, scope)
		return "", ErrSessionExpired
	}

	if err := c.store.SetAccessToken(ctx, result.Access); err != nil {
		return "", fmt.Errorf("storing refreshed access token: %w", err)
	}
	c.observeRefresh("success")
	return result.Access, nil
}

func (c *Client) observeRefresh(outcome string) {
	if c.metrics != nil {
		c.metrics.TokenRefreshTotal.WithLabelValues(outcome).Inc()
	}
}

// forceLogout clears the token pair (the tenant slug survives) and
// notifies the session-expired callback.
func (c *Client) forceLogout(ctx context.Context, scope Scope) {
	if err := c.store.ClearTokens(ctx); err != nil {
		c.logger.WithError(err).Error("Failed to clear tokens during forced logout")
	}
	if c.metrics != nil {
		c.metrics.ForcedLogoutsTotal.Inc()
	}
	c.logger.WithField("tenant", scope.TenantSlug).Warn("Session expired, forced logout")
	if c.onSessionExpired != nil {
		c.onSessionExpired(ctx, scope.TenantSlug)
	}
}

// Profile fetches the authenticated user's profile scoped to the tenant.
func (c *Client) Profile(ctx context.Context, scope Scope) (*User, error) {
	var user User
	if err := c.doAuthed(ctx, http.MethodGet, scope.authPath("profile"), scope, nil, &user); err != nil {
		if c.metrics != nil {
			c.metrics.ProfileFetchTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.ProfileFetchTotal.WithLabelValues("success").Inc()
	}
	return &user, nil
}

// UpdateProfile patches the mutable profile fields and returns the
// updated user.
func (c *Client) UpdateProfile(ctx context.Context, scope Scope, update ProfileUpdate) (*User, error) {
	var user User
	if err := c.doAuthed(ctx, http.MethodPatch, scope.authPath("profile"), scope, update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword changes the authenticated user's password.
func (c *Client) ChangePassword(ctx context.Context, scope Scope, current, updated string) error {
	body := map[string]string{
		"current_password": current,
		"new_password":     updated,
	}
	return c.doAuthed(ctx, http.MethodPost, scope.authPath("change-password"), scope, body, nil)
}

// RequestPasswordReset asks the backend to start a password reset for the
// given email. It is unauthenticated and tenant-less.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.postJSON(ctx, "/auth/password-reset/", map[string]string{"email": email}, nil)
}

// Companies lists the known tenants. The endpoint is public.
func (c *Client) Companies(ctx context.Context) ([]Company, error) {
	var companies []Company
	if err := c.doJSON(ctx, http.MethodGet, "/auth/companies/", nil, nil, &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

// doAuthed runs a JSON call through the authenticated pipeline: bearer
// token attached, one refresh-and-retry on 401, forced logout on repeat
// failure.
func (c *Client) doAuthed(ctx context.Context, method, path string, scope Scope, body, out interface{}) error {
	creds, err := c.store.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("reading credentials: %w", err)
	}
	if creds.AccessToken == "" {
		return ErrUnauthenticated
	}

	headers := c.authHeaders(creds.AccessToken, scope)
	status, err := c.doJSONStatus(ctx, method, path, headers, body, out)
	if err == nil && status != http.StatusUnauthorized {
		return nil
	}
	if status != http.StatusUnauthorized {
		return err
	}

	// One refresh, one retry. A second 401 ends the session.
	access, err := c.RefreshAccessToken(ctx, scope)
	if err != nil {
		return err
	}
	headers = c.authHeaders(access, scope)
	status, err = c.doJSONStatus(ctx, method, path, headers, body, out)
	if status == http.StatusUnauthorized {
		c.forceLogout(ctx, scope)
		return ErrSessionExpired
	}
	return err
}

func (c *Client) authHeaders(access string, scope Scope) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+access)
	if scope.SuperAdmin {
		h.Set("X-Super-Admin", "true")
	}
	return h
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, body, out)
}

// doJSON performs a single JSON request and decodes the 2xx response into
// out. Non-2xx responses become StatusError with the backend's detail.
func (c *Client) doJSON(ctx context.Context, method, path string, headers http.Header, body, out interface{}) error {
	status, err := c.doJSONStatus(ctx, method, path, headers, body, out)
	_ = status
	return err
}

// doJSONStatus is doJSON but also reports the HTTP status so the caller
// can distinguish 401 for the retry protocol.
func (c *Client) doJSONStatus(ctx context.Context, method, path string, headers http.Header, body, out interface{}) (int, error) {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request body: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %s %s", ErrTimeout, method, url)
		}
		return 0, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &StatusError{
			StatusCode: resp.StatusCode,
			Detail:     readDetail(resp.Body),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response from %s: %w", url, err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

// readDetail extracts the backend's {"detail": "..."} error message,
// falling back to the raw body.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(data))
}
