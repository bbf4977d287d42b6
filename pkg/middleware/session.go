package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tenantgate/tenantgate/pkg/contextkeys"
	"github.com/tenantgate/tenantgate/pkg/observability"
	"github.com/tenantgate/tenantgate/pkg/session"
	"github.com/tenantgate/tenantgate/pkg/tenant"
)

const managerCacheSize = 4096

// ManagerFactory builds the session manager for a session ID. The gateway
// wires it to the configured credential store backend.
type ManagerFactory func(sessionID string) (*session.Manager, error)

// SessionConfig configures the session middleware.
type SessionConfig struct {
	// CookieName is the session cookie, e.g. "tenantgate_session".
	CookieName string
	// CookieSecure marks the cookie Secure; disable only for local dev.
	CookieSecure bool
	// ManagerTTL evicts idle session managers from the in-process cache.
	// The credentials themselves live in the store and survive eviction.
	ManagerTTL time.Duration
	Factory    ManagerFactory
	Logger     *observability.Logger
}

// SessionProvider binds requests to their session manager.
type SessionProvider struct {
	cookieName   string
	cookieSecure bool
	factory      ManagerFactory
	logger       *observability.Logger

	mu       sync.Mutex
	managers *expirable.LRU[string, *session.Manager]
}

// NewSessionProvider creates a SessionProvider.
func NewSessionProvider(cfg SessionConfig) *SessionProvider {
	ttl := cfg.ManagerTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewDefaultLogger()
	}
	return &SessionProvider{
		cookieName:   cfg.CookieName,
		cookieSecure: cfg.CookieSecure,
		factory:      cfg.Factory,
		logger:       logger,
		managers:     expirable.NewLRU[string, *session.Manager](managerCacheSize, nil, ttl),
	}
}

// Manager returns the session manager for a session ID, creating and
// caching it on first use. Reuse matters: the manager's client dedupes
// concurrent token refreshes per session.
func (p *SessionProvider) Manager(sessionID string) (*session.Manager, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if manager, ok := p.managers.Get(sessionID); ok {
		return manager, nil
	}
	manager, err := p.factory(sessionID)
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}
	p.managers.Add(sessionID, manager)
	return manager, nil
}

// Middleware binds the request to its session: it ensures the session
// cookie exists, refreshes the principal for the request path, and puts
// the manager, tenant context and session ID into the request context.
func (p *SessionProvider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := p.sessionID(w, r)

		manager, err := p.Manager(sessionID)
		if err != nil {
			p.logger.WithError(err).Error("Session manager unavailable")
			http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
			return
		}

		if err := manager.RefreshUser(r.Context(), r.URL.Path); err != nil {
			p.logger.WithError(err).Warn("Session refresh failed")
		}

		ctx := contextkeys.WithSession(r.Context(), manager)
		ctx = contextkeys.WithTenant(ctx, manager.TenantContext())
		ctx = contextkeys.WithSessionID(ctx, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionID reads the session cookie, minting a new one when absent.
func (p *SessionProvider) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(p.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	sessionID := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     p.cookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   p.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID
}

// ManagerFromContext returns the request's session manager, nil if the
// session middleware did not run.
func ManagerFromContext(ctx context.Context) *session.Manager {
	if manager, ok := ctx.Value(contextkeys.SessionKey).(*session.Manager); ok {
		return manager
	}
	return nil
}

// TenantFromContext returns the resolved tenant context for the request.
func TenantFromContext(ctx context.Context) tenant.Context {
	if tctx, ok := ctx.Value(contextkeys.TenantKey).(tenant.Context); ok {
		return tctx
	}
	return tenant.Context{}
}
