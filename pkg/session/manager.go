package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/tenantgate/tenantgate/pkg/apiclient"
	"github.com/tenantgate/tenantgate/pkg/credstore"
	"github.com/tenantgate/tenantgate/pkg/observability"
	"github.com/tenantgate/tenantgate/pkg/roles"
	"github.com/tenantgate/tenantgate/pkg/tenant"
)

// Manager drives the session lifecycle for one session's credential store.
type Manager struct {
	store    credstore.Store
	client   *apiclient.Client
	resolver *tenant.Resolver
	nav      Navigator
	checker  *roles.Checker
	logger   *observability.Logger

	mu        sync.RWMutex
	state     State
	principal *Principal
	tenantCtx tenant.Context
	// lastAccess is the access token the held principal was fetched with.
	// While it matches the stored token, RefreshUser skips the profile
	// fetch; navigation only rechecks token presence.
	lastAccess string
}

// Config configures a Manager. Store, Client and Resolver are required.
type Config struct {
	Store    credstore.Store
	Client   *apiclient.Client
	Resolver *tenant.Resolver
	// Navigator receives navigation side effects. Nil means none.
	Navigator Navigator
	// Checker decides which roles are administrative for landing pages.
	// Nil selects the default admin role set.
	Checker *roles.Checker
	Logger  *observability.Logger
}

// NewManager creates a session Manager. It registers itself for the
// client's forced-logout notifications so an expired session lands on the
// tenant's login page.
func NewManager(cfg Config) *Manager {
	nav := cfg.Navigator
	if nav == nil {
		nav = noopNavigator{}
	}
	checker := cfg.Checker
	if checker == nil {
		checker = roles.NewChecker(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewDefaultLogger()
	}
	m := &Manager{
		store:    cfg.Store,
		client:   cfg.Client,
		resolver: cfg.Resolver,
		nav:      nav,
		checker:  checker,
		logger:   logger,
		state:    StateUnauthenticated,
	}
	m.client.OnSessionExpired(func(ctx context.Context, slug string) {
		m.mu.Lock()
		m.state = StateUnauthenticated
		m.principal = nil
		m.lastAccess = ""
		m.mu.Unlock()
		m.nav.HardNavigate(LoginPath(slug))
	})
	return m
}

// Client returns the backend client bound to this session's credentials.
func (m *Manager) Client() *apiclient.Client {
	return m.client
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Principal returns the authenticated identity, nil when unauthenticated.
func (m *Manager) Principal() *Principal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.principal
}

// StoredTenantSlug returns the persisted tenant slug, empty when none or
// when the store is unreadable.
func (m *Manager) StoredTenantSlug(ctx context.Context) string {
	creds, err := m.store.Credentials(ctx)
	if err != nil {
		return ""
	}
	return creds.TenantSlug
}

// TenantContext returns the tenant context from the last resolution.
func (m *Manager) TenantContext() tenant.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tenantCtx
}

// Session returns a read-only snapshot including the stored tokens.
func (m *Manager) Session(ctx context.Context) (Session, error) {
	creds, err := m.store.Credentials(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("reading credentials: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Session{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		User:         m.principal,
		State:        m.state,
	}, nil
}

// Login authenticates against the tenant's token endpoint. tenantSlug may
// be empty, in which case the stored slug scopes the call. On success the
// manager becomes authenticated and navigates to the role's landing page.
func (m *Manager) Login(ctx context.Context, email, password, tenantSlug string) error {
	slug := tenantSlug
	if slug == "" {
		creds, err := m.store.Credentials(ctx)
		if err != nil {
			return fmt.Errorf("reading credentials: %w", err)
		}
		slug = creds.TenantSlug
	}

	scope := apiclient.Scope{TenantSlug: slug}
	result, err := m.client.Login(ctx, scope, email, password)
	if err != nil {
		return err
	}

	principal := principalFromUser(result.User)
	if principal == nil {
		// Token endpoints that omit the user payload require a follow-up
		// profile fetch.
		user, err := m.client.Profile(ctx, scope)
		if err != nil {
			return fmt.Errorf("fetching profile after login: %w", err)
		}
		principal = principalFromUser(user)
	}

	if slug != "" {
		if err := m.store.SetTenantSlug(ctx, slug); err != nil {
			return fmt.Errorf("persisting tenant slug: %w", err)
		}
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.principal = principal
	m.lastAccess = result.Access
	m.tenantCtx = tenant.Context{Slug: slug, Validated: slug != ""}
	m.mu.Unlock()

	m.logger.WithFields(map[string]interface{}{
		"tenant": slug,
		"role":   principal.Role,
	}).Info("Login succeeded")

	m.nav.Navigate(m.LandingPath(principal.Role, slug))
	return nil
}

// Logout clears the token pair, keeps the tenant slug for the next login,
// and hard-navigates to the tenant-scoped login page so no state from the
// previous session survives.
func (m *Manager) Logout(ctx context.Context) error {
	creds, err := m.store.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("reading credentials: %w", err)
	}
	if err := m.store.ClearTokens(ctx); err != nil {
		return fmt.Errorf("clearing tokens: %w", err)
	}

	m.mu.Lock()
	m.state = StateUnauthenticated
	m.principal = nil
	m.lastAccess = ""
	m.mu.Unlock()

	m.logger.WithField("tenant", creds.TenantSlug).Info("Logged out")
	m.nav.HardNavigate(LoginPath(creds.TenantSlug))
	return nil
}

// RefreshUser re-establishes the session from stored tokens for the given
// request path. Tenant resolution runs regardless of authentication so
// anonymous visits to tenant pages still get a validated context.
// Without an access token the session settles on unauthenticated. Fetch
// failures degrade to unauthenticated and drop the access token; retrying
// an invalid session is the request pipeline's job, not ours.
func (m *Manager) RefreshUser(ctx context.Context, path string) error {
	m.mu.Lock()
	role := ""
	if m.principal != nil {
		role = m.principal.Role
	}
	m.mu.Unlock()

	tctx, err := m.resolver.Resolve(ctx, path, role)
	if err != nil {
		// Resolution trouble is not fatal here; the guard acts on the
		// unvalidated context.
		m.logger.WithError(err).WithField("path", path).Debug("Tenant resolution failed")
	}
	m.mu.Lock()
	m.tenantCtx = tctx
	m.mu.Unlock()

	creds, err := m.store.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("reading credentials: %w", err)
	}
	if creds.AccessToken == "" {
		m.mu.Lock()
		m.state = StateUnauthenticated
		m.principal = nil
		m.lastAccess = ""
		m.mu.Unlock()
		return nil
	}

	// A held principal fetched with this same token is still good; plain
	// navigation only rechecks token presence.
	m.mu.Lock()
	if m.state == StateAuthenticated && m.principal != nil && creds.AccessToken == m.lastAccess {
		m.mu.Unlock()
		return nil
	}
	m.state = StateLoading
	m.mu.Unlock()

	scope := apiclient.Scope{TenantSlug: tctx.Slug, SuperAdmin: roles.IsSuperAdmin(role)}
	user, err := m.client.Profile(ctx, scope)
	if err != nil {
		m.logger.WithError(err).WithField("tenant", tctx.Slug).Warn("Profile fetch failed, degrading to unauthenticated")
		if clearErr := m.store.SetAccessToken(ctx, ""); clearErr != nil {
			m.logger.WithError(clearErr).Error("Failed to drop access token")
		}
		m.mu.Lock()
		m.state = StateUnauthenticated
		m.principal = nil
		m.lastAccess = ""
		m.mu.Unlock()
		return nil
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.principal = principalFromUser(user)
	m.lastAccess = creds.AccessToken
	m.mu.Unlock()
	return nil
}

// LandingPath returns the in-app page a freshly authenticated role lands
// on: self-service users get their course area, everyone else the
// dashboard.
func (m *Manager) LandingPath(role, slug string) string {
	if slug == "" {
		return "/"
	}
	if roles.IsSelfService(role) && !m.checker.IsAdmin(role) {
		return "/" + slug + "/employee-courses"
	}
	return "/" + slug + "/dashboard"
}

// LoginPath returns the tenant-scoped login page, or the global one when
// no slug is known.
func LoginPath(slug string) string {
	if slug == "" {
		return "/login"
	}
	return "/" + slug + "/login"
}
