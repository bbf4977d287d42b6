package middleware

import (
	"net/http"
	"sync"

	"github.com/tenantgate/tenantgate/pkg/guard"
	"github.com/tenantgate/tenantgate/pkg/httputil"
	"github.com/tenantgate/tenantgate/pkg/observability"
	"github.com/tenantgate/tenantgate/pkg/session"
	"github.com/tenantgate/tenantgate/pkg/tenant"
)

// GuardEnforcer enforces route decisions for protected areas. Its guard
// config is swappable at runtime for policy hot reload.
type GuardEnforcer struct {
	metrics *observability.Metrics
	logger  *observability.Logger

	mu  sync.RWMutex
	cfg guard.Config
}

// NewGuardEnforcer creates a GuardEnforcer with the initial config.
func NewGuardEnforcer(cfg guard.Config, metrics *observability.Metrics, logger *observability.Logger) *GuardEnforcer {
	if logger == nil {
		logger = observability.NewDefaultLogger()
	}
	return &GuardEnforcer{cfg: cfg, metrics: metrics, logger: logger}
}

// SetConfig swaps the guard config. Called on policy reload.
func (g *GuardEnforcer) SetConfig(cfg guard.Config) {
	g.mu.Lock()
	g.cfg = cfg
	g.mu.Unlock()
}

// Config returns the current guard config.
func (g *GuardEnforcer) Config() guard.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// Middleware enforces the route decision for each request. It requires
// the session middleware to have run first.
func (g *GuardEnforcer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manager := ManagerFromContext(r.Context())
		if manager == nil {
			httpError(w, "no session bound to request")
			return
		}
		snapshot, err := manager.Session(r.Context())
		if err != nil {
			g.logger.WithError(err).Error("Session snapshot failed")
			httpError(w, "session unavailable")
			return
		}
		tctx := TenantFromContext(r.Context())

		decision := guard.Decide(snapshot, tctx, r.URL.Path, g.Config())
		if g.metrics != nil {
			g.metrics.GuardDecisionsTotal.WithLabelValues(decision.Kind.String()).Inc()
		}

		switch decision.Kind {
		case guard.Render:
			next.ServeHTTP(w, r)
		case guard.RedirectToLogin, guard.RedirectToUnauthorized, guard.RedirectToAllowedArea:
			httputil.Redirect(w, r, decision.Target)
		default:
			// The session middleware settles loading before we run, so a
			// Wait here means a wiring bug.
			httputil.WriteServiceUnavailable(w, "session still loading")
		}
	})
}

// TenantGuard recovers requests whose tenant failed validation: an
// authenticated visitor is sent to their own tenant's landing page, anyone
// else to login for tenant selection. System routes pass through
// untouched. routes may be nil, in which case only the built-in system
// routes are recognized.
func TenantGuard(routes *tenant.RouteSet) func(http.Handler) http.Handler {
	isSystem := tenant.IsSystemRoute
	if routes != nil {
		isSystem = routes.IsSystem
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSystem(tenant.FirstSegment(r.URL.Path)) {
				next.ServeHTTP(w, r)
				return
			}
			tctx := TenantFromContext(r.Context())
			if tctx.Validated {
				next.ServeHTTP(w, r)
				return
			}
			if manager := ManagerFromContext(r.Context()); manager != nil {
				if p := manager.Principal(); p != nil {
					slug := p.Company
					if slug == "" {
						slug = manager.StoredTenantSlug(r.Context())
					}
					if slug != "" {
						httputil.Redirect(w, r, manager.LandingPath(p.Role, slug))
						return
					}
				}
			}
			httputil.Redirect(w, r, session.LoginPath(""))
		})
	}
}

func httpError(w http.ResponseWriter, message string) {
	httputil.WriteErrorMessage(w, http.StatusInternalServerError, message)
}
