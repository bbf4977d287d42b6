package gateway

import (
	"errors"
	"net/http"
	stdproxy "net/http/httputil"
	"strings"

	"github.com/tenantgate/tenantgate/pkg/apiclient"
	"github.com/tenantgate/tenantgate/pkg/httputil"
	"github.com/tenantgate/tenantgate/pkg/middleware"
	"github.com/tenantgate/tenantgate/pkg/roles"
	"github.com/tenantgate/tenantgate/pkg/session"
	"github.com/tenantgate/tenantgate/pkg/tenant"
)

// sessionTransport dispatches each proxied request through the session's
// authenticating transport. The session middleware has already bound the
// manager to the request context.
type sessionTransport struct{}

func (sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	manager := middleware.ManagerFromContext(req.Context())
	if manager == nil {
		return nil, apiclient.ErrUnauthenticated
	}
	t := &apiclient.Transport{Client: manager.Client()}
	return t.RoundTrip(req)
}

// proxyHandler forwards guarded requests to the backend with the session's
// bearer token attached. Token refresh and retry happen inside the
// transport; this layer scopes the request and maps terminal errors.
func (g *Gateway) proxyHandler() http.Handler {
	proxy := &stdproxy.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = g.backend.Scheme
			req.URL.Host = g.backend.Host
			req.Host = g.backend.Host
		},
		Transport:    sessionTransport{},
		ErrorHandler: g.proxyError,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manager := middleware.ManagerFromContext(r.Context())
		tctx := middleware.TenantFromContext(r.Context())
		role := ""
		if p := manager.Principal(); p != nil {
			role = p.Role
		}
		scope := apiclient.Scope{TenantSlug: tctx.Slug, SuperAdmin: roles.IsSuperAdmin(role)}
		proxy.ServeHTTP(w, r.WithContext(apiclient.WithScope(r.Context(), scope)))
	})
}

// publicProxyHandler forwards without credentials. Login and the other
// public pages are served by the backend but need no bearer token.
func (g *Gateway) publicProxyHandler() http.Handler {
	return &stdproxy.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = g.backend.Scheme
			req.URL.Host = g.backend.Host
			req.Host = g.backend.Host
		},
		ErrorHandler: g.proxyError,
	}
}

// publicPages are served without authentication, tenant-scoped or not.
var publicPages = map[string]struct{}{
	"login":          {},
	"register":       {},
	"reset-password": {},
	"unauthorized":   {},
}

// isPublicPage reports whether the path is a public page, accounting for
// an optional leading tenant slug ("/login" and "/acme/login" both match).
func (g *Gateway) isPublicPage(path string) bool {
	first := tenant.FirstSegment(path)
	if _, ok := publicPages[first]; ok {
		return true
	}
	if g.routes.IsSystem(first) {
		return false
	}
	rest := strings.TrimPrefix(path, "/"+first)
	_, ok := publicPages[tenant.FirstSegment(rest)]
	return ok
}

// proxyError turns transport failures into gateway responses. An expired
// or missing session becomes a login redirect preserving the tenant slug.
func (g *Gateway) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	tctx := middleware.TenantFromContext(r.Context())

	switch {
	case errors.Is(err, apiclient.ErrSessionExpired), errors.Is(err, apiclient.ErrUnauthenticated):
		httputil.Redirect(w, r, session.LoginPath(tctx.Slug))
	case errors.Is(err, apiclient.ErrTimeout):
		httputil.WriteErrorMessage(w, http.StatusGatewayTimeout, "backend timed out")
	default:
		g.logger.WithError(err).WithField("path", r.URL.Path).Error("Proxying to backend failed")
		httputil.WriteBadGateway(w, "backend unavailable")
	}
}
