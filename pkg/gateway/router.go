package gateway

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tenantgate/tenantgate/pkg/httputil"
	"github.com/tenantgate/tenantgate/pkg/middleware"
)

const maxRequestBody = 1 << 20

// Router builds the gateway's HTTP surface. Auth control endpoints live
// under /auth/; everything else runs through the tenant and route guards
// and is proxied to the backend.
func (g *Gateway) Router() http.Handler {
	r := mux.NewRouter()

	r.Use(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(g.logger),
		httputil.LoggingMiddleware(g.logger),
		g.provider.Middleware,
	)
	if g.metrics != nil {
		r.Use(g.metrics.Middleware)
	}

	auth := r.PathPrefix("/auth").Subrouter()
	auth.Use(httputil.MaxBytesMiddleware(maxRequestBody))
	auth.Handle("/login", middleware.LoginRateLimit(g.limiter, g.logger)(
		http.HandlerFunc(g.handleLogin))).Methods(http.MethodPost)
	auth.HandleFunc("/logout", g.handleLogout).Methods(http.MethodPost)
	auth.HandleFunc("/session", g.handleSession).Methods(http.MethodGet)
	auth.HandleFunc("/profile", g.handleProfile).Methods(http.MethodGet, http.MethodPatch)
	auth.HandleFunc("/change-password", g.handleChangePassword).Methods(http.MethodPost)
	auth.HandleFunc("/password-reset", g.handlePasswordReset).Methods(http.MethodPost)
	auth.HandleFunc("/companies", g.handleCompanies).Methods(http.MethodGet)

	r.HandleFunc("/", g.handleRoot).Methods(http.MethodGet)

	public := g.publicProxyHandler()
	guarded := g.enforcer.Middleware(g.proxyHandler())
	r.PathPrefix("/").Handler(middleware.TenantGuard(g.routes)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.isPublicPage(r.URL.Path) {
				public.ServeHTTP(w, r)
				return
			}
			guarded.ServeHTTP(w, r)
		})))

	return r
}
