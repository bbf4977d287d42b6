package gateway

import (
	"errors"
	"net/http"

	"github.com/tenantgate/tenantgate/pkg/apiclient"
	"github.com/tenantgate/tenantgate/pkg/httputil"
	"github.com/tenantgate/tenantgate/pkg/middleware"
	"github.com/tenantgate/tenantgate/pkg/roles"
	"github.com/tenantgate/tenantgate/pkg/session"
)

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TenantSlug string `json:"tenant_slug,omitempty"`
}

type sessionResponse struct {
	State  string         `json:"state"`
	User   *principalBody `json:"user,omitempty"`
	Tenant string         `json:"tenant,omitempty"`
}

type principalBody struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

func principalResponse(p *session.Principal) *principalBody {
	if p == nil {
		return nil
	}
	return &principalBody{ID: p.ID, DisplayName: p.DisplayName, Email: p.Email, Role: p.Role}
}

// handleLogin authenticates the session and reports the landing page.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") || !httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	manager := middleware.ManagerFromContext(r.Context())
	if err := manager.Login(r.Context(), req.Email, req.Password, req.TenantSlug); err != nil {
		var ice *apiclient.InvalidCredentialsError
		switch {
		case errors.As(err, &ice):
			httputil.WriteUnauthorized(w, ice.Detail)
		case errors.Is(err, apiclient.ErrTimeout):
			httputil.WriteErrorMessage(w, http.StatusGatewayTimeout, "backend timed out")
		default:
			g.logger.WithError(err).Error("Login failed")
			httputil.WriteBadGateway(w, "backend unavailable")
		}
		return
	}

	principal := manager.Principal()
	slug := manager.TenantContext().Slug
	httputil.WriteSuccess(w, map[string]interface{}{
		"user":    principalResponse(principal),
		"landing": manager.LandingPath(principal.Role, slug),
	})
}

// handleLogout destroys the session and redirects to the tenant login
// page. The redirect is a real navigation so no client state survives.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	manager := middleware.ManagerFromContext(r.Context())
	slug := manager.TenantContext().Slug
	if err := manager.Logout(r.Context()); err != nil {
		g.logger.WithError(err).Error("Logout failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.Redirect(w, r, session.LoginPath(slug))
}

// handleSession reports the session snapshot.
func (g *Gateway) handleSession(w http.ResponseWriter, r *http.Request) {
	manager := middleware.ManagerFromContext(r.Context())
	snapshot, err := manager.Session(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, sessionResponse{
		State:  snapshot.State.String(),
		User:   principalResponse(snapshot.User),
		Tenant: manager.TenantContext().Slug,
	})
}

// scopeFor builds the tenant scope for the session's typed backend calls.
func scopeFor(manager *session.Manager) apiclient.Scope {
	role := ""
	if p := manager.Principal(); p != nil {
		role = p.Role
	}
	return apiclient.Scope{
		TenantSlug: manager.TenantContext().Slug,
		SuperAdmin: roles.IsSuperAdmin(role),
	}
}

// handleProfile serves GET and PATCH of the authenticated profile.
func (g *Gateway) handleProfile(w http.ResponseWriter, r *http.Request) {
	manager := middleware.ManagerFromContext(r.Context())
	client := manager.Client()
	scope := scopeFor(manager)

	switch r.Method {
	case http.MethodGet:
		user, err := client.Profile(r.Context(), scope)
		if err != nil {
			g.writeAuthError(w, err)
			return
		}
		httputil.WriteSuccess(w, user)
	case http.MethodPatch:
		var update apiclient.ProfileUpdate
		if !httputil.ParseJSONOrError(w, r, &update) {
			return
		}
		user, err := client.UpdateProfile(r.Context(), scope, update)
		if err != nil {
			g.writeAuthError(w, err)
			return
		}
		httputil.WriteSuccess(w, user)
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (g *Gateway) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.CurrentPassword, "current_password") ||
		!httputil.RequireNonEmpty(w, req.NewPassword, "new_password") {
		return
	}

	manager := middleware.ManagerFromContext(r.Context())
	if err := manager.Client().ChangePassword(r.Context(), scopeFor(manager), req.CurrentPassword, req.NewPassword); err != nil {
		g.writeAuthError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// handlePasswordReset is unauthenticated; it uses the shared public client.
func (g *Gateway) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	if err := g.public.RequestPasswordReset(r.Context(), req.Email); err != nil {
		g.logger.WithError(err).Error("Password reset request failed")
		httputil.WriteBadGateway(w, "backend unavailable")
		return
	}
	httputil.WriteNoContent(w)
}

// handleCompanies lists the known tenants for login pickers.
func (g *Gateway) handleCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := g.public.Companies(r.Context())
	if err != nil {
		g.logger.WithError(err).Error("Company listing failed")
		httputil.WriteBadGateway(w, "backend unavailable")
		return
	}
	httputil.WriteSuccess(w, companies)
}

// handleRoot sends visitors to where they belong: authenticated sessions
// to their landing page, everyone else to login.
func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	manager := middleware.ManagerFromContext(r.Context())
	slug := manager.TenantContext().Slug
	if principal := manager.Principal(); principal != nil {
		httputil.Redirect(w, r, manager.LandingPath(principal.Role, slug))
		return
	}
	httputil.Redirect(w, r, session.LoginPath(slug))
}

// writeAuthError maps pipeline errors to gateway responses.
func (g *Gateway) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apiclient.ErrUnauthenticated):
		httputil.WriteUnauthorized(w, "not authenticated")
	case errors.Is(err, apiclient.ErrSessionExpired):
		httputil.WriteUnauthorized(w, "session expired")
	case errors.Is(err, apiclient.ErrTimeout):
		httputil.WriteErrorMessage(w, http.StatusGatewayTimeout, "backend timed out")
	default:
		var se *apiclient.StatusError
		if errors.As(err, &se) {
			httputil.WriteErrorMessage(w, se.StatusCode, se.Detail)
			return
		}
		g.logger.WithError(err).Error("Backend call failed")
		httputil.WriteBadGateway(w, "backend unavailable")
	}
}
