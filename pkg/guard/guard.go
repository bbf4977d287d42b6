package guard

import (
	"strings"

	"github.com/tenantgate/tenantgate/pkg/roles"
	"github.com/tenantgate/tenantgate/pkg/session"
	"github.com/tenantgate/tenantgate/pkg/tenant"
)

// Kind enumerates the possible route decisions.
type Kind int

const (
	// Wait means the session is still loading; no decision can be made yet.
	Wait Kind = iota
	// Render means the request may proceed.
	Render
	// RedirectToLogin sends the visitor to the (tenant-scoped) login page.
	RedirectToLogin
	// RedirectToUnauthorized sends an authenticated but under-privileged
	// visitor to the unauthorized page.
	RedirectToUnauthorized
	// RedirectToAllowedArea sends a self-service user back to their area.
	RedirectToAllowedArea
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToUnauthorized:
		return "redirect_unauthorized"
	case RedirectToAllowedArea:
		return "redirect_allowed_area"
	default:
		return "wait"
	}
}

// Decision is a route decision with its redirect target, when any.
type Decision struct {
	Kind   Kind
	Target string
}

// Config scopes a guard to a protected area.
type Config struct {
	// AllowedRoles restricts the area to these roles. Empty permits every
	// authenticated role.
	AllowedRoles []roles.Role
	// RestrictSelfService confines self-service users to their own pages.
	RestrictSelfService bool
	// SelfServicePaths are the path substrings self-service users may
	// visit when restricted. Empty selects the defaults.
	SelfServicePaths []string
	// Checker decides which roles count as administrative. Nil selects the
	// default admin role set.
	Checker *roles.Checker
}

// defaultSelfServicePaths are the areas a self-service user may visit.
var defaultSelfServicePaths = []string{"employee-courses", "profile-settings"}

// Decide computes the route decision for a request path. It is a pure
// function of its inputs.
func Decide(sess session.Session, tctx tenant.Context, path string, cfg Config) Decision {
	if sess.State == session.StateLoading {
		return Decision{Kind: Wait}
	}
	if !sess.Authenticated() {
		return Decision{Kind: RedirectToLogin, Target: session.LoginPath(tctx.Slug)}
	}

	role := sess.User.Role
	if len(cfg.AllowedRoles) > 0 && !roles.AllowedBy(role, cfg.AllowedRoles) {
		return Decision{Kind: RedirectToUnauthorized, Target: "/unauthorized"}
	}

	checker := cfg.Checker
	if checker == nil {
		checker = roles.NewChecker(nil)
	}
	if cfg.RestrictSelfService && roles.IsSelfService(role) && !checker.IsAdmin(role) {
		if !inAllowedArea(path, cfg.SelfServicePaths) {
			if tctx.Slug == "" {
				return Decision{Kind: RedirectToLogin, Target: session.LoginPath("")}
			}
			return Decision{Kind: RedirectToAllowedArea, Target: "/" + tctx.Slug + "/employee-courses"}
		}
	}

	return Decision{Kind: Render}
}

func inAllowedArea(path string, allowed []string) bool {
	if len(allowed) == 0 {
		allowed = defaultSelfServicePaths
	}
	lower := strings.ToLower(path)
	for _, area := range allowed {
		if strings.Contains(lower, strings.ToLower(area)) {
			return true
		}
	}
	return false
}
