package roles

import "strings"

// Role is a user role as reported by the backend
type Role string

// Canonical roles
const (
	RoleUser         Role = "user"          // Self-service user, restricted navigation
	RoleCompanyAdmin Role = "company_admin" // Administers a single tenant
	RoleAdmin        Role = "admin"         // Administers a single tenant (legacy spelling)
	RoleSuperAdmin   Role = "super_admin"   // Cross-tenant administrator

	// RoleSuperAdminAlias is a tolerated legacy spelling of RoleSuperAdmin
	// still emitted by older backend deployments.
	RoleSuperAdminAlias Role = "superadmin"
)

// Normalize lowercases a role string for comparison
func Normalize(role string) Role {
	return Role(strings.ToLower(strings.TrimSpace(role)))
}

// DefaultAdminSet is the exact set of roles granted admin-tier navigation.
// super_admin is included implicitly by every Checker.
var DefaultAdminSet = []Role{RoleAdmin, RoleSuperAdmin, RoleCompanyAdmin}

// Checker answers role predicates against a configurable admin set.
// The zero value uses DefaultAdminSet.
type Checker struct {
	adminSet map[Role]bool
}

// NewChecker creates a Checker with the given admin-tier roles. An empty
// list falls back to DefaultAdminSet.
func NewChecker(adminRoles []Role) *Checker {
	if len(adminRoles) == 0 {
		adminRoles = DefaultAdminSet
	}
	set := make(map[Role]bool, len(adminRoles))
	for _, r := range adminRoles {
		set[Normalize(string(r))] = true
	}
	return &Checker{adminSet: set}
}

// IsAdmin reports whether the role belongs to the admin tier by exact
// membership. Substring matches are deliberately not honored.
func (c *Checker) IsAdmin(role string) bool {
	if c == nil || c.adminSet == nil {
		return defaultChecker.IsAdmin(role)
	}
	return c.adminSet[Normalize(role)]
}

// IsSuperAdmin reports whether the role is the cross-tenant super admin.
// Both the canonical spelling and the legacy alias are accepted.
func IsSuperAdmin(role string) bool {
	r := Normalize(role)
	return r == RoleSuperAdmin || r == RoleSuperAdminAlias
}

// IsSelfService reports whether the role is the restricted self-service role.
func IsSelfService(role string) bool {
	return Normalize(role) == RoleUser
}

// AllowedBy reports whether the role is in the given allow list, comparing
// case-insensitively. An empty allow list permits every role.
func AllowedBy(role string, allowed []Role) bool {
	if len(allowed) == 0 {
		return true
	}
	r := Normalize(role)
	for _, a := range allowed {
		if Normalize(string(a)) == r {
			return true
		}
	}
	return false
}

var defaultChecker = NewChecker(nil)

// IsAdmin checks the role against the default admin set.
func IsAdmin(role string) bool {
	return defaultChecker.IsAdmin(role)
}
