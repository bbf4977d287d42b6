package apiclient

import "strings"

// User is the backend's representation of an authenticated user.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Company   string `json:"company,omitempty"`
}

// DisplayName returns the user's full name, falling back to the username.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Company is a tenant as listed by the public companies endpoint.
type Company struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// LoginResult is the token endpoint's success payload.
type LoginResult struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    *User  `json:"user,omitempty"`
}

// ProfileUpdate carries the mutable profile fields. Nil pointers are
// omitted from the PATCH body.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	Email     *string `json:"email,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// Scope carries the explicit tenant context for a call. The zero Scope
// addresses the global (tenant-less) auth endpoints.
type Scope struct {
	TenantSlug string
	SuperAdmin bool
}

// authPath builds an auth endpoint path, inserting the tenant slug when
// the scope carries one: "/auth/<slug>/profile/" vs "/auth/profile/".
func (s Scope) authPath(parts ...string) string {
	segs := make([]string, 0, len(parts)+2)
	segs = append(segs, "auth")
	if s.TenantSlug != "" {
		segs = append(segs, s.TenantSlug)
	}
	segs = append(segs, parts...)
	return "/" + strings.Join(segs, "/") + "/"
}
