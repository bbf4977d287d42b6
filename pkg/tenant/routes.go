package tenant

import (
	"strings"
	"sync"
)

// RouteUnauthorized is the literal path segment that is always treated as a
// valid tenant context without consulting the directory.
const RouteUnauthorized = "unauthorized"

// systemRoutes are first path segments that belong to the application
// itself and are never tenant slugs.
var systemRoutes = map[string]struct{}{
	"":                 {},
	"auth":             {},
	"login":            {},
	"register":         {},
	"dashboard":        {},
	"templates":        {},
	"campaigns":        {},
	"analytics":        {},
	"users":            {},
	"profile":          {},
	"admin":            {},
	"reset-password":   {},
	"template-editor":  {},
	"lms-campaigns":    {},
	"user-management":  {},
	"employee-courses": {},
	"profile-settings": {},
	"super-admin":      {},
	RouteUnauthorized:  {},
}

// IsSystemRoute reports whether the segment names a system route rather
// than a tenant slug. Matching is case-sensitive; slugs are lowercase by
// convention.
func IsSystemRoute(segment string) bool {
	_, ok := systemRoutes[segment]
	return ok
}

// RouteSet is the built-in system route set plus deployment-specific
// extras. One RouteSet is shared by every session's resolver so a policy
// reload takes effect everywhere at once.
type RouteSet struct {
	mu    sync.RWMutex
	extra map[string]struct{}
}

// NewRouteSet creates a RouteSet with no extras.
func NewRouteSet() *RouteSet {
	return &RouteSet{extra: map[string]struct{}{}}
}

// SetExtra replaces the extra system route segments.
func (s *RouteSet) SetExtra(segments []string) {
	extra := make(map[string]struct{}, len(segments))
	for _, segment := range segments {
		extra[segment] = struct{}{}
	}
	s.mu.Lock()
	s.extra = extra
	s.mu.Unlock()
}

// IsSystem reports whether the segment is a system route, built-in or
// extra.
func (s *RouteSet) IsSystem(segment string) bool {
	if IsSystemRoute(segment) {
		return true
	}
	s.mu.RLock()
	_, ok := s.extra[segment]
	s.mu.RUnlock()
	return ok
}

// FirstSegment returns the first segment of a URL path, without slashes.
func FirstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}
