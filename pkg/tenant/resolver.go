package tenant

import (
	"context"
	"fmt"

	"github.com/tenantgate/tenantgate/pkg/credstore"
	"github.com/tenantgate/tenantgate/pkg/observability"
	"github.com/tenantgate/tenantgate/pkg/roles"
)

// Context is the outcome of tenant resolution for one request.
type Context struct {
	// Slug is the tenant slug candidate, possibly empty when none could be
	// determined from the path or the credential store.
	Slug string
	// Validated reports whether the slug was confirmed against the company
	// directory (or bypassed by super admin / the unauthorized route).
	Validated bool
}

// NotFoundError means the slug candidate is not a known tenant. Quiet is
// set when the candidate came from the stored slug rather than the request
// path, in which case user-facing notifications should be suppressed.
type NotFoundError struct {
	Slug  string
	Quiet bool
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tenant %q not found", e.Slug)
}

// Resolver determines the tenant context for request paths. It persists
// path-derived slugs to the credential store optimistically and clears the
// stored slug when it is the one that failed validation.
type Resolver struct {
	store   credstore.Store
	dir     *Directory
	routes  *RouteSet
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewResolver creates a Resolver with its own route set. Use WithRoutes to
// share one route set across resolvers.
func NewResolver(store credstore.Store, dir *Directory, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = observability.NewDefaultLogger()
	}
	return &Resolver{
		store:   store,
		dir:     dir,
		routes:  NewRouteSet(),
		logger:  logger,
		metrics: metrics,
	}
}

// WithRoutes replaces the resolver's route set and returns the resolver.
func (r *Resolver) WithRoutes(routes *RouteSet) *Resolver {
	r.routes = routes
	return r
}

// SetExtraSystemRoutes installs additional system route segments on top of
// the built-in set. Used by policy hot reload.
func (r *Resolver) SetExtraSystemRoutes(segments []string) {
	r.routes.SetExtra(segments)
}

func (r *Resolver) isSystem(segment string) bool {
	return r.routes.IsSystem(segment)
}

// Resolve determines the tenant context for a request path. role is the
// current principal's role, empty when unknown; super admins skip
// directory validation.
//
// Resolution follows the slug precedence rules: a non-system first path
// segment wins and is persisted immediately, otherwise the stored slug is
// used. The literal "unauthorized" segment is always valid.
func (r *Resolver) Resolve(ctx context.Context, path, role string) (Context, error) {
	first := FirstSegment(path)

	creds, err := r.store.Credentials(ctx)
	if err != nil {
		return Context{}, fmt.Errorf("reading stored tenant slug: %w", err)
	}

	if first == RouteUnauthorized {
		r.observe("bypass")
		return Context{Slug: creds.TenantSlug, Validated: true}, nil
	}

	var candidate string
	if r.isSystem(first) {
		candidate = creds.TenantSlug
	} else {
		candidate = first
		// Persist before validation so a reload mid-flight sees the slug.
		if err := r.store.SetTenantSlug(ctx, candidate); err != nil {
			return Context{Slug: candidate}, fmt.Errorf("persisting tenant slug: %w", err)
		}
	}

	if candidate == "" {
		r.observe("none")
		return Context{}, nil
	}
	if candidate == RouteUnauthorized {
		r.observe("bypass")
		return Context{Slug: candidate, Validated: true}, nil
	}

	if roles.IsSuperAdmin(role) {
		if err := r.store.SetTenantSlug(ctx, candidate); err != nil {
			return Context{Slug: candidate}, fmt.Errorf("persisting tenant slug: %w", err)
		}
		r.observe("bypass")
		return Context{Slug: candidate, Validated: true}, nil
	}

	exists, err := r.dir.Exists(ctx, candidate)
	if err != nil {
		// Transport trouble: treat as invalid but keep the stored slug so a
		// recovered backend does not strand the session.
		r.observe("error")
		r.logger.WithError(err).WithField("tenant", candidate).Warn("Tenant validation unavailable")
		return Context{Slug: candidate}, err
	}

	if exists {
		if err := r.store.SetTenantSlug(ctx, candidate); err != nil {
			return Context{Slug: candidate, Validated: true}, fmt.Errorf("persisting tenant slug: %w", err)
		}
		r.observe("valid")
		return Context{Slug: candidate, Validated: true}, nil
	}

	// Clear the stored slug only when it is the candidate that failed;
	// an unrelated stored slug must survive a bad link.
	if current, err := r.store.Credentials(ctx); err == nil && current.TenantSlug == candidate {
		if err := r.store.ClearTenantSlug(ctx); err != nil {
			r.logger.WithError(err).Error("Failed to clear invalid tenant slug")
		}
	}
	r.observe("invalid")
	return Context{Slug: candidate}, &NotFoundError{Slug: candidate, Quiet: r.isSystem(first)}
}

func (r *Resolver) observe(result string) {
	if r.metrics != nil {
		r.metrics.TenantValidationsTotal.WithLabelValues(result).Inc()
	}
}
