package credstore

import "context"

// Credentials is a snapshot of everything the store holds.
type Credentials struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TenantSlug   string `json:"tenant_slug,omitempty"`
}

// Store persists the token pair and tenant slug across process restarts.
//
// Implementations must make SetTokens atomic (both tokens or neither) and
// must leave the tenant slug untouched in ClearTokens.
type Store interface {
	// Credentials returns the current snapshot.
	Credentials(ctx context.Context) (Credentials, error)

	// SetTokens stores the access/refresh token pair atomically.
	SetTokens(ctx context.Context, access, refresh string) error

	// SetAccessToken replaces only the access token (after a refresh).
	SetAccessToken(ctx context.Context, access string) error

	// SetTenantSlug persists the active tenant slug.
	SetTenantSlug(ctx context.Context, slug string) error

	// ClearTenantSlug removes the stored tenant slug.
	ClearTenantSlug(ctx context.Context) error

	// ClearTokens removes both tokens, preserving the tenant slug.
	ClearTokens(ctx context.Context) error
}

// internal field keys shared by the sql and redis backends
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyTenantSlug   = "tenant_slug"
)
