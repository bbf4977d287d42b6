package credstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Credentials returns the current snapshot.
func (s *MemoryStore) Credentials(ctx context.Context) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, nil
}

// SetTokens stores both tokens atomically.
func (s *MemoryStore) SetTokens(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.AccessToken = access
	s.creds.RefreshToken = refresh
	return nil
}

// SetAccessToken replaces only the access token.
func (s *MemoryStore) SetAccessToken(ctx context.Context, access string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.AccessToken = access
	return nil
}

// SetTenantSlug persists the tenant slug.
func (s *MemoryStore) SetTenantSlug(ctx context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.TenantSlug = slug
	return nil
}

// ClearTenantSlug removes the tenant slug.
func (s *MemoryStore) ClearTenantSlug(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.TenantSlug = ""
	return nil
}

// ClearTokens removes both tokens, preserving the tenant slug.
func (s *MemoryStore) ClearTokens(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.AccessToken = ""
	s.creds.RefreshToken = ""
	return nil
}
