package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists credentials to a JSON file so they survive process
// restarts. Writes go through a temp file and rename so a crash mid-write
// never leaves a truncated file behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the given file path. The parent
// directory is created if missing. A missing file reads as empty credentials.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("credstore: file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Credentials returns the current snapshot.
func (s *FileStore) Credentials(ctx context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// SetTokens stores both tokens atomically.
func (s *FileStore) SetTokens(ctx context.Context, access, refresh string) error {
	return s.update(func(c *Credentials) {
		c.AccessToken = access
		c.RefreshToken = refresh
	})
}

// SetAccessToken replaces only the access token.
func (s *FileStore) SetAccessToken(ctx context.Context, access string) error {
	return s.update(func(c *Credentials) {
		c.AccessToken = access
	})
}

// SetTenantSlug persists the tenant slug.
func (s *FileStore) SetTenantSlug(ctx context.Context, slug string) error {
	return s.update(func(c *Credentials) {
		c.TenantSlug = slug
	})
}

// ClearTenantSlug removes the tenant slug.
func (s *FileStore) ClearTenantSlug(ctx context.Context) error {
	return s.update(func(c *Credentials) {
		c.TenantSlug = ""
	})
}

// ClearTokens removes both tokens, preserving the tenant slug.
func (s *FileStore) ClearTokens(ctx context.Context) error {
	return s.update(func(c *Credentials) {
		c.AccessToken = ""
		c.RefreshToken = ""
	})
}

func (s *FileStore) update(mutate func(*Credentials)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return err
	}
	mutate(&creds)
	return s.save(creds)
}

func (s *FileStore) load() (Credentials, error) {
	var creds Credentials

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return creds, nil
	}
	if err != nil {
		return creds, fmt.Errorf("failed to read credential file: %w", err)
	}

	if len(data) == 0 {
		return creds, nil
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("failed to parse credential file: %w", err)
	}
	return creds, nil
}

func (s *FileStore) save(creds Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}
