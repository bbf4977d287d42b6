package credstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore persists credentials in Redis under a per-session key prefix.
// The gateway daemon uses one RedisStore per browser session, keyed by the
// session cookie.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int

	// SessionTTL bounds how long an idle session's credentials live.
	// Zero means no expiry.
	SessionTTL time.Duration
}

// NewRedisClient opens and pings a Redis client from config.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB >= 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisStore creates a session-scoped store over an existing client.
func NewRedisStore(client *redis.Client, sessionID string, ttl time.Duration) (*RedisStore, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("credstore: session ID is required")
	}
	return &RedisStore{
		client: client,
		prefix: "session:" + sessionID + ":",
		ttl:    ttl,
	}, nil
}

func (s *RedisStore) key(field string) string {
	return s.prefix + field
}

// Credentials returns the current snapshot.
func (s *RedisStore) Credentials(ctx context.Context) (Credentials, error) {
	var creds Credentials

	vals, err := s.client.MGet(ctx,
		s.key(keyAccessToken), s.key(keyRefreshToken), s.key(keyTenantSlug)).Result()
	if err != nil {
		return creds, fmt.Errorf("redis mget failed: %w", err)
	}

	if v, ok := vals[0].(string); ok {
		creds.AccessToken = v
	}
	if v, ok := vals[1].(string); ok {
		creds.RefreshToken = v
	}
	if v, ok := vals[2].(string); ok {
		creds.TenantSlug = v
	}
	return creds, nil
}

// SetTokens stores both tokens in one transactional pipeline.
func (s *RedisStore) SetTokens(ctx context.Context, access, refresh string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(keyAccessToken), access, s.ttl)
	pipe.Set(ctx, s.key(keyRefreshToken), refresh, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	return nil
}

// SetAccessToken replaces only the access token.
func (s *RedisStore) SetAccessToken(ctx context.Context, access string) error {
	if err := s.client.Set(ctx, s.key(keyAccessToken), access, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	return nil
}

// SetTenantSlug persists the tenant slug.
func (s *RedisStore) SetTenantSlug(ctx context.Context, slug string) error {
	if err := s.client.Set(ctx, s.key(keyTenantSlug), slug, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store tenant slug: %w", err)
	}
	return nil
}

// ClearTenantSlug removes the tenant slug.
func (s *RedisStore) ClearTenantSlug(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(keyTenantSlug)).Err(); err != nil {
		return fmt.Errorf("failed to clear tenant slug: %w", err)
	}
	return nil
}

// ClearTokens removes both tokens, preserving the tenant slug.
func (s *RedisStore) ClearTokens(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(keyAccessToken), s.key(keyRefreshToken)).Err(); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}
