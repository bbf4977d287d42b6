package credstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedisStore(t *testing.T, sessionID string) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store, err := NewRedisStore(client, sessionID, 0)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	return store
}

func TestRedisStore_Contract(t *testing.T) {
	runStoreContract(t, newTestRedisStore(t, "sess-1"))
}

func TestRedisStore_SessionIsolation(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	a, err := NewRedisStore(client, "sess-a", 0)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	b, err := NewRedisStore(client, "sess-b", 0)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}

	if err := a.SetTokens(ctx, "a-access", "a-refresh"); err != nil {
		t.Fatalf("SetTokens() error = %v", err)
	}

	creds, err := b.Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.AccessToken != "" {
		t.Errorf("session b should not see session a's tokens: %+v", creds)
	}
}

func TestRedisStore_SessionTTL(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store, err := NewRedisStore(client, "sess-ttl", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	if err := store.SetTokens(ctx, "access", "refresh"); err != nil {
		t.Fatalf("SetTokens() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)

	creds, err := store.Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.AccessToken != "" {
		t.Errorf("tokens should expire with session TTL: %+v", creds)
	}
}

func TestNewRedisStore_RequiresSessionID(t *testing.T) {
	if _, err := NewRedisStore(nil, "", 0); err == nil {
		t.Error("expected error for empty session ID")
	}
}
