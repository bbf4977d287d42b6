package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       "8080",
			HealthPort: "9090",
		},
		Backend: BackendConfig{BaseURL: "http://backend:8000/api"},
		Store:   StoreConfig{Type: StoreMemory},
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TENANTGATE_BACKEND_URL", "http://backend:8000/api")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "tenantgate_session", cfg.Server.CookieName)
	assert.Equal(t, StoreMemory, cfg.Store.Type)
	assert.Equal(t, 5*time.Minute, cfg.Tenant.CacheTTL)
	assert.Equal(t, "@every 5m", cfg.Tenant.RefreshSchedule)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("TENANTGATE_BACKEND_URL", "http://backend:8000/api")
	t.Setenv("TENANTGATE_PORT", "8888")
	t.Setenv("TENANTGATE_STORE_TYPE", "redis")
	t.Setenv("TENANTGATE_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("TENANTGATE_SESSION_TTL", "48h")
	t.Setenv("TENANTGATE_BACKEND_TIMEOUT", "5s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, StoreRedis, cfg.Store.Type)
	assert.Equal(t, "redis://cache:6379/2", cfg.Store.Redis.URL)
	assert.Equal(t, 48*time.Hour, cfg.Store.Redis.SessionTTL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
}

func TestValidateRequiresBackendURL(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.BaseURL = ""
	require.Error(t, cfg.Validate())
}

func TestValidatePortsMustDiffer(t *testing.T) {
	cfg := validConfig()
	cfg.Server.HealthPort = cfg.Server.Port
	require.Error(t, cfg.Validate())
}

func TestValidateStoreSettings(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Type = StoreSQLite
	require.Error(t, cfg.Validate(), "sqlite store needs a path")

	cfg.Store.SQLitePath = "/var/lib/tenantgate/sessions.db"
	require.NoError(t, cfg.Validate())

	cfg.Store.Type = "cassandra"
	require.Error(t, cfg.Validate())
}

func TestValidateOTelSettings(t *testing.T) {
	cfg := validConfig()
	cfg.Observability.OTelEnabled = true
	require.Error(t, cfg.Validate(), "enabled OTel needs endpoint and service name")

	cfg.Observability.OTelEndpoint = "collector:4317"
	cfg.Observability.OTelServiceName = "tenantgate"
	require.NoError(t, cfg.Validate())
}
