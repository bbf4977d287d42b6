package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tenantgate/tenantgate/pkg/credstore"
	"github.com/tenantgate/tenantgate/pkg/observability"
)

// Config holds all gateway configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Backend is the upstream API the gateway fronts
	Backend BackendConfig

	// Store configures where session credentials live
	Store StoreConfig

	// Tenant configures directory caching and refresh
	Tenant TenantConfig

	// PolicyFile is the path to the YAML access policy, empty to disable
	PolicyFile string

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Session cookie settings
	CookieName   string
	CookieSecure bool
}

// BackendConfig holds upstream backend settings
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Store types for session credentials.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// StoreConfig holds credential store settings
type StoreConfig struct {
	Type string

	// File store
	Dir string

	// SQL stores
	SQLitePath  string
	PostgresURL string

	// Redis store. Its SessionTTL bounds how long an idle session's
	// credentials live; SQL and file stores keep them until logout.
	Redis credstore.RedisConfig
}

// TenantConfig holds tenant directory settings
type TenantConfig struct {
	CacheTTL time.Duration
	// RefreshSchedule is a cron expression rewarming the directory cache.
	// Empty disables scheduled refresh.
	RefreshSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Backend:       loadBackendConfig(),
		Store:         loadStoreConfig(),
		Tenant:        loadTenantConfig(),
		PolicyFile:    getEnv("TENANTGATE_POLICY_FILE", ""),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("TENANTGATE_HOST", "0.0.0.0"),
		Port:            getEnv("TENANTGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("TENANTGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TENANTGATE_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("TENANTGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TENANTGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("TENANTGATE_HEALTH_PORT", "9090"),
		CookieName:      getEnv("TENANTGATE_COOKIE_NAME", "tenantgate_session"),
		CookieSecure:    getEnvBool("TENANTGATE_COOKIE_SECURE", true),
	}
}

// loadBackendConfig loads upstream backend configuration from environment
func loadBackendConfig() BackendConfig {
	return BackendConfig{
		BaseURL: getEnv("TENANTGATE_BACKEND_URL", ""),
		Timeout: getEnvDuration("TENANTGATE_BACKEND_TIMEOUT", 15*time.Second),
	}
}

// loadStoreConfig loads credential store configuration from environment
func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Type:        getEnv("TENANTGATE_STORE_TYPE", StoreMemory),
		Dir:         getEnv("TENANTGATE_STORE_DIR", ""),
		SQLitePath:  getEnv("TENANTGATE_SQLITE_PATH", ""),
		PostgresURL: getEnv("TENANTGATE_POSTGRES_URL", ""),
		Redis: credstore.RedisConfig{
			URL:        getEnv("TENANTGATE_REDIS_URL", "redis://localhost:6379/0"),
			Password:   getEnv("TENANTGATE_REDIS_PASSWORD", ""),
			DB:         getEnvInt("TENANTGATE_REDIS_DB", 0),
			MaxRetries: getEnvInt("TENANTGATE_REDIS_MAX_RETRIES", 0),
			PoolSize:   getEnvInt("TENANTGATE_REDIS_POOL_SIZE", 10),
			SessionTTL: getEnvDuration("TENANTGATE_SESSION_TTL", 7*24*time.Hour),
		},
	}
}

// loadTenantConfig loads tenant directory configuration from environment
func loadTenantConfig() TenantConfig {
	return TenantConfig{
		CacheTTL:        getEnvDuration("TENANTGATE_TENANT_CACHE_TTL", 5*time.Minute),
		RefreshSchedule: getEnv("TENANTGATE_TENANT_REFRESH_SCHEDULE", "@every 5m"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("TENANTGATE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("TENANTGATE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("TENANTGATE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("TENANTGATE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("TENANTGATE_OTEL_SERVICE_NAME", "tenantgate"),
		OTelServiceVersion: getEnv("TENANTGATE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("TENANTGATE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend URL is required (TENANTGATE_BACKEND_URL)")
	}

	switch c.Store.Type {
	case StoreMemory:
		// No extra settings; sessions do not survive a restart.
	case StoreFile:
		if c.Store.Dir == "" {
			return fmt.Errorf("store directory is required for file store")
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite store")
		}
	case StorePostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres store")
		}
	case StoreRedis:
		if c.Store.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for redis store")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be memory, file, sqlite, postgres, or redis)", c.Store.Type)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
