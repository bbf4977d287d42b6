package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tenantgate/tenantgate/pkg/apiclient"
	"github.com/tenantgate/tenantgate/pkg/config"
	"github.com/tenantgate/tenantgate/pkg/credstore"
	"github.com/tenantgate/tenantgate/pkg/guard"
	"github.com/tenantgate/tenantgate/pkg/middleware"
	"github.com/tenantgate/tenantgate/pkg/observability"
	"github.com/tenantgate/tenantgate/pkg/roles"
	"github.com/tenantgate/tenantgate/pkg/session"
	"github.com/tenantgate/tenantgate/pkg/tenant"
)

// Gateway holds the wired components of the forward-auth proxy.
type Gateway struct {
	cfg      *config.Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	provider *middleware.SessionProvider
	enforcer *middleware.GuardEnforcer
	limiter  middleware.Limiter

	// public talks to the backend for unauthenticated endpoints (company
	// listing, password reset) and backs the shared tenant directory.
	public    *apiclient.Client
	directory *tenant.Directory
	routes    *tenant.RouteSet
	backend   *url.URL

	db    *sql.DB
	redis *redis.Client
}

// New wires a Gateway from config. The returned Gateway owns no listeners;
// the caller mounts Router() on a server.
func New(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (*Gateway, error) {
	backend, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}

	g := &Gateway{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		backend: backend,
	}

	if err := g.openStoreBackends(); err != nil {
		return nil, err
	}

	g.public = apiclient.New(apiclient.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
		Metrics: metrics,
	}, credstore.NewMemoryStore())
	g.directory = tenant.NewDirectory(g.public, cfg.Tenant.CacheTTL, logger)
	g.routes = tenant.NewRouteSet()

	g.provider = middleware.NewSessionProvider(middleware.SessionConfig{
		CookieName:   cfg.Server.CookieName,
		CookieSecure: cfg.Server.CookieSecure,
		Factory:      g.newManager,
		Logger:       logger,
	})

	policy := config.DefaultPolicy()
	if cfg.PolicyFile != "" {
		policy, err = config.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("loading policy: %w", err)
		}
	}
	g.enforcer = middleware.NewGuardEnforcer(guardConfig(policy), metrics, logger)
	g.routes.SetExtra(policy.ExtraSystemRoutes)

	if g.redis != nil {
		g.limiter = middleware.NewRedisLimiter(g.redis, middleware.LoginRateLimitConfig(), "tenantgate:ratelimit")
	} else {
		g.limiter = middleware.NewMemoryLimiter(middleware.LoginRateLimitConfig())
	}

	return g, nil
}

// openStoreBackends opens the shared DB or Redis connection the per-session
// credential stores hang off.
func (g *Gateway) openStoreBackends() error {
	switch g.cfg.Store.Type {
	case config.StoreSQLite:
		db, err := sql.Open("sqlite3", g.cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		g.db = db
	case config.StorePostgres:
		db, err := sql.Open("postgres", g.cfg.Store.PostgresURL)
		if err != nil {
			return fmt.Errorf("opening postgres store: %w", err)
		}
		g.db = db
	case config.StoreRedis:
		client, err := credstore.NewRedisClient(g.cfg.Store.Redis)
		if err != nil {
			return fmt.Errorf("opening redis store: %w", err)
		}
		g.redis = client
	}
	return nil
}

// newManager builds the per-session credential store, client, resolver and
// manager. All sessions share the tenant directory cache.
func (g *Gateway) newManager(sessionID string) (*session.Manager, error) {
	store, err := g.newStore(sessionID)
	if err != nil {
		return nil, err
	}
	client := apiclient.New(apiclient.Config{
		BaseURL: g.cfg.Backend.BaseURL,
		Timeout: g.cfg.Backend.Timeout,
		Logger:  g.logger,
		Metrics: g.metrics,
	}, store)
	resolver := tenant.NewResolver(store, g.directory, g.logger, g.metrics).WithRoutes(g.routes)
	return session.NewManager(session.Config{
		Store:    store,
		Client:   client,
		Resolver: resolver,
		Logger:   g.logger,
	}), nil
}

func (g *Gateway) newStore(sessionID string) (credstore.Store, error) {
	switch g.cfg.Store.Type {
	case config.StoreMemory:
		return credstore.NewMemoryStore(), nil
	case config.StoreFile:
		return credstore.NewFileStore(filepath.Join(g.cfg.Store.Dir, sessionID+".json"))
	case config.StoreSQLite:
		return credstore.NewSQLStore(g.db, "sqlite3", sessionID)
	case config.StorePostgres:
		return credstore.NewSQLStore(g.db, "postgres", sessionID)
	case config.StoreRedis:
		return credstore.NewRedisStore(g.redis, sessionID, g.cfg.Store.Redis.SessionTTL)
	default:
		return nil, fmt.Errorf("unknown store type %q", g.cfg.Store.Type)
	}
}

// ApplyPolicy installs a (re)loaded access policy.
func (g *Gateway) ApplyPolicy(policy config.Policy) {
	g.enforcer.SetConfig(guardConfig(policy))
	g.routes.SetExtra(policy.ExtraSystemRoutes)
}

// RefreshDirectory rewarms the tenant directory cache. Wired to the cron
// schedule by the daemon.
func (g *Gateway) RefreshDirectory() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := g.directory.Refresh(ctx); err != nil {
		g.logger.WithError(err).Warn("Scheduled tenant directory refresh failed")
	}
}

// HealthChecker reports the gateway's store backends.
func (g *Gateway) HealthChecker() *observability.HealthChecker {
	return observability.NewHealthChecker(g.db, g.redis)
}

// Close releases shared store backends.
func (g *Gateway) Close() error {
	var errs []error
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if g.redis != nil {
		if err := g.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing store backends: %v", errs)
	}
	return nil
}

func guardConfig(policy config.Policy) guard.Config {
	adminRoles := make([]roles.Role, 0, len(policy.AdminRoles))
	for _, r := range policy.AdminRoles {
		adminRoles = append(adminRoles, roles.Normalize(r))
	}
	return guard.Config{
		RestrictSelfService: policy.RestrictSelfService,
		SelfServicePaths:    policy.SelfServicePaths,
		Checker:             roles.NewChecker(adminRoles),
	}
}
