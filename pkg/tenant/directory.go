package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tenantgate/tenantgate/pkg/apiclient"
	"github.com/tenantgate/tenantgate/pkg/observability"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

// CompanyLister lists the known tenants. *apiclient.Client satisfies it.
type CompanyLister interface {
	Companies(ctx context.Context) ([]apiclient.Company, error)
}

// Directory answers "does this tenant slug exist" against the backend's
// company list, caching answers with a TTL so page navigation does not
// hammer the companies endpoint.
type Directory struct {
	lister CompanyLister
	logger *observability.Logger

	mu    sync.Mutex
	cache *expirable.LRU[string, bool]
}

// NewDirectory creates a Directory. A non-positive ttl selects the default.
func NewDirectory(lister CompanyLister, ttl time.Duration, logger *observability.Logger) *Directory {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = observability.NewDefaultLogger()
	}
	return &Directory{
		lister: lister,
		logger: logger,
		cache:  expirable.NewLRU[string, bool](defaultCacheSize, nil, ttl),
	}
}

// Exists reports whether the slug names a known tenant. Cache misses fetch
// the full company list and warm every listed slug.
func (d *Directory) Exists(ctx context.Context, slug string) (bool, error) {
	if exists, ok := d.cache.Get(slug); ok {
		return exists, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Another caller may have warmed the cache while we waited.
	if exists, ok := d.cache.Get(slug); ok {
		return exists, nil
	}

	if err := d.refreshLocked(ctx); err != nil {
		return false, err
	}
	exists, ok := d.cache.Get(slug)
	if !ok {
		// Not in the directory. Cache the negative answer so repeated
		// requests for a bad slug stay cheap.
		d.cache.Add(slug, false)
		return false, nil
	}
	return exists, nil
}

// Refresh refetches the company list and rewarms the cache. It is called
// on a schedule so validation answers stay warm between requests.
func (d *Directory) Refresh(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshLocked(ctx)
}

func (d *Directory) refreshLocked(ctx context.Context) error {
	companies, err := d.lister.Companies(ctx)
	if err != nil {
		return fmt.Errorf("listing companies: %w", err)
	}
	for _, company := range companies {
		d.cache.Add(company.Slug, true)
	}
	d.logger.WithField("companies", len(companies)).Debug("Tenant directory refreshed")
	return nil
}
