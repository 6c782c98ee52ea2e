package orgs

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/observability"
)

// CachedService fronts a Service with an expiring LRU of found
// organizations. Misses are never cached, so a newly created organization
// is visible immediately.
type CachedService struct {
	Service
	cache   *lru.LRU[string, *Organization]
	metrics *observability.Metrics
}

// NewCachedService wraps svc. size is the maximum number of cached
// organizations and ttl bounds how long a suspension can go unnoticed.
func NewCachedService(svc Service, size int, ttl time.Duration, metrics *observability.Metrics) *CachedService {
	if size < 10 {
		size = 10
	}
	return &CachedService{
		Service: svc,
		cache:   lru.NewLRU[string, *Organization](size, nil, ttl),
		metrics: metrics,
	}
}

// GetOrganization serves from the cache when possible.
func (c *CachedService) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	if org, ok := c.cache.Get(id); ok {
		c.metrics.RecordCacheLookup("organizations", true)
		cp := *org
		return &cp, nil
	}
	c.metrics.RecordCacheLookup("organizations", false)

	org, err := c.Service.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *org
	c.cache.Add(id, &cp)
	return org, nil
}

// CreateOrganization creates through the wrapped service and primes the cache.
func (c *CachedService) CreateOrganization(ctx context.Context, req *CreateOrgRequest) (*Organization, *billing.Wallet, error) {
	org, wallet, err := c.Service.CreateOrganization(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	cp := *org
	c.cache.Add(org.ID, &cp)
	return org, wallet, nil
}

// Exists consults the cache before the wrapped service.
func (c *CachedService) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, c, id)
}

// Invalidate drops id from the cache.
func (c *CachedService) Invalidate(id string) {
	c.cache.Remove(id)
}
