// Package cache memoizes wind-field generation by scenario fingerprint.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/storm-data-windfield/internal/domain"
	"github.com/couchcryptid/storm-data-windfield/internal/observability"
)

// CachedGenerator wraps a FieldGenerator with an in-memory expiring LRU.
// Generation is deterministic, so a cached field is returned as-is for any
// scenario with the same fingerprint. Callers must not modify returned fields.
type CachedGenerator struct {
	inner   domain.FieldGenerator
	cache   *expirable.LRU[string, *domain.WindField3D]
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedGenerator creates a cache decorator holding up to maxEntries
// fields for ttl each. A ttl of zero keeps entries until they are evicted.
func NewCachedGenerator(inner domain.FieldGenerator, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedGenerator {
	return &CachedGenerator{
		inner:   inner,
		cache:   expirable.NewLRU[string, *domain.WindField3D](maxEntries, nil, ttl),
		metrics: metrics,
	}
}

// Generate returns the cached field for s or builds it once. Concurrent
// requests for the same fingerprint share a single build. Failed builds are
// not cached.
func (c *CachedGenerator) Generate(ctx context.Context, s domain.Scenario) (*domain.WindField3D, error) {
	key := s.Fingerprint()
	if f, ok := c.cache.Get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return f, nil
	}
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		if f, ok := c.cache.Get(key); ok {
			return f, nil
		}
		f, err := c.inner.Generate(ctx, s)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, f)
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.WindField3D), nil
}

// Len returns the number of cached fields.
func (c *CachedGenerator) Len() int { return c.cache.Len() }

// Purge drops every cached field.
func (c *CachedGenerator) Purge() { c.cache.Purge() }
