package metrics

import (
	"context"
	"time"

	"github.com/Prateekbala/workflow-test/internal/cache"
)

// GaugeSource provides the count queries behind the gauge metrics
type GaugeSource interface {
	CountZapsByStatus(status string) (int64, error)
	CountLinkedTokens() (int64, error)
}

// GaugeCache feeds gauge updates through a cache so periodic updates do not
// hammer the store in multi-instance deployments. The cache TTL should match
// the update interval.
type GaugeCache struct {
	source GaugeSource
	cache  cache.Cache[int64]
}

// NewGaugeCache creates a cache-backed gauge source
func NewGaugeCache(source GaugeSource, c cache.Cache[int64]) *GaugeCache {
	return &GaugeCache{source: source, cache: c}
}

// ZapCount returns the number of zaps in the given status
func (g *GaugeCache) ZapCount(ctx context.Context, status string, ttl time.Duration) (int64, error) {
	return cache.GetWithFetch(ctx, g.cache, "zaps:"+status, ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return g.source.CountZapsByStatus(status)
		})
}

// LinkedTokenCount returns the number of stored provider tokens
func (g *GaugeCache) LinkedTokenCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return cache.GetWithFetch(ctx, g.cache, "linked_tokens", ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return g.source.CountLinkedTokens()
		})
}
