package services

import (
	"context"
	"hash/fnv"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// generationStripes sizes the invalidation counter table. Users that
// share a stripe only cost each other a skipped cache write.
const generationStripes = 256

var _ driven.StatusCache = (*GenerationCache)(nil)

// GenerationCache counts invalidations per user in front of a StatusCache.
// A view computed while an invalidation happened is never left cached
// after it. Counters are process-local.
type GenerationCache struct {
	driven.StatusCache
	gens [generationStripes]atomic.Uint64
}

// TrackGenerations wraps cache. A cache that is already tracked is
// returned as is, so every component sharing it sees the same counters.
func TrackGenerations(cache driven.StatusCache) *GenerationCache {
	if g, ok := cache.(*GenerationCache); ok {
		return g
	}
	return &GenerationCache{StatusCache: cache}
}

func (c *GenerationCache) stripe(userID string) *atomic.Uint64 {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &c.gens[h.Sum32()%generationStripes]
}

// Generation returns the invalidation counter for userID.
func (c *GenerationCache) Generation(userID string) uint64 {
	return c.stripe(userID).Load()
}

// Invalidate bumps the counter before dropping the cached view.
func (c *GenerationCache) Invalidate(ctx context.Context, userID string) error {
	c.stripe(userID).Add(1)
	return c.StatusCache.Invalidate(ctx, userID)
}

// SetIfCurrent stores view unless userID was invalidated after gen was
// read. It reports whether the view was kept. An invalidation that lands
// during the write removes the view again.
func (c *GenerationCache) SetIfCurrent(ctx context.Context, userID string, gen uint64, view domain.StatusMap, ttl time.Duration) (bool, error) {
	if c.Generation(userID) != gen {
		return false, nil
	}
	if err := c.StatusCache.Set(ctx, userID, view, ttl); err != nil {
		return false, err
	}
	if c.Generation(userID) != gen {
		return false, c.StatusCache.Invalidate(ctx, userID)
	}
	return true, nil
}
