// Package memory holds in-process adapters for single-instance deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StatusCache = (*StatusCache)(nil)

// DefaultCacheSize bounds the number of users held in memory.
const DefaultCacheSize = 10_000

type cacheEntry struct {
	view      domain.StatusMap
	expiresAt time.Time
}

// StatusCache is a bounded LRU of per-user status views. The LRU evicts
// after maxTTL; each entry also carries the TTL it was stored with.
type StatusCache struct {
	lru *expirable.LRU[string, cacheEntry]

	mu  sync.RWMutex
	now func() time.Time
}

// NewStatusCache creates a cache holding up to size users for at most maxTTL.
func NewStatusCache(size int, maxTTL time.Duration) *StatusCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &StatusCache{
		lru: expirable.NewLRU[string, cacheEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

// SetClock replaces the clock used for per-entry expiry.
func (c *StatusCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *StatusCache) clock() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now()
}

// Get returns a copy of the cached view for userID.
func (c *StatusCache) Get(_ context.Context, userID string) (domain.StatusMap, bool, error) {
	entry, ok := c.lru.Get(userID)
	if !ok {
		return nil, false, nil
	}
	if !c.clock().Before(entry.expiresAt) {
		c.lru.Remove(userID)
		return nil, false, nil
	}
	return copyView(entry.view), true, nil
}

// Set stores a copy of view until ttl passes.
func (c *StatusCache) Set(_ context.Context, userID string, view domain.StatusMap, ttl time.Duration) error {
	c.lru.Add(userID, cacheEntry{
		view:      copyView(view),
		expiresAt: c.clock().Add(ttl),
	})
	return nil
}

// Invalidate drops the cached view for userID.
func (c *StatusCache) Invalidate(_ context.Context, userID string) error {
	c.lru.Remove(userID)
	return nil
}

// Len returns the number of cached users.
func (c *StatusCache) Len() int {
	return c.lru.Len()
}

func copyView(view domain.StatusMap) domain.StatusMap {
	if view == nil {
		return nil
	}
	out := make(domain.StatusMap, len(view))
	for k, v := range view {
		out[k] = v
	}
	return out
}
