package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StatusCache = (*StatusCache)(nil)

const statusPrefix = keyPrefix + "status:"

// StatusCache implements driven.StatusCache with one JSON value per user.
// Entries expire through Redis TTL, so every instance sees the same view
// and an Invalidate on one instance is visible to all of them.
type StatusCache struct {
	client *redis.Client
}

// NewStatusCache creates a new Redis-backed status cache.
func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

// Get returns the cached view for userID. A miss is (nil, false, nil).
func (c *StatusCache) Get(ctx context.Context, userID string) (domain.StatusMap, bool, error) {
	data, err := c.client.Get(ctx, statusPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached status: %w", err)
	}

	var view domain.StatusMap
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached status: %w", err)
	}
	return view, true, nil
}

// Set stores the view for userID until ttl passes.
func (c *StatusCache) Set(ctx context.Context, userID string, view domain.StatusMap, ttl time.Duration) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := c.client.Set(ctx, statusPrefix+userID, data, ttl).Err(); err != nil {
		return fmt.Errorf("set cached status: %w", err)
	}
	return nil
}

// Invalidate drops the cached view for userID. Missing keys are not an error.
func (c *StatusCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, statusPrefix+userID).Err(); err != nil {
		return fmt.Errorf("invalidate cached status: %w", err)
	}
	return nil
}
