package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// StatusCache holds computed status views per user with a TTL.
// It is never a source of truth for token usability.
type StatusCache interface {
	// Get returns the cached map and true, or false on a miss.
	Get(ctx context.Context, userID string) (domain.StatusMap, bool, error)

	// Set stores the map for ttl.
	Set(ctx context.Context, userID string, view domain.StatusMap, ttl time.Duration) error

	// Invalidate drops the cached map for the user.
	Invalidate(ctx context.Context, userID string) error
}
