package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// AuthorizationStateStore persists in-flight authorization attempts.
// States are single-use and expire after a fixed window.
type AuthorizationStateStore interface {
	// Save stores a new state with Used=false.
	Save(ctx context.Context, state *domain.AuthorizationState) error

	// Consume atomically marks the state used if it is unused and not
	// expired at now, returning the record. The mark is a single
	// conditional write so that exactly one of several concurrent callers
	// succeeds. Failures are ErrStateNotFound, ErrStateReplay or
	// ErrStateExpired.
	Consume(ctx context.Context, stateID string, now time.Time) (*domain.AuthorizationState, error)

	// Cleanup removes states that expired before now and returns how many
	// were deleted.
	Cleanup(ctx context.Context, now time.Time) (int64, error)
}
