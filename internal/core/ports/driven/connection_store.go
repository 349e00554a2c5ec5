package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// ConnectionStore persists one PlatformConnection per (user, platform).
type ConnectionStore interface {
	// Upsert inserts or replaces the connection for conn.UserID/conn.Platform.
	// On return conn.ID and conn.Version reflect the stored row.
	Upsert(ctx context.Context, conn *domain.PlatformConnection) error

	// Get returns the connection or ErrNotFound.
	Get(ctx context.Context, userID string, platform domain.Platform) (*domain.PlatformConnection, error)

	// ListByUser returns every connection for the user.
	ListByUser(ctx context.Context, userID string) ([]*domain.PlatformConnection, error)

	// ListExpiring returns refreshable connections whose token expires
	// before the given time, oldest expiry first.
	ListExpiring(ctx context.Context, before time.Time, limit int) ([]*domain.PlatformConnection, error)

	// Update writes the token, status and error fields of conn if the
	// stored version equals expectedVersion. Returns ErrConflict when
	// another writer got there first and ErrNotFound if the row is gone.
	// On success conn.Version is incremented.
	Update(ctx context.Context, conn *domain.PlatformConnection, expectedVersion int64) error

	// SetStatus unconditionally updates status and last error.
	SetStatus(ctx context.Context, userID string, platform domain.Platform, status domain.ConnectionStatus, lastError string) error

	// TouchLastUsed stamps the time a token was last borrowed.
	TouchLastUsed(ctx context.Context, userID string, platform domain.Platform, at time.Time) error

	// RecordSync stores the outcome of a data sync.
	RecordSync(ctx context.Context, userID string, platform domain.Platform, status domain.SyncStatus, at time.Time) error

	// Delete removes the connection. Returns ErrNotFound if absent.
	Delete(ctx context.Context, userID string, platform domain.Platform) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
