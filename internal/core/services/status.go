package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// DefaultStatusCacheTTL bounds how stale a cached status view can be.
const DefaultStatusCacheTTL = 3 * time.Minute

// StatusAggregator computes and caches per-user connection status.
// Problems with one platform degrade that platform's entry; only a store
// or cache failure fails the whole call.
type StatusAggregator struct {
	connections driven.ConnectionStore
	cache       *GenerationCache
	refresher   *Refresher
	ttl         time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// StatusAggregatorConfig holds dependencies for a StatusAggregator.
type StatusAggregatorConfig struct {
	Connections driven.ConnectionStore
	Cache       driven.StatusCache
	Refresher   *Refresher
	TTL         time.Duration // default DefaultStatusCacheTTL
	Logger      *slog.Logger
	Now         func() time.Time
}

// NewStatusAggregator creates a StatusAggregator.
func NewStatusAggregator(cfg StatusAggregatorConfig) *StatusAggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultStatusCacheTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &StatusAggregator{
		connections: cfg.Connections,
		cache:       TrackGenerations(cfg.Cache),
		refresher:   cfg.Refresher,
		ttl:         ttl,
		logger:      logger,
		now:         now,
	}
}

// Get returns the status view for userID, from cache when present.
// Expired tokens are refreshed before their entry is built, so no entry
// reports connected over a token that could have been refreshed.
//
// A view built while the user's cache entry was invalidated is returned
// but not cached; that includes invalidations from its own refreshes.
func (a *StatusAggregator) Get(ctx context.Context, userID string) (domain.StatusMap, error) {
	if view, ok, err := a.cache.Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("read status cache: %w", err)
	} else if ok {
		return view, nil
	}

	gen := a.cache.Generation(userID)
	conns, err := a.connections.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	view := make(domain.StatusMap, len(conns))
	for _, conn := range conns {
		view[conn.Platform] = a.resolve(ctx, conn)
	}

	kept, err := a.cache.SetIfCurrent(ctx, userID, gen, view, a.ttl)
	if err != nil {
		return nil, fmt.Errorf("write status cache: %w", err)
	}
	if !kept {
		a.logger.Debug("status view not cached, invalidated while building", "user_id", userID)
	}
	return view, nil
}

// resolve builds one platform entry, refreshing first when the token has
// expired and the row is not already waiting for reauthorization.
func (a *StatusAggregator) resolve(ctx context.Context, conn *domain.PlatformConnection) domain.StatusView {
	now := a.now()
	message := ""

	if conn.TokenExpired(now) && refreshable(conn.Status) {
		refreshed, err := a.refresher.Refresh(ctx, conn)
		switch {
		case err == nil:
			conn = refreshed
		case errors.Is(err, domain.ErrNeedsReauth):
			conn.Status = domain.ConnectionNeedsReauth
			message = err.Error()
		default:
			a.logger.Warn("status refresh failed",
				"user_id", conn.UserID,
				"platform", conn.Platform,
				"error", err,
			)
			conn.Status = domain.ConnectionTokenExpired
			message = "token refresh failed, will retry"
		}
	}

	return BuildStatusView(conn, now, message)
}

// refreshable reports whether a row in status may be refreshed.
func refreshable(status domain.ConnectionStatus) bool {
	switch status {
	case domain.ConnectionNeedsReauth, domain.ConnectionDisconnected, domain.ConnectionPending:
		return false
	}
	return true
}

// BuildStatusView derives the consumer-facing view of a stored row.
//
// Precedence: an explicit needs_reauth or token_expired row status wins
// over the computed expiry flag, which wins over the sync status. A
// connected row with a live token reports its last sync outcome.
func BuildStatusView(conn *domain.PlatformConnection, now time.Time, message string) domain.StatusView {
	tokenExpired := conn.TokenExpired(now)
	connected := conn.Status == domain.ConnectionConnected || conn.Status == domain.ConnectionReconnecting

	connectedAt := conn.ConnectedAt
	v := domain.StatusView{
		Platform:         conn.Platform,
		Connected:        connected,
		IsActive:         connected && !tokenExpired,
		TokenExpired:     tokenExpired,
		ConnectionStatus: conn.Status,
		ConnectedAt:      &connectedAt,
		LastSync:         conn.LastSyncAt,
		ExpiresAt:        conn.TokenExpiresAt,
		Scopes:           conn.Scopes,
		Message:          message,
	}

	switch {
	case conn.Status == domain.ConnectionNeedsReauth:
		v.Status = domain.ViewNeedsReauth
		if v.Message == "" {
			v.Message = (&domain.NeedsReauthError{Platform: conn.Platform}).Error()
		}
	case conn.Status == domain.ConnectionTokenExpired:
		v.Status = domain.ViewTokenExpired
	case tokenExpired:
		v.Status = domain.ViewTokenExpired
	case conn.Status == domain.ConnectionDisconnected:
		v.Status = domain.ViewDisconnected
	case conn.Status == domain.ConnectionReconnecting:
		v.Status = domain.ViewReconnecting
	case conn.Status == domain.ConnectionPending:
		v.Status = domain.ViewPending
	default:
		switch conn.LastSyncStatus {
		case domain.SyncSuccess:
			v.Status = domain.ViewSuccess
		case domain.SyncFailed:
			v.Status = domain.ViewFailed
		default:
			v.Status = domain.ViewPending
		}
	}
	return v
}
