package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Refresher drives the token state machine for a single connection:
//
//	connected -> expired, refresh token -> refresh -> connected | needs_reauth
//	connected -> expired, no refresh token -> needs_reauth
//
// Transport failures leave the row token_expired so a later attempt can
// retry. A reconnecting row keeps that status until its callback lands;
// only needs_reauth replaces it. Every attempt invalidates the owner's cached status view.
type Refresher struct {
	connections driven.ConnectionStore
	cache       driven.StatusCache
	registry    driven.ProviderRegistry
	client      driven.ProviderClient
	cipher      driven.SecretCipher
	logger      *slog.Logger
	now         func() time.Time

	flight singleflight.Group
}

// RefresherConfig holds dependencies for a Refresher.
type RefresherConfig struct {
	Connections driven.ConnectionStore
	Cache       driven.StatusCache
	Registry    driven.ProviderRegistry
	Client      driven.ProviderClient
	Cipher      driven.SecretCipher
	Logger      *slog.Logger
	Now         func() time.Time
}

// NewRefresher creates a Refresher.
func NewRefresher(cfg RefresherConfig) *Refresher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Refresher{
		connections: cfg.Connections,
		cache:       cfg.Cache,
		registry:    cfg.Registry,
		client:      cfg.Client,
		cipher:      cfg.Cipher,
		logger:      logger,
		now:         now,
	}
}

// Refresh renews conn's access token and returns the stored result.
//
// Concurrent calls for the same connection within this process share one
// provider request. Across processes the version check decides the
// winner and losers return the winner's row.
//
// Errors: *domain.NeedsReauthError (also ErrRefreshFailed) when the user
// must authorize again; ErrRefreshFailed wrapping ErrProviderUnavailable
// when the provider could not be reached.
func (r *Refresher) Refresh(ctx context.Context, conn *domain.PlatformConnection) (*domain.PlatformConnection, error) {
	key := conn.UserID + "/" + string(conn.Platform)
	v, err, _ := r.flight.Do(key, func() (interface{}, error) {
		return r.refresh(ctx, conn)
	})
	if err != nil {
		return nil, err
	}
	// Callers may mutate the result; give each its own copy.
	out := *v.(*domain.PlatformConnection)
	return &out, nil
}

func (r *Refresher) refresh(ctx context.Context, conn *domain.PlatformConnection) (*domain.PlatformConnection, error) {
	defer r.invalidate(ctx, conn.UserID)

	log := r.logger.With("user_id", conn.UserID, "platform", conn.Platform)

	if !conn.HasRefreshToken() {
		return r.fail(ctx, conn, domain.ConnectionNeedsReauth,
			&domain.NeedsReauthError{Platform: conn.Platform, Reason: "access token expired"})
	}

	provider, err := r.registry.Lookup(conn.Platform)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", conn.Platform, err)
	}

	refreshToken, err := r.cipher.DecryptString(conn.RefreshTokenEncrypted)
	if err != nil {
		log.Warn("stored refresh token unreadable", "error", err)
		return r.fail(ctx, conn, domain.ConnectionNeedsReauth,
			&domain.NeedsReauthError{Platform: conn.Platform, Reason: "stored credentials could not be read"})
	}

	resp, err := r.client.Refresh(ctx, provider, refreshToken)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrProviderUnavailable):
		log.Warn("token refresh deferred, provider unavailable", "error", err)
		status := domain.ConnectionTokenExpired
		if !conn.TokenExpired(r.now()) || conn.Status == domain.ConnectionReconnecting {
			status = conn.Status
		}
		return r.fail(ctx, conn, status, err)
	default:
		log.Info("token refresh rejected", "error", err)
		return r.fail(ctx, conn, domain.ConnectionNeedsReauth,
			&domain.NeedsReauthError{Platform: conn.Platform, Reason: "refresh was rejected"})
	}

	updated := *conn
	if updated.AccessTokenEncrypted, err = r.cipher.EncryptString(resp.AccessToken); err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	if resp.RefreshToken != "" {
		if updated.RefreshTokenEncrypted, err = r.cipher.EncryptString(resp.RefreshToken); err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
	}
	if resp.TokenType != "" {
		updated.TokenType = resp.TokenType
	}
	if len(resp.Scopes) > 0 {
		updated.Scopes = resp.Scopes
	}
	updated.TokenExpiresAt = resp.ExpiresAt(r.now())
	updated.Status = refreshedStatus(conn.Status)
	updated.LastError = ""

	stored, err := r.store(ctx, conn, &updated)
	if err != nil {
		return nil, err
	}

	log.Info("token refreshed", "rotated", resp.RefreshToken != "", "version", stored.Version)
	return stored, nil
}

// sameTokens reports whether a and b carry the same stored credentials.
func sameTokens(a, b *domain.PlatformConnection) bool {
	return bytes.Equal(a.AccessTokenEncrypted, b.AccessTokenEncrypted) &&
		bytes.Equal(a.RefreshTokenEncrypted, b.RefreshTokenEncrypted)
}

// refreshedStatus is the row status after a successful refresh. A
// reconnecting row stays reconnecting until its callback resolves it.
func refreshedStatus(prev domain.ConnectionStatus) domain.ConnectionStatus {
	if prev == domain.ConnectionReconnecting {
		return prev
	}
	return domain.ConnectionConnected
}

// maxStoreAttempts bounds how often refreshed tokens are re-applied to a
// row that keeps changing underneath the refresh.
const maxStoreAttempts = 3

// store writes refreshed over the row that base was read from.
//
// A version conflict where the row still holds the tokens that were just
// spent means another writer only touched status fields. The new tokens
// are then copied onto the current row and written again, so a rotated
// refresh token survives. A conflict with a token write defers to the row
// the other writer left.
func (r *Refresher) store(ctx context.Context, base, refreshed *domain.PlatformConnection) (*domain.PlatformConnection, error) {
	expected := base.Version

	for attempt := 1; ; attempt++ {
		err := r.connections.Update(ctx, refreshed, expected)
		if err == nil {
			return refreshed, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("store refreshed token: %w", err)
		}

		current, err := r.reload(ctx, base)
		if err != nil {
			return nil, err
		}
		if attempt >= maxStoreAttempts || !sameTokens(current, base) {
			return r.usable(current)
		}

		next := *current
		next.AccessTokenEncrypted = refreshed.AccessTokenEncrypted
		next.RefreshTokenEncrypted = refreshed.RefreshTokenEncrypted
		next.TokenType = refreshed.TokenType
		next.Scopes = refreshed.Scopes
		next.TokenExpiresAt = refreshed.TokenExpiresAt
		next.Status = refreshedStatus(current.Status)
		next.LastError = ""

		r.logger.Debug("reapplying refreshed token over concurrent write",
			"user_id", base.UserID,
			"platform", base.Platform,
			"version", current.Version,
		)
		refreshed = &next
		expected = current.Version
	}
}

// fail records status on the row and returns cause wrapped in
// ErrRefreshFailed. If another writer changed the row first and left it
// usable, that row is returned instead.
func (r *Refresher) fail(ctx context.Context, conn *domain.PlatformConnection, status domain.ConnectionStatus, cause error) (*domain.PlatformConnection, error) {
	failed := *conn
	failed.Status = status
	failed.LastError = cause.Error()

	err := r.connections.Update(ctx, &failed, conn.Version)
	if errors.Is(err, domain.ErrConflict) {
		if won, werr := r.winner(ctx, conn); werr == nil {
			return won, nil
		}
	} else if err != nil {
		r.logger.Error("failed to record refresh failure",
			"user_id", conn.UserID,
			"platform", conn.Platform,
			"error", err,
		)
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrRefreshFailed, cause)
}

// winner re-reads a row that changed under us and accepts it when it
// holds a usable token.
func (r *Refresher) winner(ctx context.Context, conn *domain.PlatformConnection) (*domain.PlatformConnection, error) {
	current, err := r.reload(ctx, conn)
	if err != nil {
		return nil, err
	}
	return r.usable(current)
}

func (r *Refresher) reload(ctx context.Context, conn *domain.PlatformConnection) (*domain.PlatformConnection, error) {
	current, err := r.connections.Get(ctx, conn.UserID, conn.Platform)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.NeedsReauthError{Platform: conn.Platform, Reason: "connection was removed"}
	}
	if err != nil {
		return nil, fmt.Errorf("reload connection: %w", err)
	}
	return current, nil
}

// usable accepts a row that can serve requests: connected, or
// reconnecting over a token that still works.
func (r *Refresher) usable(current *domain.PlatformConnection) (*domain.PlatformConnection, error) {
	switch current.Status {
	case domain.ConnectionConnected, domain.ConnectionReconnecting:
		if !current.TokenExpired(r.now()) {
			return current, nil
		}
	}
	return nil, fmt.Errorf("%w: concurrent update left %s", domain.ErrConflict, current.Status)
}

func (r *Refresher) invalidate(ctx context.Context, userID string) {
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		r.logger.Warn("failed to invalidate status cache", "user_id", userID, "error", err)
	}
}
