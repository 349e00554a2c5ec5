package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

func TestGetConnectionStatus_CachedReadIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "u1", domain.PlatformSpotify, "at", "rt", time.Hour)
	h.seed(t, "u1", domain.PlatformGitHub, "gh", "", 0)

	first, err := h.svc.GetConnectionStatus(ctx, "u1")
	require.NoError(t, err)
	second, err := h.svc.GetConnectionStatus(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.conns.ListByUserCalls, "second read served from cache")

	spotify := first[domain.PlatformSpotify]
	assert.True(t, spotify.Connected)
	assert.True(t, spotify.IsActive)
	assert.Equal(t, domain.ViewSuccess, spotify.Status)
}

func TestGetConnectionStatus_UnknownUser(t *testing.T) {
	h := newHarness(t)

	view, err := h.svc.GetConnectionStatus(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, view)

	_, err = h.svc.GetConnectionStatus(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetConnectionStatus_RefreshesExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "u1", domain.PlatformSpotify, "at", "rt", -time.Minute)
	h.client.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResponse, error) {
		return &domain.TokenResponse{AccessToken: "at-2", ExpiresIn: time.Hour}, nil
	}

	view, err := h.svc.GetConnectionStatus(ctx, "u1")
	require.NoError(t, err)

	entry := view[domain.PlatformSpotify]
	assert.True(t, entry.IsActive)
	assert.False(t, entry.TokenExpired)
	assert.Equal(t, domain.ViewSuccess, entry.Status)
	assert.Equal(t, 1, h.client.Refreshes())
	assert.Equal(t, "at-2", h.decrypt(t, h.stored(t, "u1", domain.PlatformSpotify).AccessTokenEncrypted))

	_, err = h.svc.GetConnectionStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, h.client.Refreshes(), "cached view does not refresh again")
}

func TestGetConnectionStatus_RefreshRejected(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u1", domain.PlatformSpotify, "at", "rt", -time.Minute)
	h.client.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResponse, error) {
		return nil, &domain.TokenExchangeError{Platform: domain.PlatformSpotify, StatusCode: 400, Code: "invalid_grant"}
	}

	view, err := h.svc.GetConnectionStatus(context.Background(), "u1")
	require.NoError(t, err)

	entry := view[domain.PlatformSpotify]
	assert.Equal(t, domain.ViewNeedsReauth, entry.Status)
	assert.False(t, entry.IsActive)
	assert.Contains(t, entry.Message, "reconnect your account")
	assert.Equal(t, domain.ConnectionNeedsReauth, h.stored(t, "u1", domain.PlatformSpotify).Status)
	assert.Equal(t, 1, h.client.Refreshes())
}

func TestGetConnectionStatus_ProviderUnavailable(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u1", domain.PlatformSpotify, "at", "rt", -time.Minute)
	h.client.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResponse, error) {
		return nil, domain.ErrProviderUnavailable
	}

	view, err := h.svc.GetConnectionStatus(context.Background(), "u1")
	require.NoError(t, err)

	entry := view[domain.PlatformSpotify]
	assert.Equal(t, domain.ViewTokenExpired, entry.Status)
	assert.True(t, entry.TokenExpired)
	assert.Equal(t, domain.ConnectionTokenExpired, h.stored(t, "u1", domain.PlatformSpotify).Status)
}

func TestGetConnectionStatus_NoRefreshToken(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u1", domain.PlatformGitHub, "gh", "", -time.Minute)

	view, err := h.svc.GetConnectionStatus(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, domain.ViewNeedsReauth, view[domain.PlatformGitHub].Status)
	assert.Equal(t, 0, h.client.Refreshes())
	assert.Equal(t, domain.ConnectionNeedsReauth, h.stored(t, "u1", domain.PlatformGitHub).Status)
}

func TestGetConnectionStatus_SkipsRowsAwaitingReauth(t *testing.T) {
	h := newHarness(t)
	conn := h.seed(t, "u1", domain.PlatformSpotify, "at", "rt", -time.Minute)
	conn.Status = domain.ConnectionNeedsReauth
	conn.LastError = "refresh was rejected"
	h.conns.Put(conn)

	view, err := h.svc.GetConnectionStatus(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, domain.ViewNeedsReauth, view[domain.PlatformSpotify].Status)
	assert.Equal(t, 0, h.client.Refreshes())
}

func TestGetConnectionStatus_OneBadPlatformDoesNotFailOthers(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u1", domain.PlatformSpotify, "at", "rt", -time.Minute)
	h.seed(t, "u1", domain.PlatformFitbit, "fit", "fit-rt", time.Hour)
	h.client.RefreshFn = func(*domain.ProviderConfig, string) (*domain.TokenResponse, error) {
		return nil, errors.New("unexpected token response")
	}

	view, err := h.svc.GetConnectionStatus(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, view, 2)
	assert.Equal(t, domain.ViewNeedsReauth, view[domain.PlatformSpotify].Status)
	assert.Equal(t, domain.ViewSuccess, view[domain.PlatformFitbit].Status)
}

func TestGetConnectionStatus_RefreshKeepsReconnecting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "u1", domain.PlatformSpotify, "at", "rt", -time.Minute)
	begin(t, h, "u1", domain.PlatformSpotify)

	view, err := h.svc.GetConnectionStatus(ctx, "u1")
	require.NoError(t, err)

	entry := view[domain.PlatformSpotify]
	assert.Equal(t, domain.ViewReconnecting, entry.Status)
	assert.True(t, entry.IsActive)
	assert.Equal(t, 1, h.client.Refreshes())
	assert.Equal(t, domain.ConnectionReconnecting, h.stored(t, "u1", domain.PlatformSpotify).Status)
}

func TestGetConnectionStatus_DisconnectDuringReadIsNotCached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "u1", domain.PlatformSpotify, "at", "rt", time.Hour)
	h.seed(t, "u1", domain.PlatformGitHub, "gh", "", 0)

	h.conns.ListByUserFn = func(userID string) ([]*domain.PlatformConnection, error) {
		rows := []*domain.PlatformConnection{
			h.stored(t, userID, domain.PlatformSpotify),
			h.stored(t, userID, domain.PlatformGitHub),
		}
		assert.NoError(t, h.svc.Disconnect(ctx, userID, domain.PlatformSpotify))
		return rows, nil
	}

	stale, err := h.svc.GetConnectionStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Contains(t, stale, domain.PlatformSpotify, "read started before the disconnect")
	assert.False(t, h.cache.Has("u1"))

	h.conns.ListByUserFn = nil
	view, err := h.svc.GetConnectionStatus(ctx, "u1")
	require.NoError(t, err)
	assert.NotContains(t, view, domain.PlatformSpotify)
	assert.Contains(t, view, domain.PlatformGitHub)
}

func TestGetConnectionStatus_FatalErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("store", func(t *testing.T) {
		h := newHarness(t)
		h.conns.ListByUserFn = func(string) ([]*domain.PlatformConnection, error) {
			return nil, errors.New("db down")
		}
		_, err := h.svc.GetConnectionStatus(ctx, "u1")
		assert.Error(t, err)
	})

	t.Run("cache read", func(t *testing.T) {
		h := newHarness(t)
		h.cache.GetFn = func(string) (domain.StatusMap, bool, error) {
			return nil, false, errors.New("redis down")
		}
		_, err := h.svc.GetConnectionStatus(ctx, "u1")
		assert.Error(t, err)
		assert.Equal(t, 0, h.conns.ListByUserCalls)
	})

	t.Run("cache write", func(t *testing.T) {
		h := newHarness(t)
		h.cache.SetFn = func(string, domain.StatusMap) error {
			return errors.New("redis down")
		}
		_, err := h.svc.GetConnectionStatus(ctx, "u1")
		assert.Error(t, err)
	})
}

func TestBuildStatusView(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name       string
		status     domain.ConnectionStatus
		sync       domain.SyncStatus
		expiresAt  *time.Time
		wantStatus domain.ViewStatus
		wantActive bool
		wantConn   bool
	}{
		{"connected synced", domain.ConnectionConnected, domain.SyncSuccess, &future, domain.ViewSuccess, true, true},
		{"connected sync failed", domain.ConnectionConnected, domain.SyncFailed, &future, domain.ViewFailed, true, true},
		{"connected sync pending", domain.ConnectionConnected, domain.SyncPending, nil, domain.ViewPending, true, true},
		{"connected sync unknown", domain.ConnectionConnected, domain.SyncUnknown, nil, domain.ViewPending, true, true},
		{"expired flag beats sync", domain.ConnectionConnected, domain.SyncSuccess, &past, domain.ViewTokenExpired, false, true},
		{"needs reauth beats expiry", domain.ConnectionNeedsReauth, domain.SyncSuccess, &past, domain.ViewNeedsReauth, false, false},
		{"token expired row", domain.ConnectionTokenExpired, domain.SyncSuccess, &future, domain.ViewTokenExpired, false, false},
		{"reconnecting", domain.ConnectionReconnecting, domain.SyncSuccess, &future, domain.ViewReconnecting, true, true},
		{"reconnecting expired", domain.ConnectionReconnecting, domain.SyncSuccess, &past, domain.ViewTokenExpired, false, true},
		{"disconnected", domain.ConnectionDisconnected, domain.SyncSuccess, nil, domain.ViewDisconnected, false, false},
		{"pending", domain.ConnectionPending, domain.SyncSuccess, nil, domain.ViewPending, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &domain.PlatformConnection{
				Platform:       domain.PlatformSpotify,
				Status:         tt.status,
				LastSyncStatus: tt.sync,
				TokenExpiresAt: tt.expiresAt,
				ConnectedAt:    now.Add(-time.Hour),
			}
			v := BuildStatusView(conn, now, "")
			assert.Equal(t, tt.wantStatus, v.Status)
			assert.Equal(t, tt.wantActive, v.IsActive)
			assert.Equal(t, tt.wantConn, v.Connected)
			assert.Equal(t, tt.status, v.ConnectionStatus)
		})
	}
}
