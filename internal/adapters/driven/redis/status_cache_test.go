package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

func TestStatusCache_SetGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewStatusCache(client)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	connectedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	view := domain.StatusMap{
		domain.PlatformSpotify: {
			Platform:         domain.PlatformSpotify,
			Connected:        true,
			IsActive:         true,
			Status:           domain.ViewSuccess,
			ConnectionStatus: domain.ConnectionConnected,
			ConnectedAt:      &connectedAt,
			Scopes:           []string{"user-read-email"},
		},
		domain.PlatformGitHub: {
			Platform:         domain.PlatformGitHub,
			Status:           domain.ViewNeedsReauth,
			ConnectionStatus: domain.ConnectionNeedsReauth,
			Message:          "reconnect your account",
		},
	}
	require.NoError(t, cache.Set(ctx, "user-1", view, time.Minute))

	got, ok, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, domain.ViewSuccess, got[domain.PlatformSpotify].Status)
	assert.True(t, got[domain.PlatformSpotify].ConnectedAt.Equal(connectedAt))
	assert.Equal(t, "reconnect your account", got[domain.PlatformGitHub].Message)
}

func TestStatusCache_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewStatusCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", domain.StatusMap{}, 3*time.Minute))
	assert.Equal(t, 3*time.Minute, mr.TTL(statusPrefix+"user-1"))

	mr.FastForward(3*time.Minute + time.Second)

	_, ok, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusCache_Invalidate(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewStatusCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", domain.StatusMap{}, time.Minute))
	require.NoError(t, cache.Set(ctx, "user-2", domain.StatusMap{}, time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "user-1"))

	_, ok, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = cache.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, ok, "other users untouched")

	assert.NoError(t, cache.Invalidate(ctx, "nobody"))
}

func TestStatusCache_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewStatusCache(client)

	require.NoError(t, mr.Set(statusPrefix+"user-1", "{not json"))

	_, _, err := cache.Get(context.Background(), "user-1")
	assert.Error(t, err)
}
