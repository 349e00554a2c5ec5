package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven/mocks"
)

func TestGenerationCache_SetIfCurrent(t *testing.T) {
	ctx := context.Background()
	inner := mocks.NewMockStatusCache()
	cache := TrackGenerations(inner)
	view := domain.StatusMap{domain.PlatformSpotify: {Platform: domain.PlatformSpotify}}

	gen := cache.Generation("u1")
	kept, err := cache.SetIfCurrent(ctx, "u1", gen, view, time.Minute)
	require.NoError(t, err)
	assert.True(t, kept)
	assert.True(t, inner.Has("u1"))

	stale := cache.Generation("u1")
	require.NoError(t, cache.Invalidate(ctx, "u1"))
	kept, err = cache.SetIfCurrent(ctx, "u1", stale, view, time.Minute)
	require.NoError(t, err)
	assert.False(t, kept)
	assert.False(t, inner.Has("u1"))
}

func TestGenerationCache_InvalidateDuringWrite(t *testing.T) {
	ctx := context.Background()
	inner := mocks.NewMockStatusCache()
	cache := TrackGenerations(inner)

	gen := cache.Generation("u1")
	inner.SetFn = func(string, domain.StatusMap) error {
		// Counter moves while the write is in flight; the mock lock is
		// held here, so bump without touching the inner cache.
		cache.stripe("u1").Add(1)
		return nil
	}

	kept, err := cache.SetIfCurrent(ctx, "u1", gen, domain.StatusMap{}, time.Minute)
	require.NoError(t, err)
	assert.False(t, kept)
	assert.Equal(t, 1, inner.InvalidateCalls)
}

func TestTrackGenerations_SharesCounters(t *testing.T) {
	inner := mocks.NewMockStatusCache()
	a := TrackGenerations(inner)
	b := TrackGenerations(a)
	assert.Same(t, a, b)

	require.NoError(t, b.Invalidate(context.Background(), "u1"))
	assert.Equal(t, uint64(1), a.Generation("u1"))
}
