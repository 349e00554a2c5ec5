package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storetest"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

func TestStateStore(t *testing.T) {
	storetest.RunStateStoreTests(t, func(t *testing.T) driven.AuthorizationStateStore {
		client, _ := setupTestRedis(t)
		return NewStateStore(client)
	})
}

func TestStateStore_KeyExpiresAfterRetention(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewStateStore(client)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st := &domain.AuthorizationState{
		StateID:   "state-1",
		UserID:    "user-1",
		Platform:  domain.PlatformSpotify,
		CreatedAt: created,
		ExpiresAt: created.Add(domain.DefaultStateWindow),
	}
	require.NoError(t, store.Save(ctx, st))
	assert.Equal(t, domain.DefaultStateWindow+stateRetention, mr.TTL(statePrefix+"state-1"))

	got, err := store.Consume(ctx, "state-1", created.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.True(t, got.CreatedAt.Equal(created))
	require.NotNil(t, got.UsedAt)
	assert.True(t, got.UsedAt.Equal(created.Add(time.Minute)))

	mr.FastForward(domain.DefaultStateWindow + stateRetention + time.Second)

	_, err = store.Consume(ctx, "state-1", created.Add(2*time.Minute))
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}
