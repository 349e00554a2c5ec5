// Package storetest holds behavioral tests shared by every persistence
// backend, so each adapter proves the same atomicity guarantees.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// base is a fixed instant; backends store at least microsecond precision.
var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newState(userID string, platform domain.Platform, expiresAt time.Time) *domain.AuthorizationState {
	return &domain.AuthorizationState{
		StateID:               uuid.NewString(),
		UserID:                userID,
		Platform:              platform,
		CodeVerifierEncrypted: []byte{0x01, 0x02, 0x03},
		RedirectURI:           "https://app.test/api/v1/oauth/callback",
		CreatedAt:             expiresAt.Add(-domain.DefaultStateWindow),
		ExpiresAt:             expiresAt,
	}
}

// RunStateStoreTests exercises an AuthorizationStateStore.
func RunStateStoreTests(t *testing.T, newStore func(t *testing.T) driven.AuthorizationStateStore) {
	ctx := context.Background()

	t.Run("consume exactly once", func(t *testing.T) {
		store := newStore(t)
		st := newState("u1", domain.PlatformSpotify, base.Add(domain.DefaultStateWindow))
		require.NoError(t, store.Save(ctx, st))

		got, err := store.Consume(ctx, st.StateID, base)
		require.NoError(t, err)
		assert.Equal(t, st.UserID, got.UserID)
		assert.Equal(t, st.Platform, got.Platform)
		assert.Equal(t, st.RedirectURI, got.RedirectURI)
		assert.Equal(t, st.CodeVerifierEncrypted, got.CodeVerifierEncrypted)
		assert.True(t, got.Used)

		_, err = store.Consume(ctx, st.StateID, base.Add(time.Second))
		assert.ErrorIs(t, err, domain.ErrStateReplay)
	})

	t.Run("expired on first use", func(t *testing.T) {
		store := newStore(t)
		st := newState("u1", domain.PlatformSpotify, base.Add(domain.DefaultStateWindow))
		require.NoError(t, store.Save(ctx, st))

		_, err := store.Consume(ctx, st.StateID, base.Add(domain.DefaultStateWindow+time.Minute))
		assert.ErrorIs(t, err, domain.ErrStateExpired)
	})

	t.Run("not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Consume(ctx, uuid.NewString(), base)
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})

	t.Run("no verifier", func(t *testing.T) {
		store := newStore(t)
		st := newState("u1", domain.PlatformGitHub, base.Add(time.Minute))
		st.CodeVerifierEncrypted = nil
		require.NoError(t, store.Save(ctx, st))

		got, err := store.Consume(ctx, st.StateID, base)
		require.NoError(t, err)
		assert.False(t, got.HasVerifier())
	})

	t.Run("concurrent consume", func(t *testing.T) {
		store := newStore(t)
		st := newState("u1", domain.PlatformSpotify, base.Add(domain.DefaultStateWindow))
		require.NoError(t, store.Save(ctx, st))

		const callers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			replays   int
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Consume(ctx, st.StateID, base)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, domain.ErrStateReplay):
					replays++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, callers-1, replays)
	})

	t.Run("cleanup", func(t *testing.T) {
		store := newStore(t)
		old := newState("u1", domain.PlatformSpotify, base.Add(-time.Minute))
		fresh := newState("u1", domain.PlatformSpotify, base.Add(time.Minute))
		require.NoError(t, store.Save(ctx, old))
		require.NoError(t, store.Save(ctx, fresh))

		n, err := store.Cleanup(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = store.Consume(ctx, old.StateID, base)
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
		_, err = store.Consume(ctx, fresh.StateID, base)
		assert.NoError(t, err)
	})
}

func newConnection(userID string, platform domain.Platform) *domain.PlatformConnection {
	exp := base.Add(time.Hour)
	return &domain.PlatformConnection{
		UserID:                userID,
		Platform:              platform,
		AccessTokenEncrypted:  []byte("access-ct"),
		RefreshTokenEncrypted: []byte("refresh-ct"),
		TokenType:             "Bearer",
		TokenExpiresAt:        &exp,
		Status:                domain.ConnectionConnected,
		Scopes:                []string{"read", "write"},
		LastSyncStatus:        domain.SyncPending,
		ConnectedAt:           base,
	}
}

// RunConnectionStoreTests exercises a ConnectionStore.
func RunConnectionStoreTests(t *testing.T, newStore func(t *testing.T) driven.ConnectionStore) {
	ctx := context.Background()

	t.Run("upsert and get", func(t *testing.T) {
		store := newStore(t)
		conn := newConnection("u1", domain.PlatformSpotify)
		require.NoError(t, store.Upsert(ctx, conn))
		assert.NotEmpty(t, conn.ID)
		assert.Equal(t, int64(1), conn.Version)

		got, err := store.Get(ctx, "u1", domain.PlatformSpotify)
		require.NoError(t, err)
		assert.Equal(t, conn.ID, got.ID)
		assert.Equal(t, []byte("access-ct"), got.AccessTokenEncrypted)
		assert.Equal(t, []byte("refresh-ct"), got.RefreshTokenEncrypted)
		assert.Equal(t, domain.ConnectionConnected, got.Status)
		assert.Equal(t, []string{"read", "write"}, got.Scopes)
		require.NotNil(t, got.TokenExpiresAt)
		assert.True(t, got.TokenExpiresAt.Equal(base.Add(time.Hour)))
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("upsert replaces by key", func(t *testing.T) {
		store := newStore(t)
		first := newConnection("u1", domain.PlatformSpotify)
		require.NoError(t, store.Upsert(ctx, first))

		second := newConnection("u1", domain.PlatformSpotify)
		second.AccessTokenEncrypted = []byte("access-ct-2")
		second.RefreshTokenEncrypted = nil
		second.TokenExpiresAt = nil
		require.NoError(t, store.Upsert(ctx, second))
		assert.Equal(t, first.ID, second.ID, "row identity survives reconnect")
		assert.Equal(t, int64(2), second.Version)

		got, err := store.Get(ctx, "u1", domain.PlatformSpotify)
		require.NoError(t, err)
		assert.Equal(t, []byte("access-ct-2"), got.AccessTokenEncrypted)
		assert.False(t, got.HasRefreshToken())
		assert.Nil(t, got.TokenExpiresAt)

		list, err := store.ListByUser(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, "nobody", domain.PlatformSpotify)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list by user", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upsert(ctx, newConnection("u1", domain.PlatformSpotify)))
		require.NoError(t, store.Upsert(ctx, newConnection("u1", domain.PlatformGitHub)))
		require.NoError(t, store.Upsert(ctx, newConnection("u2", domain.PlatformSpotify)))

		list, err := store.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, domain.PlatformGitHub, list[0].Platform)
		assert.Equal(t, domain.PlatformSpotify, list[1].Platform)

		list, err = store.ListByUser(ctx, "u3")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("update with version check", func(t *testing.T) {
		store := newStore(t)
		conn := newConnection("u1", domain.PlatformSpotify)
		require.NoError(t, store.Upsert(ctx, conn))

		stale := *conn
		conn.AccessTokenEncrypted = []byte("new-access")
		conn.Status = domain.ConnectionConnected
		require.NoError(t, store.Update(ctx, conn, conn.Version))
		assert.Equal(t, int64(2), conn.Version)

		stale.Status = domain.ConnectionNeedsReauth
		err := store.Update(ctx, &stale, stale.Version)
		assert.ErrorIs(t, err, domain.ErrConflict)

		got, err := store.Get(ctx, "u1", domain.PlatformSpotify)
		require.NoError(t, err)
		assert.Equal(t, domain.ConnectionConnected, got.Status)
		assert.Equal(t, []byte("new-access"), got.AccessTokenEncrypted)

		missing := newConnection("u9", domain.PlatformSpotify)
		assert.ErrorIs(t, store.Update(ctx, missing, 1), domain.ErrNotFound)
	})

	t.Run("set status touch and sync", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upsert(ctx, newConnection("u1", domain.PlatformSpotify)))

		require.NoError(t, store.SetStatus(ctx, "u1", domain.PlatformSpotify, domain.ConnectionReconnecting, ""))
		require.NoError(t, store.TouchLastUsed(ctx, "u1", domain.PlatformSpotify, base.Add(time.Minute)))
		require.NoError(t, store.RecordSync(ctx, "u1", domain.PlatformSpotify, domain.SyncSuccess, base.Add(2*time.Minute)))

		got, err := store.Get(ctx, "u1", domain.PlatformSpotify)
		require.NoError(t, err)
		assert.Equal(t, domain.ConnectionReconnecting, got.Status)
		require.NotNil(t, got.LastUsedAt)
		assert.True(t, got.LastUsedAt.Equal(base.Add(time.Minute)))
		assert.Equal(t, domain.SyncSuccess, got.LastSyncStatus)
		require.NotNil(t, got.LastSyncAt)
		assert.True(t, got.LastSyncAt.Equal(base.Add(2*time.Minute)))

		assert.ErrorIs(t, store.SetStatus(ctx, "u9", domain.PlatformSpotify, domain.ConnectionConnected, ""), domain.ErrNotFound)
		assert.ErrorIs(t, store.RecordSync(ctx, "u9", domain.PlatformSpotify, domain.SyncFailed, base), domain.ErrNotFound)
	})

	t.Run("list expiring", func(t *testing.T) {
		store := newStore(t)

		soon := newConnection("u1", domain.PlatformSpotify)
		exp := base.Add(2 * time.Minute)
		soon.TokenExpiresAt = &exp
		require.NoError(t, store.Upsert(ctx, soon))

		noRefresh := newConnection("u1", domain.PlatformGitHub)
		noRefresh.TokenExpiresAt = &exp
		noRefresh.RefreshTokenEncrypted = nil
		require.NoError(t, store.Upsert(ctx, noRefresh))

		reauth := newConnection("u2", domain.PlatformSpotify)
		reauth.TokenExpiresAt = &exp
		reauth.Status = domain.ConnectionNeedsReauth
		require.NoError(t, store.Upsert(ctx, reauth))

		later := newConnection("u3", domain.PlatformSpotify)
		require.NoError(t, store.Upsert(ctx, later))

		list, err := store.ListExpiring(ctx, base.Add(5*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "u1", list[0].UserID)
		assert.Equal(t, domain.PlatformSpotify, list[0].Platform)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upsert(ctx, newConnection("u1", domain.PlatformSpotify)))

		require.NoError(t, store.Delete(ctx, "u1", domain.PlatformSpotify))
		_, err := store.Get(ctx, "u1", domain.PlatformSpotify)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "u1", domain.PlatformSpotify), domain.ErrNotFound)
	})
}
