package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/crypto"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/providers"
)

// testClock is a settable clock shared by every component in a harness.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires the connection service to in-memory collaborators and
// the real cipher, state codec and PKCE generator.
type harness struct {
	svc       driving.ConnectionService
	refresher *Refresher
	conns     *mocks.MockConnectionStore
	states    *mocks.MockStateStore
	cache     *mocks.MockStatusCache
	client    *mocks.MockProviderClient
	cipher    *crypto.SecretEncryptor
	codec     *auth.StateCodec
	registry  *providers.Registry
	clock     *testClock
}

func testProviders() []*domain.ProviderConfig {
	return []*domain.ProviderConfig{
		{
			Platform:     domain.PlatformSpotify,
			DisplayName:  "Spotify",
			Category:     domain.CategoryMusic,
			AuthURL:      "https://accounts.spotify.test/authorize",
			TokenURL:     "https://accounts.spotify.test/api/token",
			APIBaseURL:   "https://api.spotify.test/v1",
			Scopes:       []string{"user-read-email", "user-top-read"},
			ClientID:     "spotify-client",
			ClientSecret: "spotify-secret",
			AuthStyle:    domain.AuthStyleBasic,
			PKCEMethod:   domain.PKCES256,
		},
		{
			Platform:     domain.PlatformGitHub,
			DisplayName:  "GitHub",
			Category:     domain.CategoryProfessional,
			AuthURL:      "https://github.test/login/oauth/authorize",
			TokenURL:     "https://github.test/login/oauth/access_token",
			Scopes:       []string{"read:user"},
			ClientID:     "github-client",
			ClientSecret: "github-secret",
			AuthStyle:    domain.AuthStyleBody,
		},
		{
			Platform:     domain.PlatformFitbit,
			DisplayName:  "Fitbit",
			Category:     domain.CategoryFitness,
			AuthURL:      "https://www.fitbit.test/oauth2/authorize",
			TokenURL:     "https://api.fitbit.test/oauth2/token",
			RevokeURL:    "https://api.fitbit.test/oauth2/revoke",
			Scopes:       []string{"activity"},
			ClientID:     "fitbit-client",
			ClientSecret: "fitbit-secret",
			AuthStyle:    domain.AuthStyleBasic,
			PKCEMethod:   domain.PKCES256,
		},
	}
}

func buildHarness() (*harness, error) {
	keys, err := crypto.DeriveKeys(bytes.Repeat([]byte("m"), 32))
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.NewSecretEncryptor(keys.Encryption)
	if err != nil {
		return nil, err
	}
	codec, err := auth.NewStateCodec(keys.StateSigning)
	if err != nil {
		return nil, err
	}
	registry, err := providers.NewRegistry(testProviders()...)
	if err != nil {
		return nil, err
	}

	h := &harness{
		conns:    mocks.NewMockConnectionStore(),
		states:   mocks.NewMockStateStore(),
		cache:    mocks.NewMockStatusCache(),
		client:   mocks.NewMockProviderClient(),
		cipher:   cipher,
		codec:    codec,
		registry: registry,
		clock:    &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := TrackGenerations(h.cache)

	h.refresher = NewRefresher(RefresherConfig{
		Connections: h.conns,
		Cache:       cache,
		Registry:    registry,
		Client:      h.client,
		Cipher:      cipher,
		Logger:      logger,
		Now:         h.clock.Now,
	})
	h.svc = NewConnectionService(ConnectionServiceConfig{
		Connections: h.conns,
		States:      h.states,
		Cache:       cache,
		Registry:    registry,
		Client:      h.client,
		Cipher:      cipher,
		Codec:       codec,
		PKCE:        crypto.PKCEGenerator{},
		Refresher:   h.refresher,
		BaseURL:     "https://connect.test/",
		Logger:      logger,
		Now:         h.clock.Now,
	})
	return h, nil
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h, err := buildHarness()
	require.NoError(t, err)
	return h
}

// connection builds a stored-shape connection with encrypted tokens.
// An empty refresh token leaves RefreshTokenEncrypted nil.
func (h *harness) connection(userID string, platform domain.Platform, access, refresh string, expiresIn time.Duration) (*domain.PlatformConnection, error) {
	conn := &domain.PlatformConnection{
		UserID:         userID,
		Platform:       platform,
		TokenType:      "Bearer",
		Status:         domain.ConnectionConnected,
		Scopes:         []string{"scope-a"},
		LastSyncStatus: domain.SyncSuccess,
		ConnectedAt:    h.clock.Now().Add(-24 * time.Hour),
	}
	if expiresIn != 0 {
		exp := h.clock.Now().Add(expiresIn)
		conn.TokenExpiresAt = &exp
	}

	var err error
	if conn.AccessTokenEncrypted, err = h.cipher.EncryptString(access); err != nil {
		return nil, err
	}
	if refresh != "" {
		if conn.RefreshTokenEncrypted, err = h.cipher.EncryptString(refresh); err != nil {
			return nil, err
		}
	}
	h.conns.Put(conn)
	return conn, nil
}

func (h *harness) seed(t *testing.T, userID string, platform domain.Platform, access, refresh string, expiresIn time.Duration) *domain.PlatformConnection {
	t.Helper()
	conn, err := h.connection(userID, platform, access, refresh, expiresIn)
	require.NoError(t, err)
	return conn
}

func (h *harness) stored(t *testing.T, userID string, platform domain.Platform) *domain.PlatformConnection {
	t.Helper()
	conn, err := h.conns.Get(context.Background(), userID, platform)
	require.NoError(t, err)
	return conn
}

func (h *harness) decrypt(t *testing.T, blob []byte) string {
	t.Helper()
	s, err := h.cipher.DecryptString(blob)
	require.NoError(t, err)
	return s
}
