package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/crypto"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

func newTestIssuer(h *harness) *StateIssuer {
	return NewStateIssuer(StateIssuerConfig{
		Store:  h.states,
		Codec:  h.codec,
		PKCE:   crypto.PKCEGenerator{},
		Cipher: h.cipher,
		Now:    h.clock.Now,
	})
}

func TestStateIssuer_IssueDecodeExpire(t *testing.T) {
	h := newHarness(t)
	issuer := newTestIssuer(h)
	ctx := context.Background()
	provider, err := h.registry.Lookup(domain.PlatformSpotify)
	require.NoError(t, err)

	issued, err := issuer.Issue(ctx, "u1", provider, "https://connect.test/cb", domain.PKCES256)
	require.NoError(t, err)
	require.NotNil(t, issued.PKCE)

	payload, err := h.codec.Decode(issued.Token, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformSpotify, payload.Platform)

	h.clock.Advance(domain.DefaultStateWindow + time.Second)
	_, err = issuer.Consume(ctx, issued.Token)
	assert.ErrorIs(t, err, domain.ErrStateExpired)
}

func TestStateIssuer_ConsumeOnce(t *testing.T) {
	h := newHarness(t)
	issuer := newTestIssuer(h)
	ctx := context.Background()
	provider, err := h.registry.Lookup(domain.PlatformSpotify)
	require.NoError(t, err)

	issued, err := issuer.Issue(ctx, "u1", provider, "https://connect.test/cb", domain.PKCES256)
	require.NoError(t, err)

	consumed, err := issuer.Consume(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.PKCE.Verifier, consumed.Verifier)
	assert.Equal(t, "u1", consumed.State.UserID)
	assert.Equal(t, "https://connect.test/cb", consumed.State.RedirectURI)

	_, err = issuer.Consume(ctx, issued.Token)
	assert.ErrorIs(t, err, domain.ErrStateReplay)
}

func TestStateIssuer_WithoutPKCE(t *testing.T) {
	h := newHarness(t)
	issuer := newTestIssuer(h)
	ctx := context.Background()
	provider, err := h.registry.Lookup(domain.PlatformGitHub)
	require.NoError(t, err)

	issued, err := issuer.Issue(ctx, "u1", provider, "https://connect.test/cb", domain.PKCENone)
	require.NoError(t, err)
	assert.Nil(t, issued.PKCE)

	consumed, err := issuer.Consume(ctx, issued.Token)
	require.NoError(t, err)
	assert.Empty(t, consumed.Verifier)
}

func TestStateIssuer_RecordMismatch(t *testing.T) {
	h := newHarness(t)
	issuer := newTestIssuer(h)
	ctx := context.Background()
	provider, err := h.registry.Lookup(domain.PlatformSpotify)
	require.NoError(t, err)

	issued, err := issuer.Issue(ctx, "u1", provider, "https://connect.test/cb", domain.PKCES256)
	require.NoError(t, err)
	payload, err := h.codec.Decode(issued.Token, h.clock.Now())
	require.NoError(t, err)

	record, ok := h.states.Get(payload.StateID)
	require.True(t, ok)
	record.UserID = "someone-else"
	require.NoError(t, h.states.Save(ctx, record))

	_, err = issuer.Consume(ctx, issued.Token)
	assert.ErrorIs(t, err, domain.ErrStateTampered)
}

func TestStateIssuer_UnreadableVerifier(t *testing.T) {
	h := newHarness(t)
	issuer := newTestIssuer(h)
	ctx := context.Background()
	provider, err := h.registry.Lookup(domain.PlatformSpotify)
	require.NoError(t, err)

	issued, err := issuer.Issue(ctx, "u1", provider, "https://connect.test/cb", domain.PKCES256)
	require.NoError(t, err)
	payload, err := h.codec.Decode(issued.Token, h.clock.Now())
	require.NoError(t, err)

	record, _ := h.states.Get(payload.StateID)
	record.CodeVerifierEncrypted = []byte("not a ciphertext at all, just bytes")
	require.NoError(t, h.states.Save(ctx, record))

	_, err = issuer.Consume(ctx, issued.Token)
	assert.ErrorIs(t, err, domain.ErrStateTampered)
}

func TestStateIssuer_Purge(t *testing.T) {
	h := newHarness(t)
	issuer := newTestIssuer(h)
	ctx := context.Background()
	provider, err := h.registry.Lookup(domain.PlatformGitHub)
	require.NoError(t, err)

	_, err = issuer.Issue(ctx, "u1", provider, "https://connect.test/cb", domain.PKCENone)
	require.NoError(t, err)
	h.clock.Advance(10 * time.Minute)
	_, err = issuer.Issue(ctx, "u2", provider, "https://connect.test/cb", domain.PKCENone)
	require.NoError(t, err)

	h.clock.Advance(domain.DefaultStateWindow - 5*time.Minute)
	n, err := issuer.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, h.states.Len())
}
