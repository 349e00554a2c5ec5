package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

var stateKey = []byte("0123456789abcdef0123456789abcdef")

func newPayload(now time.Time) *domain.StatePayload {
	return &domain.StatePayload{
		StateID:   "4f1c2d9e-state",
		UserID:    "u1",
		Platform:  domain.PlatformSpotify,
		PKCE:      true,
		IssuedAt:  now,
		ExpiresAt: now.Add(domain.DefaultStateWindow),
	}
}

func TestStateCodec_RoundTrip(t *testing.T) {
	codec, err := NewStateCodec(stateKey)
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	token, err := codec.Encode(newPayload(now))
	require.NoError(t, err)

	got, err := codec.Decode(token, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "4f1c2d9e-state", got.StateID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, domain.PlatformSpotify, got.Platform)
	assert.True(t, got.PKCE)
	assert.True(t, got.IssuedAt.Equal(now))
	assert.True(t, got.ExpiresAt.Equal(now.Add(domain.DefaultStateWindow)))
}

func TestStateCodec_Expired(t *testing.T) {
	codec, _ := NewStateCodec(stateKey)
	now := time.Now()

	token, err := codec.Encode(newPayload(now))
	require.NoError(t, err)

	_, err = codec.Decode(token, now.Add(domain.DefaultStateWindow+time.Second))
	assert.ErrorIs(t, err, domain.ErrStateExpired)
}

func TestStateCodec_Tampered(t *testing.T) {
	codec, _ := NewStateCodec(stateKey)
	other, _ := NewStateCodec([]byte("ffffffffffffffffffffffffffffffff"))
	now := time.Now()

	token, _ := codec.Encode(newPayload(now))
	foreign, _ := other.Encode(newPayload(now))

	parts := strings.Split(token, ".")
	flipped := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	for name, tok := range map[string]string{
		"bad signature": flipped,
		"foreign key":   foreign,
		"garbage":       "state-123",
		"empty":         "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(tok, now)
			assert.True(t, errors.Is(err, domain.ErrStateTampered), "got %v", err)
		})
	}
}

func TestStateCodec_ExpiredForeignTokenIsTampered(t *testing.T) {
	codec, _ := NewStateCodec(stateKey)
	other, _ := NewStateCodec([]byte("ffffffffffffffffffffffffffffffff"))
	now := time.Now()

	foreign, _ := other.Encode(newPayload(now))
	_, err := codec.Decode(foreign, now.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrStateTampered)
}

func TestStateCodec_Validation(t *testing.T) {
	_, err := NewStateCodec([]byte("short"))
	assert.Error(t, err)

	codec, _ := NewStateCodec(stateKey)
	_, err = codec.Encode(&domain.StatePayload{UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
