package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// StateIssuer issues and consumes single-use authorization state.
// The signed token carries the state ID; the store record is the
// authority on whether it has been used.
type StateIssuer struct {
	store  driven.AuthorizationStateStore
	codec  driven.StateCodec
	pkce   driven.PKCEGenerator
	cipher driven.SecretCipher
	window time.Duration
	now    func() time.Time
}

// StateIssuerConfig holds dependencies for a StateIssuer.
type StateIssuerConfig struct {
	Store  driven.AuthorizationStateStore
	Codec  driven.StateCodec
	PKCE   driven.PKCEGenerator
	Cipher driven.SecretCipher
	Window time.Duration // default domain.DefaultStateWindow
	Now    func() time.Time
}

// NewStateIssuer creates a StateIssuer.
func NewStateIssuer(cfg StateIssuerConfig) *StateIssuer {
	window := cfg.Window
	if window <= 0 {
		window = domain.DefaultStateWindow
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &StateIssuer{
		store:  cfg.Store,
		codec:  cfg.Codec,
		pkce:   cfg.PKCE,
		cipher: cfg.Cipher,
		window: window,
		now:    now,
	}
}

// IssuedState is the result of Issue.
type IssuedState struct {
	Token     string
	PKCE      *domain.PKCEParams // nil when PKCE is not used
	ExpiresAt time.Time
}

// Issue creates and persists a new state for (userID, provider). When
// method is not PKCENone a verifier is generated and stored encrypted.
func (s *StateIssuer) Issue(ctx context.Context, userID string, provider *domain.ProviderConfig, redirectURI string, method domain.PKCEMethod) (*IssuedState, error) {
	now := s.now()
	state := &domain.AuthorizationState{
		StateID:     uuid.NewString(),
		UserID:      userID,
		Platform:    provider.Platform,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.window),
	}

	var params *domain.PKCEParams
	if method != domain.PKCENone {
		var err error
		params, err = s.pkce.Generate(method)
		if err != nil {
			return nil, fmt.Errorf("generate pkce: %w", err)
		}
		state.CodeVerifierEncrypted, err = s.cipher.EncryptString(params.Verifier)
		if err != nil {
			return nil, fmt.Errorf("encrypt code verifier: %w", err)
		}
	}

	token, err := s.codec.Encode(&domain.StatePayload{
		StateID:   state.StateID,
		UserID:    userID,
		Platform:  provider.Platform,
		PKCE:      params != nil,
		IssuedAt:  now,
		ExpiresAt: state.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}

	if err := s.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save authorization state: %w", err)
	}

	return &IssuedState{Token: token, PKCE: params, ExpiresAt: state.ExpiresAt}, nil
}

// ConsumedState is a verified, used-up authorization state.
type ConsumedState struct {
	State    *domain.AuthorizationState
	Verifier string // empty without PKCE
}

// Consume verifies the token and marks its record used. Errors are
// ErrStateTampered, ErrStateExpired, ErrStateNotFound or ErrStateReplay.
func (s *StateIssuer) Consume(ctx context.Context, token string) (*ConsumedState, error) {
	now := s.now()

	payload, err := s.codec.Decode(token, now)
	if err != nil {
		return nil, err
	}

	state, err := s.store.Consume(ctx, payload.StateID, now)
	if err != nil {
		return nil, err
	}
	if !payload.Matches(state) {
		return nil, fmt.Errorf("%w: token does not match stored state", domain.ErrStateTampered)
	}

	out := &ConsumedState{State: state}
	if state.HasVerifier() {
		out.Verifier, err = s.cipher.DecryptString(state.CodeVerifierEncrypted)
		if errors.Is(err, domain.ErrDecryption) {
			return nil, fmt.Errorf("%w: code verifier unreadable", domain.ErrStateTampered)
		}
		if err != nil {
			return nil, fmt.Errorf("decrypt code verifier: %w", err)
		}
	}
	return out, nil
}

// Purge removes states that expired at or before now.
func (s *StateIssuer) Purge(ctx context.Context) (int64, error) {
	return s.store.Cleanup(ctx, s.now())
}
