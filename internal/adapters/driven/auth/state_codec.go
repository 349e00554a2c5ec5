package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

const (
	stateIssuer   = "sercha-connect"
	stateAudience = "oauth-state"
)

var _ driven.StateCodec = (*StateCodec)(nil)

// stateClaims is the signed body of an authorization state token.
type stateClaims struct {
	Platform domain.Platform `json:"plt"`
	PKCE     bool            `json:"pkce,omitempty"`
	jwt.RegisteredClaims
}

// StateCodec signs authorization state payloads as compact HS256 JWTs.
// The signing key must not be shared with API bearer tokens.
type StateCodec struct {
	key []byte
}

// NewStateCodec creates a codec with the given signing key.
func NewStateCodec(key []byte) (*StateCodec, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("state signing key must be at least 32 bytes, got %d", len(key))
	}
	return &StateCodec{key: key}, nil
}

// Encode signs the payload.
func (c *StateCodec) Encode(p *domain.StatePayload) (string, error) {
	if p.StateID == "" || p.UserID == "" || p.Platform == "" {
		return "", fmt.Errorf("%w: state payload is incomplete", domain.ErrInvalidInput)
	}

	claims := stateClaims{
		Platform: p.Platform,
		PKCE:     p.PKCE,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.StateID,
			Subject:   p.UserID,
			Issuer:    stateIssuer,
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return token, nil
}

// Decode verifies the token at now.
func (c *StateCodec) Decode(token string, now time.Time) (*domain.StatePayload, error) {
	parsed, err := jwt.ParseWithClaims(token, &stateClaims{}, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		// Expiry is only trusted once the signature has been verified,
		// which jwt checks before validating claims.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrStateExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStateTampered, err)
	}

	claims, ok := parsed.Claims.(*stateClaims)
	if !ok || claims.ID == "" || claims.Subject == "" || claims.Platform == "" || claims.IssuedAt == nil {
		return nil, domain.ErrStateTampered
	}

	return &domain.StatePayload{
		StateID:   claims.ID,
		UserID:    claims.Subject,
		Platform:  claims.Platform,
		PKCE:      claims.PKCE,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
