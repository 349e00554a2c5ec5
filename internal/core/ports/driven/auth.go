package driven

import "github.com/custodia-labs/sercha-connect/internal/core/domain"

// AuthAdapter verifies and issues API bearer tokens.
// Callers are authenticated upstream; this service only checks signatures.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
