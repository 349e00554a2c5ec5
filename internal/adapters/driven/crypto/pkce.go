package crypto

import (
	"fmt"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

var _ driven.PKCEGenerator = PKCEGenerator{}

// PKCEGenerator creates RFC 7636 verifier/challenge pairs.
type PKCEGenerator struct{}

// Generate returns a 43-character verifier and its challenge for method.
func (PKCEGenerator) Generate(method domain.PKCEMethod) (*domain.PKCEParams, error) {
	verifier := oauth2.GenerateVerifier()

	switch method {
	case domain.PKCES256:
		return &domain.PKCEParams{
			Verifier:  verifier,
			Challenge: oauth2.S256ChallengeFromVerifier(verifier),
			Method:    domain.PKCES256,
		}, nil
	case domain.PKCEPlain:
		return &domain.PKCEParams{Verifier: verifier, Challenge: verifier, Method: domain.PKCEPlain}, nil
	default:
		return nil, fmt.Errorf("%w: pkce method %q", domain.ErrInvalidInput, method)
	}
}
