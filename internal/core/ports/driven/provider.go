package driven

import (
	"context"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// ProviderRegistry resolves platform keys to their OAuth configuration.
type ProviderRegistry interface {
	// Lookup returns the provider or ErrUnknownProvider.
	Lookup(platform domain.Platform) (*domain.ProviderConfig, error)

	// Platforms lists registered platform keys in sorted order.
	Platforms() []domain.Platform
}

// ProviderClient talks to provider OAuth endpoints.
// Exchange and refresh are never retried automatically.
type ProviderClient interface {
	// AuthCodeURL builds the authorization redirect. pkce may be nil.
	AuthCodeURL(provider *domain.ProviderConfig, redirectURI, state string, pkce *domain.PKCEParams) (string, error)

	// ExchangeCode trades an authorization code for tokens. verifier is
	// empty when PKCE was not used. A provider rejection is returned as
	// *domain.TokenExchangeError; a transport failure wraps
	// domain.ErrProviderUnavailable.
	ExchangeCode(ctx context.Context, provider *domain.ProviderConfig, code, redirectURI, verifier string) (*domain.TokenResponse, error)

	// Refresh performs a refresh_token grant with the same error contract.
	Refresh(ctx context.Context, provider *domain.ProviderConfig, refreshToken string) (*domain.TokenResponse, error)

	// Revoke asks the provider to invalidate a token. Providers without a
	// revocation endpoint return nil.
	Revoke(ctx context.Context, provider *domain.ProviderConfig, token string) error
}
