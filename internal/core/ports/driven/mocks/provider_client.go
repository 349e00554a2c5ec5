package mocks

import (
	"context"
	"net/url"
	"sync"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

var _ driven.ProviderClient = (*MockProviderClient)(nil)

// MockProviderClient records calls and delegates to optional hooks.
// Without hooks it returns a fixed token response.
type MockProviderClient struct {
	mu sync.Mutex

	ExchangeCalls int
	RefreshCalls  int
	RevokeCalls   int

	// LastVerifier is the verifier passed to the latest ExchangeCode call.
	LastVerifier string

	ExchangeFn func(provider *domain.ProviderConfig, code, redirectURI, verifier string) (*domain.TokenResponse, error)
	RefreshFn  func(provider *domain.ProviderConfig, refreshToken string) (*domain.TokenResponse, error)
	RevokeFn   func(provider *domain.ProviderConfig, token string) error
}

// NewMockProviderClient creates a new MockProviderClient
func NewMockProviderClient() *MockProviderClient {
	return &MockProviderClient{}
}

func (m *MockProviderClient) AuthCodeURL(provider *domain.ProviderConfig, redirectURI, state string, pkce *domain.PKCEParams) (string, error) {
	q := url.Values{}
	q.Set("client_id", provider.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	if pkce != nil {
		q.Set("code_challenge", pkce.Challenge)
		q.Set("code_challenge_method", string(pkce.Method))
	}
	return provider.AuthURL + "?" + q.Encode(), nil
}

func (m *MockProviderClient) ExchangeCode(ctx context.Context, provider *domain.ProviderConfig, code, redirectURI, verifier string) (*domain.TokenResponse, error) {
	m.mu.Lock()
	m.ExchangeCalls++
	m.LastVerifier = verifier
	m.mu.Unlock()

	if m.ExchangeFn != nil {
		return m.ExchangeFn(provider, code, redirectURI, verifier)
	}
	return &domain.TokenResponse{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		TokenType:    "Bearer",
		Scopes:       provider.Scopes,
	}, nil
}

func (m *MockProviderClient) Refresh(ctx context.Context, provider *domain.ProviderConfig, refreshToken string) (*domain.TokenResponse, error) {
	m.mu.Lock()
	m.RefreshCalls++
	m.mu.Unlock()

	if m.RefreshFn != nil {
		return m.RefreshFn(provider, refreshToken)
	}
	return &domain.TokenResponse{AccessToken: "refreshed", TokenType: "Bearer"}, nil
}

func (m *MockProviderClient) Revoke(ctx context.Context, provider *domain.ProviderConfig, token string) error {
	m.mu.Lock()
	m.RevokeCalls++
	m.mu.Unlock()

	if m.RevokeFn != nil {
		return m.RevokeFn(provider, token)
	}
	return nil
}

// Refreshes returns the refresh call count.
func (m *MockProviderClient) Refreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RefreshCalls
}

// Exchanges returns the exchange call count.
func (m *MockProviderClient) Exchanges() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExchangeCalls
}
