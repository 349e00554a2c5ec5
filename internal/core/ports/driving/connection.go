package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// ConnectionService manages the OAuth lifecycle of platform connections.
// It issues authorization state, completes callbacks, reports status and
// lends usable access tokens to internal consumers.
type ConnectionService interface {
	// BeginAuthorization starts an authorization flow for the user.
	// Returns the provider redirect URL and the signed state token.
	BeginAuthorization(ctx context.Context, req BeginAuthorizationRequest) (*BeginAuthorizationResponse, error)

	// CompleteAuthorization consumes the state and exchanges the code.
	// Exactly one of several concurrent calls with the same state succeeds;
	// the others fail with ErrStateReplay.
	CompleteAuthorization(ctx context.Context, req CompleteAuthorizationRequest) (*domain.PlatformConnection, error)

	// GetConnectionStatus returns the per-platform status view for a user.
	GetConnectionStatus(ctx context.Context, userID string) (domain.StatusMap, error)

	// Disconnect deletes the user's connection to a platform.
	// Disconnecting an absent connection succeeds.
	Disconnect(ctx context.Context, userID string, platform domain.Platform) error

	// BorrowAccessToken returns a plaintext access token that is fresh at
	// the time of the call, refreshing when needed. Fails with
	// *domain.NeedsReauthError when no usable token exists.
	BorrowAccessToken(ctx context.Context, userID string, platform domain.Platform) (*BorrowedToken, error)

	// RecordSync stores the outcome of a data extraction run.
	RecordSync(ctx context.Context, userID string, platform domain.Platform, status domain.SyncStatus) error

	// Providers lists the platforms available for connection.
	Providers() []*ProviderSummary
}

// BeginAuthorizationRequest starts a connect or reconnect flow.
// @Description Request to start OAuth authorization for a platform
type BeginAuthorizationRequest struct {
	UserID   string          `json:"-"`
	Platform domain.Platform `json:"platform" example:"spotify"`

	// WantsPKCE asks for PKCE. Providers that advertise PKCE always use it.
	WantsPKCE bool `json:"wants_pkce" example:"true"`
}

// BeginAuthorizationResponse carries the provider redirect.
// @Description Response containing the OAuth authorization URL
type BeginAuthorizationResponse struct {
	AuthorizationURL string    `json:"authorization_url" example:"https://accounts.spotify.com/authorize?client_id=..."`
	State            string    `json:"state" example:"eyJhbGciOiJIUzI1NiJ9..."`
	ExpiresAt        time.Time `json:"expires_at" example:"2026-01-15T10:30:00Z"`
	Reconnect        bool      `json:"reconnect" example:"false"`
}

// CompleteAuthorizationRequest holds the provider callback parameters.
// @Description OAuth callback parameters from provider redirect
type CompleteAuthorizationRequest struct {
	Code  string `json:"code" example:"abc123"`
	State string `json:"state" example:"eyJhbGciOiJIUzI1NiJ9..."`

	// Error is set if the provider returned an error.
	Error string `json:"error,omitempty" example:"access_denied"`

	// ErrorDescription provides details about the error.
	ErrorDescription string `json:"error_description,omitempty" example:"The user denied access"`
}

// BorrowedToken is a plaintext access token lent to an internal consumer.
// @Description Access token for calling the platform API
type BorrowedToken struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type" example:"Bearer"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Scopes      []string        `json:"scopes,omitempty"`
	Platform    domain.Platform `json:"platform" example:"spotify"`
	APIBaseURL  string          `json:"api_base_url,omitempty" example:"https://api.spotify.com/v1"`
}

// ProviderSummary describes a connectable platform.
// @Description Connectable platform
type ProviderSummary struct {
	Platform     domain.Platform         `json:"platform" example:"spotify"`
	DisplayName  string                  `json:"display_name" example:"Spotify"`
	Category     domain.ProviderCategory `json:"category" example:"music"`
	Scopes       []string                `json:"scopes"`
	SupportsPKCE bool                    `json:"supports_pkce"`
}

// OAuthError represents an error reported by the provider on callback.
type OAuthError struct {
	Code        string `json:"error" example:"access_denied"`
	Description string `json:"error_description" example:"The user denied access"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}
