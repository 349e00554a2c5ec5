package domain

import "time"

// DefaultStateWindow is how long an issued authorization state stays valid.
const DefaultStateWindow = 30 * time.Minute

// AuthorizationState is one in-flight authorization attempt.
type AuthorizationState struct {
	StateID               string     `json:"state_id"`
	UserID                string     `json:"user_id"`
	Platform              Platform   `json:"platform"`
	CodeVerifierEncrypted []byte     `json:"-"`
	RedirectURI           string     `json:"redirect_uri"`
	CreatedAt             time.Time  `json:"created_at"`
	ExpiresAt             time.Time  `json:"expires_at"`
	Used                  bool       `json:"used"`
	UsedAt                *time.Time `json:"used_at,omitempty"`
}

// IsExpired checks if the state is past its expiry at now.
func (s *AuthorizationState) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// HasVerifier reports whether a PKCE verifier was stored for the attempt.
func (s *AuthorizationState) HasVerifier() bool {
	return len(s.CodeVerifierEncrypted) > 0
}

// StatePayload is the content carried inside a signed state token.
type StatePayload struct {
	StateID   string
	UserID    string
	Platform  Platform
	PKCE      bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Matches reports whether the payload names the same attempt as the record.
func (p *StatePayload) Matches(s *AuthorizationState) bool {
	return p.StateID == s.StateID &&
		p.UserID == s.UserID &&
		p.Platform == s.Platform &&
		p.PKCE == s.HasVerifier()
}

// TokenResponse is a provider token response normalized across providers.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scopes       []string
	// ExpiresIn is zero when the provider did not send an expiry.
	ExpiresIn time.Duration
}

// ExpiresAt converts ExpiresIn to an absolute time, or nil if not set.
func (t *TokenResponse) ExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	exp := now.Add(t.ExpiresIn)
	return &exp
}
