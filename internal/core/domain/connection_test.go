package domain

import (
	"testing"
	"time"
)

func TestPlatformConnectionTokenExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		expected  bool
	}{
		{"no expiry", nil, false},
		{"expired", &past, true},
		{"valid", &future, false},
		{"exactly now", &now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &PlatformConnection{TokenExpiresAt: tt.expiresAt}
			if c.TokenExpired(now) != tt.expected {
				t.Errorf("expected TokenExpired() = %v", tt.expected)
			}
		})
	}
}

func TestPlatformConnectionNeedsRefresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(2 * time.Minute)
	later := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		expected  bool
	}{
		{"no expiry", nil, false},
		{"within skew", &soon, true},
		{"outside skew", &later, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &PlatformConnection{TokenExpiresAt: tt.expiresAt}
			if c.NeedsRefresh(now, 5*time.Minute) != tt.expected {
				t.Errorf("expected NeedsRefresh() = %v", tt.expected)
			}
		})
	}
}

func TestPlatformConnectionHasRefreshToken(t *testing.T) {
	c := &PlatformConnection{}
	if c.HasRefreshToken() {
		t.Error("expected no refresh token")
	}
	c.RefreshTokenEncrypted = []byte{1, 2, 3}
	if !c.HasRefreshToken() {
		t.Error("expected refresh token")
	}
}

func TestConnectionStatusValid(t *testing.T) {
	for _, s := range []ConnectionStatus{
		ConnectionConnected, ConnectionPending, ConnectionTokenExpired,
		ConnectionNeedsReauth, ConnectionReconnecting, ConnectionDisconnected,
	} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if ConnectionStatus("active").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestAuthorizationState(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &AuthorizationState{
		StateID:   "s1",
		UserID:    "u1",
		Platform:  PlatformSpotify,
		ExpiresAt: now.Add(DefaultStateWindow),
	}

	if s.IsExpired(now) {
		t.Error("fresh state should not be expired")
	}
	if !s.IsExpired(now.Add(DefaultStateWindow)) {
		t.Error("state should be expired at its expiry instant")
	}

	payload := &StatePayload{StateID: "s1", UserID: "u1", Platform: PlatformSpotify}
	if !payload.Matches(s) {
		t.Error("expected payload to match record")
	}
	payload.PKCE = true
	if payload.Matches(s) {
		t.Error("payload claiming PKCE should not match record without verifier")
	}
	s.CodeVerifierEncrypted = []byte("ct")
	if !payload.Matches(s) {
		t.Error("expected payload to match record with verifier")
	}
	payload.UserID = "u2"
	if payload.Matches(s) {
		t.Error("payload for another user should not match")
	}
}

func TestTokenResponseExpiresAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tok := &TokenResponse{AccessToken: "a"}
	if tok.ExpiresAt(now) != nil {
		t.Error("expected nil expiry when ExpiresIn is zero")
	}

	tok.ExpiresIn = time.Hour
	exp := tok.ExpiresAt(now)
	if exp == nil || !exp.Equal(now.Add(time.Hour)) {
		t.Errorf("expected expiry one hour after now, got %v", exp)
	}
}
