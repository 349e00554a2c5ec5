package oauth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

func parseAuthURL(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query()
}

func TestAuthCodeURL(t *testing.T) {
	c := NewClient(Config{})
	p := &domain.ProviderConfig{
		Platform:        domain.PlatformYouTube,
		AuthURL:         "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:        "https://oauth2.googleapis.com/token",
		ClientID:        "yt-client",
		Scopes:          []string{"https://www.googleapis.com/auth/youtube.readonly", "openid"},
		AuthStyle:       domain.AuthStyleBody,
		ExtraAuthParams: map[string]string{"access_type": "offline", "prompt": "consent"},
	}

	raw, err := c.AuthCodeURL(p, "https://app.test/api/v1/oauth/callback", "state-token", &domain.PKCEParams{
		Verifier: "verifier-abc", Challenge: "challenge-abc", Method: domain.PKCES256,
	})
	require.NoError(t, err)

	q := parseAuthURL(t, raw)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "yt-client", q.Get("client_id"))
	assert.Equal(t, "https://app.test/api/v1/oauth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state-token", q.Get("state"))
	assert.Equal(t, "https://www.googleapis.com/auth/youtube.readonly openid", q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.NotEqual(t, "verifier-abc", q.Get("code_challenge"), "verifier must never appear in the URL")
}

func TestAuthCodeURL_ScopeQuirks(t *testing.T) {
	c := NewClient(Config{})

	strava := &domain.ProviderConfig{
		Platform: domain.PlatformStrava, AuthURL: "https://www.strava.com/oauth/authorize",
		ClientID: "s", Scopes: []string{"read", "activity:read_all"}, ScopeSeparator: ",",
	}
	raw, err := c.AuthCodeURL(strava, "https://app.test/cb", "st", nil)
	require.NoError(t, err)
	q := parseAuthURL(t, raw)
	assert.Equal(t, "read,activity:read_all", q.Get("scope"))
	assert.Empty(t, q.Get("code_challenge"))

	slack := &domain.ProviderConfig{
		Platform: domain.PlatformSlack, AuthURL: "https://slack.com/oauth/v2/authorize",
		ClientID: "s", Scopes: []string{"users:read"}, ScopeParam: "user_scope",
	}
	raw, err = c.AuthCodeURL(slack, "https://app.test/cb", "st", nil)
	require.NoError(t, err)
	q = parseAuthURL(t, raw)
	assert.Equal(t, "users:read", q.Get("user_scope"))
	assert.Empty(t, q.Get("scope"))
}

func TestAuthCodeURL_PlainPKCE(t *testing.T) {
	c := NewClient(Config{})
	p := &domain.ProviderConfig{Platform: "acme", AuthURL: "https://acme.test/authorize", ClientID: "a"}

	raw, err := c.AuthCodeURL(p, "https://app.test/cb", "st", &domain.PKCEParams{
		Verifier: "v", Challenge: "v", Method: domain.PKCEPlain,
	})
	require.NoError(t, err)
	q := parseAuthURL(t, raw)
	assert.Equal(t, "plain", q.Get("code_challenge_method"))
	assert.Equal(t, "v", q.Get("code_challenge"))
}

func TestAuthCodeURL_MissingAuthURL(t *testing.T) {
	_, err := NewClient(Config{}).AuthCodeURL(&domain.ProviderConfig{Platform: "acme"}, "r", "s", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
