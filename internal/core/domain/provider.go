package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Platform identifies an external OAuth provider (e.g. "spotify")
type Platform string

const (
	// Music and video
	PlatformSpotify Platform = "spotify"
	PlatformYouTube Platform = "youtube"
	PlatformTwitch  Platform = "twitch"

	// Fitness
	PlatformStrava Platform = "strava"
	PlatformFitbit Platform = "fitbit"
	PlatformWhoop  Platform = "whoop"
	PlatformOura   Platform = "oura"

	// Professional
	PlatformGitHub    Platform = "github"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformMicrosoft Platform = "microsoft"

	// Communication and social
	PlatformDiscord Platform = "discord"
	PlatformSlack   Platform = "slack"
	PlatformReddit  Platform = "reddit"
	PlatformTwitter Platform = "twitter"

	// Productivity
	PlatformNotion Platform = "notion"
)

// AuthStyle selects how client credentials travel to the token endpoint.
type AuthStyle string

const (
	// AuthStyleBasic sends client_id:client_secret as an HTTP Basic header
	AuthStyleBasic AuthStyle = "basic"
	// AuthStyleBody sends client credentials as form fields
	AuthStyleBody AuthStyle = "body"
	// AuthStyleJSON sends a JSON body with Basic credentials (Notion)
	AuthStyleJSON AuthStyle = "json"
)

// PKCEMethod is the code challenge method a provider supports.
type PKCEMethod string

const (
	PKCENone  PKCEMethod = ""
	PKCEPlain PKCEMethod = "plain"
	PKCES256  PKCEMethod = "S256"
)

// ProviderCategory groups providers for display.
type ProviderCategory string

const (
	CategoryMusic         ProviderCategory = "music"
	CategoryVideo         ProviderCategory = "video"
	CategoryFitness       ProviderCategory = "fitness"
	CategoryProfessional  ProviderCategory = "professional"
	CategoryCommunication ProviderCategory = "communication"
	CategoryProductivity  ProviderCategory = "productivity"
)

// ProviderConfig is the static OAuth description of one platform.
// Registry entries are immutable after startup.
type ProviderConfig struct {
	Platform       Platform         `json:"platform" toml:"-"`
	DisplayName    string           `json:"display_name" toml:"display_name"`
	Category       ProviderCategory `json:"category" toml:"category"`
	AuthURL        string           `json:"auth_url" toml:"auth_url"`
	TokenURL       string           `json:"-" toml:"token_url"`
	RevokeURL      string           `json:"-" toml:"revoke_url"`
	APIBaseURL     string           `json:"api_base_url,omitempty" toml:"api_base_url"`
	Scopes         []string         `json:"scopes" toml:"scopes"`
	ScopeSeparator string           `json:"-" toml:"scope_separator"`
	ScopeParam     string           `json:"-" toml:"scope_param"` // default "scope"
	ClientID       string           `json:"-" toml:"client_id"`
	ClientSecret   string           `json:"-" toml:"client_secret"` // never serialize
	AuthStyle      AuthStyle        `json:"-" toml:"auth_style"`
	PKCEMethod     PKCEMethod       `json:"pkce_method,omitempty" toml:"pkce_method"`

	// ExtraAuthParams are appended to the authorization URL
	// (e.g. access_type=offline for Google).
	ExtraAuthParams map[string]string `json:"-" toml:"extra_auth_params"`

	// NestedTokenKey names an object in the token response that holds the
	// user token (Slack v2 returns user tokens under "authed_user").
	NestedTokenKey string `json:"-" toml:"nested_token_key"`

	// RateLimit caps token endpoint requests per second; 0 means unlimited.
	RateLimit float64 `json:"-" toml:"rate_limit"`
}

// SupportsPKCE reports whether the provider advertises a PKCE method.
func (p *ProviderConfig) SupportsPKCE() bool {
	return p.PKCEMethod != PKCENone
}

// ScopeString joins scopes with the provider's separator.
func (p *ProviderConfig) ScopeString() string {
	sep := p.ScopeSeparator
	if sep == "" {
		sep = " "
	}
	return strings.Join(p.Scopes, sep)
}

// ScopeParamName returns the authorization URL parameter carrying scopes.
// Slack requests user tokens through "user_scope".
func (p *ProviderConfig) ScopeParamName() string {
	if p.ScopeParam == "" {
		return "scope"
	}
	return p.ScopeParam
}

// Validate checks that the entry is usable for an authorization flow.
func (p *ProviderConfig) Validate() error {
	if p.Platform == "" {
		return fmt.Errorf("%w: platform key is required", ErrInvalidInput)
	}
	if p.ClientID == "" {
		return fmt.Errorf("%w: %s: client id is required", ErrInvalidInput, p.Platform)
	}
	for name, raw := range map[string]string{"auth_url": p.AuthURL, "token_url": p.TokenURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s: %s must be an absolute URL", ErrInvalidInput, p.Platform, name)
		}
	}
	switch p.AuthStyle {
	case AuthStyleBasic, AuthStyleBody, AuthStyleJSON:
	default:
		return fmt.Errorf("%w: %s: unknown auth style %q", ErrInvalidInput, p.Platform, p.AuthStyle)
	}
	switch p.PKCEMethod {
	case PKCENone, PKCEPlain, PKCES256:
	default:
		return fmt.Errorf("%w: %s: unknown pkce method %q", ErrInvalidInput, p.Platform, p.PKCEMethod)
	}
	return nil
}

// PKCEParams holds a verifier and its derived challenge.
type PKCEParams struct {
	Verifier  string
	Challenge string
	Method    PKCEMethod
}
