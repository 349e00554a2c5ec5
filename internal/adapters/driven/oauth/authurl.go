package oauth

import (
	"fmt"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// AuthCodeURL builds the provider authorization redirect.
func (c *Client) AuthCodeURL(p *domain.ProviderConfig, redirectURI, state string, pkce *domain.PKCEParams) (string, error) {
	if p.AuthURL == "" {
		return "", fmt.Errorf("%w: %s: auth url missing", domain.ErrInvalidInput, p.Platform)
	}

	// Scopes are passed explicitly because providers disagree on the
	// separator and parameter name.
	cfg := &oauth2.Config{
		ClientID:    p.ClientID,
		RedirectURL: redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.AuthURL,
			TokenURL: p.TokenURL,
		},
	}

	var opts []oauth2.AuthCodeOption
	if len(p.Scopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam(p.ScopeParamName(), p.ScopeString()))
	}
	for k, v := range p.ExtraAuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}

	if pkce != nil {
		switch pkce.Method {
		case domain.PKCES256:
			opts = append(opts, oauth2.S256ChallengeOption(pkce.Verifier))
		case domain.PKCEPlain:
			opts = append(opts,
				oauth2.SetAuthURLParam("code_challenge", pkce.Challenge),
				oauth2.SetAuthURLParam("code_challenge_method", string(domain.PKCEPlain)),
			)
		default:
			return "", fmt.Errorf("%w: pkce method %q", domain.ErrInvalidInput, pkce.Method)
		}
	}

	return cfg.AuthCodeURL(state, opts...), nil
}
