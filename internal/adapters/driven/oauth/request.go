package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// requestBuilder encodes a token endpoint request for one auth style.
type requestBuilder func(ctx context.Context, p *domain.ProviderConfig, endpoint string, params url.Values) (*http.Request, error)

// requestBuilders is the dispatch table for client authentication styles.
var requestBuilders = map[domain.AuthStyle]requestBuilder{
	domain.AuthStyleBasic: basicAuthRequest,
	domain.AuthStyleBody:  bodyCredentialsRequest,
	domain.AuthStyleJSON:  jsonBodyRequest,
}

func buildTokenRequest(ctx context.Context, p *domain.ProviderConfig, endpoint string, params url.Values) (*http.Request, error) {
	build, ok := requestBuilders[p.AuthStyle]
	if !ok {
		return nil, fmt.Errorf("%w: %s: unsupported auth style %q", domain.ErrInvalidInput, p.Platform, p.AuthStyle)
	}
	req, err := build(ctx, p, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// basicAuthRequest sends client credentials in an Authorization header
// (RFC 6749 section 2.3.1) and the grant as a form body.
func basicAuthRequest(ctx context.Context, p *domain.ProviderConfig, endpoint string, params url.Values) (*http.Request, error) {
	req, err := formRequest(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	setBasicAuth(req, p)
	return req, nil
}

// bodyCredentialsRequest sends client_id and client_secret as form fields.
func bodyCredentialsRequest(ctx context.Context, p *domain.ProviderConfig, endpoint string, params url.Values) (*http.Request, error) {
	form := cloneValues(params)
	form.Set("client_id", p.ClientID)
	if p.ClientSecret != "" {
		form.Set("client_secret", p.ClientSecret)
	}
	return formRequest(ctx, endpoint, form)
}

// jsonBodyRequest sends the grant as a JSON object with Basic credentials.
func jsonBodyRequest(ctx context.Context, p *domain.ProviderConfig, endpoint string, params url.Values) (*http.Request, error) {
	body := make(map[string]string, len(params))
	for k := range params {
		body[k] = params.Get(k)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	setBasicAuth(req, p)
	return req, nil
}

func formRequest(ctx context.Context, endpoint string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func setBasicAuth(req *http.Request, p *domain.ProviderConfig) {
	req.SetBasicAuth(url.QueryEscape(p.ClientID), url.QueryEscape(p.ClientSecret))
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
