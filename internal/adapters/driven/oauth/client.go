// Package oauth implements the provider side of the OAuth2 code and
// refresh grants. Provider differences are expressed as data in
// domain.ProviderConfig and dispatched through tables, not per-provider code.
package oauth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

const (
	// DefaultTimeout bounds a single token endpoint round trip.
	DefaultTimeout = 30 * time.Second

	// maxResponseSize caps how much of a provider response is read.
	maxResponseSize = 1 << 20
)

// Ensure Client implements ProviderClient
var _ driven.ProviderClient = (*Client)(nil)

// Config holds configuration for the provider client.
type Config struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client performs token exchange, refresh and revocation against any
// provider in the registry.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu       sync.Mutex
	limiters map[domain.Platform]*rate.Limiter
}

// NewClient creates a provider client.
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		limiters:   make(map[domain.Platform]*rate.Limiter),
	}
}

// ExchangeCode trades an authorization code for tokens.
// It is never retried: authorization codes are single-use.
func (c *Client) ExchangeCode(ctx context.Context, p *domain.ProviderConfig, code, redirectURI, verifier string) (*domain.TokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", "authorization_code")
	params.Set("code", code)
	params.Set("redirect_uri", redirectURI)
	if verifier != "" {
		params.Set("code_verifier", verifier)
	}
	return c.tokenRequest(ctx, p, params)
}

// Refresh performs a refresh_token grant.
func (c *Client) Refresh(ctx context.Context, p *domain.ProviderConfig, refreshToken string) (*domain.TokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", "refresh_token")
	params.Set("refresh_token", refreshToken)
	return c.tokenRequest(ctx, p, params)
}

// Revoke asks the provider to invalidate token (RFC 7009).
func (c *Client) Revoke(ctx context.Context, p *domain.ProviderConfig, token string) error {
	if p.RevokeURL == "" {
		return nil
	}

	params := url.Values{}
	params.Set("token", token)
	req, err := buildTokenRequest(ctx, p, p.RevokeURL, params)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, p, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if resp.StatusCode >= 300 {
		code, desc := extractError(body)
		return &domain.TokenExchangeError{Platform: p.Platform, StatusCode: resp.StatusCode, Code: code, Description: desc}
	}
	return nil
}

func (c *Client) tokenRequest(ctx context.Context, p *domain.ProviderConfig, params url.Values) (*domain.TokenResponse, error) {
	req, err := buildTokenRequest(ctx, p, p.TokenURL, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.do(ctx, p, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read token response: %v", domain.ErrProviderUnavailable, p.Platform, err)
	}

	tok, err := parseTokenResponse(p, resp.StatusCode, resp.Header.Get("Content-Type"), body)
	if err != nil {
		c.logger.Warn("token request rejected",
			"platform", p.Platform,
			"grant_type", params.Get("grant_type"),
			"status", resp.StatusCode,
			"error", err,
		)
		return nil, err
	}

	c.logger.Debug("token request completed",
		"platform", p.Platform,
		"grant_type", params.Get("grant_type"),
		"duration", time.Since(start),
		"rotated_refresh", tok.RefreshToken != "",
	)
	return tok, nil
}

func (c *Client) do(ctx context.Context, p *domain.ProviderConfig, req *http.Request) (*http.Response, error) {
	if lim := c.limiter(p); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: rate limit wait: %v", domain.ErrProviderUnavailable, p.Platform, err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, p.Platform, err)
	}
	return resp, nil
}

// limiter returns the per-platform token endpoint limiter, or nil when the
// provider is unlimited.
func (c *Client) limiter(p *domain.ProviderConfig) *rate.Limiter {
	if p.RateLimit <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.limiters[p.Platform]
	if !ok {
		burst := int(p.RateLimit)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(p.RateLimit), burst)
		c.limiters[p.Platform] = lim
	}
	return lim
}
