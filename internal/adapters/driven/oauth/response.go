package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// parseTokenResponse normalizes a token endpoint response. Providers signal
// errors in three ways: a non-2xx status, an "error" field on a 200, or
// Slack's "ok": false. All of them become *domain.TokenExchangeError;
// 429 and 5xx are additionally marked ErrProviderUnavailable.
func parseTokenResponse(p *domain.ProviderConfig, status int, contentType string, body []byte) (*domain.TokenResponse, error) {
	raw := decodeBody(contentType, body)

	if status < 200 || status >= 300 {
		code, desc := errorFields(raw)
		exErr := &domain.TokenExchangeError{Platform: p.Platform, StatusCode: status, Code: code, Description: desc}
		if status == 429 || status >= 500 {
			return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, exErr)
		}
		return nil, exErr
	}

	if raw == nil {
		return nil, &domain.TokenExchangeError{
			Platform: p.Platform, StatusCode: status,
			Code: "invalid_response", Description: "response body is not JSON or form encoded",
		}
	}

	if code, desc := errorFields(raw); code != "" {
		return nil, &domain.TokenExchangeError{Platform: p.Platform, StatusCode: status, Code: code, Description: desc}
	}
	if ok, present := raw["ok"].(bool); present && !ok {
		return nil, &domain.TokenExchangeError{Platform: p.Platform, StatusCode: status, Code: "not_ok"}
	}

	fields := raw
	if p.NestedTokenKey != "" {
		if nested, ok := raw[p.NestedTokenKey].(map[string]any); ok && stringValue(nested["access_token"]) != "" {
			fields = nested
		}
	}

	tok := &domain.TokenResponse{
		AccessToken:  stringValue(fields["access_token"]),
		RefreshToken: stringValue(fields["refresh_token"]),
		TokenType:    normalizeTokenType(stringValue(fields["token_type"])),
		Scopes:       scopeList(fields["scope"]),
		ExpiresIn:    expiresIn(fields["expires_in"]),
	}
	if tok.AccessToken == "" {
		return nil, &domain.TokenExchangeError{
			Platform: p.Platform, StatusCode: status,
			Code: "invalid_response", Description: "response has no access_token",
		}
	}
	return tok, nil
}

// decodeBody parses JSON, falling back to form encoding (GitHub answers
// form-encoded when Accept is ignored). Returns nil if neither parses.
func decodeBody(contentType string, body []byte) map[string]any {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}

	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&raw); err == nil {
		return raw
	}

	if strings.Contains(contentType, "application/x-www-form-urlencoded") || strings.Contains(trimmed, "=") {
		vals, err := url.ParseQuery(trimmed)
		if err != nil || len(vals) == 0 {
			return nil
		}
		raw = make(map[string]any, len(vals))
		for k := range vals {
			raw[k] = vals.Get(k)
		}
		return raw
	}
	return nil
}

// extractError pulls error fields out of an arbitrary response body.
func extractError(body []byte) (string, string) {
	return errorFields(decodeBody("", body))
}

func errorFields(raw map[string]any) (string, string) {
	if raw == nil {
		return "", ""
	}
	var code string
	switch v := raw["error"].(type) {
	case string:
		code = v
	case map[string]any:
		code = stringValue(v["code"])
		if code == "" {
			code = stringValue(v["message"])
		}
	}
	desc := stringValue(raw["error_description"])
	if desc == "" {
		desc = stringValue(raw["message"])
	}
	return code, desc
}

func normalizeTokenType(t string) string {
	if t == "" || strings.EqualFold(t, "bearer") {
		return "Bearer"
	}
	return t
}

// scopeList accepts a space or comma separated string or a JSON array.
func scopeList(v any) []string {
	switch s := v.(type) {
	case string:
		return strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str := stringValue(item); str != "" {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func int64Value(input any) int64 {
	switch v := input.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return floatToInt64(f)
		}
	case float64:
		return floatToInt64(v)
	case string:
		// Out-of-range strings parse to the nearest bound.
		if n, err := strconv.ParseInt(v, 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
			return n
		}
	}
	return 0
}

func floatToInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// maxExpiresIn caps provider-reported lifetimes so the conversion to a
// Duration cannot overflow.
const maxExpiresIn = 10 * 365 * 24 * time.Hour

// expiresIn converts expires_in seconds. Missing, zero and negative
// values mean the token does not expire.
func expiresIn(input any) time.Duration {
	secs := int64Value(input)
	if secs <= 0 {
		return 0
	}
	if secs > int64(maxExpiresIn/time.Second) {
		return maxExpiresIn
	}
	return time.Duration(secs) * time.Second
}
