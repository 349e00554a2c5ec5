package providers

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// LoadOptions controls how the registry is assembled.
type LoadOptions struct {
	// File is an optional TOML file with [providers.<key>] tables that
	// override built-in entries or declare new ones.
	File string

	// Getenv resolves <PLATFORM>_CLIENT_ID and <PLATFORM>_CLIENT_SECRET.
	// Defaults to os.Getenv.
	Getenv func(string) string

	Logger *slog.Logger
}

// fileConfig is the TOML layout of the providers file.
type fileConfig struct {
	Providers map[string]providerOverride `toml:"providers"`
}

// providerOverride uses pointers so unset keys keep the built-in value.
type providerOverride struct {
	Enabled         *bool             `toml:"enabled"`
	DisplayName     *string           `toml:"display_name"`
	Category        *string           `toml:"category"`
	AuthURL         *string           `toml:"auth_url"`
	TokenURL        *string           `toml:"token_url"`
	RevokeURL       *string           `toml:"revoke_url"`
	APIBaseURL      *string           `toml:"api_base_url"`
	Scopes          []string          `toml:"scopes"`
	ScopeSeparator  *string           `toml:"scope_separator"`
	ScopeParam      *string           `toml:"scope_param"`
	ClientID        *string           `toml:"client_id"`
	ClientSecret    *string           `toml:"client_secret"`
	AuthStyle       *string           `toml:"auth_style"`
	PKCEMethod      *string           `toml:"pkce_method"`
	ExtraAuthParams map[string]string `toml:"extra_auth_params"`
	NestedTokenKey  *string           `toml:"nested_token_key"`
	RateLimit       *float64          `toml:"rate_limit"`
}

// Load builds a registry from the built-in table, the optional file and
// the environment. Providers left without a client id are skipped.
func Load(opts LoadOptions) (*Registry, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	all := Defaults()
	for key, cfg := range all {
		cfg.Platform = key
	}

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("read providers file: %w", err)
		}
		var fc fileConfig
		if err := toml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse providers file: %w", err)
		}
		for key, o := range fc.Providers {
			platform := domain.Platform(strings.ToLower(key))
			if o.Enabled != nil && !*o.Enabled {
				delete(all, platform)
				continue
			}
			cfg, ok := all[platform]
			if !ok {
				cfg = &domain.ProviderConfig{Platform: platform}
				all[platform] = cfg
			}
			o.apply(cfg)
		}
	}

	configs := make([]*domain.ProviderConfig, 0, len(all))
	for platform, cfg := range all {
		prefix := envPrefix(platform)
		if v := opts.Getenv(prefix + "_CLIENT_ID"); v != "" {
			cfg.ClientID = v
		}
		if v := opts.Getenv(prefix + "_CLIENT_SECRET"); v != "" {
			cfg.ClientSecret = v
		}
		if cfg.ClientID == "" {
			opts.Logger.Debug("provider not configured", "platform", platform)
			continue
		}
		if cfg.DisplayName == "" {
			cfg.DisplayName = string(platform)
		}
		configs = append(configs, cfg)
	}

	reg, err := NewRegistry(configs...)
	if err != nil {
		return nil, err
	}
	opts.Logger.Info("provider registry loaded", "providers", reg.Len())
	return reg, nil
}

func (o providerOverride) apply(cfg *domain.ProviderConfig) {
	setString(&cfg.DisplayName, o.DisplayName)
	setString(&cfg.AuthURL, o.AuthURL)
	setString(&cfg.TokenURL, o.TokenURL)
	setString(&cfg.RevokeURL, o.RevokeURL)
	setString(&cfg.APIBaseURL, o.APIBaseURL)
	setString(&cfg.ScopeSeparator, o.ScopeSeparator)
	setString(&cfg.ScopeParam, o.ScopeParam)
	setString(&cfg.ClientID, o.ClientID)
	setString(&cfg.ClientSecret, o.ClientSecret)
	setString(&cfg.NestedTokenKey, o.NestedTokenKey)
	if o.Category != nil {
		cfg.Category = domain.ProviderCategory(*o.Category)
	}
	if o.AuthStyle != nil {
		cfg.AuthStyle = domain.AuthStyle(*o.AuthStyle)
	}
	if o.PKCEMethod != nil {
		cfg.PKCEMethod = domain.PKCEMethod(*o.PKCEMethod)
	}
	if o.Scopes != nil {
		cfg.Scopes = o.Scopes
	}
	if o.ExtraAuthParams != nil {
		cfg.ExtraAuthParams = o.ExtraAuthParams
	}
	if o.RateLimit != nil {
		cfg.RateLimit = *o.RateLimit
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// envPrefix maps "spotify" to "SPOTIFY" and "google-drive" to "GOOGLE_DRIVE".
func envPrefix(p domain.Platform) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(string(p)))
}
