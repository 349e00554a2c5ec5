// Package providers holds the immutable table of OAuth providers the
// service can connect to.
package providers

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

var _ driven.ProviderRegistry = (*Registry)(nil)

// Registry maps platform keys to provider configuration.
// It is built once at startup and never mutated, so reads need no lock.
type Registry struct {
	providers map[domain.Platform]*domain.ProviderConfig
	platforms []domain.Platform
}

// NewRegistry validates every config and builds a registry.
func NewRegistry(configs ...*domain.ProviderConfig) (*Registry, error) {
	r := &Registry{providers: make(map[domain.Platform]*domain.ProviderConfig, len(configs))}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.providers[cfg.Platform]; dup {
			return nil, fmt.Errorf("%w: duplicate provider %s", domain.ErrInvalidInput, cfg.Platform)
		}
		cp := *cfg
		cp.Scopes = append([]string(nil), cfg.Scopes...)
		if cfg.ExtraAuthParams != nil {
			cp.ExtraAuthParams = make(map[string]string, len(cfg.ExtraAuthParams))
			for k, v := range cfg.ExtraAuthParams {
				cp.ExtraAuthParams[k] = v
			}
		}
		r.providers[cfg.Platform] = &cp
		r.platforms = append(r.platforms, cfg.Platform)
	}
	sort.Slice(r.platforms, func(i, j int) bool { return r.platforms[i] < r.platforms[j] })
	return r, nil
}

// Lookup returns the provider for platform or ErrUnknownProvider.
// Callers must treat the returned config as read-only.
func (r *Registry) Lookup(platform domain.Platform) (*domain.ProviderConfig, error) {
	p, ok := r.providers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, platform)
	}
	return p, nil
}

// Platforms lists registered platform keys in sorted order.
func (r *Registry) Platforms() []domain.Platform {
	return append([]domain.Platform(nil), r.platforms...)
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.providers)
}
