package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
)

// Ensure connectionService implements ConnectionService
var _ driving.ConnectionService = (*connectionService)(nil)

// CallbackPath is where providers redirect after authorization.
const CallbackPath = "/api/v1/oauth/callback"

// DefaultRefreshSkew is how close to expiry a borrowed token is refreshed.
const DefaultRefreshSkew = 5 * time.Minute

// ConnectionServiceConfig holds configuration for the connection service.
type ConnectionServiceConfig struct {
	Connections driven.ConnectionStore
	States      driven.AuthorizationStateStore
	Cache       driven.StatusCache
	Registry    driven.ProviderRegistry
	Client      driven.ProviderClient
	Cipher      driven.SecretCipher
	Codec       driven.StateCodec
	PKCE        driven.PKCEGenerator

	// Refresher is shared with the maintenance worker. Built from the
	// fields above when nil.
	Refresher *Refresher

	// BaseURL is the public base URL for OAuth callbacks.
	// Example: "https://connect.example.com"
	BaseURL string

	StateTTL    time.Duration // default domain.DefaultStateWindow
	CacheTTL    time.Duration // default DefaultStatusCacheTTL
	RefreshSkew time.Duration // default DefaultRefreshSkew

	Logger *slog.Logger
	Now    func() time.Time
}

// connectionService implements the ConnectionService interface.
type connectionService struct {
	connections driven.ConnectionStore
	cache       driven.StatusCache
	registry    driven.ProviderRegistry
	client      driven.ProviderClient
	cipher      driven.SecretCipher

	states    *StateIssuer
	refresher *Refresher
	status    *StatusAggregator

	redirectURI string
	refreshSkew time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewConnectionService creates a new connection service.
func NewConnectionService(cfg ConnectionServiceConfig) driving.ConnectionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	skew := cfg.RefreshSkew
	if skew <= 0 {
		skew = DefaultRefreshSkew
	}

	// Every component invalidates through the same counters the status
	// aggregator checks before caching a view.
	cache := TrackGenerations(cfg.Cache)

	refresher := cfg.Refresher
	if refresher == nil {
		refresher = NewRefresher(RefresherConfig{
			Connections: cfg.Connections,
			Cache:       cache,
			Registry:    cfg.Registry,
			Client:      cfg.Client,
			Cipher:      cfg.Cipher,
			Logger:      logger,
			Now:         now,
		})
	}

	return &connectionService{
		connections: cfg.Connections,
		cache:       cache,
		registry:    cfg.Registry,
		client:      cfg.Client,
		cipher:      cfg.Cipher,
		states: NewStateIssuer(StateIssuerConfig{
			Store:  cfg.States,
			Codec:  cfg.Codec,
			PKCE:   cfg.PKCE,
			Cipher: cfg.Cipher,
			Window: cfg.StateTTL,
			Now:    now,
		}),
		refresher: refresher,
		status: NewStatusAggregator(StatusAggregatorConfig{
			Connections: cfg.Connections,
			Cache:       cache,
			Refresher:   refresher,
			TTL:         cfg.CacheTTL,
			Logger:      logger,
			Now:         now,
		}),
		redirectURI: strings.TrimRight(cfg.BaseURL, "/") + CallbackPath,
		refreshSkew: skew,
		logger:      logger,
		now:         now,
	}
}

// BeginAuthorization issues state and builds the provider redirect.
// An existing connection is marked reconnecting until the callback lands.
func (s *connectionService) BeginAuthorization(ctx context.Context, req driving.BeginAuthorizationRequest) (*driving.BeginAuthorizationResponse, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	provider, err := s.registry.Lookup(req.Platform)
	if err != nil {
		return nil, err
	}

	method := provider.PKCEMethod
	if req.WantsPKCE && !provider.SupportsPKCE() {
		s.logger.Debug("pkce requested but not supported by provider", "platform", provider.Platform)
	}

	issued, err := s.states.Issue(ctx, req.UserID, provider, s.redirectURI, method)
	if err != nil {
		return nil, err
	}

	authURL, err := s.client.AuthCodeURL(provider, s.redirectURI, issued.Token, issued.PKCE)
	if err != nil {
		return nil, fmt.Errorf("build authorization url: %w", err)
	}

	reconnect, err := s.markReconnecting(ctx, req.UserID, provider.Platform)
	if err != nil {
		return nil, err
	}

	s.logger.Info("authorization started",
		"user_id", req.UserID,
		"platform", provider.Platform,
		"pkce", issued.PKCE != nil,
		"reconnect", reconnect,
	)

	return &driving.BeginAuthorizationResponse{
		AuthorizationURL: authURL,
		State:            issued.Token,
		ExpiresAt:        issued.ExpiresAt,
		Reconnect:        reconnect,
	}, nil
}

func (s *connectionService) markReconnecting(ctx context.Context, userID string, platform domain.Platform) (bool, error) {
	existing, err := s.connections.Get(ctx, userID, platform)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get connection: %w", err)
	}
	if existing.Status != domain.ConnectionReconnecting {
		if err := s.connections.SetStatus(ctx, userID, platform, domain.ConnectionReconnecting, existing.LastError); err != nil {
			return false, fmt.Errorf("mark reconnecting: %w", err)
		}
		s.invalidate(ctx, userID)
	}
	return true, nil
}

// CompleteAuthorization consumes the state, exchanges the code and stores
// the connection. The state is burned even when the exchange fails.
func (s *connectionService) CompleteAuthorization(ctx context.Context, req driving.CompleteAuthorizationRequest) (*domain.PlatformConnection, error) {
	if req.State == "" {
		if req.Error != "" {
			return nil, &driving.OAuthError{Code: req.Error, Description: req.ErrorDescription}
		}
		return nil, fmt.Errorf("%w: state is required", domain.ErrInvalidInput)
	}
	if req.Error == "" && req.Code == "" {
		return nil, fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}

	consumed, err := s.states.Consume(ctx, req.State)
	if err != nil {
		s.logger.Info("authorization state rejected", "error", err)
		return nil, err
	}
	state := consumed.State
	log := s.logger.With("user_id", state.UserID, "platform", state.Platform)

	if req.Error != "" {
		log.Info("provider denied authorization", "error", req.Error)
		s.resolveFailedReconnect(ctx, state.UserID, state.Platform, req.Error)
		return nil, &driving.OAuthError{Code: req.Error, Description: req.ErrorDescription}
	}

	provider, err := s.registry.Lookup(state.Platform)
	if err != nil {
		return nil, err
	}

	token, err := s.client.ExchangeCode(ctx, provider, req.Code, state.RedirectURI, consumed.Verifier)
	if err != nil {
		log.Warn("code exchange failed", "error", err)
		s.resolveFailedReconnect(ctx, state.UserID, state.Platform, err.Error())
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	now := s.now()
	conn := &domain.PlatformConnection{
		UserID:         state.UserID,
		Platform:       state.Platform,
		TokenType:      token.TokenType,
		TokenExpiresAt: token.ExpiresAt(now),
		Status:         domain.ConnectionConnected,
		Scopes:         token.Scopes,
		LastSyncStatus: domain.SyncPending,
		ConnectedAt:    now,
	}
	if len(conn.Scopes) == 0 {
		conn.Scopes = append([]string(nil), provider.Scopes...)
	}
	if conn.AccessTokenEncrypted, err = s.cipher.EncryptString(token.AccessToken); err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	if token.RefreshToken != "" {
		if conn.RefreshTokenEncrypted, err = s.cipher.EncryptString(token.RefreshToken); err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	if err := s.connections.Upsert(ctx, conn); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}
	s.invalidate(ctx, state.UserID)

	log.Info("platform connected",
		"expires_at", conn.TokenExpiresAt,
		"has_refresh_token", conn.HasRefreshToken(),
	)
	return conn, nil
}

// resolveFailedReconnect moves a reconnecting row to needs_reauth after a
// denied or failed callback. Rows in other states are left alone.
func (s *connectionService) resolveFailedReconnect(ctx context.Context, userID string, platform domain.Platform, reason string) {
	conn, err := s.connections.Get(ctx, userID, platform)
	if err != nil || conn.Status != domain.ConnectionReconnecting {
		return
	}
	if err := s.connections.SetStatus(ctx, userID, platform, domain.ConnectionNeedsReauth, reason); err != nil {
		s.logger.Warn("failed to resolve reconnect", "user_id", userID, "platform", platform, "error", err)
		return
	}
	s.invalidate(ctx, userID)
}

// GetConnectionStatus returns the user's per-platform status view.
func (s *connectionService) GetConnectionStatus(ctx context.Context, userID string) (domain.StatusMap, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return s.status.Get(ctx, userID)
}

// Disconnect revokes the grant where the provider supports it and deletes
// the row. Disconnecting an absent connection succeeds. The status cache
// is invalidated before returning so the next read sees the delete.
func (s *connectionService) Disconnect(ctx context.Context, userID string, platform domain.Platform) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	conn, err := s.connections.Get(ctx, userID, platform)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return fmt.Errorf("get connection: %w", err)
	default:
		s.revoke(ctx, conn)
		if err := s.connections.Delete(ctx, userID, platform); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete connection: %w", err)
		}
		s.logger.Info("platform disconnected", "user_id", userID, "platform", platform)
	}

	if err := s.cache.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("invalidate status cache: %w", err)
	}
	return nil
}

// revoke is best effort: failures are logged and never block the delete.
func (s *connectionService) revoke(ctx context.Context, conn *domain.PlatformConnection) {
	provider, err := s.registry.Lookup(conn.Platform)
	if err != nil || provider.RevokeURL == "" {
		return
	}

	blob := conn.AccessTokenEncrypted
	if conn.HasRefreshToken() {
		blob = conn.RefreshTokenEncrypted
	}
	token, err := s.cipher.DecryptString(blob)
	if err != nil {
		s.logger.Warn("skipping revocation, token unreadable", "platform", conn.Platform, "error", err)
		return
	}
	if err := s.client.Revoke(ctx, provider, token); err != nil {
		s.logger.Warn("token revocation failed", "platform", conn.Platform, "error", err)
	}
}

// BorrowAccessToken reads the store directly, never the cache, and
// refreshes when the token is within the refresh skew of expiry.
func (s *connectionService) BorrowAccessToken(ctx context.Context, userID string, platform domain.Platform) (*driving.BorrowedToken, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	provider, err := s.registry.Lookup(platform)
	if err != nil {
		return nil, err
	}

	conn, err := s.connections.Get(ctx, userID, platform)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.NeedsReauthError{Platform: platform, Reason: "not connected"}
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if conn.Status == domain.ConnectionNeedsReauth {
		return nil, &domain.NeedsReauthError{Platform: platform, Reason: conn.LastError}
	}

	now := s.now()
	if conn.NeedsRefresh(now, s.refreshSkew) {
		refreshed, err := s.refresher.Refresh(ctx, conn)
		switch {
		case err == nil:
			conn = refreshed
		case errors.Is(err, domain.ErrNeedsReauth):
			return nil, err
		case conn.TokenExpired(now):
			return nil, err
		default:
			// Refresh ahead of expiry failed; the current token still works.
			s.logger.Warn("early refresh failed, lending current token",
				"user_id", userID, "platform", platform, "error", err)
		}
	}

	access, err := s.cipher.DecryptString(conn.AccessTokenEncrypted)
	if err != nil {
		reason := "stored credentials could not be read"
		if serr := s.connections.SetStatus(ctx, userID, platform, domain.ConnectionNeedsReauth, reason); serr != nil {
			s.logger.Warn("failed to mark connection", "user_id", userID, "platform", platform, "error", serr)
		}
		s.invalidate(ctx, userID)
		return nil, &domain.NeedsReauthError{Platform: platform, Reason: reason}
	}

	if err := s.connections.TouchLastUsed(ctx, userID, platform, now); err != nil {
		s.logger.Warn("failed to stamp last use", "user_id", userID, "platform", platform, "error", err)
	}

	return &driving.BorrowedToken{
		AccessToken: access,
		TokenType:   conn.TokenType,
		ExpiresAt:   conn.TokenExpiresAt,
		Scopes:      conn.Scopes,
		Platform:    platform,
		APIBaseURL:  provider.APIBaseURL,
	}, nil
}

// RecordSync stores a sync outcome reported by an extraction job.
func (s *connectionService) RecordSync(ctx context.Context, userID string, platform domain.Platform, status domain.SyncStatus) error {
	switch status {
	case domain.SyncSuccess, domain.SyncFailed, domain.SyncPending, domain.SyncUnknown:
	default:
		return fmt.Errorf("%w: unknown sync status %q", domain.ErrInvalidInput, status)
	}
	if err := s.connections.RecordSync(ctx, userID, platform, status, s.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("record sync: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// Providers lists registered platforms.
func (s *connectionService) Providers() []*driving.ProviderSummary {
	platforms := s.registry.Platforms()
	out := make([]*driving.ProviderSummary, 0, len(platforms))
	for _, p := range platforms {
		cfg, err := s.registry.Lookup(p)
		if err != nil {
			continue
		}
		out = append(out, &driving.ProviderSummary{
			Platform:     cfg.Platform,
			DisplayName:  cfg.DisplayName,
			Category:     cfg.Category,
			Scopes:       cfg.Scopes,
			SupportsPKCE: cfg.SupportsPKCE(),
		})
	}
	return out
}

func (s *connectionService) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate status cache", "user_id", userID, "error", err)
	}
}
