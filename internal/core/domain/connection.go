package domain

import "time"

// ConnectionStatus is the lifecycle state of a stored platform connection.
type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionPending      ConnectionStatus = "pending"
	ConnectionTokenExpired ConnectionStatus = "token_expired"
	ConnectionNeedsReauth  ConnectionStatus = "needs_reauth"
	ConnectionReconnecting ConnectionStatus = "reconnecting"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// Valid reports whether s is a known connection status.
func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionConnected, ConnectionPending, ConnectionTokenExpired,
		ConnectionNeedsReauth, ConnectionReconnecting, ConnectionDisconnected:
		return true
	}
	return false
}

// SyncStatus is the outcome of the most recent data sync for a connection.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
	SyncUnknown SyncStatus = "unknown"
)

// PlatformConnection is the persisted grant for one (user, platform) pair.
// Token fields hold ciphertext only.
type PlatformConnection struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Platform Platform `json:"platform"`

	AccessTokenEncrypted  []byte     `json:"-"`
	RefreshTokenEncrypted []byte     `json:"-"`
	TokenType             string     `json:"token_type,omitempty"`
	TokenExpiresAt        *time.Time `json:"token_expires_at,omitempty"`

	Status         ConnectionStatus `json:"status"`
	Scopes         []string         `json:"scopes,omitempty"`
	LastError      string           `json:"last_error,omitempty"`
	LastSyncStatus SyncStatus       `json:"last_sync_status,omitempty"`
	LastSyncAt     *time.Time       `json:"last_sync_at,omitempty"`
	LastUsedAt     *time.Time       `json:"last_used_at,omitempty"`

	ConnectedAt time.Time `json:"connected_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Version increments on every token or status write and guards
	// concurrent refreshes.
	Version int64 `json:"-"`
}

// HasRefreshToken reports whether a refresh token is stored.
func (c *PlatformConnection) HasRefreshToken() bool {
	return len(c.RefreshTokenEncrypted) > 0
}

// TokenExpired returns true if the access token expiry is in the past.
// A nil expiry never expires.
func (c *PlatformConnection) TokenExpired(now time.Time) bool {
	return c.TokenExpiresAt != nil && c.TokenExpiresAt.Before(now)
}

// NeedsRefresh returns true if the token expires within skew of now.
func (c *PlatformConnection) NeedsRefresh(now time.Time, skew time.Duration) bool {
	if c.TokenExpiresAt == nil {
		return false
	}
	return c.TokenExpiresAt.Sub(now) < skew
}

// ViewStatus is the resolved status shown to consumers of a StatusView.
type ViewStatus string

const (
	ViewSuccess      ViewStatus = "success"
	ViewPending      ViewStatus = "pending"
	ViewFailed       ViewStatus = "failed"
	ViewTokenExpired ViewStatus = "token_expired"
	ViewNeedsReauth  ViewStatus = "needs_reauth"
	ViewReconnecting ViewStatus = "reconnecting"
	ViewDisconnected ViewStatus = "disconnected"
)

// StatusView is the per-platform entry returned by the status aggregator.
type StatusView struct {
	Platform         Platform         `json:"platform"`
	Connected        bool             `json:"connected"`
	IsActive         bool             `json:"is_active"`
	TokenExpired     bool             `json:"token_expired"`
	Status           ViewStatus       `json:"status"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
	ConnectedAt      *time.Time       `json:"connected_at,omitempty"`
	LastSync         *time.Time       `json:"last_sync,omitempty"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty"`
	Scopes           []string         `json:"scopes,omitempty"`
	Message          string           `json:"message,omitempty"`
}

// StatusMap is the cached per-user view keyed by platform.
type StatusMap map[Platform]StatusView
