package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure ConnectionStore implements the interface.
var _ driven.ConnectionStore = (*ConnectionStore)(nil)

const connectionColumns = `
	id, user_id, platform, access_token_encrypted, refresh_token_encrypted,
	token_type, token_expires_at, status, scopes, last_error,
	last_sync_status, last_sync_at, last_used_at, connected_at, updated_at, version`

// ConnectionStore implements driven.ConnectionStore using PostgreSQL.
// Token columns hold ciphertext produced by the service layer.
type ConnectionStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewConnectionStore creates a new PostgreSQL-backed connection store.
func NewConnectionStore(db *sql.DB) *ConnectionStore {
	return &ConnectionStore{db: db, now: time.Now}
}

// Upsert inserts or replaces the connection keyed by (user_id, platform).
// A replaced row keeps its id and connected_at is reset by the caller.
func (s *ConnectionStore) Upsert(ctx context.Context, conn *domain.PlatformConnection) error {
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	now := s.now()
	if conn.ConnectedAt.IsZero() {
		conn.ConnectedAt = now
	}
	conn.UpdatedAt = now
	if conn.LastSyncStatus == "" {
		conn.LastSyncStatus = domain.SyncPending
	}

	query := `
		INSERT INTO platform_connections (
			id, user_id, platform, access_token_encrypted, refresh_token_encrypted,
			token_type, token_expires_at, status, scopes, last_error,
			last_sync_status, last_sync_at, last_used_at, connected_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token_encrypted = EXCLUDED.access_token_encrypted,
			refresh_token_encrypted = EXCLUDED.refresh_token_encrypted,
			token_type = EXCLUDED.token_type,
			token_expires_at = EXCLUDED.token_expires_at,
			status = EXCLUDED.status,
			scopes = EXCLUDED.scopes,
			last_error = EXCLUDED.last_error,
			last_sync_status = EXCLUDED.last_sync_status,
			connected_at = EXCLUDED.connected_at,
			updated_at = EXCLUDED.updated_at,
			version = platform_connections.version + 1
		RETURNING id, version
	`

	err := s.db.QueryRowContext(ctx, query,
		conn.ID,
		conn.UserID,
		conn.Platform,
		conn.AccessTokenEncrypted,
		nullBytes(conn.RefreshTokenEncrypted),
		conn.TokenType,
		nullTime(conn.TokenExpiresAt),
		conn.Status,
		pq.Array(scopesOrEmpty(conn.Scopes)),
		conn.LastError,
		conn.LastSyncStatus,
		nullTime(conn.LastSyncAt),
		nullTime(conn.LastUsedAt),
		conn.ConnectedAt,
		conn.UpdatedAt,
	).Scan(&conn.ID, &conn.Version)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

// Get retrieves a connection by user and platform.
func (s *ConnectionStore) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.PlatformConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM platform_connections WHERE user_id = $1 AND platform = $2`

	conn, err := scanConnection(s.db.QueryRowContext(ctx, query, userID, platform))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return conn, nil
}

// ListByUser retrieves all connections for a user.
func (s *ConnectionStore) ListByUser(ctx context.Context, userID string) ([]*domain.PlatformConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM platform_connections WHERE user_id = $1 ORDER BY platform`
	return s.list(ctx, query, userID)
}

// ListExpiring returns refreshable connections expiring before the cutoff.
func (s *ConnectionStore) ListExpiring(ctx context.Context, before time.Time, limit int) ([]*domain.PlatformConnection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM platform_connections
		WHERE token_expires_at IS NOT NULL
		  AND token_expires_at < $1
		  AND refresh_token_encrypted IS NOT NULL
		  AND status <> $2
		ORDER BY token_expires_at
		LIMIT $3
	`
	return s.list(ctx, query, before, domain.ConnectionNeedsReauth, limit)
}

func (s *ConnectionStore) list(ctx context.Context, query string, args ...any) ([]*domain.PlatformConnection, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []*domain.PlatformConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

// Update writes token and status fields if the version still matches.
func (s *ConnectionStore) Update(ctx context.Context, conn *domain.PlatformConnection, expectedVersion int64) error {
	conn.UpdatedAt = s.now()

	query := `
		UPDATE platform_connections SET
			access_token_encrypted = $3,
			refresh_token_encrypted = $4,
			token_type = $5,
			token_expires_at = $6,
			status = $7,
			scopes = $8,
			last_error = $9,
			updated_at = $10,
			version = version + 1
		WHERE user_id = $1 AND platform = $2 AND version = $11
		RETURNING version
	`

	err := s.db.QueryRowContext(ctx, query,
		conn.UserID,
		conn.Platform,
		conn.AccessTokenEncrypted,
		nullBytes(conn.RefreshTokenEncrypted),
		conn.TokenType,
		nullTime(conn.TokenExpiresAt),
		conn.Status,
		pq.Array(scopesOrEmpty(conn.Scopes)),
		conn.LastError,
		conn.UpdatedAt,
		expectedVersion,
	).Scan(&conn.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return s.missOrConflict(ctx, conn.UserID, conn.Platform)
	}
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	return nil
}

func (s *ConnectionStore) missOrConflict(ctx context.Context, userID string, platform domain.Platform) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM platform_connections WHERE user_id = $1 AND platform = $2)`,
		userID, platform,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

// SetStatus unconditionally updates status and last error.
func (s *ConnectionStore) SetStatus(ctx context.Context, userID string, platform domain.Platform, status domain.ConnectionStatus, lastError string) error {
	return s.exec(ctx, "set connection status", `
		UPDATE platform_connections
		SET status = $3, last_error = $4, updated_at = $5, version = version + 1
		WHERE user_id = $1 AND platform = $2
	`, userID, platform, status, lastError, s.now())
}

// TouchLastUsed stamps last_used_at.
func (s *ConnectionStore) TouchLastUsed(ctx context.Context, userID string, platform domain.Platform, at time.Time) error {
	return s.exec(ctx, "touch connection", `
		UPDATE platform_connections SET last_used_at = $3
		WHERE user_id = $1 AND platform = $2
	`, userID, platform, at)
}

// RecordSync stores the outcome of a sync run.
func (s *ConnectionStore) RecordSync(ctx context.Context, userID string, platform domain.Platform, status domain.SyncStatus, at time.Time) error {
	return s.exec(ctx, "record sync", `
		UPDATE platform_connections
		SET last_sync_status = $3, last_sync_at = $4, updated_at = $4
		WHERE user_id = $1 AND platform = $2
	`, userID, platform, status, at)
}

// Delete removes a connection.
func (s *ConnectionStore) Delete(ctx context.Context, userID string, platform domain.Platform) error {
	return s.exec(ctx, "delete connection",
		`DELETE FROM platform_connections WHERE user_id = $1 AND platform = $2`,
		userID, platform)
}

// Ping checks if the database is reachable.
func (s *ConnectionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ConnectionStore) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*domain.PlatformConnection, error) {
	var (
		conn       domain.PlatformConnection
		expiresAt  sql.NullTime
		lastSyncAt sql.NullTime
		lastUsedAt sql.NullTime
		scopes     pq.StringArray
	)

	err := row.Scan(
		&conn.ID,
		&conn.UserID,
		&conn.Platform,
		&conn.AccessTokenEncrypted,
		&conn.RefreshTokenEncrypted,
		&conn.TokenType,
		&expiresAt,
		&conn.Status,
		&scopes,
		&conn.LastError,
		&conn.LastSyncStatus,
		&lastSyncAt,
		&lastUsedAt,
		&conn.ConnectedAt,
		&conn.UpdatedAt,
		&conn.Version,
	)
	if err != nil {
		return nil, err
	}

	conn.TokenExpiresAt = timePtr(expiresAt)
	conn.LastSyncAt = timePtr(lastSyncAt)
	conn.LastUsedAt = timePtr(lastUsedAt)
	conn.Scopes = []string(scopes)
	return &conn, nil
}

func scopesOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
