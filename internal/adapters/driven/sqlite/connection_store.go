package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

const connectionColumns = `
	id, user_id, platform, access_token_encrypted, refresh_token_encrypted,
	token_type, token_expires_at, status, scopes, last_error,
	last_sync_status, last_sync_at, last_used_at, connected_at, updated_at, version`

// connectionStore implements driven.ConnectionStore.
type connectionStore struct {
	store *Store
}

var _ driven.ConnectionStore = (*connectionStore)(nil)

// Upsert inserts or replaces the row for (user_id, platform).
func (s *connectionStore) Upsert(ctx context.Context, conn *domain.PlatformConnection) error {
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	now := s.store.now()
	if conn.ConnectedAt.IsZero() {
		conn.ConnectedAt = now
	}
	conn.UpdatedAt = now
	if conn.LastSyncStatus == "" {
		conn.LastSyncStatus = domain.SyncPending
	}

	scopes, err := marshalScopes(conn.Scopes)
	if err != nil {
		return err
	}

	err = s.store.db.QueryRowContext(ctx, `
		INSERT INTO platform_connections (
			id, user_id, platform, access_token_encrypted, refresh_token_encrypted,
			token_type, token_expires_at, status, scopes, last_error,
			last_sync_status, last_sync_at, last_used_at, connected_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token_encrypted = excluded.access_token_encrypted,
			refresh_token_encrypted = excluded.refresh_token_encrypted,
			token_type = excluded.token_type,
			token_expires_at = excluded.token_expires_at,
			status = excluded.status,
			scopes = excluded.scopes,
			last_error = excluded.last_error,
			last_sync_status = excluded.last_sync_status,
			connected_at = excluded.connected_at,
			updated_at = excluded.updated_at,
			version = platform_connections.version + 1
		RETURNING id, version
	`,
		conn.ID,
		conn.UserID,
		string(conn.Platform),
		conn.AccessTokenEncrypted,
		blob(conn.RefreshTokenEncrypted),
		conn.TokenType,
		nanos(conn.TokenExpiresAt),
		string(conn.Status),
		scopes,
		conn.LastError,
		string(conn.LastSyncStatus),
		nanos(conn.LastSyncAt),
		nanos(conn.LastUsedAt),
		conn.ConnectedAt.UnixNano(),
		conn.UpdatedAt.UnixNano(),
	).Scan(&conn.ID, &conn.Version)
	if err != nil {
		return fmt.Errorf("upserting connection: %w", err)
	}
	return nil
}

// Get retrieves one connection.
func (s *connectionStore) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.PlatformConnection, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM platform_connections WHERE user_id = ? AND platform = ?`,
		userID, string(platform))
	conn, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}
	return conn, nil
}

// ListByUser returns every connection for a user ordered by platform.
func (s *connectionStore) ListByUser(ctx context.Context, userID string) ([]*domain.PlatformConnection, error) {
	return s.list(ctx,
		`SELECT `+connectionColumns+` FROM platform_connections WHERE user_id = ? ORDER BY platform`,
		userID)
}

// ListExpiring returns refreshable connections expiring before the cutoff.
func (s *connectionStore) ListExpiring(ctx context.Context, before time.Time, limit int) ([]*domain.PlatformConnection, error) {
	return s.list(ctx, `
		SELECT `+connectionColumns+`
		FROM platform_connections
		WHERE token_expires_at IS NOT NULL
		  AND token_expires_at < ?
		  AND refresh_token_encrypted IS NOT NULL
		  AND status <> ?
		ORDER BY token_expires_at
		LIMIT ?
	`, before.UnixNano(), string(domain.ConnectionNeedsReauth), limit)
}

func (s *connectionStore) list(ctx context.Context, query string, args ...any) ([]*domain.PlatformConnection, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	var conns []*domain.PlatformConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

// Update writes token and status fields when the version still matches.
func (s *connectionStore) Update(ctx context.Context, conn *domain.PlatformConnection, expectedVersion int64) error {
	scopes, err := marshalScopes(conn.Scopes)
	if err != nil {
		return err
	}
	conn.UpdatedAt = s.store.now()

	err = s.store.db.QueryRowContext(ctx, `
		UPDATE platform_connections SET
			access_token_encrypted = ?,
			refresh_token_encrypted = ?,
			token_type = ?,
			token_expires_at = ?,
			status = ?,
			scopes = ?,
			last_error = ?,
			updated_at = ?,
			version = version + 1
		WHERE user_id = ? AND platform = ? AND version = ?
		RETURNING version
	`,
		conn.AccessTokenEncrypted,
		blob(conn.RefreshTokenEncrypted),
		conn.TokenType,
		nanos(conn.TokenExpiresAt),
		string(conn.Status),
		scopes,
		conn.LastError,
		conn.UpdatedAt.UnixNano(),
		conn.UserID,
		string(conn.Platform),
		expectedVersion,
	).Scan(&conn.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return s.missOrConflict(ctx, conn.UserID, conn.Platform)
	}
	if err != nil {
		return fmt.Errorf("updating connection: %w", err)
	}
	return nil
}

func (s *connectionStore) missOrConflict(ctx context.Context, userID string, platform domain.Platform) error {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM platform_connections WHERE user_id = ? AND platform = ?`,
		userID, string(platform)).Scan(&n)
	if err != nil {
		return fmt.Errorf("updating connection: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

// SetStatus unconditionally updates status and last error.
func (s *connectionStore) SetStatus(ctx context.Context, userID string, platform domain.Platform, status domain.ConnectionStatus, lastError string) error {
	return s.exec(ctx, "setting connection status", `
		UPDATE platform_connections
		SET status = ?, last_error = ?, updated_at = ?, version = version + 1
		WHERE user_id = ? AND platform = ?
	`, string(status), lastError, s.store.now().UnixNano(), userID, string(platform))
}

// TouchLastUsed stamps last_used_at.
func (s *connectionStore) TouchLastUsed(ctx context.Context, userID string, platform domain.Platform, at time.Time) error {
	return s.exec(ctx, "touching connection",
		`UPDATE platform_connections SET last_used_at = ? WHERE user_id = ? AND platform = ?`,
		at.UnixNano(), userID, string(platform))
}

// RecordSync stores the outcome of a sync run.
func (s *connectionStore) RecordSync(ctx context.Context, userID string, platform domain.Platform, status domain.SyncStatus, at time.Time) error {
	return s.exec(ctx, "recording sync", `
		UPDATE platform_connections
		SET last_sync_status = ?, last_sync_at = ?, updated_at = ?
		WHERE user_id = ? AND platform = ?
	`, string(status), at.UnixNano(), at.UnixNano(), userID, string(platform))
}

// Delete removes a connection.
func (s *connectionStore) Delete(ctx context.Context, userID string, platform domain.Platform) error {
	return s.exec(ctx, "deleting connection",
		`DELETE FROM platform_connections WHERE user_id = ? AND platform = ?`,
		userID, string(platform))
}

// Ping checks the database is reachable.
func (s *connectionStore) Ping(ctx context.Context) error {
	return s.store.db.PingContext(ctx)
}

func (s *connectionStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*domain.PlatformConnection, error) {
	var (
		conn                   domain.PlatformConnection
		platform, status, sync string
		scopes                 string
		expiresAt              sql.NullInt64
		lastSyncAt, lastUsedAt sql.NullInt64
		connectedAt, updatedAt int64
	)
	err := row.Scan(
		&conn.ID,
		&conn.UserID,
		&platform,
		&conn.AccessTokenEncrypted,
		&conn.RefreshTokenEncrypted,
		&conn.TokenType,
		&expiresAt,
		&status,
		&scopes,
		&conn.LastError,
		&sync,
		&lastSyncAt,
		&lastUsedAt,
		&connectedAt,
		&updatedAt,
		&conn.Version,
	)
	if err != nil {
		return nil, err
	}

	conn.Platform = domain.Platform(platform)
	conn.Status = domain.ConnectionStatus(status)
	conn.LastSyncStatus = domain.SyncStatus(sync)
	conn.TokenExpiresAt = fromNullNanos(expiresAt)
	conn.LastSyncAt = fromNullNanos(lastSyncAt)
	conn.LastUsedAt = fromNullNanos(lastUsedAt)
	conn.ConnectedAt = fromNanos(connectedAt)
	conn.UpdatedAt = fromNanos(updatedAt)
	if err := json.Unmarshal([]byte(scopes), &conn.Scopes); err != nil {
		return nil, fmt.Errorf("unmarshalling scopes: %w", err)
	}
	return &conn, nil
}

func marshalScopes(scopes []string) (string, error) {
	if scopes == nil {
		scopes = []string{}
	}
	data, err := json.Marshal(scopes)
	if err != nil {
		return "", fmt.Errorf("marshalling scopes: %w", err)
	}
	return string(data), nil
}
