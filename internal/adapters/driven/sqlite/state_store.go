package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// stateStore implements driven.AuthorizationStateStore.
type stateStore struct {
	store *Store
}

var _ driven.AuthorizationStateStore = (*stateStore)(nil)

// Save inserts a new authorization state.
func (s *stateStore) Save(ctx context.Context, state *domain.AuthorizationState) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO authorization_states (
			state_id, user_id, platform, code_verifier_encrypted,
			redirect_uri, created_at, expires_at, used
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`,
		state.StateID,
		state.UserID,
		string(state.Platform),
		blob(state.CodeVerifierEncrypted),
		state.RedirectURI,
		state.CreatedAt.UnixNano(),
		state.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving authorization state: %w", err)
	}
	return nil
}

// Consume flips used in one conditional UPDATE so at most one caller wins.
func (s *stateStore) Consume(ctx context.Context, stateID string, now time.Time) (*domain.AuthorizationState, error) {
	var (
		st                   domain.AuthorizationState
		platform             string
		createdAt, expiresAt int64
		used                 int
		usedAt               sql.NullInt64
	)
	err := s.store.db.QueryRowContext(ctx, `
		UPDATE authorization_states
		SET used = 1, used_at = ?2
		WHERE state_id = ?1 AND used = 0 AND expires_at > ?2
		RETURNING state_id, user_id, platform, code_verifier_encrypted,
		          redirect_uri, created_at, expires_at, used, used_at
	`, stateID, now.UnixNano()).Scan(
		&st.StateID,
		&st.UserID,
		&platform,
		&st.CodeVerifierEncrypted,
		&st.RedirectURI,
		&createdAt,
		&expiresAt,
		&used,
		&usedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.diagnose(ctx, stateID)
	}
	if err != nil {
		return nil, fmt.Errorf("consuming authorization state: %w", err)
	}

	st.Platform = domain.Platform(platform)
	st.CreatedAt = fromNanos(createdAt)
	st.ExpiresAt = fromNanos(expiresAt)
	st.Used = used == 1
	st.UsedAt = fromNullNanos(usedAt)
	return &st, nil
}

// diagnose explains a consume that matched no row.
func (s *stateStore) diagnose(ctx context.Context, stateID string) error {
	var used int
	err := s.store.db.QueryRowContext(ctx,
		`SELECT used FROM authorization_states WHERE state_id = ?`, stateID,
	).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrStateNotFound
	}
	if err != nil {
		return fmt.Errorf("reading authorization state: %w", err)
	}
	if used == 1 {
		return domain.ErrStateReplay
	}
	return domain.ErrStateExpired
}

// Cleanup deletes states whose expiry is at or before now.
func (s *stateStore) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.store.db.ExecContext(ctx,
		`DELETE FROM authorization_states WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cleaning up authorization states: %w", err)
	}
	return res.RowsAffected()
}
