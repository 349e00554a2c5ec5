package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.AuthorizationStateStore = (*StateStore)(nil)

// StateStore implements driven.AuthorizationStateStore using PostgreSQL.
type StateStore struct {
	db *sql.DB
}

// NewStateStore creates a new PostgreSQL-backed authorization state store.
func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

// Save stores a new authorization state.
func (s *StateStore) Save(ctx context.Context, state *domain.AuthorizationState) error {
	query := `
		INSERT INTO authorization_states (
			state_id, user_id, platform, code_verifier_encrypted,
			redirect_uri, created_at, expires_at, used
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
	`

	_, err := s.db.ExecContext(ctx, query,
		state.StateID,
		state.UserID,
		state.Platform,
		nullBytes(state.CodeVerifierEncrypted),
		state.RedirectURI,
		state.CreatedAt,
		state.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save authorization state: %w", err)
	}
	return nil
}

// Consume marks the state used with a single conditional UPDATE. Only one
// concurrent caller can match used = FALSE, so the row lock taken by the
// update serializes racing callbacks.
func (s *StateStore) Consume(ctx context.Context, stateID string, now time.Time) (*domain.AuthorizationState, error) {
	query := `
		UPDATE authorization_states
		SET used = TRUE, used_at = $2
		WHERE state_id = $1 AND used = FALSE AND expires_at > $2
		RETURNING state_id, user_id, platform, code_verifier_encrypted,
		          redirect_uri, created_at, expires_at, used, used_at
	`

	var (
		st     domain.AuthorizationState
		usedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, stateID, now).Scan(
		&st.StateID,
		&st.UserID,
		&st.Platform,
		&st.CodeVerifierEncrypted,
		&st.RedirectURI,
		&st.CreatedAt,
		&st.ExpiresAt,
		&st.Used,
		&usedAt,
	)
	if err == nil {
		st.UsedAt = timePtr(usedAt)
		return &st, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consume authorization state: %w", err)
	}

	return nil, s.diagnose(ctx, stateID)
}

// diagnose explains why a conditional consume matched no row.
func (s *StateStore) diagnose(ctx context.Context, stateID string) error {
	var used bool
	err := s.db.QueryRowContext(ctx,
		`SELECT used FROM authorization_states WHERE state_id = $1`, stateID,
	).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrStateNotFound
	}
	if err != nil {
		return fmt.Errorf("diagnose authorization state: %w", err)
	}
	if used {
		return domain.ErrStateReplay
	}
	return domain.ErrStateExpired
}

// Cleanup removes expired states.
func (s *StateStore) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM authorization_states WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("cleanup authorization states: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup authorization states: %w", err)
	}
	return n, nil
}
