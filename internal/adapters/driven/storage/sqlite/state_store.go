package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
)

// ==================== OAuth State Store ====================

// stateStore implements driven.OAuthStateStore.
type stateStore struct {
	store *Store
}

var _ driven.OAuthStateStore = (*stateStore)(nil)

// Save stores a pending authorization state.
func (s *stateStore) Save(ctx context.Context, state domain.OAuthState) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO oauth_states (state, user_id, platform, pkce_code_verifier, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(state) DO UPDATE SET
			user_id = excluded.user_id,
			platform = excluded.platform,
			pkce_code_verifier = excluded.pkce_code_verifier,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, state.State, state.UserID, string(state.Platform), state.CodeVerifier,
		formatTime(state.CreatedAt), formatTime(state.ExpiresAt))
	if err != nil {
		return fmt.Errorf("saving oauth state: %w", err)
	}
	return nil
}

// GetAndDelete removes the state in one statement so it can be consumed once.
func (s *stateStore) GetAndDelete(ctx context.Context, state string) (*domain.OAuthState, error) {
	var st domain.OAuthState
	var platform, createdAt, expiresAt string
	err := s.store.db.QueryRowContext(ctx, `
		DELETE FROM oauth_states WHERE state = ?
		RETURNING state, user_id, platform, pkce_code_verifier, created_at, expires_at
	`, state).Scan(&st.State, &st.UserID, &platform, &st.CodeVerifier, &createdAt, &expiresAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consuming oauth state: %w", err)
	}

	st.Platform = domain.Platform(platform)
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if st.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return &st, nil
}

// DeleteExpired removes states whose expiry is not after now.
func (s *stateStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.store.db.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired oauth states: %w", err)
	}
	return res.RowsAffected()
}
