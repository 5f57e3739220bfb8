package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

// DefaultStateTTL is how long an issued OAuth state stays valid.
const DefaultStateTTL = 10 * time.Minute

// StateService issues and consumes single-use OAuth states on top of a
// driven.OAuthStateStore backend.
type StateService struct {
	store driven.OAuthStateStore
	ttl   time.Duration
	now   func() time.Time
}

// NewStateService creates a state service. A non-positive ttl uses DefaultStateTTL.
func NewStateService(store driven.OAuthStateStore, ttl time.Duration) *StateService {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateService{store: store, ttl: ttl, now: time.Now}
}

// Issue persists a new state for the user and platform and returns the value
// to embed in the authorization URL. A non-empty codeVerifier is persisted
// and also appended to the returned value.
func (s *StateService) Issue(
	ctx context.Context, userID string, platform domain.Platform, codeVerifier string,
) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id required", domain.ErrInvalidInput)
	}
	key, err := generateState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	now := s.now()
	st := domain.OAuthState{
		State:        key,
		UserID:       userID,
		Platform:     platform,
		CodeVerifier: codeVerifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, st); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}
	return joinState(key, codeVerifier), nil
}

// Consume validates and deletes a state. The state is removed on every
// lookup, so a second call with the same value fails with ErrStateInvalid.
func (s *StateService) Consume(
	ctx context.Context, raw string, platform domain.Platform,
) (*domain.OAuthState, error) {
	key, suffix := splitState(raw)
	if key == "" {
		return nil, domain.ErrStateInvalid
	}

	st, err := s.store.GetAndDelete(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if st == nil {
		return nil, domain.ErrStateInvalid
	}
	if st.Platform != platform {
		logger.Warn("oauth state for %s presented on %s callback", st.Platform, platform)
		return nil, domain.ErrStateInvalid
	}
	if st.IsExpired(s.now()) {
		return nil, domain.ErrStateExpired
	}

	switch {
	case st.CodeVerifier == "":
		st.CodeVerifier = suffix
	case suffix != "" && suffix != st.CodeVerifier:
		return nil, domain.ErrStateInvalid
	}
	return st, nil
}

// Cleanup deletes expired states and returns how many were removed.
func (s *StateService) Cleanup(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}
