package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.OAuthStateStore = (*StateStore)(nil)

// StateStore is an in-memory implementation of driven.OAuthStateStore.
type StateStore struct {
	mu     sync.Mutex
	states map[string]domain.OAuthState
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]domain.OAuthState),
	}
}

// Save stores a state.
func (s *StateStore) Save(_ context.Context, state domain.OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.State] = state
	return nil
}

// GetAndDelete retrieves and removes a state under one lock.
func (s *StateStore) GetAndDelete(_ context.Context, state string) (*domain.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[state]
	if !ok {
		return nil, nil
	}
	delete(s.states, state)
	return &st, nil
}

// DeleteExpired removes states that expired before now.
func (s *StateStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key, st := range s.states {
		if st.IsExpired(now) {
			delete(s.states, key)
			removed++
		}
	}
	return removed, nil
}
