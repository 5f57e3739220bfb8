package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// OAuthStateStore persists pending OAuth authorization states.
type OAuthStateStore interface {
	// Save stores a state keyed by state.State.
	Save(ctx context.Context, state domain.OAuthState) error

	// GetAndDelete atomically retrieves and removes a state.
	// Expired states are still returned so callers can tell expired from
	// unknown. Returns nil, nil if the state does not exist.
	GetAndDelete(ctx context.Context, state string) (*domain.OAuthState, error)

	// DeleteExpired removes states that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
