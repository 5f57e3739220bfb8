package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// ConnectionStore persists Connection records.
type ConnectionStore interface {
	// Upsert inserts the connection or, when a row with the same
	// (user, platform, external account) exists, updates that row in place
	// and reactivates it. conn.ID is set to the stored row's ID.
	Upsert(ctx context.Context, conn *domain.Connection) error

	// Get retrieves a connection by ID. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Connection, error)

	// FindActive returns the most recently connected active connection for
	// the user and platform, or nil if none exists.
	FindActive(ctx context.Context, userID string, platform domain.Platform) (*domain.Connection, error)

	// ListByUser returns all connections for a user, active or not.
	ListByUser(ctx context.Context, userID string) ([]domain.Connection, error)

	// Deactivate soft-deletes a connection (is_active=false, status revoked).
	Deactivate(ctx context.Context, id string, at time.Time) error

	// PurgeInactiveDuplicates hard-deletes inactive rows for the user and
	// platform and returns how many were removed. Active rows are kept.
	PurgeInactiveDuplicates(ctx context.Context, userID string, platform domain.Platform) (int64, error)

	// MarkPosted records a successful publish time.
	MarkPosted(ctx context.Context, id string, at time.Time) error

	// SetStatus updates the connection status without touching is_active.
	SetStatus(ctx context.Context, id string, status domain.ConnectionStatus) error

	// ListExpiring returns active connections with a refresh token whose
	// access token expires before the given time.
	ListExpiring(ctx context.Context, before time.Time) ([]domain.Connection, error)
}
