package driving

import (
	"context"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// CallbackParams are the query parameters of an OAuth callback.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ConnectResult is the outcome of a completed OAuth callback.
type ConnectResult struct {
	UserID  string
	Primary *domain.Connection
	// Secondary is set when a linked asset produced a second connection.
	Secondary *domain.Connection
}

// ConnectionService manages platform connections.
type ConnectionService interface {
	// BeginConnect issues a state and returns the provider authorization URL.
	BeginConnect(ctx context.Context, userID string, platform domain.Platform) (string, error)

	// CompleteConnect consumes the state, exchanges the code and upserts
	// the resulting connection(s).
	CompleteConnect(ctx context.Context, platform domain.Platform, params CallbackParams) (*ConnectResult, error)

	// Disconnect deactivates a connection owned by the user.
	Disconnect(ctx context.Context, userID, connectionID string) error

	// DisconnectPlatform deactivates every active connection the user has
	// for the platform and returns how many were deactivated.
	DisconnectPlatform(ctx context.Context, userID string, platform domain.Platform) (int, error)

	// List returns the user's connections.
	List(ctx context.Context, userID string) ([]domain.Connection, error)

	// PurgeInactive removes inactive duplicate rows for a platform.
	PurgeInactive(ctx context.Context, userID string, platform domain.Platform) (int64, error)
}
