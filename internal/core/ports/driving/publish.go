package driving

import (
	"context"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// PublishService publishes content through a user's connection.
type PublishService interface {
	// Publish runs one publish attempt. On failure the returned result
	// carries the ErrorKind and provider message alongside the error.
	Publish(ctx context.Context, userID string, req domain.PublishRequest) (*domain.PublishResult, error)
}
