package driven

import (
	"context"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// EventPublisher emits domain events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
	Close() error
}
