package events

import (
	"context"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

var _ driven.EventPublisher = LogPublisher{}

// LogPublisher writes events to the application log. Used when no broker
// is configured.
type LogPublisher struct{}

// Publish logs the event at info level.
func (LogPublisher) Publish(ctx context.Context, event domain.Event) error {
	args := []any{
		"type", string(event.Type),
		"user_id", event.UserID,
		"platform", string(event.Platform),
	}
	if event.ConnectionID != "" {
		args = append(args, "connection_id", event.ConnectionID)
	}
	for k, v := range event.Data {
		args = append(args, k, v)
	}
	logger.Slog().InfoContext(ctx, "event", args...)
	return nil
}

// Close is a no-op.
func (LogPublisher) Close() error { return nil }
