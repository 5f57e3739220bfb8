package driven

import (
	"context"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// ContentStore is the boundary to the content records publishes originate from.
type ContentStore interface {
	// Save stores or updates a content record.
	Save(ctx context.Context, record domain.ContentRecord) error

	// Get retrieves a content record. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.ContentRecord, error)

	// MarkPublished records the remote post on the content record and sets
	// its status to published.
	MarkPublished(ctx context.Context, id string, result domain.PublishResult) error
}
