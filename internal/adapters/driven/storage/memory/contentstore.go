package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
)

// Ensure ContentStore implements the interface.
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore is an in-memory implementation of driven.ContentStore.
type ContentStore struct {
	mu      sync.RWMutex
	records map[string]domain.ContentRecord
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		records: make(map[string]domain.ContentRecord),
	}
}

// Save stores or updates a content record.
func (s *ContentStore) Save(_ context.Context, record domain.ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

// Get retrieves a content record by ID.
func (s *ContentStore) Get(_ context.Context, id string) (*domain.ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

// MarkPublished records the remote post on the content record.
func (s *ContentStore) MarkPublished(_ context.Context, id string, result domain.PublishResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	publishedAt := result.PublishedAt
	record.Status = domain.ContentPublished
	record.RemotePostID = result.RemotePostID
	record.PermalinkURL = result.PermalinkURL
	record.PublishedAt = &publishedAt
	record.UpdatedAt = time.Now()
	s.records[id] = record
	return nil
}
