package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
)

// Ensure ConnectionStore implements the interface.
var _ driven.ConnectionStore = (*ConnectionStore)(nil)

// ConnectionStore is an in-memory implementation of driven.ConnectionStore.
type ConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]domain.Connection
	now   func() time.Time
}

// NewConnectionStore creates a new in-memory connection store.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{
		conns: make(map[string]domain.Connection),
		now:   time.Now,
	}
}

// Upsert stores a connection, updating the row with the same
// (user, platform, external account) if one exists.
func (s *ConnectionStore) Upsert(_ context.Context, conn *domain.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, existing := range s.conns {
		if existing.UserID == conn.UserID &&
			existing.Platform == conn.Platform &&
			existing.ExternalAccountID == conn.ExternalAccountID {
			conn.ID = id
			conn.CreatedAt = existing.CreatedAt
			if conn.LastPostedAt == nil {
				conn.LastPostedAt = existing.LastPostedAt
			}
			conn.UpdatedAt = now
			s.conns[id] = copyConnection(*conn)
			return nil
		}
	}

	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	s.conns[conn.ID] = copyConnection(*conn)
	return nil
}

// Get retrieves a connection by ID.
func (s *ConnectionStore) Get(_ context.Context, id string) (*domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.conns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := copyConnection(conn)
	return &c, nil
}

// FindActive returns the most recently connected active connection.
func (s *ConnectionStore) FindActive(
	_ context.Context, userID string, platform domain.Platform,
) (*domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Connection
	for _, conn := range s.conns {
		if conn.UserID != userID || conn.Platform != platform || !conn.IsActive {
			continue
		}
		if found == nil || conn.ConnectedAt.After(found.ConnectedAt) {
			c := copyConnection(conn)
			found = &c
		}
	}
	return found, nil
}

// ListByUser returns all connections for a user, newest first.
func (s *ConnectionStore) ListByUser(_ context.Context, userID string) ([]domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Connection, 0)
	for _, conn := range s.conns {
		if conn.UserID == userID {
			result = append(result, copyConnection(conn))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ConnectedAt.After(result[j].ConnectedAt)
	})
	return result, nil
}

// Deactivate soft-deletes a connection.
func (s *ConnectionStore) Deactivate(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[id]
	if !ok {
		return domain.ErrNotFound
	}
	conn.IsActive = false
	conn.Status = domain.ConnectionRevoked
	conn.DisconnectedAt = &at
	conn.UpdatedAt = s.now()
	s.conns[id] = conn
	return nil
}

// PurgeInactiveDuplicates removes inactive rows for the user and platform.
func (s *ConnectionStore) PurgeInactiveDuplicates(
	_ context.Context, userID string, platform domain.Platform,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, conn := range s.conns {
		if conn.UserID == userID && conn.Platform == platform && !conn.IsActive {
			delete(s.conns, id)
			removed++
		}
	}
	return removed, nil
}

// MarkPosted records a successful publish time.
func (s *ConnectionStore) MarkPosted(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[id]
	if !ok {
		return domain.ErrNotFound
	}
	conn.LastPostedAt = &at
	conn.UpdatedAt = s.now()
	s.conns[id] = conn
	return nil
}

// SetStatus updates the connection status.
func (s *ConnectionStore) SetStatus(_ context.Context, id string, status domain.ConnectionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[id]
	if !ok {
		return domain.ErrNotFound
	}
	conn.Status = status
	conn.UpdatedAt = s.now()
	s.conns[id] = conn
	return nil
}

// ListExpiring returns refreshable active connections expiring before the given time.
func (s *ConnectionStore) ListExpiring(_ context.Context, before time.Time) ([]domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Connection
	for _, conn := range s.conns {
		if !conn.IsActive || !conn.HasRefreshToken() || conn.TokenExpiresAt.IsZero() {
			continue
		}
		if conn.TokenExpiresAt.Before(before) {
			result = append(result, copyConnection(conn))
		}
	}
	return result, nil
}

// Len returns the number of stored rows, active or not.
func (s *ConnectionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func copyConnection(c domain.Connection) domain.Connection {
	if c.Metadata != nil {
		m := make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			m[k] = v
		}
		c.Metadata = m
	}
	return c
}
