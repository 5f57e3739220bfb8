// Package redis provides a Redis-backed OAuth state store.
//
// States are written with a TTL that outlives their logical expiry by a
// grace period, so an expired state is still returned once and the caller
// can report it as expired rather than unknown. Redis evicts the key after
// the grace period; DeleteExpired has nothing to do.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
)

const (
	// KeyPrefix namespaces state keys.
	KeyPrefix = "socialrelay:oauth:state:"
	// ExpiredGrace is how long a state is kept after it expires.
	ExpiredGrace = time.Hour
)

// Connect creates a client from a redis:// URL or a host:port address.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

var _ driven.OAuthStateStore = (*StateStore)(nil)

// StateStore implements driven.OAuthStateStore on Redis.
type StateStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewStateStore creates a state store over the given client.
func NewStateStore(client redis.Cmdable) *StateStore {
	return &StateStore{client: client, now: time.Now}
}

// Save stores the state with a TTL covering its lifetime plus the grace period.
func (s *StateStore) Save(ctx context.Context, state domain.OAuthState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling oauth state: %w", err)
	}
	if err := s.client.Set(ctx, Key(state.State), raw, s.ttl(state)).Err(); err != nil {
		return fmt.Errorf("saving oauth state: %w", err)
	}
	return nil
}

// GetAndDelete consumes the state with GETDEL so it can only be used once.
func (s *StateStore) GetAndDelete(ctx context.Context, state string) (*domain.OAuthState, error) {
	raw, err := s.client.GetDel(ctx, Key(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consuming oauth state: %w", err)
	}
	var out domain.OAuthState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding oauth state: %w", err)
	}
	return &out, nil
}

// DeleteExpired is a no-op; Redis evicts keys by TTL.
func (s *StateStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Key returns the Redis key for a state value.
func Key(state string) string {
	return KeyPrefix + state
}

func (s *StateStore) ttl(state domain.OAuthState) time.Duration {
	ttl := state.ExpiresAt.Sub(s.now()) + ExpiredGrace
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
