package cli

import (
	"context"
	"errors"
	"fmt"

	rediscache "github.com/custodia-labs/socialrelay/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/socialrelay/internal/adapters/driven/crypto"
	"github.com/custodia-labs/socialrelay/internal/adapters/driven/events"
	"github.com/custodia-labs/socialrelay/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/socialrelay/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/socialrelay/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/socialrelay/internal/config"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/core/services"
	"github.com/custodia-labs/socialrelay/internal/logger"
	"github.com/custodia-labs/socialrelay/internal/platforms"
)

// storage is the set of stores a backend provides.
type storage interface {
	ConnectionStore() driven.ConnectionStore
	StateStore() driven.OAuthStateStore
	ContentStore() driven.ContentStore
	Close() error
}

type memoryStorage struct {
	connections *memory.ConnectionStore
	states      *memory.StateStore
	content     *memory.ContentStore
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		connections: memory.NewConnectionStore(),
		states:      memory.NewStateStore(),
		content:     memory.NewContentStore(),
	}
}

func (m *memoryStorage) ConnectionStore() driven.ConnectionStore { return m.connections }
func (m *memoryStorage) StateStore() driven.OAuthStateStore      { return m.states }
func (m *memoryStorage) ContentStore() driven.ContentStore       { return m.content }
func (m *memoryStorage) Close() error                            { return nil }

// app holds the wired services for one command invocation.
type app struct {
	cfg         config.Config
	store       storage
	registry    *platforms.Registry
	states      *services.StateService
	connections *services.ConnectionService
	publisher   *services.PublishOrchestrator
	scheduler   *services.Scheduler
	closers     []func() error
}

// openApp builds the app. Tests replace it.
var openApp = newApp

// newApp wires stores, adapters and services from cfg. The cipher is only
// required when needCipher is set; commands that never touch tokens can run
// without a key.
func newApp(ctx context.Context, cfg config.Config, needCipher bool) (*app, error) {
	a := &app{cfg: cfg}

	var cipher driven.TokenCipher
	if cfg.CipherKey != "" || needCipher {
		c, err := crypto.NewFromString(cfg.CipherKey)
		if err != nil {
			return nil, fmt.Errorf("token cipher: %w", err)
		}
		cipher = c
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	stateStore := store.StateStore()
	if cfg.Redis.Addr != "" {
		client, err := rediscache.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		stateStore = rediscache.NewStateStore(client)
		logger.Debug("oauth states stored in redis at %s", cfg.Redis.Addr)
	}

	var publisher driven.EventPublisher = events.LogPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, nil)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		publisher = kp
	}
	a.closers = append(a.closers, publisher.Close)

	a.registry = platforms.NewRegistry(cfg.PlatformConfig())
	a.states = services.NewStateService(stateStore, cfg.OAuth.StateTTL)
	a.connections = services.NewConnectionService(
		a.registry, a.states, store.ConnectionStore(), cipher, publisher,
		services.ConnectionServiceConfig{
			RedirectBaseURL:    cfg.Server.PublicBaseURL,
			RevokeOnDisconnect: cfg.OAuth.RevokeOnDisconnect,
		},
	)
	a.publisher = services.NewPublishOrchestrator(
		a.registry, store.ConnectionStore(), store.ContentStore(), cipher,
		services.NewMediaGuard(cfg.Publish.AllowPrivateMedia, services.DefaultResolver()),
		publisher,
	)
	var refresher services.TokenRefresher
	if cipher != nil {
		refresher = a.connections
	}
	a.scheduler = services.NewScheduler(cfg.Scheduler, a.states, refresher)
	return a, nil
}

func openStorage(ctx context.Context, cfg config.Config) (storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		s, err := sqlite.NewStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Debug("sqlite store at %s", s.Path())
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.Storage.PostgresDSN, postgres.Options{LogSQL: cfg.Log.Verbose})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if _, err := s.Migrate(); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		logger.Warn("using in-memory storage; connections are lost on exit")
		return newMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
