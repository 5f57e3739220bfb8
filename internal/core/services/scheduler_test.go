package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

type mockStateCleaner struct {
	mu      sync.Mutex
	calls   int
	removed int64
	err     error
}

func (m *mockStateCleaner) Cleanup(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.removed, m.err
}

func (m *mockStateCleaner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRefresher struct {
	within    time.Duration
	refreshed int
	err       error
}

func (m *mockRefresher) RefreshExpiring(_ context.Context, within time.Duration) (int, error) {
	m.within = within
	return m.refreshed, m.err
}

func TestNewScheduler_DefaultsRefreshWindow(t *testing.T) {
	s := NewScheduler(domain.SchedulerConfig{Enabled: true}, nil, nil)
	assert.Equal(t, domain.DefaultRefreshWindow, s.config.RefreshWindow)
}

func TestScheduler_RunTask_StateCleanup(t *testing.T) {
	cleaner := &mockStateCleaner{removed: 3}
	s := NewScheduler(domain.DefaultSchedulerConfig(), cleaner, nil)

	result := s.RunTask(context.Background(), domain.TaskIDStateCleanup)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.ItemsProcessed)
	assert.Equal(t, 1, cleaner.count())

	last, ok := s.LastResult(domain.TaskIDStateCleanup)
	require.True(t, ok)
	assert.Equal(t, result, last)
}

func TestScheduler_RunTask_TokenRefreshUsesWindow(t *testing.T) {
	refresher := &mockRefresher{refreshed: 2}
	cfg := domain.DefaultSchedulerConfig()
	cfg.RefreshWindow = 6 * time.Hour
	s := NewScheduler(cfg, nil, refresher)

	result := s.RunTask(context.Background(), domain.TaskIDTokenRefresh)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.ItemsProcessed)
	assert.Equal(t, 6*time.Hour, refresher.within)
}

func TestScheduler_RunTask_RecordsFailure(t *testing.T) {
	s := NewScheduler(domain.DefaultSchedulerConfig(), &mockStateCleaner{err: errors.New("db locked")}, nil)

	result := s.RunTask(context.Background(), domain.TaskIDStateCleanup)

	assert.False(t, result.Success)
	assert.Equal(t, "db locked", result.Error)
}

func TestScheduler_RunTask_UnknownTaskID(t *testing.T) {
	s := NewScheduler(domain.DefaultSchedulerConfig(), nil, nil)

	result := s.RunTask(context.Background(), "nope")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown task ID")
}

func TestScheduler_StartStop(t *testing.T) {
	cfg := domain.DefaultSchedulerConfig()
	cfg.TaskConfigs[domain.TaskIDStateCleanup] = domain.TaskConfig{Enabled: true, Schedule: "@every 1s"}
	cleaner := &mockStateCleaner{}
	s := NewScheduler(cfg, cleaner, nil)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	assert.Eventually(t, func() bool { return cleaner.count() > 0 }, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, s.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestScheduler_StartReturnsOnContextCancel(t *testing.T) {
	s := NewScheduler(domain.DefaultSchedulerConfig(), &mockStateCleaner{}, &mockRefresher{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	assert.NoError(t, s.Stop())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := NewScheduler(domain.DefaultSchedulerConfig(), nil, nil)
	assert.NoError(t, s.Stop())
}

func TestScheduler_Disabled(t *testing.T) {
	cfg := domain.DefaultSchedulerConfig()
	cfg.Enabled = false
	s := NewScheduler(cfg, &mockStateCleaner{}, nil)

	assert.NoError(t, s.Start(context.Background()))
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	cfg := domain.DefaultSchedulerConfig()
	cfg.TaskConfigs[domain.TaskIDStateCleanup] = domain.TaskConfig{Enabled: true, Schedule: "every now and then"}
	s := NewScheduler(cfg, &mockStateCleaner{}, nil)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.TaskIDStateCleanup)
}
