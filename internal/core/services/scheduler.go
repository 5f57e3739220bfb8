package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driving"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

// StateCleaner removes expired OAuth states.
type StateCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// TokenRefresher refreshes connections whose tokens expire soon.
type TokenRefresher interface {
	RefreshExpiring(ctx context.Context, within time.Duration) (int, error)
}

var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduler runs maintenance tasks on cron schedules.
// It is a pure core service with no external control API.
type Scheduler struct {
	config    domain.SchedulerConfig
	states    StateCleaner
	refresher TokenRefresher
	now       func() time.Time

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	stopCh  chan struct{}
	results map[string]domain.TaskResult
}

// NewScheduler creates a scheduler with configuration. Either task
// dependency may be nil, in which case that task is skipped.
func NewScheduler(config domain.SchedulerConfig, states StateCleaner, refresher TokenRefresher) *Scheduler {
	if config.RefreshWindow <= 0 {
		config.RefreshWindow = domain.DefaultRefreshWindow
	}
	return &Scheduler{
		config:    config,
		states:    states,
		refresher: refresher,
		now:       time.Now,
		results:   make(map[string]domain.TaskResult),
	}
}

// Start registers the enabled tasks and blocks until Stop is called or ctx
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		logger.Info("scheduler: disabled")
		return nil
	}

	cronLog := cron.PrintfLogger(slog.NewLogLogger(logger.Slog().Handler(), slog.LevelWarn))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))
	for _, id := range []string{domain.TaskIDStateCleanup, domain.TaskIDTokenRefresh} {
		taskCfg := s.config.GetTaskConfig(id)
		if !taskCfg.Enabled || !s.hasTask(id) {
			continue
		}
		taskID := id
		if _, err := c.AddFunc(taskCfg.Schedule, func() { s.RunTask(ctx, taskID) }); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("scheduling %s (%q): %w", taskID, taskCfg.Schedule, err)
		}
		logger.Debug("scheduler: %s scheduled %s", taskID, taskCfg.Schedule)
	}

	s.cron = c
	s.stopCh = make(chan struct{})
	s.running = true
	stopCh := s.stopCh
	s.mu.Unlock()

	c.Start()
	logger.Info("scheduler: started")

	select {
	case <-ctx.Done():
		_ = s.Stop()
		return ctx.Err()
	case <-stopCh:
		return nil
	}
}

// Stop gracefully shuts down the scheduler, waiting for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	c := s.cron
	close(s.stopCh)
	s.mu.Unlock()

	<-c.Stop().Done()
	logger.Info("scheduler: stopped")
	return nil
}

// RunTask executes one task immediately and records its result.
func (s *Scheduler) RunTask(ctx context.Context, taskID string) domain.TaskResult {
	result := domain.TaskResult{
		TaskID:    taskID,
		StartedAt: s.now(),
	}

	var err error
	switch taskID {
	case domain.TaskIDStateCleanup:
		result.ItemsProcessed, err = s.runStateCleanup(ctx)
	case domain.TaskIDTokenRefresh:
		result.ItemsProcessed, err = s.runTokenRefresh(ctx)
	default:
		err = fmt.Errorf("unknown task ID: %s", taskID)
	}

	result.EndedAt = s.now()
	if err != nil {
		result.Error = err.Error()
		logger.Warn("scheduler: %s failed: %v", taskID, err)
	} else {
		result.Success = true
		logger.Debug("scheduler: %s processed %d", taskID, result.ItemsProcessed)
	}

	s.mu.Lock()
	s.results[taskID] = result
	s.mu.Unlock()
	return result
}

// LastResult returns the most recent result for a task.
func (s *Scheduler) LastResult(taskID string) (domain.TaskResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[taskID]
	return r, ok
}

func (s *Scheduler) hasTask(taskID string) bool {
	switch taskID {
	case domain.TaskIDStateCleanup:
		return s.states != nil
	case domain.TaskIDTokenRefresh:
		return s.refresher != nil
	}
	return false
}

func (s *Scheduler) runStateCleanup(ctx context.Context) (int, error) {
	if s.states == nil {
		return 0, nil
	}
	n, err := s.states.Cleanup(ctx)
	return int(n), err
}

func (s *Scheduler) runTokenRefresh(ctx context.Context) (int, error) {
	if s.refresher == nil {
		return 0, nil
	}
	return s.refresher.RefreshExpiring(ctx, s.config.RefreshWindow)
}
