package domain

import "time"

// TaskResult represents the outcome of a maintenance task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string `json:"task_id"`

	// StartedAt is when the task started.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the task completed.
	EndedAt time.Time `json:"ended_at"`

	// Success indicates whether the task completed without error.
	Success bool `json:"success"`

	// Error contains the error message if Success is false.
	Error string `json:"error,omitempty"`

	// ItemsProcessed is a count of items handled (states removed, tokens refreshed).
	ItemsProcessed int `json:"items_processed"`
}

// SchedulerConfig holds maintenance scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// RefreshWindow is how far ahead of expiry tokens are refreshed.
	RefreshWindow time.Duration

	// TaskConfigs holds per-task configuration.
	TaskConfigs map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	// Enabled indicates whether this task should run.
	Enabled bool

	// Schedule is a cron spec ("@every 10m", "0 * * * *").
	Schedule string
}

// GetTaskConfig returns the configuration for a specific task.
// Returns a zero TaskConfig if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultRefreshWindow is the default look-ahead for token refresh.
const DefaultRefreshWindow = 24 * time.Hour

// DefaultSchedulerConfig returns the default maintenance schedule: expired
// OAuth states are purged every 10 minutes and expiring tokens refreshed hourly.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:       true,
		RefreshWindow: DefaultRefreshWindow,
		TaskConfigs: map[string]TaskConfig{
			TaskIDStateCleanup: {
				Enabled:  true,
				Schedule: "@every 10m",
			},
			TaskIDTokenRefresh: {
				Enabled:  true,
				Schedule: "@hourly",
			},
		},
	}
}

// Task IDs for built-in tasks.
const (
	TaskIDStateCleanup = "oauth-state-cleanup"
	TaskIDTokenRefresh = "token-refresh"
)
