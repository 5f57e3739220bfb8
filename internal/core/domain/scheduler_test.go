package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	assert.True(t, config.Enabled)
	assert.Equal(t, 24*time.Hour, config.RefreshWindow)
	assert.Len(t, config.TaskConfigs, 2)

	cleanup := config.TaskConfigs[TaskIDStateCleanup]
	assert.True(t, cleanup.Enabled)
	assert.Equal(t, "@every 10m", cleanup.Schedule)

	refresh := config.TaskConfigs[TaskIDTokenRefresh]
	assert.True(t, refresh.Enabled)
	assert.Equal(t, "@hourly", refresh.Schedule)
}

func TestSchedulerConfig_GetTaskConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	assert.True(t, config.GetTaskConfig(TaskIDTokenRefresh).Enabled)

	unknown := config.GetTaskConfig("unknown-task")
	assert.False(t, unknown.Enabled)
	assert.Empty(t, unknown.Schedule)

	var empty SchedulerConfig
	assert.Equal(t, TaskConfig{}, empty.GetTaskConfig(TaskIDStateCleanup))
}
