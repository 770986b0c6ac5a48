package domain

import "time"

// Task IDs of the background jobs run while serving.
const (
	// TaskIDTagRefresh rebuilds and republishes the tag index.
	TaskIDTagRefresh = "tag-index-refresh"

	// TaskIDEmbeddingDrain embeds one batch of queued content units.
	TaskIDEmbeddingDrain = "embedding-drain"
)

// ScheduledTask is the persisted state of one background job, kept so a
// restarted server resumes the schedule instead of running everything at once.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time
	// LastError is empty after a successful run.
	LastError string
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !now.Before(t.NextRun)
}

// TaskResult records one run of a task.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// ItemsProcessed is the tag rows changed or content units embedded.
	ItemsProcessed int
}

// SchedulerConfig configures the background scheduler.
type SchedulerConfig struct {
	// Enabled switches every task off when false.
	Enabled bool

	// Tick is the polling period for due tasks.
	Tick time.Duration

	TaskConfigs map[string]TaskConfig
}

// TaskConfig enables a task and sets its period.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// GetTaskConfig returns the config of taskID, or the zero value (disabled).
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig refreshes tags every 5 minutes and drains the
// embedding queue every minute.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		Tick:    time.Minute,
		TaskConfigs: map[string]TaskConfig{
			TaskIDTagRefresh:     {Enabled: true, Interval: 5 * time.Minute},
			TaskIDEmbeddingDrain: {Enabled: true, Interval: time.Minute},
		},
	}
}
