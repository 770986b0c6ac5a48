package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	now := time.Now().UTC().Truncate(time.Second)
	task := &domain.ScheduledTask{
		ID:          domain.TaskIDTagRefresh,
		Name:        "Tag Index Refresh",
		Interval:    5 * time.Minute,
		LastRun:     now.Add(-2 * time.Minute),
		NextRun:     now.Add(3 * time.Minute),
		LastSuccess: now.Add(-2 * time.Minute),
		Enabled:     true,
	}
	require.NoError(t, schedulerStore.SaveTask(ctx, task))

	retrieved, err := schedulerStore.GetTask(ctx, domain.TaskIDTagRefresh)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, task.ID, retrieved.ID)
	assert.Equal(t, task.Name, retrieved.Name)
	assert.Equal(t, task.Interval, retrieved.Interval)
	assert.True(t, retrieved.Enabled)
	assert.WithinDuration(t, task.LastRun, retrieved.LastRun, time.Second)
	assert.WithinDuration(t, task.NextRun, retrieved.NextRun, time.Second)
	assert.WithinDuration(t, task.LastSuccess, retrieved.LastSuccess, time.Second)

	// Update in place.
	task.LastError = "tag source unavailable"
	task.Enabled = false
	require.NoError(t, schedulerStore.SaveTask(ctx, task))
	retrieved, err = schedulerStore.GetTask(ctx, domain.TaskIDTagRefresh)
	require.NoError(t, err)
	assert.Equal(t, "tag source unavailable", retrieved.LastError)
	assert.False(t, retrieved.Enabled)
}

func TestSchedulerStore_GetTask_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	task, err := store.SchedulerStore().GetTask(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestSchedulerStore_SaveTask_NilTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SchedulerStore().SaveTask(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchedulerStore_ListAndDelete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	tasks, err := schedulerStore.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	for _, id := range []string{domain.TaskIDTagRefresh, domain.TaskIDEmbeddingDrain} {
		require.NoError(t, schedulerStore.SaveTask(ctx, &domain.ScheduledTask{
			ID: id, Name: id, Interval: time.Minute, Enabled: true,
		}))
	}

	tasks, err = schedulerStore.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.True(t, tasks[0].LastRun.IsZero())

	require.NoError(t, schedulerStore.DeleteTask(ctx, domain.TaskIDEmbeddingDrain))
	tasks, err = schedulerStore.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskIDTagRefresh, tasks[0].ID)
}

func TestSchedulerStore_History(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	schedulerStore := store.SchedulerStore()

	assert.ErrorIs(t, schedulerStore.RecordResult(ctx, nil), domain.ErrInvalidInput)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		res := &domain.TaskResult{
			TaskID:         domain.TaskIDTagRefresh,
			StartedAt:      base.Add(time.Duration(i) * time.Minute),
			EndedAt:        base.Add(time.Duration(i)*time.Minute + time.Second),
			Success:        i%2 == 0,
			ItemsProcessed: i,
		}
		if !res.Success {
			res.Error = "boom"
		}
		require.NoError(t, schedulerStore.RecordResult(ctx, res))
	}
	require.NoError(t, schedulerStore.RecordResult(ctx, &domain.TaskResult{
		TaskID: domain.TaskIDEmbeddingDrain, StartedAt: base, EndedAt: base, Success: true,
	}))

	history, err := schedulerStore.GetTaskHistory(ctx, domain.TaskIDTagRefresh, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 4, history[0].ItemsProcessed, "most recent first")
	assert.True(t, history[0].Success)
	assert.Equal(t, "boom", history[1].Error)

	history, err = schedulerStore.GetTaskHistory(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, schedulerStore.PruneHistory(ctx, 2))
	history, err = schedulerStore.GetTaskHistory(ctx, domain.TaskIDTagRefresh, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	history, err = schedulerStore.GetTaskHistory(ctx, domain.TaskIDEmbeddingDrain, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
