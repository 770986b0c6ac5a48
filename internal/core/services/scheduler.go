package services

import (
	"context"
	"sync"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driving"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

// historyRetention is the number of results kept per task.
const historyRetention = 100

// job is a background task body. It reports how many items it handled.
type job struct {
	name string
	run  func(ctx context.Context) (int, error)
}

// Scheduler runs the tag refresh and embedding drain on the intervals
// persisted in its store. At most one run per task is in flight.
type Scheduler struct {
	cfg   domain.SchedulerConfig
	store driven.SchedulerStore
	jobs  map[string]job
	order []string

	mu      sync.Mutex
	stop    chan struct{}
	busy    map[string]bool
	running sync.WaitGroup
}

// NewScheduler wires the two background jobs. A nil tags or embedder makes
// the matching job a no-op.
func NewScheduler(
	cfg domain.SchedulerConfig,
	store driven.SchedulerStore,
	tags driving.TagIndexService,
	embedder driving.EmbeddingWorker,
) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	s := &Scheduler{
		cfg:   cfg,
		store: store,
		busy:  make(map[string]bool),
		order: []string{domain.TaskIDTagRefresh, domain.TaskIDEmbeddingDrain},
	}
	s.jobs = map[string]job{
		domain.TaskIDTagRefresh: {
			name: "Tag Index Refresh",
			run: func(ctx context.Context) (int, error) {
				if tags == nil {
					return 0, nil
				}
				res, err := tags.Refresh(ctx)
				if err != nil {
					return 0, err
				}
				return res.RowsAffected, nil
			},
		},
		domain.TaskIDEmbeddingDrain: {
			name: "Embedding Queue Drain",
			run: func(ctx context.Context) (int, error) {
				if embedder == nil {
					return 0, nil
				}
				return embedder.DrainOnce(ctx)
			},
		},
	}
	return s
}

// Start polls for due tasks until Stop is called or ctx ends. It returns
// at once when the scheduler is disabled or already started.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		logger.Debug("scheduler: disabled")
		return nil
	}

	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	if err := s.seed(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	defer s.running.Wait()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop ends the polling loop and waits for in-flight runs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.mu.Unlock()

	s.running.Wait()
	return nil
}

// seed makes the store hold a row for every job.
func (s *Scheduler) seed(ctx context.Context) error {
	for _, id := range s.order {
		if err := s.reconcile(ctx, id, s.jobs[id].name, s.cfg.GetTaskConfig(id)); err != nil {
			return err
		}
	}
	return nil
}

// reconcile creates the stored task or applies a changed configuration to
// it. A new interval restarts the countdown.
func (s *Scheduler) reconcile(ctx context.Context, id, name string, tc domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	switch {
	case task == nil:
		task = &domain.ScheduledTask{ID: id, Name: name, Interval: tc.Interval, NextRun: now.Add(tc.Interval)}
	case task.Interval != tc.Interval:
		task.Interval = tc.Interval
		task.NextRun = now.Add(tc.Interval)
	}
	task.Enabled = tc.Enabled
	return s.store.SaveTask(ctx, task)
}

// tick launches every due task.
func (s *Scheduler) tick(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}
	now := time.Now()
	for i := range tasks {
		if tasks[i].Interval > 0 && tasks[i].Due(now) {
			s.launch(ctx, &tasks[i])
		}
	}
}

// launch runs task in the background unless a run of it is in flight.
func (s *Scheduler) launch(ctx context.Context, task *domain.ScheduledTask) {
	j, ok := s.jobs[task.ID]
	if !ok {
		logger.Warn("scheduler: unknown task ID: %s", task.ID)
		return
	}

	s.mu.Lock()
	if s.busy[task.ID] {
		s.mu.Unlock()
		return
	}
	s.busy[task.ID] = true
	s.mu.Unlock()

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer func() {
			s.mu.Lock()
			delete(s.busy, task.ID)
			s.mu.Unlock()
		}()

		result := &domain.TaskResult{TaskID: task.ID, StartedAt: time.Now()}
		n, err := j.run(ctx)
		result.EndedAt = time.Now()
		result.ItemsProcessed = n

		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)
		if err != nil {
			logger.Warn("scheduler: task %s failed: %v", task.ID, err)
			result.Error = err.Error()
			task.LastError = result.Error
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}
		s.record(context.WithoutCancel(ctx), task, result)
	}()
}

// record persists the outcome of a run. It runs detached from the run
// context so a shutdown still saves the last result.
func (s *Scheduler) record(ctx context.Context, task *domain.ScheduledTask, result *domain.TaskResult) {
	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, err)
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", task.ID, err)
	}
	if err := s.store.PruneHistory(ctx, historyRetention); err != nil {
		logger.Warn("scheduler: failed to prune history: %v", err)
	}
}
