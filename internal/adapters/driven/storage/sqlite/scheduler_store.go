package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

var _ driven.SchedulerStore = (*schedulerStore)(nil)

// schedulerStore keeps job state in scheduler_tasks and run history in
// scheduler_runs.
type schedulerStore struct {
	store *Store
}

const (
	selectTask = `SELECT task_id, label, period_seconds, enabled,
		next_run_at, last_run_at, last_success_at, last_error
		FROM scheduler_tasks`

	upsertTask = `INSERT INTO scheduler_tasks
		(task_id, label, period_seconds, enabled, next_run_at, last_run_at, last_success_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			label = excluded.label,
			period_seconds = excluded.period_seconds,
			enabled = excluded.enabled,
			next_run_at = excluded.next_run_at,
			last_run_at = excluded.last_run_at,
			last_success_at = excluded.last_success_at,
			last_error = excluded.last_error`

	// Window functions need SQLite 3.25, which modernc bundles.
	pruneRuns = `DELETE FROM scheduler_runs WHERE run_id IN (
		SELECT run_id FROM (
			SELECT run_id, ROW_NUMBER() OVER (
				PARTITION BY task_id ORDER BY started_at DESC, run_id DESC
			) AS pos FROM scheduler_runs
		) WHERE pos > ?
	)`
)

func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	task, err := scanTask(s.store.db.QueryRowContext(ctx, selectTask+" WHERE task_id = ?", taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx, selectTask+" ORDER BY task_id")
	if err != nil {
		return nil, fmt.Errorf("listing scheduler tasks: %w", err)
	}
	var out []domain.ScheduledTask
	err = eachRow(rows, func() error {
		task, err := scanTask(rows)
		if err == nil {
			out = append(out, *task)
		}
		return err
	})
	return out, err
}

func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, upsertTask,
		task.ID, task.Name, int64(task.Interval/time.Second), boolToInt(task.Enabled),
		formatNullableTime(task.NextRun), formatNullableTime(task.LastRun),
		formatNullableTime(task.LastSuccess), nullString(task.LastError))
	if err != nil {
		return fmt.Errorf("saving scheduler task %s: %w", task.ID, err)
	}
	return nil
}

func (s *schedulerStore) DeleteTask(ctx context.Context, taskID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM scheduler_tasks WHERE task_id = ?", taskID)
	if err != nil {
		return fmt.Errorf("deleting scheduler task %s: %w", taskID, err)
	}
	return nil
}

func (s *schedulerStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO scheduler_runs (task_id, started_at, finished_at, ok, error, items) VALUES (?, ?, ?, ?, ?, ?)",
		result.TaskID, formatTime(result.StartedAt), formatTime(result.EndedAt),
		boolToInt(result.Success), nullString(result.Error), result.ItemsProcessed)
	if err != nil {
		return fmt.Errorf("recording run of %s: %w", result.TaskID, err)
	}
	return nil
}

func (s *schedulerStore) GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT started_at, finished_at, ok, error, items
		FROM scheduler_runs WHERE task_id = ?
		ORDER BY started_at DESC, run_id DESC LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs of %s: %w", taskID, err)
	}
	var out []domain.TaskResult
	err = eachRow(rows, func() error {
		var (
			started, finished string
			ok                int
			msg               sql.NullString
		)
		r := domain.TaskResult{TaskID: taskID}
		if err := rows.Scan(&started, &finished, &ok, &msg, &r.ItemsProcessed); err != nil {
			return fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, r.EndedAt = parseTime(started), parseTime(finished)
		r.Success, r.Error = ok == 1, msg.String
		out = append(out, r)
		return nil
	})
	return out, err
}

func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	if _, err := s.store.db.ExecContext(ctx, pruneRuns, keep); err != nil {
		return fmt.Errorf("pruning scheduler runs: %w", err)
	}
	return nil
}

// scanTask returns sql.ErrNoRows unwrapped so GetTask can detect a miss.
func scanTask(row rowScanner) (*domain.ScheduledTask, error) {
	var (
		t                      domain.ScheduledTask
		period                 int64
		enabled                int
		next, last, ok, errMsg sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &period, &enabled, &next, &last, &ok, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning scheduler task: %w", err)
	}
	t.Interval = time.Duration(period) * time.Second
	t.Enabled = enabled == 1
	t.NextRun = parseNullableTime(next)
	t.LastRun = parseNullableTime(last)
	t.LastSuccess = parseNullableTime(ok)
	t.LastError = errMsg.String
	return &t, nil
}
