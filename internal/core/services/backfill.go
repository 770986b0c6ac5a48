package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driving"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/metrics"
)

// Ensure BackfillService implements the interface.
var _ driving.BackfillService = (*BackfillService)(nil)

// BackfillService repairs denormalized tenant ids in bounded batches.
//
// Each batch commits on its own, so an interrupted run loses at most one
// batch of work and a rerun resumes where it stopped. Transient failures
// are retried per batch; the job never restarts from the beginning.
type BackfillService struct {
	backfiller  driven.Backfiller
	cfg         domain.BackfillSettings
	isTransient func(error) bool
	sleep       func(context.Context, time.Duration) error
	now         func() time.Time
}

// NewBackfillService creates a backfill service. isTransient classifies
// errors worth retrying; nil retries only batch timeouts.
func NewBackfillService(
	backfiller driven.Backfiller,
	cfg domain.BackfillSettings,
	isTransient func(error) bool,
) *BackfillService {
	if isTransient == nil {
		isTransient = func(err error) bool { return errors.Is(err, context.DeadlineExceeded) }
	}
	return &BackfillService{
		backfiller:  backfiller,
		cfg:         cfg,
		isTransient: isTransient,
		sleep:       sleepContext,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// BackfillTenants runs every table to convergence. Cancelling ctx stops
// between batches and returns the partial report with Cancelled set.
func (s *BackfillService) BackfillTenants(ctx context.Context) (*domain.BackfillReport, error) {
	if s.backfiller == nil {
		return nil, domain.ErrNotImplemented
	}
	if s.cfg.BatchSize <= 0 {
		return nil, domain.NewValidationError("batch_size", "must be positive")
	}

	logger.Section("Tenant Backfill")
	report := &domain.BackfillReport{StartedAt: s.now()}
	defer func() { report.EndedAt = s.now() }()

	for _, table := range s.backfiller.TenantBackfillTables() {
		tr, err := s.backfillTable(ctx, table)
		report.Tables = append(report.Tables, tr)
		if err != nil {
			if ctx.Err() != nil {
				report.Cancelled = true
				return report, nil
			}
			return report, err
		}
	}
	return report, nil
}

func (s *BackfillService) backfillTable(ctx context.Context, table string) (domain.BackfillTableReport, error) {
	tr := domain.BackfillTableReport{Table: table}
	for {
		if err := ctx.Err(); err != nil {
			return tr, err
		}

		n, retries, err := s.runBatch(ctx, table)
		tr.Retries += retries
		if err != nil {
			return tr, fmt.Errorf("backfilling %s: %w", table, err)
		}
		if n == 0 {
			logger.Debug("backfill %s converged after %d batches (%d rows)", table, tr.Batches, tr.RowsAffected)
			return tr, nil
		}

		tr.Batches++
		tr.RowsAffected += n
		metrics.BackfillRows.WithLabelValues(table).Add(float64(n))
		logger.Debug("backfill %s batch %d: %d rows", table, tr.Batches, n)

		if s.cfg.Pause > 0 {
			if err := s.sleep(ctx, s.cfg.Pause); err != nil {
				return tr, err
			}
		}
	}
}

// runBatch runs one batch with its own timeout, retrying transient
// failures up to MaxRetries times.
func (s *BackfillService) runBatch(ctx context.Context, table string) (int64, int, error) {
	retries := 0
	for {
		n, err := s.batchOnce(ctx, table)
		if err == nil {
			return n, retries, nil
		}
		if ctx.Err() != nil || !s.isTransient(err) || retries >= s.cfg.MaxRetries {
			return 0, retries, err
		}

		retries++
		metrics.BackfillRetries.WithLabelValues(table).Inc()
		logger.Warn("backfill %s: retrying batch after transient error (%d/%d): %v",
			table, retries, s.cfg.MaxRetries, err)
		if err := s.sleep(ctx, backoff(retries, s.cfg.Pause)); err != nil {
			return 0, retries, err
		}
	}
}

func (s *BackfillService) batchOnce(ctx context.Context, table string) (int64, error) {
	if s.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BatchTimeout)
		defer cancel()
	}
	return s.backfiller.BackfillTenantBatch(ctx, table, s.cfg.BatchSize)
}

// backoff doubles the pause per retry, starting at 100ms when no pause is set.
func backoff(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return base << (attempt - 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
