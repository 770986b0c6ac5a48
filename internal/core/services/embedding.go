package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driving"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/metrics"
)

// Ensure EmbeddingWorker implements the interface.
var _ driving.EmbeddingWorker = (*EmbeddingWorker)(nil)

// defaultIdle is how long Run waits after finding the queue empty.
const defaultIdle = 2 * time.Second

// EmbeddingWorker drains the embedding queue through the external
// producer. Claims are leased, so several workers (or processes) can drain
// the same queue. Producer calls are rate limited and run on a bounded pool.
type EmbeddingWorker struct {
	queue    driven.EmbeddingQueue
	producer driven.EmbeddingProducer
	index    driven.VectorIndex
	cfg      domain.EmbeddingSettings
	dim      int

	limiter *rate.Limiter
	pool    *ants.Pool
	idle    time.Duration
	log     *zap.Logger
}

// NewEmbeddingWorker creates a worker. Release the pool with Close.
func NewEmbeddingWorker(
	queue driven.EmbeddingQueue,
	producer driven.EmbeddingProducer,
	index driven.VectorIndex,
	cfg domain.EmbeddingSettings,
	dimension int,
) (*EmbeddingWorker, error) {
	if queue == nil || producer == nil {
		return nil, domain.NewValidationError("embedding", "queue and producer are required")
	}
	if cfg.BatchSize <= 0 || cfg.Workers <= 0 || cfg.RatePerSecond <= 0 || cfg.Burst <= 0 {
		return nil, domain.NewValidationError("embedding", "batch size, workers, rate and burst must be positive")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	if dimension <= 0 {
		dimension = domain.EmbeddingDimension
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	return &EmbeddingWorker{
		queue:    queue,
		producer: producer,
		index:    index,
		cfg:      cfg,
		dim:      dimension,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		pool:     pool,
		idle:     defaultIdle,
		log:      logger.L().Named("embedding"),
	}, nil
}

// Close releases the worker pool.
func (w *EmbeddingWorker) Close() {
	w.pool.Release()
}

// Run drains until ctx is cancelled, idling while the queue is empty.
func (w *EmbeddingWorker) Run(ctx context.Context) error {
	for {
		n, err := w.DrainOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			w.log.Warn("drain failed", zap.Error(err))
		}
		if n > 0 && err == nil {
			continue
		}

		timer := time.NewTimer(w.idle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// DrainOnce claims one batch and embeds it, returning the number of
// embeddings written. Per-unit failures are recorded on the queue rather
// than returned.
func (w *EmbeddingWorker) DrainOnce(ctx context.Context) (int, error) {
	defer w.observeDepth(ctx)

	claims, err := w.queue.ClaimPending(ctx, w.cfg.BatchSize, w.cfg.Lease)
	if err != nil {
		return 0, fmt.Errorf("claiming pending units: %w", err)
	}
	if len(claims) == 0 {
		return 0, nil
	}

	var (
		written atomic.Int64
		wg      sync.WaitGroup
	)
	for _, chunk := range splitClaims(claims, w.cfg.Workers) {
		wg.Add(1)
		submitErr := w.pool.Submit(func() {
			defer wg.Done()
			written.Add(int64(w.embedChunk(ctx, chunk)))
		})
		if submitErr != nil {
			wg.Done()
			w.failAll(ctx, chunk, submitErr)
		}
	}
	wg.Wait()

	n := int(written.Load())
	w.log.Debug("drained batch", zap.Int("claimed", len(claims)), zap.Int("written", n))
	return n, ctx.Err()
}

// embedChunk embeds one chunk with a single producer call.
func (w *EmbeddingWorker) embedChunk(ctx context.Context, chunk []domain.PendingEmbedding) int {
	if err := w.limiter.Wait(ctx); err != nil {
		// Leases expire on their own; cancellation is not a unit failure.
		return 0
	}

	texts := make([]string, len(chunk))
	for i, c := range chunk {
		texts[i] = c.Unit.Text
	}
	embeddings, err := w.producer.EmbedBatch(ctx, texts)
	if err == nil && len(embeddings) != len(chunk) {
		err = fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrEmbeddingUnavailable, len(embeddings), len(chunk))
	}
	if err != nil {
		if ctx.Err() == nil {
			w.failAll(ctx, chunk, err)
		}
		return 0
	}

	written := 0
	for i, claim := range chunk {
		if w.complete(ctx, claim, embeddings[i]) {
			written++
		}
	}
	return written
}

// complete stores one embedding and publishes it to the index.
func (w *EmbeddingWorker) complete(ctx context.Context, claim domain.PendingEmbedding, embedding []float32) bool {
	key := claim.Unit.Key()
	if err := validateVector(embedding, w.dim); err != nil {
		w.fail(ctx, claim, err)
		return false
	}

	entry, ok, err := w.queue.CompletePending(ctx, claim, embedding, w.producer.ModelName())
	if err != nil {
		w.log.Warn("completing unit failed", zap.String("unit", key), zap.Error(err))
		metrics.EmbeddingsWritten.WithLabelValues("error").Inc()
		return false
	}
	if !ok {
		// The unit changed or vanished while we were embedding it.
		metrics.EmbeddingsWritten.WithLabelValues("stale").Inc()
		return false
	}

	if w.index != nil {
		if err := w.index.Upsert(ctx, *entry); err != nil {
			w.log.Warn("publishing vector failed", zap.String("unit", key), zap.Error(err))
		}
	}
	metrics.EmbeddingsWritten.WithLabelValues("success").Inc()
	return true
}

func (w *EmbeddingWorker) failAll(ctx context.Context, chunk []domain.PendingEmbedding, cause error) {
	for _, claim := range chunk {
		w.fail(ctx, claim, cause)
	}
}

func (w *EmbeddingWorker) fail(ctx context.Context, claim domain.PendingEmbedding, cause error) {
	metrics.EmbeddingsWritten.WithLabelValues("error").Inc()
	if err := w.queue.FailPending(context.WithoutCancel(ctx), claim, cause, w.cfg.MaxAttempts); err != nil {
		w.log.Warn("recording failure", zap.String("unit", claim.Unit.Key()), zap.Error(err))
		return
	}
	if claim.Attempts+1 >= w.cfg.MaxAttempts {
		w.log.Warn("giving up on unit", zap.String("unit", claim.Unit.Key()),
			zap.Int("attempts", claim.Attempts+1), zap.Error(cause))
	}
}

func (w *EmbeddingWorker) observeDepth(ctx context.Context) {
	depth, err := w.queue.QueueDepth(context.WithoutCancel(ctx))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.log.Debug("reading queue depth", zap.Error(err))
		}
		return
	}
	metrics.EmbeddingQueueDepth.Set(float64(depth))
}

// splitClaims divides claims into at most parts contiguous chunks.
func splitClaims(claims []domain.PendingEmbedding, parts int) [][]domain.PendingEmbedding {
	if parts <= 0 {
		parts = 1
	}
	size := (len(claims) + parts - 1) / parts
	var out [][]domain.PendingEmbedding
	for start := 0; start < len(claims); start += size {
		end := min(start+size, len(claims))
		out = append(out, claims[start:end])
	}
	return out
}
