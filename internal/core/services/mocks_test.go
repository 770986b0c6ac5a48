package services

import (
	"context"
	"sync"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driving"
)

// --- Mock implementations shared by service tests ---

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu       sync.RWMutex
	tasks    map[string]*domain.ScheduledTask
	results  map[string][]domain.TaskResult
	saveErr  error
	listErr  error
	getErr   error
	pruneErr error
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if task == nil {
		return domain.ErrInvalidInput
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result == nil {
		return domain.ErrInvalidInput
	}
	m.results[result.TaskID] = append(m.results[result.TaskID], *result)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	if len(results) > limit {
		results = results[len(results)-limit:]
	}
	return results, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, _ int) error {
	return m.pruneErr
}

func (m *mockSchedulerStore) history(taskID string) []domain.TaskResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.TaskResult(nil), m.results[taskID]...)
}

// mockTagIndex implements driving.TagIndexService for testing.
type mockTagIndex struct {
	mu         sync.Mutex
	refreshes  int
	refreshErr error
	rows       int
	snap       *domain.TagSnapshot
}

func (m *mockTagIndex) Refresh(_ context.Context) (*domain.RefreshResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return &domain.RefreshResult{RefreshedAt: time.Now(), RowsAffected: m.rows}, nil
}

func (m *mockTagIndex) Snapshot() *domain.TagSnapshot {
	if m.snap == nil {
		return domain.EmptyTagSnapshot()
	}
	return m.snap
}

func (m *mockTagIndex) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}

// mockEmbeddingWorker implements driving.EmbeddingWorker for testing.
type mockEmbeddingWorker struct {
	mu     sync.Mutex
	drains int
	n      int
}

func (m *mockEmbeddingWorker) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockEmbeddingWorker) DrainOnce(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drains++
	return m.n, nil
}

func (m *mockEmbeddingWorker) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drains
}

// mockProducer implements driven.EmbeddingProducer. Each text embeds to a
// fixed vector keyed by its content, or to fallback.
type mockProducer struct {
	mu       sync.Mutex
	dim      int
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
}

func (m *mockProducer) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockProducer) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := m.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = m.fallback
		}
	}
	return out, nil
}

func (m *mockProducer) Dimensions() int              { return m.dim }
func (m *mockProducer) ModelName() string            { return "mock-embed" }
func (m *mockProducer) Ping(_ context.Context) error { return nil }
func (m *mockProducer) Close() error                 { return nil }

// mockBackfiller implements driven.Backfiller. Each table drains
// remaining rows in batches; errs are returned before any rows move.
type mockBackfiller struct {
	mu        sync.Mutex
	tables    []string
	remaining map[string]int64
	errs      map[string][]error
	calls     map[string]int
	onBatch   func(table string)
}

func (m *mockBackfiller) TenantBackfillTables() []string {
	return m.tables
}

func (m *mockBackfiller) BackfillTenantBatch(ctx context.Context, table string, batchSize int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[table]++
	if m.onBatch != nil {
		m.onBatch(table)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if q := m.errs[table]; len(q) > 0 {
		m.errs[table] = q[1:]
		return 0, q[0]
	}
	n := min(int64(batchSize), m.remaining[table])
	m.remaining[table] -= n
	return n, nil
}

// mockCache implements driven.DocumentCache for testing.
type mockCache struct {
	mu      sync.Mutex
	items   map[string]*domain.DocumentRecord
	gets    int
	deletes int
	getErr  error
}

func newMockCache() *mockCache {
	return &mockCache{items: map[string]*domain.DocumentRecord{}}
}

func (m *mockCache) Get(_ context.Context, id string) (*domain.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.items[id]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return rec, nil
}

func (m *mockCache) Set(_ context.Context, rec *domain.DocumentRecord, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[rec.UUID] = rec
	return nil
}

func (m *mockCache) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.items, id)
	return nil
}

func (m *mockCache) Close() error { return nil }

// Ensure mocks implement interfaces
var (
	_ driven.SchedulerStore    = (*mockSchedulerStore)(nil)
	_ driving.TagIndexService  = (*mockTagIndex)(nil)
	_ driving.EmbeddingWorker  = (*mockEmbeddingWorker)(nil)
	_ driven.EmbeddingProducer = (*mockProducer)(nil)
	_ driven.Backfiller        = (*mockBackfiller)(nil)
	_ driven.DocumentCache     = (*mockCache)(nil)
)
