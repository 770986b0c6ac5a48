package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driving"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/metrics"
)

// Ensure TagIndexService implements the interface.
var _ driving.TagIndexService = (*TagIndexService)(nil)

// TagIndexService builds the tag index from tag attachments.
//
// Readers use the published snapshot and never block. Refresh builds a new
// snapshot off to the side and swaps it in once the store has the diff.
type TagIndexService struct {
	source driven.TagSource
	store  driven.TagIndexStore
	now    func() time.Time

	// refreshMu serialises writers: refreshes and copy-on-write patches.
	refreshMu sync.Mutex
	snapshot  atomic.Pointer[domain.TagSnapshot]
}

// NewTagIndexService creates a tag index service with an empty snapshot.
func NewTagIndexService(source driven.TagSource, store driven.TagIndexStore) *TagIndexService {
	s := &TagIndexService{
		source: source,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.snapshot.Store(domain.EmptyTagSnapshot())
	return s
}

// Load publishes the persisted index without rebuilding it.
func (s *TagIndexService) Load(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	entries, err := s.store.LoadTagIndex(ctx)
	if err != nil {
		return fmt.Errorf("loading tag index: %w", err)
	}
	s.publish(domain.NewTagSnapshot(entries, time.Time{}))
	logger.Debug("tag index loaded with %d entries", len(entries))
	return nil
}

// Snapshot returns the published index.
func (s *TagIndexService) Snapshot() *domain.TagSnapshot {
	return s.snapshot.Load()
}

// Refresh rebuilds the index from tag attachments, persists the
// difference and publishes the result.
func (s *TagIndexService) Refresh(ctx context.Context) (*domain.RefreshResult, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	logger.Section("Tag Index Refresh")

	current, err := s.store.LoadTagIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tag index: %w", err)
	}
	attachments, err := s.source.ListTagAttachments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tag attachments: %w", err)
	}

	next := buildTagEntries(attachments)
	now := s.now()
	diff := domain.DiffTagIndex(current, next, now)
	if diff.Size() > 0 {
		if err := s.store.ApplyTagIndexDiff(ctx, diff); err != nil {
			return nil, fmt.Errorf("applying tag index diff: %w", err)
		}
	}

	s.publish(domain.NewTagSnapshot(diff.Apply(current), now))
	metrics.TagRefreshRows.Add(float64(diff.Size()))

	logger.Debug("tag index refreshed: %d upserts, %d deletes", len(diff.Upserts), len(diff.Deletes))
	return &domain.RefreshResult{RefreshedAt: now, RowsAffected: diff.Size()}, nil
}

// Forget drops a deleted document from the published index.
func (s *TagIndexService) Forget(documentID int64) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	s.publish(s.Snapshot().Without(documentID))
}

// Retenant moves a document's published entry to another tenant.
func (s *TagIndexService) Retenant(documentID int64, tenantID *string) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	s.publish(s.Snapshot().WithTenant(documentID, tenantID))
}

func (s *TagIndexService) publish(snap *domain.TagSnapshot) {
	s.snapshot.Store(snap)
	metrics.TagIndexSize.Set(float64(snap.Len()))
}

// buildTagEntries aggregates tag attachments per document. Attachments are
// expected in document then index order, so later tokens win per key.
// Malformed bodies are skipped; a document whose every tag attachment is
// malformed gets no entry.
func buildTagEntries(attachments []domain.Attachment) []domain.TagIndexEntry {
	byDoc := make(map[int64]*domain.TagIndexEntry)
	var order []int64

	for _, a := range attachments {
		if !a.IsTags() {
			continue
		}
		tags, err := domain.ParseTagBody(a.Body)
		if err != nil {
			metrics.MalformedTagBodies.Inc()
			logger.Warn("skipping malformed tag attachment %d of document %d: %v", a.Index, a.DocumentID, err)
			continue
		}

		e, ok := byDoc[a.DocumentID]
		if !ok {
			e = &domain.TagIndexEntry{
				DocumentID: a.DocumentID,
				TenantID:   a.TenantID,
				Tags:       make(map[string]string, len(tags)),
			}
			byDoc[a.DocumentID] = e
			order = append(order, a.DocumentID)
		}
		for k, v := range tags {
			e.Tags[k] = v
		}
	}

	out := make([]domain.TagIndexEntry, 0, len(order))
	for _, id := range order {
		out = append(out, *byDoc[id])
	}
	return out
}
