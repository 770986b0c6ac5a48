package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.DocumentStore    = (*Store)(nil)
	_ driven.TextIndex        = (*Store)(nil)
	_ driven.TagSource        = (*Store)(nil)
	_ driven.TagIndexStore    = (*Store)(nil)
	_ driven.VectorEntryStore = (*Store)(nil)
	_ driven.EmbeddingQueue   = (*Store)(nil)
)

const (
	unitPending  = "pending"
	unitEmbedded = "embedded"
	unitFailed   = "failed"
)

// unitState is a content unit with its queue bookkeeping.
type unitState struct {
	unit       domain.ContentUnit
	version    int64
	status     string
	attempts   int
	lastError  string
	leaseUntil time.Time
	updatedAt  time.Time
}

// Store is an in-memory implementation of the document, index and queue
// ports. It mirrors the SQLite store's semantics without persistence.
type Store struct {
	mu      sync.RWMutex
	now     func() time.Time
	nextID  int64
	docs    map[int64]*domain.DocumentRecord
	byUUID  map[string]int64
	fields  map[int64][]domain.TextField
	units   map[string]*unitState
	vectors map[string]domain.VectorEntry
	tags    map[int64]domain.TagIndexEntry
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		now:     func() time.Time { return time.Now().UTC() },
		docs:    make(map[int64]*domain.DocumentRecord),
		byUUID:  make(map[string]int64),
		fields:  make(map[int64][]domain.TextField),
		units:   make(map[string]*unitState),
		vectors: make(map[string]domain.VectorEntry),
		tags:    make(map[int64]domain.TagIndexEntry),
	}
}

// ==================== DocumentStore ====================

// SaveDocument upserts a document by UUID and replaces its derived state.
func (s *Store) SaveDocument(_ context.Context, w *driven.DocumentWrite) (*driven.SaveResult, error) {
	if w == nil || w.Record == nil {
		return nil, domain.NewValidationError("document", "missing record")
	}
	if w.Record.UUID == "" {
		return nil, domain.NewValidationError("uuid", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byUUID[w.Record.UUID]; ok && w.Scope != nil && !w.Scope.Visible(s.docs[id].TenantID) {
		return nil, fmt.Errorf("%w: document %s belongs to another tenant", domain.ErrForbidden, w.Record.UUID)
	}

	now := s.now()
	rec := cloneRecord(w.Record)
	result := &driven.SaveResult{}

	if id, ok := s.byUUID[rec.UUID]; ok {
		prev := s.docs[id]
		rec.ID = id
		result.PreviousTenantID = prev.TenantID
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = prev.CreatedAt
		}
	} else {
		s.nextID++
		rec.ID = s.nextID
		result.Created = true
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
	}
	rec.UpdatedAt = now
	rec.PropagateTenant()
	setDocumentID(rec)

	s.docs[rec.ID] = rec
	s.byUUID[rec.UUID] = rec.ID

	fields := make([]domain.TextField, len(w.Fields))
	for i, f := range w.Fields {
		f.DocumentID = rec.ID
		f.TenantID = rec.TenantID
		f.CreatedAt = rec.CreatedAt
		fields[i] = f
	}
	s.fields[rec.ID] = fields

	result.StaleUnits, result.Enqueued = s.syncUnits(rec, w.Units, now)

	if e, ok := s.tags[rec.ID]; ok {
		e.TenantID = rec.TenantID
		s.tags[rec.ID] = e
	}

	result.Document = rec.Document
	return result, nil
}

// syncUnits reconciles content units; callers hold the write lock.
func (s *Store) syncUnits(rec *domain.DocumentRecord, units []domain.ContentUnit, now time.Time) ([]string, int) {
	var stale []string
	enqueued := 0
	seen := map[string]bool{}

	for _, u := range units {
		u.DocumentID = rec.ID
		u.TenantID = rec.TenantID
		key := u.Key()
		seen[key] = true

		st, ok := s.units[key]
		switch {
		case !ok:
			s.units[key] = &unitState{unit: u, version: 1, status: unitPending, updatedAt: now}
			enqueued++
		case st.unit.Text != u.Text:
			st.unit = u
			st.version++
			st.status = unitPending
			st.attempts = 0
			st.lastError = ""
			st.leaseUntil = time.Time{}
			st.updatedAt = now
			delete(s.vectors, key)
			stale = append(stale, key)
			enqueued++
		default:
			st.unit.TenantID = rec.TenantID
			if v, ok := s.vectors[key]; ok {
				v.Unit.TenantID = rec.TenantID
				s.vectors[key] = v
			}
		}
	}

	for key, st := range s.units {
		if st.unit.DocumentID != rec.ID || seen[key] {
			continue
		}
		delete(s.units, key)
		delete(s.vectors, key)
		stale = append(stale, key)
	}
	sort.Strings(stale)
	return stale, enqueued
}

// GetDocument retrieves a document and its visible children by ID.
func (s *Store) GetDocument(_ context.Context, id int64, scope domain.TenantScope) (*domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok || !scope.Visible(rec.TenantID) {
		return nil, domain.ErrNotFound
	}
	return visibleRecord(rec, scope), nil
}

// GetDocumentByUUID retrieves a document and its visible children by UUID.
func (s *Store) GetDocumentByUUID(ctx context.Context, uuid string, scope domain.TenantScope) (*domain.DocumentRecord, error) {
	s.mu.RLock()
	id, ok := s.byUUID[uuid]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetDocument(ctx, id, scope)
}

// DeleteDocument removes a document and everything derived from it.
func (s *Store) DeleteDocument(_ context.Context, id int64) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(s.docs, id)
	delete(s.byUUID, rec.UUID)
	delete(s.fields, id)
	delete(s.tags, id)
	for key, st := range s.units {
		if st.unit.DocumentID == id {
			delete(s.units, key)
			delete(s.vectors, key)
		}
	}
	doc := rec.Document
	return &doc, nil
}

// SetDocumentTenant changes a document's tenant and cascades it.
func (s *Store) SetDocumentTenant(_ context.Context, id int64, tenantID *string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.TenantID = cloneString(tenantID)
	rec.UpdatedAt = s.now()
	rec.PropagateTenant()

	for i := range s.fields[id] {
		s.fields[id][i].TenantID = rec.TenantID
	}
	if e, ok := s.tags[id]; ok {
		e.TenantID = rec.TenantID
		s.tags[id] = e
	}
	for key, st := range s.units {
		if st.unit.DocumentID != id {
			continue
		}
		st.unit.TenantID = rec.TenantID
		if v, ok := s.vectors[key]; ok {
			v.Unit.TenantID = rec.TenantID
			s.vectors[key] = v
		}
	}
	doc := rec.Document
	return &doc, nil
}

// ListDocuments returns documents visible in scope, newest first.
func (s *Store) ListDocuments(_ context.Context, scope domain.TenantScope, filter driven.DocumentFilter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subject := strings.ToLower(filter.Subject)
	var out []domain.Document
	for _, rec := range s.docs {
		if !scope.Visible(rec.TenantID) {
			continue
		}
		if subject != "" && !strings.Contains(strings.ToLower(rec.Subject), subject) {
			continue
		}
		if filter.Start != nil && rec.CreatedAt.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && rec.CreatedAt.After(*filter.End) {
			continue
		}
		out = append(out, rec.Document)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ==================== TextIndex ====================

// MatchFields returns fields visible in scope containing any of terms.
func (s *Store) MatchFields(
	_ context.Context, terms []string, scope domain.TenantScope, opts driven.TextMatchOptions,
) ([]domain.TextField, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.TextField
	for _, fields := range s.fields {
		for _, f := range fields {
			if !scope.Visible(f.TenantID) {
				continue
			}
			if opts.Start != nil && f.CreatedAt.Before(*opts.Start) {
				continue
			}
			if opts.End != nil && f.CreatedAt.After(*opts.End) {
				continue
			}
			for _, term := range terms {
				if _, ok := f.Terms[term]; ok {
					out = append(out, f)
					break
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Reference < out[j].Reference
	})
	return out, nil
}

// ==================== Tags ====================

// ListTagAttachments returns every tags attachment in document order.
func (s *Store) ListTagAttachments(_ context.Context) ([]domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Attachment
	for _, rec := range s.docs {
		for _, a := range rec.Attachments {
			if a.IsTags() {
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

// LoadTagIndex returns every tag index entry ordered by document ID.
func (s *Store) LoadTagIndex(_ context.Context) ([]domain.TagIndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TagIndexEntry, 0, len(s.tags))
	for _, e := range s.tags {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

// ApplyTagIndexDiff applies upserts and deletes atomically. Upserts for
// documents that no longer exist are skipped.
func (s *Store) ApplyTagIndexDiff(_ context.Context, diff domain.TagIndexDiff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range diff.Deletes {
		delete(s.tags, id)
	}
	for _, e := range diff.Upserts {
		rec, ok := s.docs[e.DocumentID]
		if !ok {
			continue
		}
		if prev, ok := s.tags[e.DocumentID]; ok {
			e.TagsCreatedAt = prev.TagsCreatedAt
		}
		e.TenantID = rec.TenantID
		s.tags[e.DocumentID] = e
	}
	return nil
}

// ==================== Vectors and queue ====================

// SaveVectorEntry stores an embedding for an existing content unit.
func (s *Store) SaveVectorEntry(_ context.Context, entry domain.VectorEntry) (*domain.VectorEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.units[entry.Unit.Key()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.writeVector(st, entry.Embedding, entry.ModelID), nil
}

// ListVectorEntries calls fn for every stored entry.
func (s *Store) ListVectorEntries(_ context.Context, fn func(domain.VectorEntry) error) error {
	s.mu.RLock()
	entries := make([]domain.VectorEntry, 0, len(s.vectors))
	for _, v := range s.vectors {
		entries = append(entries, v)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Unit.Key() < entries[j].Unit.Key() })
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// ClaimPending leases up to n pending units, oldest first.
func (s *Store) ClaimPending(_ context.Context, n int, lease time.Duration) ([]domain.PendingEmbedding, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var ready []*unitState
	for _, st := range s.units {
		if st.status == unitPending && !st.leaseUntil.After(now) {
			ready = append(ready, st)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if !ready[i].updatedAt.Equal(ready[j].updatedAt) {
			return ready[i].updatedAt.Before(ready[j].updatedAt)
		}
		return ready[i].unit.Key() < ready[j].unit.Key()
	})
	if len(ready) > n {
		ready = ready[:n]
	}

	claims := make([]domain.PendingEmbedding, 0, len(ready))
	for _, st := range ready {
		st.leaseUntil = now.Add(lease)
		claims = append(claims, domain.PendingEmbedding{
			Unit:      st.unit,
			Version:   st.version,
			Attempts:  st.attempts,
			LastError: st.lastError,
		})
	}
	return claims, nil
}

// CompletePending stores the embedding if the unit is still at the claimed version.
func (s *Store) CompletePending(
	_ context.Context, claim domain.PendingEmbedding, embedding []float32, modelID string,
) (*domain.VectorEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.units[claim.Unit.Key()]
	if !ok || st.version != claim.Version {
		return nil, false, nil
	}
	return s.writeVector(st, embedding, modelID), true, nil
}

// FailPending releases a claim and records the failure.
func (s *Store) FailPending(_ context.Context, claim domain.PendingEmbedding, cause error, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.units[claim.Unit.Key()]
	if !ok || st.version != claim.Version {
		return nil
	}
	st.attempts++
	st.leaseUntil = time.Time{}
	if cause != nil {
		st.lastError = cause.Error()
	}
	if st.attempts >= maxAttempts {
		st.status = unitFailed
	}
	return nil
}

// QueueDepth returns the number of pending units.
func (s *Store) QueueDepth(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, st := range s.units {
		if st.status == unitPending {
			n++
		}
	}
	return n, nil
}

// writeVector stores an embedding and marks the unit embedded; callers hold the write lock.
func (s *Store) writeVector(st *unitState, embedding []float32, modelID string) *domain.VectorEntry {
	entry := domain.VectorEntry{
		Unit:      st.unit,
		Embedding: append([]float32(nil), embedding...),
		ModelID:   modelID,
		CreatedAt: s.now(),
	}
	s.vectors[st.unit.Key()] = entry
	st.status = unitEmbedded
	st.leaseUntil = time.Time{}
	st.lastError = ""
	return &entry
}

// ==================== Helpers ====================

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// cloneRecord deep-copies the child slices so stored records never alias
// caller memory.
func cloneRecord(rec *domain.DocumentRecord) *domain.DocumentRecord {
	out := &domain.DocumentRecord{Document: rec.Document}
	out.TenantID = cloneString(rec.TenantID)
	out.Participants = append([]domain.Participant(nil), rec.Participants...)
	out.Dialog = append([]domain.DialogTurn(nil), rec.Dialog...)
	out.Analysis = append([]domain.AnalysisResult(nil), rec.Analysis...)
	out.Attachments = append([]domain.Attachment(nil), rec.Attachments...)
	return out
}

func setDocumentID(rec *domain.DocumentRecord) {
	for i := range rec.Participants {
		rec.Participants[i].DocumentID = rec.ID
	}
	for i := range rec.Dialog {
		rec.Dialog[i].DocumentID = rec.ID
	}
	for i := range rec.Analysis {
		rec.Analysis[i].DocumentID = rec.ID
	}
	for i := range rec.Attachments {
		rec.Attachments[i].DocumentID = rec.ID
	}
}

// visibleRecord copies rec keeping only children visible in scope.
func visibleRecord(rec *domain.DocumentRecord, scope domain.TenantScope) *domain.DocumentRecord {
	out := &domain.DocumentRecord{Document: rec.Document}
	for _, p := range rec.Participants {
		if scope.Visible(p.TenantID) {
			out.Participants = append(out.Participants, p)
		}
	}
	for _, d := range rec.Dialog {
		if scope.Visible(d.TenantID) {
			out.Dialog = append(out.Dialog, d)
		}
	}
	for _, a := range rec.Analysis {
		if scope.Visible(a.TenantID) {
			out.Analysis = append(out.Analysis, a)
		}
	}
	for _, a := range rec.Attachments {
		if scope.Visible(a.TenantID) {
			out.Attachments = append(out.Attachments, a)
		}
	}
	return out
}
