package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/services"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

// mockSearchService records the last query of each mode and the scope.
type mockSearchService struct {
	scope    domain.TenantScope
	keyword  *domain.KeywordQuery
	semantic *domain.SemanticQuery
	hybrid   *domain.HybridQuery
	tags     *domain.TagQuery
	ids      []int64
	err      error
}

func (m *mockSearchService) SearchKeyword(ctx context.Context, q domain.KeywordQuery) ([]domain.KeywordResult, error) {
	m.scope, m.keyword = tenant.Resolve(ctx), &q
	if m.err != nil {
		return nil, m.err
	}
	return []domain.KeywordResult{{
		DocumentID: 1, FieldKind: domain.FieldSubject, FieldReference: "0", Rank: 1, Snippet: "<b>refund</b> request",
	}}, nil
}

func (m *mockSearchService) SearchSemantic(ctx context.Context, q domain.SemanticQuery) ([]domain.SemanticResult, error) {
	m.scope, m.semantic = tenant.Resolve(ctx), &q
	if m.err != nil {
		return nil, m.err
	}
	return []domain.SemanticResult{{
		DocumentID: 2, ContentType: domain.ContentDialog, ContentReference: "1", ContentText: "I want my money back", Similarity: 0.88,
	}}, nil
}

func (m *mockSearchService) SearchHybrid(ctx context.Context, q domain.HybridQuery) ([]domain.HybridResult, error) {
	m.scope, m.hybrid = tenant.Resolve(ctx), &q
	if m.err != nil {
		return nil, m.err
	}
	return []domain.HybridResult{{DocumentID: 3, CombinedScore: 0.5, SemanticScore: 0.6, KeywordScore: 0.35}}, nil
}

func (m *mockSearchService) SearchByTags(ctx context.Context, q domain.TagQuery) ([]int64, error) {
	m.scope, m.tags = tenant.Resolve(ctx), &q
	return m.ids, m.err
}

// mockDocumentService keeps saved records in memory.
type mockDocumentService struct {
	saved     []*domain.DocumentRecord
	byUUID    map[string]*domain.DocumentRecord
	deleted   []int64
	retenants map[int64]*string
	err       error
}

func newMockDocumentService() *mockDocumentService {
	return &mockDocumentService{
		byUUID:    make(map[string]*domain.DocumentRecord),
		retenants: make(map[int64]*string),
	}
}

func (m *mockDocumentService) Save(ctx context.Context, rec *domain.DocumentRecord) (*driven.SaveResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	_, exists := m.byUUID[rec.UUID]
	rec.ID = int64(len(m.saved) + 1)
	m.saved = append(m.saved, rec)
	m.byUUID[rec.UUID] = rec
	return &driven.SaveResult{Document: rec.Document, Created: !exists, Enqueued: len(rec.Dialog) + 1}, nil
}

func (m *mockDocumentService) Get(_ context.Context, id int64) (*domain.DocumentRecord, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) GetByUUID(ctx context.Context, uuid string) (*domain.DocumentRecord, error) {
	rec, ok := m.byUUID[uuid]
	if !ok || !tenant.Resolve(ctx).Visible(rec.TenantID) {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (m *mockDocumentService) Delete(_ context.Context, id int64) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockDocumentService) SetTenant(_ context.Context, id int64, tenantID *string) error {
	if m.err != nil {
		return m.err
	}
	m.retenants[id] = tenantID
	return nil
}

func (m *mockDocumentService) List(ctx context.Context, _ driven.DocumentFilter) ([]domain.Document, error) {
	scope := tenant.Resolve(ctx)
	var out []domain.Document
	for _, r := range m.saved {
		if scope.Visible(r.TenantID) {
			out = append(out, r.Document)
		}
	}
	return out, nil
}

// mockTagService returns a fixed refresh result and snapshot.
type mockTagService struct {
	snapshot *domain.TagSnapshot
	calls    int
}

func (m *mockTagService) Refresh(_ context.Context) (*domain.RefreshResult, error) {
	m.calls++
	return &domain.RefreshResult{
		RefreshedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		RowsAffected: 4,
	}, nil
}

func (m *mockTagService) Snapshot() *domain.TagSnapshot {
	if m.snapshot == nil {
		return domain.EmptyTagSnapshot()
	}
	return m.snapshot
}

// mockBackfillService returns a fixed report.
type mockBackfillService struct {
	report *domain.BackfillReport
	err    error
}

func (m *mockBackfillService) BackfillTenants(_ context.Context) (*domain.BackfillReport, error) {
	return m.report, m.err
}

// mockEmbeddingWorker returns the queued batch sizes in order, then 0.
type mockEmbeddingWorker struct {
	batches []int
	calls   int
}

func (m *mockEmbeddingWorker) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockEmbeddingWorker) DrainOnce(_ context.Context) (int, error) {
	m.calls++
	if len(m.batches) == 0 {
		return 0, nil
	}
	n := m.batches[0]
	m.batches = m.batches[1:]
	return n, nil
}

// mockVectorService records accepted entries and rejects unknown types.
type mockVectorService struct {
	entries []domain.VectorEntry
}

func (m *mockVectorService) UpsertEmbedding(_ context.Context, entry domain.VectorEntry) error {
	if !entry.Unit.Type.Valid() {
		return domain.NewValidationError("content_type", "unknown")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockVectorService) Warm(_ context.Context) (int, error) {
	return len(m.entries), nil
}

// mockEmbedder returns a fixed vector for any text.
type mockEmbedder struct {
	vector []float32
	texts  []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.texts = append(m.texts, text)
	if m.vector == nil {
		return nil, errors.New("no vector")
	}
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return len(m.vector) }
func (m *mockEmbedder) ModelName() string { return "mock" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error { return nil }

// testServices bundles the mocks installed by setupTestServices.
type testServices struct {
	search    *mockSearchService
	documents *mockDocumentService
	tags      *mockTagService
	backfill  *mockBackfillService
	worker    *mockEmbeddingWorker
	vectors   *mockVectorService
	embedder  *mockEmbedder
}

// setupTestServices installs mocks in the package-level service variables
// and returns a cleanup that restores them and resets flags.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		search:    &mockSearchService{},
		documents: newMockDocumentService(),
		tags:      &mockTagService{},
		backfill:  &mockBackfillService{},
		worker:    &mockEmbeddingWorker{},
		vectors:   &mockVectorService{},
		embedder:  &mockEmbedder{vector: []float32{0.1, 0.2, 0.3}},
	}

	oldSettings := settings
	servicesInjected = true
	searchService = ts.search
	documentService = ts.documents
	tagService = ts.tags
	tenantService = services.NewTenantService()
	backfillService = ts.backfill
	embeddingWorker = ts.worker
	vectorService = ts.vectors
	queryEmbedder = ts.embedder
	scheduler = nil

	return ts, func() {
		servicesInjected = false
		searchService = nil
		documentService = nil
		tagService = nil
		tenantService = nil
		backfillService = nil
		embeddingWorker = nil
		vectorService = nil
		queryEmbedder = nil
		settings = oldSettings
		resetFlags()
	}
}

func resetFlags() {
	verbose, configDir, token, tenantID = false, "", "", ""
	searchLimit, searchJSON = domain.DefaultLimit, false
	searchTags = map[string]string{}
	searchStart, searchEnd = "", ""
	searchThreshold, searchWeight = domain.DefaultThreshold, domain.DefaultSemanticWeight
	searchEmbedding, searchText = "", ""
	embedAll, embedModel = false, "external"
	importTenant, listSubject, listLimit, setTenantNone = "", "", domain.DefaultLimit, false
}
