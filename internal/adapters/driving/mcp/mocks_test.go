package mcp

import (
	"context"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

// mockSearchService is a mock implementation of driving.SearchService.
// It records the last query and the tenant scope it ran under.
type mockSearchService struct {
	keyword  []domain.KeywordResult
	semantic []domain.SemanticResult
	hybrid   []domain.HybridResult
	ids      []int64
	err      error

	scope         domain.TenantScope
	lastKeyword   domain.KeywordQuery
	lastSemantic  domain.SemanticQuery
	lastHybrid    domain.HybridQuery
	lastTagsQuery domain.TagQuery
}

func (m *mockSearchService) SearchKeyword(ctx context.Context, q domain.KeywordQuery) ([]domain.KeywordResult, error) {
	m.scope = tenant.Resolve(ctx)
	m.lastKeyword = q
	return m.keyword, m.err
}

func (m *mockSearchService) SearchSemantic(ctx context.Context, q domain.SemanticQuery) ([]domain.SemanticResult, error) {
	m.scope = tenant.Resolve(ctx)
	m.lastSemantic = q
	return m.semantic, m.err
}

func (m *mockSearchService) SearchHybrid(ctx context.Context, q domain.HybridQuery) ([]domain.HybridResult, error) {
	m.scope = tenant.Resolve(ctx)
	m.lastHybrid = q
	return m.hybrid, m.err
}

func (m *mockSearchService) SearchByTags(ctx context.Context, q domain.TagQuery) ([]int64, error) {
	m.scope = tenant.Resolve(ctx)
	m.lastTagsQuery = q
	return m.ids, m.err
}

// mockTagIndex is a mock implementation of driving.TagIndexService.
type mockTagIndex struct {
	result *domain.RefreshResult
	err    error
	calls  int
}

func (m *mockTagIndex) Refresh(_ context.Context) (*domain.RefreshResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockTagIndex) Snapshot() *domain.TagSnapshot {
	return domain.EmptyTagSnapshot()
}

// mockDocumentService is a mock implementation of driving.DocumentService.
// GetByUUID applies the tenant predicate like the real service.
type mockDocumentService struct {
	records map[string]*domain.DocumentRecord
	err     error
}

func (m *mockDocumentService) Save(_ context.Context, _ *domain.DocumentRecord) (*driven.SaveResult, error) {
	return nil, domain.ErrNotImplemented
}

func (m *mockDocumentService) Get(_ context.Context, _ int64) (*domain.DocumentRecord, error) {
	return nil, domain.ErrNotImplemented
}

func (m *mockDocumentService) GetByUUID(ctx context.Context, uuid string) (*domain.DocumentRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[uuid]
	if !ok || !tenant.Resolve(ctx).Visible(rec.TenantID) {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (m *mockDocumentService) Delete(_ context.Context, _ int64) error {
	return domain.ErrNotImplemented
}

func (m *mockDocumentService) SetTenant(_ context.Context, _ int64, _ *string) error {
	return domain.ErrNotImplemented
}

func (m *mockDocumentService) List(_ context.Context, _ driven.DocumentFilter) ([]domain.Document, error) {
	return nil, domain.ErrNotImplemented
}
