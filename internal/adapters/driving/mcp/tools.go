package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// KeywordSearchInput is the input schema for the search_keyword tool.
type KeywordSearchInput struct {
	Query string `json:"query" jsonschema:"web-search syntax: words are ANDed, 'or' separates alternatives, a leading '-' excludes"`
	Start string `json:"start,omitempty" jsonschema:"RFC 3339 lower bound on conversation creation time"`
	End   string `json:"end,omitempty" jsonschema:"RFC 3339 upper bound on conversation creation time"`
	Tags  any    `json:"tags,omitempty" jsonschema:"object of tag key/value pairs that must all be present"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default 50)"`
}

// KeywordSearchOutput is the output schema for the search_keyword tool.
type KeywordSearchOutput struct {
	Results []KeywordResultOutput `json:"results"`
	Count   int                   `json:"count"`
}

// KeywordResultOutput is one matching field.
type KeywordResultOutput struct {
	DocumentID     int64   `json:"document_id"`
	FieldKind      string  `json:"field_kind"`
	FieldReference string  `json:"field_reference"`
	Rank           float64 `json:"rank"`
	Snippet        string  `json:"snippet"`
}

// SemanticSearchInput is the input schema for the search_semantic tool.
type SemanticSearchInput struct {
	Embedding []float32 `json:"embedding" jsonschema:"query embedding with 384 components"`
	Tags      any       `json:"tags,omitempty" jsonschema:"object of tag key/value pairs that must all be present"`
	Threshold *float64  `json:"threshold,omitempty" jsonschema:"minimum cosine similarity (default 0.7)"`
	Limit     int       `json:"limit,omitempty" jsonschema:"maximum number of results (default 50)"`
}

// SemanticSearchOutput is the output schema for the search_semantic tool.
type SemanticSearchOutput struct {
	Results []SemanticResultOutput `json:"results"`
	Count   int                    `json:"count"`
}

// SemanticResultOutput is one similar content unit.
type SemanticResultOutput struct {
	DocumentID       int64   `json:"document_id"`
	ContentType      string  `json:"content_type"`
	ContentReference string  `json:"content_reference"`
	ContentText      string  `json:"content_text"`
	Similarity       float64 `json:"similarity"`
}

// HybridSearchInput is the input schema for the search_hybrid tool.
type HybridSearchInput struct {
	Query          string    `json:"query,omitempty" jsonschema:"keyword query; required when embedding is absent"`
	Embedding      []float32 `json:"embedding,omitempty" jsonschema:"query embedding; required when query is absent"`
	Tags           any       `json:"tags,omitempty" jsonschema:"object of tag key/value pairs that must all be present"`
	SemanticWeight *float64  `json:"semantic_weight,omitempty" jsonschema:"semantic share of the combined score in [0,1] (default 0.6)"`
	Limit          int       `json:"limit,omitempty" jsonschema:"maximum number of results (default 50)"`
}

// HybridSearchOutput is the output schema for the search_hybrid tool.
type HybridSearchOutput struct {
	Results []HybridResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// HybridResultOutput is one fused document score.
type HybridResultOutput struct {
	DocumentID    int64   `json:"document_id"`
	CombinedScore float64 `json:"combined_score"`
	SemanticScore float64 `json:"semantic_score"`
	KeywordScore  float64 `json:"keyword_score"`
}

// TagSearchInput is the input schema for the search_by_tags tool.
type TagSearchInput struct {
	Tags  any `json:"tags" jsonschema:"object of tag key/value pairs that must all be present"`
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of results (default 50)"`
}

// TagSearchOutput is the output schema for the search_by_tags tool.
type TagSearchOutput struct {
	DocumentIDs []int64 `json:"document_ids"`
	Count       int     `json:"count"`
}

// SetTenantInput is the input schema for the set_tenant_context tool.
type SetTenantInput struct {
	TenantID string `json:"tenant_id" jsonschema:"tenant to scope this session to"`
}

// EmptyInput is the input schema for tools without arguments.
type EmptyInput struct{}

// TenantOutput reports the tenant resolved for the session.
type TenantOutput struct {
	TenantID string `json:"tenant_id,omitempty"`
	Source   string `json:"source"`
}

// RefreshOutput is the output schema for the refresh_tag_index tool.
type RefreshOutput struct {
	RefreshedAt  string `json:"refreshed_at"`
	RowsAffected int    `json:"rows_affected"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_keyword",
		Description: "Full-text search over vCon subjects, parties, dialog and analysis",
	}, s.handleSearchKeyword)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_semantic",
		Description: "Find vCon content similar to a query embedding",
	}, s.handleSearchSemantic)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_hybrid",
		Description: "Combine keyword and semantic scores per vCon",
	}, s.handleSearchHybrid)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_by_tags",
		Description: "List vCons carrying every given tag",
	}, s.handleSearchByTags)

	if s.ports.Tenant != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "set_tenant_context",
			Description: "Scope this session to a tenant (trusted callers only)",
		}, s.handleSetTenant)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "clear_tenant_context",
			Description: "Remove the session tenant (trusted callers only)",
		}, s.handleClearTenant)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "get_tenant_context",
			Description: "Report the tenant this session is scoped to",
		}, s.handleGetTenant)
	}

	if s.ports.Tags != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "refresh_tag_index",
			Description: "Rebuild the tag index from tag attachments",
		}, s.handleRefreshTags)
	}
}

// handleSearchKeyword handles the search_keyword tool invocation.
func (s *Server) handleSearchKeyword(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input KeywordSearchInput,
) (*mcp.CallToolResult, KeywordSearchOutput, error) {
	tags, err := domain.ParseTagFilter(input.Tags)
	if err != nil {
		return nil, KeywordSearchOutput{}, err
	}
	start, err := parseTime("start", input.Start)
	if err != nil {
		return nil, KeywordSearchOutput{}, err
	}
	end, err := parseTime("end", input.End)
	if err != nil {
		return nil, KeywordSearchOutput{}, err
	}

	results, err := s.ports.Search.SearchKeyword(s.bind(ctx), domain.KeywordQuery{
		Query: input.Query,
		Start: start,
		End:   end,
		Tags:  tags,
		Limit: input.Limit,
	})
	if err != nil {
		return nil, KeywordSearchOutput{}, err
	}

	output := KeywordSearchOutput{
		Results: make([]KeywordResultOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = KeywordResultOutput{
			DocumentID:     r.DocumentID,
			FieldKind:      string(r.FieldKind),
			FieldReference: r.FieldReference,
			Rank:           r.Rank,
			Snippet:        r.Snippet,
		}
	}
	return nil, output, nil
}

// handleSearchSemantic handles the search_semantic tool invocation.
func (s *Server) handleSearchSemantic(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SemanticSearchInput,
) (*mcp.CallToolResult, SemanticSearchOutput, error) {
	tags, err := domain.ParseTagFilter(input.Tags)
	if err != nil {
		return nil, SemanticSearchOutput{}, err
	}

	results, err := s.ports.Search.SearchSemantic(s.bind(ctx), domain.SemanticQuery{
		Embedding: input.Embedding,
		Tags:      tags,
		Threshold: input.Threshold,
		Limit:     input.Limit,
	})
	if err != nil {
		return nil, SemanticSearchOutput{}, err
	}

	output := SemanticSearchOutput{
		Results: make([]SemanticResultOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = SemanticResultOutput{
			DocumentID:       r.DocumentID,
			ContentType:      string(r.ContentType),
			ContentReference: r.ContentReference,
			ContentText:      r.ContentText,
			Similarity:       r.Similarity,
		}
	}
	return nil, output, nil
}

// handleSearchHybrid handles the search_hybrid tool invocation.
func (s *Server) handleSearchHybrid(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input HybridSearchInput,
) (*mcp.CallToolResult, HybridSearchOutput, error) {
	tags, err := domain.ParseTagFilter(input.Tags)
	if err != nil {
		return nil, HybridSearchOutput{}, err
	}

	results, err := s.ports.Search.SearchHybrid(s.bind(ctx), domain.HybridQuery{
		Query:          input.Query,
		Embedding:      input.Embedding,
		Tags:           tags,
		SemanticWeight: input.SemanticWeight,
		Limit:          input.Limit,
	})
	if err != nil {
		return nil, HybridSearchOutput{}, err
	}

	output := HybridSearchOutput{
		Results: make([]HybridResultOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = HybridResultOutput{
			DocumentID:    r.DocumentID,
			CombinedScore: r.CombinedScore,
			SemanticScore: r.SemanticScore,
			KeywordScore:  r.KeywordScore,
		}
	}
	return nil, output, nil
}

// handleSearchByTags handles the search_by_tags tool invocation.
func (s *Server) handleSearchByTags(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TagSearchInput,
) (*mcp.CallToolResult, TagSearchOutput, error) {
	tags, err := domain.ParseTagFilter(input.Tags)
	if err != nil {
		return nil, TagSearchOutput{}, err
	}

	ids, err := s.ports.Search.SearchByTags(s.bind(ctx), domain.TagQuery{Tags: tags, Limit: input.Limit})
	if err != nil {
		return nil, TagSearchOutput{}, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return nil, TagSearchOutput{DocumentIDs: ids, Count: len(ids)}, nil
}

// handleSetTenant handles the set_tenant_context tool invocation.
func (s *Server) handleSetTenant(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SetTenantInput,
) (*mcp.CallToolResult, TenantOutput, error) {
	ctx = s.bind(ctx)
	if err := s.ports.Tenant.SetTenantContext(ctx, input.TenantID); err != nil {
		return nil, TenantOutput{}, err
	}
	return nil, tenantOutput(s.ports.Tenant.CurrentTenant(ctx)), nil
}

// handleClearTenant handles the clear_tenant_context tool invocation.
func (s *Server) handleClearTenant(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, TenantOutput, error) {
	ctx = s.bind(ctx)
	if err := s.ports.Tenant.ClearTenantContext(ctx); err != nil {
		return nil, TenantOutput{}, err
	}
	return nil, tenantOutput(s.ports.Tenant.CurrentTenant(ctx)), nil
}

// handleGetTenant handles the get_tenant_context tool invocation.
func (s *Server) handleGetTenant(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, TenantOutput, error) {
	return nil, tenantOutput(s.ports.Tenant.CurrentTenant(s.bind(ctx))), nil
}

// handleRefreshTags handles the refresh_tag_index tool invocation.
func (s *Server) handleRefreshTags(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, RefreshOutput, error) {
	res, err := s.ports.Tags.Refresh(s.bind(ctx))
	if err != nil {
		return nil, RefreshOutput{}, err
	}
	return nil, RefreshOutput{
		RefreshedAt:  res.RefreshedAt.UTC().Format(time.RFC3339Nano),
		RowsAffected: res.RowsAffected,
	}, nil
}

func tenantOutput(scope domain.TenantScope) TenantOutput {
	return TenantOutput{TenantID: scope.ID, Source: string(scope.Source)}
}

// parseTime parses an optional RFC 3339 bound.
func parseTime(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, domain.NewValidationError(field, "must be an RFC 3339 timestamp")
	}
	return &t, nil
}
