package driving

import (
	"context"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// SearchService provides the retrieval modes to external actors.
// Every mode applies the caller's tenant scope and the optional tag filter.
type SearchService interface {
	// SearchKeyword returns matching field occurrences ordered by rank.
	SearchKeyword(ctx context.Context, q domain.KeywordQuery) ([]domain.KeywordResult, error)

	// SearchSemantic returns content units similar to the query embedding.
	SearchSemantic(ctx context.Context, q domain.SemanticQuery) ([]domain.SemanticResult, error)

	// SearchHybrid fuses keyword and semantic scores per document.
	SearchHybrid(ctx context.Context, q domain.HybridQuery) ([]domain.HybridResult, error)

	// SearchByTags returns documents whose tags contain the filter.
	SearchByTags(ctx context.Context, q domain.TagQuery) ([]int64, error)
}
