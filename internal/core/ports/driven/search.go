package driven

import (
	"context"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// TextMatchOptions narrows a text index lookup.
type TextMatchOptions struct {
	// Start and End bound the document creation time (inclusive).
	Start *time.Time
	End   *time.Time
}

// TextIndex looks up stored lexical fields.
// Ranking happens in core; the index only narrows candidates.
type TextIndex interface {
	// MatchFields returns every field visible in scope that contains at
	// least one of terms.
	MatchFields(ctx context.Context, terms []string, scope domain.TenantScope, opts TextMatchOptions) ([]domain.TextField, error)
}
