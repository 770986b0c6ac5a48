package driving

import (
	"context"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// TagIndexService maintains the derived tag index.
type TagIndexService interface {
	// Refresh rebuilds the tag index from tag attachments and publishes it.
	Refresh(ctx context.Context) (*domain.RefreshResult, error)

	// Snapshot returns the currently published index.
	Snapshot() *domain.TagSnapshot
}
