package driven

import (
	"context"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// TagSource lists the attachments the tag index is derived from.
type TagSource interface {
	// ListTagAttachments returns every attachment of type "tags", ordered
	// by document ID then attachment index.
	ListTagAttachments(ctx context.Context) ([]domain.Attachment, error)
}

// TagIndexStore persists the derived tag index.
type TagIndexStore interface {
	// LoadTagIndex returns every tag index entry.
	LoadTagIndex(ctx context.Context) ([]domain.TagIndexEntry, error)

	// ApplyTagIndexDiff applies the diff atomically.
	ApplyTagIndexDiff(ctx context.Context, diff domain.TagIndexDiff) error
}
