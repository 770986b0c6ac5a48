package driving

import (
	"context"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// DocumentService writes documents and keeps derived indexes in step.
type DocumentService interface {
	// Save inserts or updates a document. Keyword search sees the new
	// content as soon as Save returns.
	Save(ctx context.Context, rec *domain.DocumentRecord) (*driven.SaveResult, error)

	// Get retrieves a document visible to the caller by ID.
	Get(ctx context.Context, id int64) (*domain.DocumentRecord, error)

	// GetByUUID retrieves a document visible to the caller by UUID.
	GetByUUID(ctx context.Context, uuid string) (*domain.DocumentRecord, error)

	// Delete removes a document and everything derived from it.
	Delete(ctx context.Context, id int64) error

	// SetTenant moves a document to another tenant, or to shared when nil.
	SetTenant(ctx context.Context, id int64, tenantID *string) error

	// List returns documents visible to the caller.
	List(ctx context.Context, filter driven.DocumentFilter) ([]domain.Document, error)
}
