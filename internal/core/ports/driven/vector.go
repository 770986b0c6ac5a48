package driven

import (
	"context"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// VectorIndex provides approximate nearest-neighbour search over content
// unit embeddings using cosine similarity.
type VectorIndex interface {
	// Upsert inserts or replaces the embedding of a content unit.
	Upsert(ctx context.Context, entry domain.VectorEntry) error

	// Delete removes units by key. Unknown keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// DeleteDocument removes every unit of a document.
	DeleteDocument(ctx context.Context, documentID int64) error

	// SetDocumentTenant rewrites the tenant of every unit of a document.
	SetDocumentTenant(ctx context.Context, documentID int64, tenantID *string) error

	// Search returns up to k units visible in scope whose similarity is at
	// least threshold, ordered by similarity descending.
	Search(ctx context.Context, query []float32, scope domain.TenantScope, k int, threshold float64) ([]VectorHit, error)

	// Count returns the number of indexed units.
	Count() int

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Unit is the matched content unit, including its text.
	Unit domain.ContentUnit

	// Similarity is the cosine similarity score.
	Similarity float64
}

// VectorEntryStore persists embeddings so the vector index can be rebuilt.
type VectorEntryStore interface {
	// SaveVectorEntry stores the embedding of an existing content unit.
	// Returns domain.ErrNotFound when the unit does not exist. The stored
	// entry carries the unit's current text and tenant.
	SaveVectorEntry(ctx context.Context, entry domain.VectorEntry) (*domain.VectorEntry, error)

	// ListVectorEntries calls fn for every stored entry.
	ListVectorEntries(ctx context.Context, fn func(domain.VectorEntry) error) error
}
