package driven

import (
	"context"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// DocumentWrite is everything persisted by one document save. Fields and
// Units carry no document or tenant id; the store fills both in.
type DocumentWrite struct {
	// Record is the document and its children.
	Record *domain.DocumentRecord

	// Fields are the lexical representations of every text-bearing field.
	Fields []domain.TextField

	// Units are the embeddable fragments of the document.
	Units []domain.ContentUnit

	// Scope, when set, must see an existing document with the same UUID;
	// otherwise the save fails with domain.ErrForbidden and nothing changes.
	Scope *domain.TenantScope
}

// SaveResult reports what a document save changed.
type SaveResult struct {
	// Document is the saved document with its assigned ID.
	Document domain.Document

	// Created is true when the document did not exist before.
	Created bool

	// PreviousTenantID is the tenant before the save, when the document existed.
	PreviousTenantID *string

	// StaleUnits are keys of content units whose embeddings were dropped
	// because the unit changed or no longer exists.
	StaleUnits []string

	// Enqueued is the number of units queued for embedding.
	Enqueued int
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	// Subject matches documents whose subject contains this text (case-insensitive).
	Subject string

	// Start and End bound the creation time (inclusive).
	Start *time.Time
	End   *time.Time

	// Limit caps the number of documents.
	Limit int
}

// DocumentStore persists documents and their child entities.
type DocumentStore interface {
	// SaveDocument inserts or updates a document by UUID. Children, text
	// fields and content units are replaced in the same transaction, and
	// the document's tenant is copied onto every child and derived row.
	SaveDocument(ctx context.Context, w *DocumentWrite) (*SaveResult, error)

	// GetDocument retrieves a document and its children by ID.
	// Returns domain.ErrNotFound when missing or not visible in scope.
	GetDocument(ctx context.Context, id int64, scope domain.TenantScope) (*domain.DocumentRecord, error)

	// GetDocumentByUUID retrieves a document and its children by UUID.
	GetDocumentByUUID(ctx context.Context, uuid string, scope domain.TenantScope) (*domain.DocumentRecord, error)

	// DeleteDocument removes a document, its children and all derived rows.
	// Returns domain.ErrNotFound when the document does not exist.
	DeleteDocument(ctx context.Context, id int64) (*domain.Document, error)

	// SetDocumentTenant changes a document's tenant and cascades the new
	// value to children and derived rows in one transaction.
	SetDocumentTenant(ctx context.Context, id int64, tenantID *string) (*domain.Document, error)

	// ListDocuments returns documents visible in scope, newest first.
	ListDocuments(ctx context.Context, scope domain.TenantScope, filter DocumentFilter) ([]domain.Document, error)
}
