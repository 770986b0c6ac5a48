package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EmbeddingDimension is the fixed number of components in every embedding.
const EmbeddingDimension = 384

// ContentType identifies the kind of embeddable fragment.
type ContentType string

const (
	// ContentSubject is the document subject.
	ContentSubject ContentType = "subject"
	// ContentDialog is one dialog turn body.
	ContentDialog ContentType = "dialog"
	// ContentAnalysis is one analysis result body.
	ContentAnalysis ContentType = "analysis"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	switch t {
	case ContentSubject, ContentDialog, ContentAnalysis:
		return true
	default:
		return false
	}
}

// ContentUnit is an embeddable fragment of a document.
type ContentUnit struct {
	DocumentID int64
	TenantID   *string
	Type       ContentType

	// Reference is "0" for the subject and the child index otherwise.
	Reference string

	// Text is the fragment's content.
	Text string
}

// Key returns the unique identifier of the unit.
func (u ContentUnit) Key() string {
	return UnitKey(u.DocumentID, u.Type, u.Reference)
}

// UnitKey formats the unique identifier of a content unit.
func UnitKey(documentID int64, contentType ContentType, reference string) string {
	return fmt.Sprintf("%d/%s/%s", documentID, contentType, reference)
}

// ParseUnitKey splits a key produced by UnitKey.
func ParseUnitKey(key string) (int64, ContentType, string, error) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 {
		return 0, "", "", NewValidationError("unit_key", fmt.Sprintf("malformed key %q", key))
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", "", NewValidationError("unit_key", fmt.Sprintf("malformed document id in %q", key))
	}
	return id, ContentType(parts[1]), parts[2], nil
}

// VectorEntry is an embedding of one content unit.
type VectorEntry struct {
	Unit      ContentUnit
	Embedding []float32
	ModelID   string
	CreatedAt time.Time
}

// PendingEmbedding is a queued content unit awaiting an embedding.
type PendingEmbedding struct {
	// ID is the queue row identifier.
	ID int64

	// Unit is the content to embed.
	Unit ContentUnit

	// Version increases each time the unit's text changes. Completing a
	// claim with a stale version leaves the row queued.
	Version int64

	// Attempts counts failed embedding attempts.
	Attempts int

	// LastError is the most recent failure, if any.
	LastError string
}

// ValidateEmbedding checks that emb has the expected dimension and holds
// only finite values.
func ValidateEmbedding(emb []float32, dim int) error {
	if len(emb) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), dim)
	}
	for i, v := range emb {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return NewValidationError("embedding", fmt.Sprintf("component %d is not finite", i))
		}
	}
	return nil
}
