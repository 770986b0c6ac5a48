package domain

import (
	"fmt"
	"strings"
	"time"
)

// Search defaults.
const (
	// DefaultLimit is the result count when the caller does not supply one.
	DefaultLimit = 50

	// MaxLimit caps the result count of every mode.
	MaxLimit = 1000

	// DefaultThreshold is the minimum cosine similarity for semantic search.
	DefaultThreshold = 0.7

	// DefaultSemanticWeight is the semantic share of the hybrid score.
	DefaultSemanticWeight = 0.6
)

// SearchMode names a retrieval mode.
type SearchMode string

const (
	ModeKeyword  SearchMode = "keyword"
	ModeSemantic SearchMode = "semantic"
	ModeHybrid   SearchMode = "hybrid"
	ModeTags     SearchMode = "tags"
)

// KeywordQuery configures a keyword search.
type KeywordQuery struct {
	// Query uses web-search syntax: words are ANDed, "or" separates
	// alternatives and a leading '-' excludes a word.
	Query string

	// Start and End bound the document creation time (inclusive).
	Start *time.Time
	End   *time.Time

	// Tags must all be present on the document.
	Tags TagFilter

	// Limit is the maximum number of results.
	Limit int
}

// Normalize applies defaults and validates the query.
func (q *KeywordQuery) Normalize() error {
	if q.Query == "" {
		return NewValidationError("query", "must not be empty")
	}
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return NewValidationError("end", "must not be before start")
	}
	q.Limit = normalizeLimit(q.Limit)
	return nil
}

// InRange reports whether t falls inside the query's time range.
func (q KeywordQuery) InRange(t time.Time) bool {
	if q.Start != nil && t.Before(*q.Start) {
		return false
	}
	if q.End != nil && t.After(*q.End) {
		return false
	}
	return true
}

// KeywordResult is one matching field occurrence.
// Several results may share a DocumentID.
type KeywordResult struct {
	DocumentID     int64
	FieldKind      FieldKind
	FieldReference string
	Rank           float64
	Snippet        string
}

// SemanticQuery configures a semantic search.
type SemanticQuery struct {
	// Embedding must have EmbeddingDimension components.
	Embedding []float32

	// Tags must all be present on the document.
	Tags TagFilter

	// Threshold is the minimum similarity. Nil means DefaultThreshold.
	Threshold *float64

	// Limit is the maximum number of results.
	Limit int
}

// Normalize applies defaults and validates the query.
func (q *SemanticQuery) Normalize(dim int) error {
	if err := ValidateEmbedding(q.Embedding, dim); err != nil {
		return err
	}
	if q.Threshold == nil {
		t := DefaultThreshold
		q.Threshold = &t
	}
	if *q.Threshold < -1 || *q.Threshold > 1 {
		return NewValidationError("threshold", "must be between -1 and 1")
	}
	q.Limit = normalizeLimit(q.Limit)
	return nil
}

// SemanticResult is one matching content unit.
type SemanticResult struct {
	DocumentID       int64
	ContentType      ContentType
	ContentReference string
	ContentText      string
	Similarity       float64
}

// HybridQuery configures a hybrid search. At least one of Query and
// Embedding is required.
type HybridQuery struct {
	Query     string
	Embedding []float32
	Tags      TagFilter

	// SemanticWeight is the semantic share in [0,1]. Nil means DefaultSemanticWeight.
	SemanticWeight *float64

	Limit int
}

// Normalize applies defaults and validates the query.
func (q *HybridQuery) Normalize(dim int) error {
	if strings.TrimSpace(q.Query) == "" && len(q.Embedding) == 0 {
		return ErrMissingQuery
	}
	if len(q.Embedding) > 0 {
		if err := ValidateEmbedding(q.Embedding, dim); err != nil {
			return err
		}
	}
	if q.SemanticWeight == nil {
		w := DefaultSemanticWeight
		q.SemanticWeight = &w
	}
	if w := *q.SemanticWeight; w < 0 || w > 1 {
		return NewValidationError("semantic_weight", fmt.Sprintf("%v is outside [0,1]", w))
	}
	q.Limit = normalizeLimit(q.Limit)
	return nil
}

// HybridResult is one fused document score.
type HybridResult struct {
	DocumentID    int64
	CombinedScore float64
	SemanticScore float64
	KeywordScore  float64
}

// TagQuery configures a tag-containment lookup.
type TagQuery struct {
	Tags  TagFilter
	Limit int
}

// Normalize applies defaults.
func (q *TagQuery) Normalize() error {
	q.Limit = normalizeLimit(q.Limit)
	return nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 {
	return &f
}
