package services

import (
	"context"
	"fmt"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driving"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
)

// Ensure VectorService implements the interface.
var _ driving.VectorService = (*VectorService)(nil)

// VectorService accepts embeddings and keeps the vector index in step with
// the persisted entries.
type VectorService struct {
	entries   driven.VectorEntryStore
	index     driven.VectorIndex
	dimension int
}

// NewVectorService creates a vector service for embeddings of dimension.
func NewVectorService(entries driven.VectorEntryStore, index driven.VectorIndex, dimension int) *VectorService {
	if dimension <= 0 {
		dimension = domain.EmbeddingDimension
	}
	return &VectorService{entries: entries, index: index, dimension: dimension}
}

// UpsertEmbedding validates and stores the embedding of an existing
// content unit, then publishes it to the index.
func (s *VectorService) UpsertEmbedding(ctx context.Context, entry domain.VectorEntry) error {
	if s.entries == nil || s.index == nil {
		return domain.ErrNotImplemented
	}
	if err := validateVector(entry.Embedding, s.dimension); err != nil {
		return err
	}
	if !entry.Unit.Type.Valid() {
		return domain.NewValidationError("content_type", fmt.Sprintf("unknown content type %q", entry.Unit.Type))
	}

	stored, err := s.entries.SaveVectorEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("saving embedding for %s: %w", entry.Unit.Key(), err)
	}
	if err := s.index.Upsert(ctx, *stored); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVectorIndexUnavailable, err)
	}
	return nil
}

// Warm loads every persisted embedding into the index and returns the
// number loaded.
func (s *VectorService) Warm(ctx context.Context) (int, error) {
	if s.entries == nil || s.index == nil {
		return 0, domain.ErrNotImplemented
	}

	n := 0
	err := s.entries.ListVectorEntries(ctx, func(e domain.VectorEntry) error {
		if err := s.index.Upsert(ctx, e); err != nil {
			logger.Warn("skipping vector %s: %v", e.Unit.Key(), err)
			return nil
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("loading vectors: %w", err)
	}
	logger.Debug("vector index warmed with %d entries", n)
	return n, nil
}

// validateVector checks dimension, finiteness and a non-zero norm.
// A zero vector has no direction, so cosine similarity is undefined.
func validateVector(v []float32, dim int) error {
	if err := domain.ValidateEmbedding(v, dim); err != nil {
		return err
	}
	for _, f := range v {
		if f != 0 {
			return nil
		}
	}
	return domain.NewValidationError("embedding", "must not be the zero vector")
}
