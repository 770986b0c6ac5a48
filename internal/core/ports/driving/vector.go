package driving

import (
	"context"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// VectorService accepts embeddings from the external producer.
type VectorService interface {
	// UpsertEmbedding validates and stores an embedding for an existing
	// content unit, then publishes it to the vector index.
	UpsertEmbedding(ctx context.Context, entry domain.VectorEntry) error

	// Warm loads every persisted embedding into the vector index.
	Warm(ctx context.Context) (int, error)
}

// EmbeddingWorker drains the embedding queue.
type EmbeddingWorker interface {
	// Run drains until ctx is cancelled.
	Run(ctx context.Context) error

	// DrainOnce claims and processes one batch, returning the number of
	// embeddings written.
	DrainOnce(ctx context.Context) (int, error)
}
