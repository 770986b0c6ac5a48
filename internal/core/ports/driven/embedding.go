package driven

import (
	"context"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// EmbeddingProducer generates vector embeddings from text. It is the
// external collaborator that drains the embedding queue; the search
// engine itself never embeds queries.
//
// Implementations may include:
//   - Ollama (all-minilm, nomic-embed-text)
//   - Local models via inference servers
type EmbeddingProducer interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingQueue holds content units awaiting embeddings.
type EmbeddingQueue interface {
	// ClaimPending leases up to n pending units for lease duration. Leased
	// units are not returned to other callers until the lease expires.
	ClaimPending(ctx context.Context, n int, lease time.Duration) ([]domain.PendingEmbedding, error)

	// CompletePending stores the embedding and marks the unit embedded.
	// Returns false without writing when the unit changed since the claim.
	// The returned entry is what should be published to the vector index.
	CompletePending(ctx context.Context, claim domain.PendingEmbedding, embedding []float32, modelID string) (*domain.VectorEntry, bool, error)

	// FailPending releases a claim and records the failure. The unit is
	// parked as failed once attempts reach maxAttempts.
	FailPending(ctx context.Context, claim domain.PendingEmbedding, cause error, maxAttempts int) error

	// QueueDepth returns the number of pending units.
	QueueDepth(ctx context.Context) (int, error)
}
