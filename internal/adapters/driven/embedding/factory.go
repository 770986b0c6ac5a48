// Package embedding provides factory functions for embedding producers.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/embedding/ollama"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/embedding/openai"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// pingTimeout bounds the connectivity check in Validate.
const pingTimeout = 5 * time.Second

// NewProducer creates the producer selected by settings. The producer is
// not contacted.
func NewProducer(settings domain.EmbeddingSettings, dimensions int) (driven.EmbeddingProducer, error) {
	switch settings.Provider {
	case domain.ProviderOllama, "":
		return ollama.New(ollama.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		}), nil
	case domain.ProviderOpenAI:
		p, err := openai.New(openai.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, domain.NewValidationError("embedding.provider", fmt.Sprintf("unknown provider %q", settings.Provider))
	}
}

// Validate pings the producer. Queued units stay pending while it is
// unreachable, so callers usually warn rather than fail.
func Validate(ctx context.Context, p driven.EmbeddingProducer) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%s unreachable: %w", p.ModelName(), err)
	}
	return nil
}
