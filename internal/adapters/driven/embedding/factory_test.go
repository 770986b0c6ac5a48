package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/embedding/ollama"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/embedding/openai"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

func TestNewProducer(t *testing.T) {
	tests := []struct {
		name      string
		settings  domain.EmbeddingSettings
		wantModel string
		wantErr   error
	}{
		{
			name:      "empty provider defaults to ollama",
			settings:  domain.EmbeddingSettings{},
			wantModel: ollama.DefaultModel,
		},
		{
			name:      "ollama",
			settings:  domain.EmbeddingSettings{Provider: domain.ProviderOllama, Model: "nomic-embed-text"},
			wantModel: "nomic-embed-text",
		},
		{
			name:      "openai",
			settings:  domain.EmbeddingSettings{Provider: domain.ProviderOpenAI, APIKey: "sk-test"},
			wantModel: openai.DefaultModel,
		},
		{
			name:     "openai without key",
			settings: domain.EmbeddingSettings{Provider: domain.ProviderOpenAI},
			wantErr:  openai.ErrMissingAPIKey,
		},
		{
			name:     "unknown provider",
			settings: domain.EmbeddingSettings{Provider: "cohere"},
			wantErr:  domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProducer(tt.settings, 8)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer p.Close()
			assert.Equal(t, tt.wantModel, p.ModelName())
			assert.Equal(t, 8, p.Dimensions())
		})
	}
}

func TestValidate(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	ok, err := NewProducer(domain.EmbeddingSettings{BaseURL: up.URL}, 8)
	require.NoError(t, err)
	assert.NoError(t, Validate(context.Background(), ok))

	bad, err := NewProducer(domain.EmbeddingSettings{BaseURL: down.URL}, 8)
	require.NoError(t, err)
	err = Validate(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "unreachable")
}
