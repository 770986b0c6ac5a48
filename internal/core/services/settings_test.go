package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/storage/memory"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s := LoadSettings(memory.NewConfigStore())
	assert.Equal(t, domain.DefaultSettings(), s)
	require.NoError(t, s.Validate())

	assert.Equal(t, domain.DefaultSettings(), LoadSettings(nil))
}

func TestLoadSettings_Overrides(t *testing.T) {
	cfg := memory.NewConfigStore(map[string]any{
		"storage.backend":                "memory",
		"storage.data_dir":               "/var/lib/vconsearch",
		"search.default_limit":           int64(20),
		"search.semantic_threshold":      0.5,
		"search.semantic_weight":         int64(1),
		"vector.dimension":               int64(768),
		"tenant.jwt_secret":              "s3cret",
		"tenant.trusted":                 true,
		"tags.refresh_interval":          int64(60),
		"embedding.base_url":             "http://ollama:11434",
		"embedding.model":                "nomic-embed-text",
		"embedding.rate_per_second":      2.5,
		"embedding.workers":              int64(8),
		"embedding.lease_seconds":        int64(30),
		"backfill.batch_size":            int64(500),
		"backfill.pause_ms":              int64(0),
		"backfill.batch_timeout_seconds": int64(10),
		"cache.redis_url":                "redis://localhost:6379/0",
		"cache.ttl_seconds":              int64(120),
		"metrics.addr":                   ":9090",
	})

	s := LoadSettings(cfg)
	require.NoError(t, s.Validate())

	assert.Equal(t, domain.StorageMemory, s.Storage.Backend)
	assert.Equal(t, "/var/lib/vconsearch", s.Storage.DataDir)
	assert.Equal(t, 20, s.Search.DefaultLimit)
	assert.InDelta(t, 0.5, s.Search.SemanticThreshold, 1e-9)
	assert.InDelta(t, 1.0, s.Search.SemanticWeight, 1e-9)
	assert.Equal(t, 768, s.Search.Dimension)
	assert.Equal(t, "s3cret", s.Tenant.JWTSecret)
	assert.True(t, s.Tenant.Trusted)
	assert.Equal(t, time.Minute, s.Tags.RefreshInterval)
	assert.Equal(t, "http://ollama:11434", s.Embedding.BaseURL)
	assert.Equal(t, "nomic-embed-text", s.Embedding.Model)
	assert.InDelta(t, 2.5, s.Embedding.RatePerSecond, 1e-9)
	assert.Equal(t, 8, s.Embedding.Workers)
	assert.Equal(t, 30*time.Second, s.Embedding.Lease)
	assert.Equal(t, 32, s.Embedding.BatchSize, "unset keys keep defaults")
	assert.Equal(t, 500, s.Backfill.BatchSize)
	assert.Zero(t, s.Backfill.Pause, "an explicit zero is honoured")
	assert.Equal(t, 10*time.Second, s.Backfill.BatchTimeout)
	assert.Equal(t, "redis://localhost:6379/0", s.Cache.RedisURL)
	assert.Equal(t, 2*time.Minute, s.Cache.TTL)
	assert.Equal(t, ":9090", s.Metrics.Addr)
}

func TestLoadSettings_OpenAIProvider(t *testing.T) {
	cfg := memory.NewConfigStore(map[string]any{
		"embedding.provider": "openai",
		"embedding.api_key":  "sk-test",
	})

	s := LoadSettings(cfg)
	require.NoError(t, s.Validate())
	assert.Equal(t, domain.ProviderOpenAI, s.Embedding.Provider)
	assert.Equal(t, "sk-test", s.Embedding.APIKey)
	assert.Empty(t, s.Embedding.BaseURL, "ollama defaults do not leak into other providers")
	assert.Empty(t, s.Embedding.Model)
}

func TestLoadSettings_InvalidValuesFailValidation(t *testing.T) {
	cfg := memory.NewConfigStore(map[string]any{
		"search.semantic_weight": 1.5,
	})
	assert.ErrorIs(t, LoadSettings(cfg).Validate(), domain.ErrInvalidInput)
}
