package domain

import (
	"fmt"
	"time"
)

// StorageBackend selects the document store implementation.
type StorageBackend string

const (
	// StorageSQLite persists to a SQLite database file.
	StorageSQLite StorageBackend = "sqlite"

	// StorageMemory keeps everything in process memory.
	StorageMemory StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	return b == StorageSQLite || b == StorageMemory
}

// Settings is the resolved runtime configuration.
type Settings struct {
	Storage   StorageSettings
	Search    SearchSettings
	Tenant    TenantSettings
	Tags      TagSettings
	Embedding EmbeddingSettings
	Backfill  BackfillSettings
	Cache     CacheSettings
	Metrics   MetricsSettings
}

// StorageSettings configures the document store.
type StorageSettings struct {
	Backend StorageBackend
	DataDir string
}

// SearchSettings configures query defaults.
type SearchSettings struct {
	DefaultLimit      int
	SemanticThreshold float64
	SemanticWeight    float64
	Dimension         int
}

// TenantSettings configures tenant resolution.
type TenantSettings struct {
	// JWTSecret verifies identity tokens. Empty disables token parsing.
	JWTSecret string

	// Trusted allows callers to set and clear the session tenant.
	Trusted bool
}

// TagSettings configures the tag index refresh.
type TagSettings struct {
	RefreshInterval time.Duration
}

// EmbeddingSettings configures the external embedding producer and the
// queue drain.
type EmbeddingSettings struct {
	// Provider selects the producer: "ollama" (default) or "openai".
	Provider      EmbeddingProvider
	BaseURL       string
	Model         string
	APIKey        string
	RatePerSecond float64
	Burst         int
	BatchSize     int
	Workers       int
	Lease         time.Duration
	MaxAttempts   int
}

// EmbeddingProvider names an embedding producer implementation.
type EmbeddingProvider string

const (
	// ProviderOllama embeds with a local Ollama server.
	ProviderOllama EmbeddingProvider = "ollama"

	// ProviderOpenAI embeds with the OpenAI API or a compatible server.
	ProviderOpenAI EmbeddingProvider = "openai"
)

// IsValid reports whether p is a known provider.
func (p EmbeddingProvider) IsValid() bool {
	return p == ProviderOllama || p == ProviderOpenAI
}

// BackfillSettings configures bounded batch backfills.
type BackfillSettings struct {
	BatchSize    int
	Pause        time.Duration
	MaxRetries   int
	BatchTimeout time.Duration
}

// CacheSettings configures the document cache.
type CacheSettings struct {
	// RedisURL enables the Redis cache when set.
	RedisURL string
	TTL      time.Duration
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	Addr string
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Storage: StorageSettings{Backend: StorageSQLite},
		Search: SearchSettings{
			DefaultLimit:      DefaultLimit,
			SemanticThreshold: DefaultThreshold,
			SemanticWeight:    DefaultSemanticWeight,
			Dimension:         EmbeddingDimension,
		},
		Tags: TagSettings{RefreshInterval: 5 * time.Minute},
		Embedding: EmbeddingSettings{
			Provider:      ProviderOllama,
			BaseURL:       "http://localhost:11434",
			Model:         "all-minilm",
			RatePerSecond: 5,
			Burst:         5,
			BatchSize:     32,
			Workers:       4,
			Lease:         5 * time.Minute,
			MaxAttempts:   5,
		},
		Backfill: BackfillSettings{
			BatchSize:    1000,
			Pause:        50 * time.Millisecond,
			MaxRetries:   3,
			BatchTimeout: 30 * time.Second,
		},
		Cache: CacheSettings{TTL: time.Hour},
	}
}

// Validate checks that settings are within range.
func (s Settings) Validate() error {
	if !s.Storage.Backend.IsValid() {
		return NewValidationError("storage.backend", fmt.Sprintf("unknown backend %q", s.Storage.Backend))
	}
	if s.Search.DefaultLimit <= 0 || s.Search.DefaultLimit > MaxLimit {
		return NewValidationError("search.default_limit", fmt.Sprintf("must be between 1 and %d", MaxLimit))
	}
	if s.Search.SemanticThreshold < -1 || s.Search.SemanticThreshold > 1 {
		return NewValidationError("search.semantic_threshold", "must be between -1 and 1")
	}
	if s.Search.SemanticWeight < 0 || s.Search.SemanticWeight > 1 {
		return NewValidationError("search.semantic_weight", "must be between 0 and 1")
	}
	if s.Search.Dimension <= 0 {
		return NewValidationError("vector.dimension", "must be positive")
	}
	if s.Tags.RefreshInterval <= 0 {
		return NewValidationError("tags.refresh_interval", "must be positive")
	}
	if !s.Embedding.Provider.IsValid() {
		return NewValidationError("embedding.provider", fmt.Sprintf("unknown provider %q", s.Embedding.Provider))
	}
	if s.Embedding.Provider == ProviderOpenAI && s.Embedding.APIKey == "" {
		return NewValidationError("embedding.api_key", "required for the openai provider")
	}
	if s.Embedding.RatePerSecond <= 0 || s.Embedding.Burst <= 0 {
		return NewValidationError("embedding.rate_per_second", "rate and burst must be positive")
	}
	if s.Embedding.BatchSize <= 0 || s.Embedding.Workers <= 0 {
		return NewValidationError("embedding.batch_size", "batch size and workers must be positive")
	}
	if s.Backfill.BatchSize <= 0 {
		return NewValidationError("backfill.batch_size", "must be positive")
	}
	if s.Backfill.MaxRetries < 0 {
		return NewValidationError("backfill.max_retries", "must not be negative")
	}
	return nil
}
