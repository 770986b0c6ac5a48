package services

import (
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyStorageBackend     = "storage.backend"
	keyStorageDataDir     = "storage.data_dir"
	keySearchLimit        = "search.default_limit"
	keySearchThreshold    = "search.semantic_threshold"
	keySearchWeight       = "search.semantic_weight"
	keyVectorDimension    = "vector.dimension"
	keyTenantJWTSecret    = "tenant.jwt_secret"
	keyTenantTrusted      = "tenant.trusted"
	keyTagsRefresh        = "tags.refresh_interval"
	keyEmbedProvider      = "embedding.provider"
	keyEmbedBaseURL       = "embedding.base_url"
	keyEmbedModel         = "embedding.model"
	keyEmbedAPIKey        = "embedding.api_key"
	keyEmbedRate          = "embedding.rate_per_second"
	keyEmbedBurst         = "embedding.burst"
	keyEmbedBatchSize     = "embedding.batch_size"
	keyEmbedWorkers       = "embedding.workers"
	keyEmbedLease         = "embedding.lease_seconds"
	keyEmbedMaxAttempts   = "embedding.max_attempts"
	keyBackfillBatchSize  = "backfill.batch_size"
	keyBackfillPause      = "backfill.pause_ms"
	keyBackfillMaxRetries = "backfill.max_retries"
	keyBackfillTimeout    = "backfill.batch_timeout_seconds"
	keyCacheRedisURL      = "cache.redis_url"
	keyCacheTTL           = "cache.ttl_seconds"
	keyMetricsAddr        = "metrics.addr"
)

// LoadSettings resolves settings from the config store, falling back to
// defaults for missing keys. The result is not validated.
func LoadSettings(cfg driven.ConfigStore) domain.Settings {
	s := domain.DefaultSettings()
	if cfg == nil {
		return s
	}

	if v := cfg.GetString(keyStorageBackend); v != "" {
		s.Storage.Backend = domain.StorageBackend(v)
	}
	s.Storage.DataDir = cfg.GetString(keyStorageDataDir)

	setInt(cfg, keySearchLimit, &s.Search.DefaultLimit)
	setFloat(cfg, keySearchThreshold, &s.Search.SemanticThreshold)
	setFloat(cfg, keySearchWeight, &s.Search.SemanticWeight)
	setInt(cfg, keyVectorDimension, &s.Search.Dimension)

	s.Tenant.JWTSecret = cfg.GetString(keyTenantJWTSecret)
	s.Tenant.Trusted = cfg.GetBool(keyTenantTrusted)

	setSeconds(cfg, keyTagsRefresh, &s.Tags.RefreshInterval)

	if v := cfg.GetString(keyEmbedProvider); v != "" {
		s.Embedding.Provider = domain.EmbeddingProvider(v)
		if s.Embedding.Provider != domain.ProviderOllama {
			s.Embedding.BaseURL, s.Embedding.Model = "", ""
		}
	}
	if v := cfg.GetString(keyEmbedBaseURL); v != "" {
		s.Embedding.BaseURL = v
	}
	if v := cfg.GetString(keyEmbedModel); v != "" {
		s.Embedding.Model = v
	}
	s.Embedding.APIKey = cfg.GetString(keyEmbedAPIKey)
	setFloat(cfg, keyEmbedRate, &s.Embedding.RatePerSecond)
	setInt(cfg, keyEmbedBurst, &s.Embedding.Burst)
	setInt(cfg, keyEmbedBatchSize, &s.Embedding.BatchSize)
	setInt(cfg, keyEmbedWorkers, &s.Embedding.Workers)
	setSeconds(cfg, keyEmbedLease, &s.Embedding.Lease)
	setInt(cfg, keyEmbedMaxAttempts, &s.Embedding.MaxAttempts)

	setInt(cfg, keyBackfillBatchSize, &s.Backfill.BatchSize)
	if _, ok := cfg.Get(keyBackfillPause); ok {
		s.Backfill.Pause = time.Duration(cfg.GetInt(keyBackfillPause)) * time.Millisecond
	}
	setInt(cfg, keyBackfillMaxRetries, &s.Backfill.MaxRetries)
	setSeconds(cfg, keyBackfillTimeout, &s.Backfill.BatchTimeout)

	s.Cache.RedisURL = cfg.GetString(keyCacheRedisURL)
	setSeconds(cfg, keyCacheTTL, &s.Cache.TTL)

	s.Metrics.Addr = cfg.GetString(keyMetricsAddr)
	return s
}

func setInt(cfg driven.ConfigStore, key string, dst *int) {
	if _, ok := cfg.Get(key); ok {
		*dst = cfg.GetInt(key)
	}
}

func setFloat(cfg driven.ConfigStore, key string, dst *float64) {
	if _, ok := cfg.Get(key); ok {
		*dst = cfg.GetFloat(key)
	}
}

func setSeconds(cfg driven.ConfigStore, key string, dst *time.Duration) {
	if _, ok := cfg.Get(key); ok {
		*dst = time.Duration(cfg.GetInt(key)) * time.Second
	}
}
