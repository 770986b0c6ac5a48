package cli

import (
	"context"
	"fmt"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/cache/redis"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/config/file"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/embedding"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/storage/memory"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/storage/sqlite"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/vector/chromem"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/services"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
)

// app is the wired service graph for one command invocation.
type app struct {
	settings domain.Settings

	search    *services.SearchService
	documents *services.DocumentService
	tags      *services.TagIndexService
	tenant    *services.TenantService
	vectors   *services.VectorService
	backfill  *services.BackfillService
	worker    *services.EmbeddingWorker
	scheduler *services.Scheduler
	producer  driven.EmbeddingProducer

	closers []func() error
}

// stores groups the driven ports of one storage backend.
type stores struct {
	documents   driven.DocumentStore
	text        driven.TextIndex
	tagSource   driven.TagSource
	tagIndex    driven.TagIndexStore
	entries     driven.VectorEntryStore
	queue       driven.EmbeddingQueue
	backfiller  driven.Backfiller
	scheduler   driven.SchedulerStore
	isTransient func(error) bool
}

// newApp loads configuration and wires every adapter and service.
func newApp(ctx context.Context, dir string) (a *app, err error) {
	logger.Section("Startup")

	cfg, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	s := services.LoadSettings(cfg)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Path(), err)
	}

	a = &app{settings: s}
	defer func() {
		if err != nil {
			a.Close() //nolint:errcheck
		}
	}()

	st, err := a.openStores(s.Storage)
	if err != nil {
		return nil, err
	}

	index, err := chromem.New(s.Search.Dimension, logger.L())
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	a.closers = append(a.closers, index.Close)

	a.tags = services.NewTagIndexService(st.tagSource, st.tagIndex)
	if err := a.tags.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading tag index: %w", err)
	}

	a.vectors = services.NewVectorService(st.entries, index, s.Search.Dimension)
	if _, err := a.vectors.Warm(ctx); err != nil {
		return nil, fmt.Errorf("warming vector index: %w", err)
	}

	a.documents = services.NewDocumentService(st.documents, a.tags, index)
	if s.Cache.RedisURL != "" {
		a.documents.SetCache(a.openCache(ctx, s.Cache.RedisURL), s.Cache.TTL)
	}

	a.search = services.NewSearchService(st.documents, st.text, index, a.tags, s.Search)
	a.tenant = services.NewTenantService()
	a.backfill = services.NewBackfillService(st.backfiller, s.Backfill, st.isTransient)

	if a.producer, err = embedding.NewProducer(s.Embedding, s.Search.Dimension); err != nil {
		return nil, fmt.Errorf("creating embedding producer: %w", err)
	}
	a.closers = append(a.closers, a.producer.Close)

	a.worker, err = services.NewEmbeddingWorker(st.queue, a.producer, index, s.Embedding, s.Search.Dimension)
	if err != nil {
		return nil, fmt.Errorf("creating embedding worker: %w", err)
	}
	a.closers = append(a.closers, func() error { a.worker.Close(); return nil })

	schedCfg := domain.DefaultSchedulerConfig()
	schedCfg.TaskConfigs[domain.TaskIDTagRefresh] = domain.TaskConfig{
		Enabled:  s.Tags.RefreshInterval > 0,
		Interval: s.Tags.RefreshInterval,
	}
	a.scheduler = services.NewScheduler(schedCfg, st.scheduler, a.tags, a.worker)

	logger.Debug("storage=%s dimension=%d", s.Storage.Backend, s.Search.Dimension)
	return a, nil
}

func (a *app) openStores(cfg domain.StorageSettings) (stores, error) {
	if cfg.Backend == domain.StorageMemory {
		m := memory.NewStore()
		return stores{
			documents: m,
			text:      m,
			tagSource: m,
			tagIndex:  m,
			entries:   m,
			queue:     m,
			scheduler: memory.NewSchedulerStore(),
		}, nil
	}

	db, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return stores{}, fmt.Errorf("opening store: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	logger.Debug("sqlite store at %s", db.Path())

	return stores{
		documents:   db.DocumentStore(),
		text:        db.TextIndex(),
		tagSource:   db.TagSource(),
		tagIndex:    db.TagIndexStore(),
		entries:     db.VectorEntryStore(),
		queue:       db.EmbeddingQueue(),
		backfiller:  db.Backfiller(),
		scheduler:   db.SchedulerStore(),
		isTransient: sqlite.IsTransient,
	}, nil
}

// openCache connects to Redis. When Redis is unreachable the cache falls
// back to process memory, which only sees this process's writes.
func (a *app) openCache(ctx context.Context, url string) driven.DocumentCache {
	cache, err := redis.New(ctx, url)
	if err != nil {
		logger.Warn("redis cache unavailable, caching in process: %v", err)
		local := memory.NewDocumentCache()
		a.closers = append(a.closers, local.Close)
		return local
	}
	a.closers = append(a.closers, cache.Close)
	return cache
}

// install publishes the graph to the package-level service variables.
func (a *app) install() {
	settings = a.settings
	searchService = a.search
	documentService = a.documents
	tagService = a.tags
	tenantService = a.tenant
	vectorService = a.vectors
	backfillService = a.backfill
	embeddingWorker = a.worker
	scheduler = a.scheduler
	queryEmbedder = a.producer
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
