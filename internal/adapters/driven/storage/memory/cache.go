package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// Ensure DocumentCache implements the interface.
var _ driven.DocumentCache = (*DocumentCache)(nil)

type cacheItem struct {
	rec     *domain.DocumentRecord
	expires time.Time
}

// DocumentCache is an in-process driven.DocumentCache with per-entry expiry.
type DocumentCache struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]cacheItem
}

// NewDocumentCache creates an empty cache.
func NewDocumentCache() *DocumentCache {
	return &DocumentCache{
		now:   time.Now,
		items: make(map[string]cacheItem),
	}
}

// Get returns a copy of the cached record or domain.ErrCacheMiss.
func (c *DocumentCache) Get(_ context.Context, uuid string) (*domain.DocumentRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[uuid]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if !item.expires.IsZero() && c.now().After(item.expires) {
		delete(c.items, uuid)
		return nil, domain.ErrCacheMiss
	}
	return cloneRecord(item.rec), nil
}

// Set stores a copy of rec. A non-positive ttl never expires.
func (c *DocumentCache) Set(_ context.Context, rec *domain.DocumentRecord, ttl time.Duration) error {
	if rec == nil || rec.UUID == "" {
		return domain.NewValidationError("uuid", "must not be empty")
	}
	item := cacheItem{rec: cloneRecord(rec)}
	if ttl > 0 {
		item.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[rec.UUID] = item
	return nil
}

// Delete evicts a record.
func (c *DocumentCache) Delete(_ context.Context, uuid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, uuid)
	return nil
}

// Close drops all entries.
func (c *DocumentCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cacheItem)
	return nil
}
