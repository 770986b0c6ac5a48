// Package redis provides a Redis-backed document cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.DocumentCache = (*Cache)(nil)

// keyPrefix namespaces cached documents.
const keyPrefix = "vcon:"

// Cache implements driven.DocumentCache. Records are stored as JSON under
// vcon:{uuid}.
type Cache struct {
	rdb *goredis.Client
}

// New connects to the Redis server at url (redis://host:port/db) and
// verifies it with a ping.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cache{rdb: rdb}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *goredis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func key(uuid string) string {
	return keyPrefix + uuid
}

// Get returns the cached record or domain.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, uuid string) (*domain.DocumentRecord, error) {
	raw, err := c.rdb.Get(ctx, key(uuid)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec domain.DocumentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A corrupt entry is treated as absent and evicted.
		_ = c.rdb.Del(ctx, key(uuid)).Err()
		return nil, domain.ErrCacheMiss
	}
	return &rec, nil
}

// Set stores rec with the given time to live. Zero ttl keeps it until evicted.
func (c *Cache) Set(ctx context.Context, rec *domain.DocumentRecord, ttl time.Duration) error {
	if rec == nil || rec.UUID == "" {
		return domain.NewValidationError("uuid", "must not be empty")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := c.rdb.Set(ctx, key(rec.UUID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete evicts a record.
func (c *Cache) Delete(ctx context.Context, uuid string) error {
	if err := c.rdb.Del(ctx, key(uuid)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
