package driven

import (
	"context"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// DocumentCache caches full document records by UUID.
// Cached records are not tenant-filtered; callers check visibility.
type DocumentCache interface {
	// Get returns the cached record or domain.ErrCacheMiss.
	Get(ctx context.Context, uuid string) (*domain.DocumentRecord, error)

	// Set stores a record with the given time to live.
	Set(ctx context.Context, rec *domain.DocumentRecord, ttl time.Duration) error

	// Delete evicts a record. Evicting a missing record is not an error.
	Delete(ctx context.Context, uuid string) error

	// Close releases resources.
	Close() error
}
