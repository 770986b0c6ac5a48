package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

func TestDocumentCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	cache := NewDocumentCache()

	_, err := cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	rec := &domain.DocumentRecord{Document: domain.Document{ID: 1, UUID: "u1", Subject: "Hello"}}
	require.NoError(t, cache.Set(ctx, rec, time.Minute))

	// Mutating the original must not affect the cached copy.
	rec.Subject = "changed"

	got, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Subject)

	require.NoError(t, cache.Delete(ctx, "u1"))
	_, err = cache.Get(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	assert.NoError(t, cache.Delete(ctx, "u1"))
}

func TestDocumentCache_Expiry(t *testing.T) {
	ctx := context.Background()
	cache := NewDocumentCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, &domain.DocumentRecord{Document: domain.Document{UUID: "u1"}}, time.Minute))
	_, err := cache.Get(ctx, "u1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = cache.Get(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestDocumentCache_Validation(t *testing.T) {
	cache := NewDocumentCache()
	err := cache.Set(context.Background(), &domain.DocumentRecord{}, time.Minute)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NoError(t, cache.Close())
}
