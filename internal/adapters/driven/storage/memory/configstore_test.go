package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_Seed(t *testing.T) {
	store := NewConfigStore(map[string]any{"search.default_limit": 25})
	assert.Equal(t, 25, store.GetInt("search.default_limit"))
	assert.Equal(t, ":memory:", store.Path())
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
}

func TestConfigStore_TypeAssertions(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("string", "hello"))
	require.NoError(t, store.Set("int", 42))
	require.NoError(t, store.Set("int64", int64(43)))
	require.NoError(t, store.Set("float", 0.6))
	require.NoError(t, store.Set("bool", true))
	require.NoError(t, store.Set("slice", []any{"a", 1, "b"}))

	assert.Equal(t, "hello", store.GetString("string"))
	assert.Equal(t, "", store.GetString("int"))

	assert.Equal(t, 42, store.GetInt("int"))
	assert.Equal(t, 43, store.GetInt("int64"))
	assert.Equal(t, 0, store.GetInt("float"))
	assert.Equal(t, 0, store.GetInt("string"))

	assert.InDelta(t, 0.6, store.GetFloat("float"), 1e-9)
	assert.InDelta(t, 42.0, store.GetFloat("int"), 1e-9)
	assert.Zero(t, store.GetFloat("missing"))

	assert.True(t, store.GetBool("bool"))
	assert.False(t, store.GetBool("string"))

	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("slice"))
	assert.Nil(t, store.GetStringSlice("missing"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("key", n)
			_ = store.GetInt("key")
		}(i)
	}
	wg.Wait()

	_, ok := store.Get("key")
	assert.True(t, ok)
}
