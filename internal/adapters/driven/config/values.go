// Package config holds what the configuration stores share: a flat map of
// dot-separated keys with lenient typed reads.
package config

import (
	"math"
	"sync"
)

// Values is a goroutine-safe flat key/value map. The typed getters return
// the zero value for a missing key or an unconvertible type, so callers
// keep their defaults.
type Values struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewValues copies every seed map into a new Values. Later seeds win.
func NewValues(seeds ...map[string]any) *Values {
	v := &Values{m: make(map[string]any)}
	for _, seed := range seeds {
		for k, val := range seed {
			v.m[k] = val
		}
	}
	return v
}

func (v *Values) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.m[key]
	return val, ok
}

func (v *Values) GetString(key string) string {
	val, _ := v.Get(key)
	s, _ := val.(string)
	return s
}

// GetInt accepts TOML's int64 and whole floats. 0.6 reads as 0.
func (v *Values) GetInt(key string) int {
	val, _ := v.Get(key)
	switch n := val.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
	}
	return 0
}

// GetFloat widens integers, so "semantic_weight = 1" reads as 1.0.
func (v *Values) GetFloat(key string) float64 {
	val, _ := v.Get(key)
	switch n := val.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func (v *Values) GetBool(key string) bool {
	val, _ := v.Get(key)
	b, _ := val.(bool)
	return b
}

// GetStringSlice drops non-string elements of a decoded TOML array.
func (v *Values) GetStringSlice(key string) []string {
	val, _ := v.Get(key)
	switch s := val.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Update runs fn with the map under the write lock. fn may mutate it and
// should undo its changes before returning an error.
func (v *Values) Update(fn func(m map[string]any) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return fn(v.m)
}

// Replace swaps the whole content for m.
func (v *Values) Replace(m map[string]any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m = make(map[string]any, len(m))
	for k, val := range m {
		v.m[k] = val
	}
}
