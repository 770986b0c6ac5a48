package memory

import (
	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/config"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings for the process lifetime only. Save and Load
// do nothing.
type ConfigStore struct {
	*config.Values
}

// NewConfigStore starts from the given seed maps.
func NewConfigStore(seed ...map[string]any) *ConfigStore {
	return &ConfigStore{Values: config.NewValues(seed...)}
}

func (s *ConfigStore) Set(key string, value any) error {
	return s.Update(func(m map[string]any) error {
		m[key] = value
		return nil
	})
}

func (s *ConfigStore) Save() error  { return nil }
func (s *ConfigStore) Load() error  { return nil }
func (s *ConfigStore) Path() string { return ":memory:" }
