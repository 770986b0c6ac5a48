package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/config"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore reads and writes config.toml. Every Set rewrites the file.
type ConfigStore struct {
	*config.Values
	path string
}

// NewConfigStore loads configDir/config.toml, creating configDir when
// needed. An empty configDir means ~/.vconsearch. A missing file is an
// empty configuration.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configDir = filepath.Join(home, ".vconsearch")
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", configDir, err)
	}

	s := &ConfigStore{
		Values: config.NewValues(),
		path:   filepath.Join(configDir, "config.toml"),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Set keeps the previous value when the file cannot be written.
func (s *ConfigStore) Set(key string, value any) error {
	return s.Update(func(m map[string]any) error {
		prev, had := m[key]
		m[key] = value
		err := s.write(m)
		if err == nil {
			return nil
		}
		if had {
			m[key] = prev
		} else {
			delete(m, key)
		}
		return err
	})
}

func (s *ConfigStore) Save() error {
	return s.Update(s.write)
}

func (s *ConfigStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.Replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}

	var tables map[string]any
	if err := toml.Unmarshal(raw, &tables); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	s.Replace(flattenMap(tables, ""))
	return nil
}

func (s *ConfigStore) Path() string { return s.path }

// write encodes m as nested tables. The caller holds the write lock.
func (s *ConfigStore) write(m map[string]any) error {
	tables, err := unflattenMap(m)
	if err != nil {
		return err
	}
	raw, err := toml.Marshal(tables)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

// flattenMap turns {"a": {"b": 1}} into {"a.b": 1}.
func flattenMap(tables map[string]any, prefix string) map[string]any {
	flat := make(map[string]any)
	for k, v := range tables {
		if prefix != "" {
			k = prefix + "." + k
		}
		sub, ok := v.(map[string]any)
		if !ok {
			flat[k] = v
			continue
		}
		for sk, sv := range flattenMap(sub, k) {
			flat[sk] = sv
		}
	}
	return flat
}

// unflattenMap reverses flattenMap. "a" and "a.b" cannot both be set
// because a TOML key is either a value or a table.
func unflattenMap(flat map[string]any) (map[string]any, error) {
	root := make(map[string]any)
	for key, value := range flat {
		path := strings.Split(key, ".")
		node := root
		for _, part := range path[:len(path)-1] {
			switch child := node[part].(type) {
			case nil:
				next := make(map[string]any)
				node[part] = next
				node = next
			case map[string]any:
				node = child
			default:
				return nil, fmt.Errorf("config key %q conflicts with value at %q", key, part)
			}
		}
		leaf := path[len(path)-1]
		if _, isTable := node[leaf].(map[string]any); isTable {
			return nil, fmt.Errorf("config key %q conflicts with a table", key)
		}
		node[leaf] = value
	}
	return root, nil
}
