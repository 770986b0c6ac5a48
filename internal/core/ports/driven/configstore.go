package driven

// ConfigStore is the settings source read by services.LoadSettings. Keys
// are dot-separated, for example "search.semantic_weight". The typed
// getters return the zero value when a key is missing or holds another
// type.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	// GetFloat also reads integer values.
	GetFloat(key string) float64
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Set persists immediately where the store has a backing file.
	Set(key string, value any) error
	Save() error
	Load() error

	// Path locates the backing file, for messages.
	Path() string
}
