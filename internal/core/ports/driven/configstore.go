package driven

import "time"

// ConfigStore is a flat key/value view of the settings file. Nested tables
// appear as dot-separated keys ("ingestion.poll_seconds"). Typed getters
// return the zero value when a key is missing or holds another type.
type ConfigStore interface {
	// Get reports the raw value and whether the key is set.
	Get(key string) (any, bool)

	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool

	// GetDuration accepts "90s" style strings and integer seconds.
	GetDuration(key string) time.Duration

	GetStringSlice(key string) []string
	GetFloatSlice(key string) []float64

	// Set updates a key; file-backed stores write through.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path is the backing file, or ":memory:".
	Path() string
}
