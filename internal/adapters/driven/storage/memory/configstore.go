package memory

import (
	"maps"
	"sync"
	"time"

	"github.com/custodia-labs/pagesift/internal/adapters/driven/config/coerce"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore holds dot-keyed settings in memory. Save and Load are no-ops.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore returns an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{values: make(map[string]any)}
}

// NewConfigStoreWith returns a store preloaded with values.
func NewConfigStoreWith(values map[string]any) *ConfigStore {
	s := NewConfigStore()
	maps.Copy(s.values, values)
	return s
}

func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *ConfigStore) value(key string) any {
	v, _ := s.Get(key)
	return v
}

func (s *ConfigStore) GetString(key string) string          { return coerce.String(s.value(key)) }
func (s *ConfigStore) GetInt(key string) int                { return coerce.Int(s.value(key)) }
func (s *ConfigStore) GetFloat(key string) float64          { return coerce.Float(s.value(key)) }
func (s *ConfigStore) GetBool(key string) bool              { return coerce.Bool(s.value(key)) }
func (s *ConfigStore) GetDuration(key string) time.Duration { return coerce.Duration(s.value(key)) }
func (s *ConfigStore) GetStringSlice(key string) []string   { return coerce.Strings(s.value(key)) }
func (s *ConfigStore) GetFloatSlice(key string) []float64   { return coerce.Floats(s.value(key)) }

func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *ConfigStore) Save() error { return nil }
func (s *ConfigStore) Load() error { return nil }

// Path reports ":memory:".
func (s *ConfigStore) Path() string { return ":memory:" }
