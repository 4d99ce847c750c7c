// Package hooks builds the document hooks that run after a document's
// pages are indexed.
package hooks

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/pagesift/internal/config"
	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// BuilderFunc creates a hook from the hooks configuration.
type BuilderFunc func(cfg config.HooksConfig) (driven.DocumentHook, error)

// Registry maps hook names to their builders.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a hook builder. Name should match the hook's Name().
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates a hook by name.
func (r *Registry) Build(name string, cfg config.HooksConfig) (driven.DocumentHook, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("hook %q: %w", name, domain.ErrUnsupportedType)
	}
	return builder(cfg)
}

// BuildEnabled creates every hook in cfg.Enabled, in order.
func (r *Registry) BuildEnabled(cfg config.HooksConfig) ([]driven.DocumentHook, error) {
	hooks := make([]driven.DocumentHook, 0, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		h, err := r.Build(name, cfg)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, h)
	}
	return hooks, nil
}

// Has returns true if a hook with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns registered hook names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
