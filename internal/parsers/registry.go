package parsers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// Factory builds a parser instance. Registration happens explicitly at
// startup, never as an import side effect.
type Factory func() interfaces.Parser

// Registry is the process-global name -> factory table.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var defaultRegistry = &Registry{factories: make(map[string]Factory)}

// Default returns the process-global registry.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry creates an empty registry, mainly for tests.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a parser factory. Duplicate names are a wiring bug.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("parser %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Lookup returns the factory for a name, or nil when unknown.
func (r *Registry) Lookup(name string) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[name]
}

// New instantiates a parser by name. Unknown names produce a parser error
// listing what is available so a mistyped parser_type is obvious in logs.
func (r *Registry) New(name string) (interfaces.Parser, error) {
	factory := r.Lookup(name)
	if factory == nil {
		return nil, models.NewParserError(
			fmt.Sprintf("unknown parser %q, available: %v", name, r.Names()), nil)
	}
	return factory(), nil
}

// Names lists registered parser names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
