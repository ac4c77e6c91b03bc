package transform

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// UnknownTransformError is returned when a transform name is not registered.
type UnknownTransformError struct {
	Name      string
	Available []string
}

func (e *UnknownTransformError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown transform %q (no transforms registered)", e.Name)
	}
	return fmt.Sprintf("unknown transform %q, available: %s", e.Name, strings.Join(e.Available, ", "))
}

// Registry maps transform names to implementations.
// It is populated at start-up and read concurrently afterwards.
type Registry struct {
	mu           sync.RWMutex
	transformers map[string]Transformer
}

// NewRegistry creates an empty transform registry.
func NewRegistry() *Registry {
	return &Registry{transformers: make(map[string]Transformer)}
}

// Register adds a transformer. Duplicate and reserved names are rejected.
func (r *Registry) Register(t Transformer) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("transform must have a name")
	}
	if name == core.ApplyTransform {
		return fmt.Errorf("transform name %q is reserved", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transformers[name]; exists {
		return fmt.Errorf("transform %q already registered", name)
	}
	r.transformers[name] = t
	return nil
}

// Get returns the named transformer.
func (r *Registry) Get(name string) (Transformer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transformers[name]
	if !ok {
		return nil, &UnknownTransformError{Name: name, Available: r.namesLocked()}
	}
	return t, nil
}

// Has reports whether a transform is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.transformers[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// All returns the registered transformers sorted by name.
func (r *Registry) All() []Transformer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Transformer, 0, len(r.transformers))
	for _, name := range r.namesLocked() {
		out = append(out, r.transformers[name])
	}
	return out
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.transformers))
	for name := range r.transformers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
