package plugin

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// UnknownPluginError is returned when a plugin name is not registered.
type UnknownPluginError struct {
	Name      string
	Available []string
}

func (e *UnknownPluginError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown plugin %q (no plugins registered)", e.Name)
	}
	return fmt.Sprintf("unknown plugin %q, available: %s", e.Name, strings.Join(e.Available, ", "))
}

// Registry maps plugin names to implementations.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin; duplicate names are rejected.
func (r *Registry) Register(p Plugin) error {
	if p.Name() == "" {
		return fmt.Errorf("plugin must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[p.Name()]; exists {
		return fmt.Errorf("plugin %q already registered", p.Name())
	}
	r.plugins[p.Name()] = p
	return nil
}

// Get returns the named plugin.
func (r *Registry) Get(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok {
		return nil, &UnknownPluginError{Name: name, Available: r.namesLocked()}
	}
	return p, nil
}

// Names returns registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// All returns registered plugins sorted by name.
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.plugins))
	for _, name := range r.namesLocked() {
		out = append(out, r.plugins[name])
	}
	return out
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
