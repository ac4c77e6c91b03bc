package validate

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// UnknownRuleError is returned when a rule ID is not registered.
type UnknownRuleError struct {
	ID        string
	Available []string
}

func (e *UnknownRuleError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown rule %q (no rules registered)", e.ID)
	}
	return fmt.Sprintf("unknown rule %q, available: %s", e.ID, strings.Join(e.Available, ", "))
}

// Registry stores validation rules keyed by ID.
// It is written during start-up and read concurrently afterwards.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register adds a rule. Registering the same ID twice is an error.
func (r *Registry) Register(rule Rule) error {
	if rule == nil || rule.ID() == "" {
		return fmt.Errorf("rule must have a non-empty ID")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[rule.ID()]; exists {
		return fmt.Errorf("rule %q already registered", rule.ID())
	}
	r.rules[rule.ID()] = rule
	return nil
}

// MustRegister is Register for static rule sets; it panics on error.
func (r *Registry) MustRegister(rules ...Rule) {
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			panic(err)
		}
	}
}

// Get returns a rule by its ID.
func (r *Registry) Get(id string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, &UnknownRuleError{ID: id, Available: r.idsLocked()}
	}
	return rule, nil
}

// All returns all rules sorted by ID.
func (r *Registry) All() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for _, id := range r.idsLocked() {
		out = append(out, r.rules[id])
	}
	return out
}

// IDs returns the sorted rule IDs.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idsLocked()
}

// Count returns the number of registered rules.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

func (r *Registry) idsLocked() []string {
	ids := make([]string, 0, len(r.rules))
	for id := range r.rules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
