package tasks

import (
	"sort"
	"sync"
)

// Registry maps check names (as referenced by bundle task
// declarations) to executable checks.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Check)}
}

// Register adds a check under its own name. Later registrations
// replace earlier ones.
func (r *Registry) Register(check Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[check.Name()] = check
}

// Lookup returns the check registered under name.
func (r *Registry) Lookup(name string) (Check, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checks[name]
	return c, ok
}

// Names lists the registered check names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
