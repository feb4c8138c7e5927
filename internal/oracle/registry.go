package oracle

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages a collection of oracles.
type Registry struct {
	mu      sync.RWMutex
	oracles map[string]Oracle
}

// NewRegistry creates a new oracle registry.
func NewRegistry() *Registry {
	return &Registry{
		oracles: make(map[string]Oracle),
	}
}

// Register adds an oracle to the registry.
// If an oracle with the same name already exists, it will be replaced.
func (r *Registry) Register(o Oracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oracles[o.Name()] = o
}

// Get retrieves an oracle by name.
func (r *Registry) Get(name string) (Oracle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.oracles[name]
	if !ok {
		return nil, fmt.Errorf("oracle not found: %s", name)
	}
	return o, nil
}

// Has checks if an oracle with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.oracles[name]
	return ok
}

// List returns all registered oracles sorted by name.
func (r *Registry) List() []Oracle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Oracle, 0, len(r.oracles))
	for _, o := range r.oracles {
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Available returns the oracles that can currently be called.
func (r *Registry) Available() []Oracle {
	var available []Oracle
	for _, o := range r.List() {
		if o.Available() {
			available = append(available, o)
		}
	}
	return available
}

// Names returns the sorted names of all registered oracles.
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, o := range list {
		names[i] = o.Name()
	}
	return names
}
