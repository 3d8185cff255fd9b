package row

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps row type identity to its descriptor. It is populated at
// startup, before requests are served, and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Descriptor
	byTable map[string]Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]Descriptor),
		byTable: make(map[string]Descriptor),
	}
}

// Register adds a descriptor. Names and tables must be unique.
func (r *Registry) Register(d Descriptor) error {
	if d == nil {
		return fmt.Errorf("row: cannot register a nil descriptor")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[d.Name()]; exists {
		return fmt.Errorf("row: type already registered: %s", d.Name())
	}
	if other, exists := r.byTable[d.Table()]; exists {
		return fmt.Errorf("row: table %s already registered by %s", d.Table(), other.Name())
	}

	r.byName[d.Name()] = d
	r.byTable[d.Table()] = d
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(descriptors ...Descriptor) {
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byName[name]
	return d, ok
}

// ByTable returns the descriptor whose table is table.
func (r *Registry) ByTable(table string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byTable[table]
	return d, ok
}

// All returns every registered descriptor sorted by name.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Descriptor, 0, len(r.byName))
	for _, d := range r.byName {
		result = append(result, d)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})

	return result
}
