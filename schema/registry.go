package schema

import (
	"fmt"
	"slices"
	"sync"
)

// Registry holds the field spec of each known collection. Specs are
// immutable once registered. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]FieldSpec
	order []string
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]FieldSpec)}
}

// Register declares the spec of a collection. Registering the same spec
// again is a no-op; a different spec for a known name fails with ErrConflict.
func (r *Registry) Register(name string, spec FieldSpec) error {
	if name == "" {
		return fmt.Errorf("%w: empty collection name", ErrConflict)
	}
	if len(spec) == 0 {
		return fmt.Errorf("%w: collection %q has no fields", ErrConflict, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.specs[name]; ok {
		if existing.Equal(spec) {
			return nil
		}
		return fmt.Errorf("%w: collection %q already registered as %s", ErrConflict, name, existing.Names())
	}
	r.specs[name] = slices.Clone(spec)
	r.order = append(r.order, name)
	return nil
}

// FieldsFor returns a copy of the spec registered for name.
func (r *Registry) FieldsFor(name string) (FieldSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return slices.Clone(spec), nil
}

// Names returns collection names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
