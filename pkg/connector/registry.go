package connector

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors.
var (
	// ErrDuplicateIdentifier is returned by [Registry.Register] when the
	// connector ID is already taken.
	ErrDuplicateIdentifier = errors.New("connector: duplicate identifier")

	// ErrUnknownConnector is returned by [Registry.Resolve] when no
	// connector is registered under the requested ID.
	ErrUnknownConnector = errors.New("connector: unknown connector")
)

// Registry maps connector identifiers to their [Spec] and [Factory]. It is
// populated once during startup and read-only thereafter; the mutex exists
// so that misuse is safe, not because concurrent registration is expected.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	spec    Spec
	factory Factory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a connector under spec.ID.
//
// Returns [ErrDuplicateIdentifier] if the ID is already registered, and a
// plain error for invalid arguments (empty ID, nil factory). Registrations
// are never replaced or removed.
func (r *Registry) Register(spec Spec, factory Factory) error {
	if spec.ID == "" {
		return fmt.Errorf("connector: spec must have a non-empty ID")
	}
	if factory == nil {
		return fmt.Errorf("connector: factory for %q must not be nil", spec.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[spec.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateIdentifier, spec.ID)
	}
	r.entries[spec.ID] = entry{spec: spec, factory: factory}
	return nil
}

// Resolve returns the factory registered under id.
// Returns [ErrUnknownConnector] when absent.
func (r *Registry) Resolve(id string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnector, id)
	}
	return e.factory, nil
}

// Lookup returns the spec registered under id.
// Returns [ErrUnknownConnector] when absent.
func (r *Registry) Lookup(id string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownConnector, id)
	}
	return e.spec, nil
}

// List returns all registered specs sorted by ID, so enumeration is stable
// across calls and processes.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]Spec, 0, len(r.entries))
	for _, e := range r.entries {
		specs = append(specs, e.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

// Len returns the number of registered connectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
