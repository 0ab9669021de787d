package model

import (
	"errors"
	"fmt"
	"sync"
)

// ErrModelUnavailable indicates no model could be resolved: nothing is
// registered, or the requested name is unknown.
var ErrModelUnavailable = errors.New("model unavailable")

// Registry owns the set of loaded detection models and the active-model
// pointer. Safe for concurrent use: SetActive may run while pipeline
// runs are in flight, because runs bind a model instance at start and
// never read the active pointer again.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
	active string
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

// Register adds a model under a name, replacing any previous model with
// the same name. The first registered model becomes active.
func (r *Registry) Register(name string, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models[name] = m
	if r.active == "" {
		r.active = name
	}
}

// SetActive switches the active model. In-flight runs that already
// captured their model reference are unaffected.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[name]; !ok {
		return fmt.Errorf("%w: %q is not registered", ErrModelUnavailable, name)
	}
	r.active = name
	return nil
}

// Active returns the currently active model.
func (r *Registry) Active() (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == "" {
		return nil, fmt.Errorf("%w: no models registered", ErrModelUnavailable)
	}
	m, ok := r.models[r.active]
	if !ok {
		return nil, fmt.Errorf("%w: active model %q is not registered", ErrModelUnavailable, r.active)
	}
	return m, nil
}

// Resolve returns the model for name, or the active model when name is
// empty.
func (r *Registry) Resolve(name string) (Model, error) {
	if name == "" {
		return r.Active()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrModelUnavailable, name)
	}
	return m, nil
}

// Names returns the registered model names and the active name.
func (r *Registry) Names() (names []string, active string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names = make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	return names, r.active
}
