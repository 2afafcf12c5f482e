package effect

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownEffect is returned when effect type is not registered.
	ErrUnknownEffect = errors.New("unknown effect type")
	// ErrDuplicateEffect is returned when effect type is registered twice.
	ErrDuplicateEffect = errors.New("duplicate effect type")
)

// Factory creates a new effect instance.
type Factory func() (Effect, error)

// Registry maps effect type names to their factories. It's constructed
// explicitly and passed to whatever builds graphs.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for the given effect type.
func (r *Registry) Register(effectType string, factory Factory) error {
	if effectType == "" {
		return errors.New("empty effect type")
	}
	if factory == nil {
		return errors.New("nil factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[effectType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEffect, effectType)
	}
	r.factories[effectType] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(effectType string, factory Factory) {
	if err := r.Register(effectType, factory); err != nil {
		panic("effect registry: " + err.Error())
	}
}

// New creates effect of the given type.
func (r *Registry) New(effectType string) (Effect, error) {
	r.mu.RLock()
	factory, ok := r.factories[effectType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEffect, effectType)
	}
	return factory()
}

// Types returns sorted names of registered effect types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
