// Package registry collects entity descriptors, links their relations and
// freezes them before any handler is synthesized.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/marshallshelly/memra/pkg/relation"
	"github.com/marshallshelly/memra/pkg/schema"
)

var (
	// ErrFrozen is returned when registering after Build.
	ErrFrozen = errors.New("registry is frozen")
	// ErrNotBuilt is returned by lookups that need linked relations.
	ErrNotBuilt = errors.New("registry has not been built")
)

// Registry is a thread-safe registry for entity descriptors.
type Registry struct {
	mu       sync.RWMutex
	parser   *schema.Parser
	entities []*schema.Entity
	types    map[reflect.Type]*schema.Entity
	names    map[string]*schema.Entity
	tables   map[string]*schema.Entity
	edges    []relation.Edge
	frozen   bool
}

// NewRegistry creates a new Registry instance.
func NewRegistry() *Registry {
	return &Registry{
		parser: schema.NewParser(),
		types:  make(map[reflect.Type]*schema.Entity),
		names:  make(map[string]*schema.Entity),
		tables: make(map[string]*schema.Entity),
	}
}

// Register parses and registers model types. Registering the same type
// twice is a no-op.
func (r *Registry) Register(models ...any) error {
	for _, model := range models {
		modelType := reflect.TypeOf(model)
		if modelType == nil {
			return fmt.Errorf("cannot register nil model")
		}
		for modelType.Kind() == reflect.Pointer {
			modelType = modelType.Elem()
		}

		r.mu.RLock()
		_, ok := r.types[modelType]
		r.mu.RUnlock()
		if ok {
			continue
		}

		e, err := r.parser.Parse(modelType)
		if err != nil {
			return fmt.Errorf("failed to parse model %s: %w", modelType.Name(), err)
		}
		if err := r.RegisterEntity(e); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEntity registers a descriptor directly, e.g. one read from a
// definition file.
func (r *Registry) RegisterEntity(e *schema.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("failed to register %s: %w", e.Name, ErrFrozen)
	}
	if e.GoType != nil {
		if _, ok := r.types[e.GoType]; ok {
			return nil
		}
	}
	if _, ok := r.names[e.Name]; ok {
		return fmt.Errorf("entity %s already registered", e.Name)
	}
	if prev, ok := r.tables[e.Table]; ok {
		return fmt.Errorf("entity %s uses table %s already taken by %s", e.Name, e.Table, prev.Name)
	}

	r.entities = append(r.entities, e)
	r.names[e.Name] = e
	r.tables[e.Table] = e
	if e.GoType != nil {
		r.types[e.GoType] = e
	}
	return nil
}

// Build validates relation targets, links every edge and freezes the
// registry. Nothing is frozen when it fails.
func (r *Registry) Build() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}

	edges, err := relation.Link(r.entities)
	if err != nil {
		return fmt.Errorf("failed to link relations: %w", err)
	}

	r.edges = edges
	r.frozen = true
	return nil
}

// Built reports whether Build has succeeded.
func (r *Registry) Built() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Get retrieves an entity by Go type.
func (r *Registry) Get(modelType reflect.Type) (*schema.Entity, error) {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}

	r.mu.RLock()
	e, ok := r.types[modelType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("model type %s not registered", modelType.Name())
	}
	return e, nil
}

// GetByName retrieves an entity by its name.
func (r *Registry) GetByName(name string) (*schema.Entity, error) {
	r.mu.RLock()
	e, ok := r.names[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("entity %s not registered", name)
	}
	return e, nil
}

// Entities returns every entity in registration order.
func (r *Registry) Entities() []*schema.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*schema.Entity, len(r.entities))
	copy(out, r.entities)
	return out
}

// Edges returns every linked relation edge.
func (r *Registry) Edges() []relation.Edge {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]relation.Edge, len(r.edges))
	copy(out, r.edges)
	return out
}

// Edge finds the edge owning an accessor name on an entity, in either
// direction.
func (r *Registry) Edge(entity, accessor string) (relation.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.frozen {
		return relation.Edge{}, ErrNotBuilt
	}
	for _, e := range r.edges {
		if (e.Source.Name == entity && e.Forward == accessor) ||
			(e.Target.Name == entity && e.Reverse == accessor) {
			return e, nil
		}
	}
	return relation.Edge{}, fmt.Errorf("entity %s has no accessor %s", entity, accessor)
}

// Has checks if a model type is registered.
func (r *Registry) Has(modelType reflect.Type) bool {
	_, err := r.Get(modelType)
	return err == nil
}

// Of returns the entity of T from a built registry.
func Of[T any](r *Registry) (*schema.Entity, error) {
	if !r.Built() {
		return nil, ErrNotBuilt
	}
	return r.Get(reflect.TypeFor[T]())
}
