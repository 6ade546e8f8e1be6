package entity

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/orneryd/gizmo/pkg/field"
)

// System field names. id, label and type are element keys on the server and
// are never written as properties; the discriminator is an ordinary property
// that lets replies be materialized as the right type.
const (
	FieldID            = "id"
	FieldLabel         = "label"
	FieldType          = "type"
	FieldDiscriminator = "__gizmo_entity__"
)

// Kind is the element kind of an entity type.
type Kind string

const (
	KindVertex Kind = "vertex"
	KindEdge   Kind = "edge"
)

// Letter returns the traversal source step for the kind: "V" or "E".
func (k Kind) Letter() string {
	if k == KindEdge {
		return "E"
	}
	return "V"
}

// Registry errors
var (
	ErrInvalidType   = errors.New("entity: invalid type")
	ErrDuplicateType = errors.New("entity: type already registered")
	ErrUnknownType   = errors.New("entity: unknown type")
)

// Type is the static schema of an entity type.
//
// Example:
//
//	var Person = &entity.Type{
//		Name: "Person",
//		Kind: entity.KindVertex,
//		Fields: []*field.Spec{
//			field.String("name").Single().Descriptor(),
//			field.Integer("age").Single().Descriptor(),
//		},
//	}
type Type struct {
	// Name is the discriminator persisted with every element of this type.
	Name string
	Kind Kind
	// Label is the graph label; defaults to the snake_case form of Name.
	Label string
	// AllowUndefined lets entities hold fields the schema does not declare.
	AllowUndefined bool
	Fields         []*field.Spec
}

// ResolvedLabel returns Label, or the snake_case form of Name when unset.
func (t *Type) ResolvedLabel() string {
	if t.Label != "" {
		return t.Label
	}
	return inflect.Underscore(t.Name)
}

// Validate checks that the type can be instantiated.
func (t *Type) Validate() error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidType)
	}
	if t.Kind != KindVertex && t.Kind != KindEdge {
		return fmt.Errorf("%w: %s has kind %q", ErrInvalidType, t.Name, t.Kind)
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, spec := range t.Fields {
		switch spec.Name() {
		case FieldID, FieldLabel, FieldType, FieldDiscriminator:
			return fmt.Errorf("%w: %s redeclares system field %q", ErrInvalidType, t.Name, spec.Name())
		}
		if seen[spec.Name()] {
			return fmt.Errorf("%w: %s declares %q twice", ErrInvalidType, t.Name, spec.Name())
		}
		seen[spec.Name()] = true
	}
	return nil
}

// Generic types used when a payload carries no known discriminator.
var (
	GenericVertex = &Type{Name: "generic_vertex", Kind: KindVertex, Label: "vertex", AllowUndefined: true}
	GenericEdge   = &Type{Name: "generic_edge", Kind: KindEdge, Label: "edge", AllowUndefined: true}
)

// Generic returns the generic type for kind.
func Generic(kind Kind) *Type {
	if kind == KindEdge {
		return GenericEdge
	}
	return GenericVertex
}

// Registry maps discriminators to entity types. It is populated at startup
// and read by the entity factory.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry creates a registry holding the generic vertex and edge types.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]*Type)}
	r.types[GenericVertex.Name] = GenericVertex
	r.types[GenericEdge.Name] = GenericEdge
	return r
}

// DefaultRegistry is the process-wide registry.
var DefaultRegistry = NewRegistry()

// Register validates and adds types.
func (r *Registry) Register(types ...*Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		if err := t.Validate(); err != nil {
			return err
		}
		if existing, ok := r.types[t.Name]; ok && existing != t {
			return fmt.Errorf("%w: %s", ErrDuplicateType, t.Name)
		}
		r.types[t.Name] = t
	}
	return nil
}

// MustRegister is Register that panics on error, for package-level setup.
func (r *Registry) MustRegister(types ...*Type) {
	if err := r.Register(types...); err != nil {
		panic(err)
	}
}

// Lookup finds a type by discriminator.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered discriminators, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds types to DefaultRegistry.
func Register(types ...*Type) error {
	return DefaultRegistry.Register(types...)
}
