// Package entity provides the vertices and edges manipulated by the mapper.
//
// An Entity is an instance of a Type: a field set seeded from the type's
// schema plus the system fields every graph element carries (id, label, type
// and the persisted discriminator). Edges additionally hold their endpoints,
// each either a raw server id or another Entity that may not be saved yet.
//
// Entities are not safe for concurrent use.
//
// Example:
//
//	v := entity.New(Person, field.Native)
//	v.Set("name", "mark")
//
//	e := entity.New(entity.GenericEdge, field.Native)
//	e.SetOutV(v)
//	e.SetInV("42")
//	e.Set(entity.FieldLabel, "knows")
package entity

import (
	"errors"
	"fmt"

	"github.com/orneryd/gizmo/pkg/field"
)

// ErrNoID is returned when an entity must be addressed on the server but has
// no id yet.
var ErrNoID = errors.New("entity: id is not set")

// Endpoint is one end of an edge: a server id, or an entity.
type Endpoint struct {
	ID     any
	Entity *Entity
}

// IsSet reports whether the endpoint points anywhere.
func (ep Endpoint) IsSet() bool {
	return ep.Entity != nil || ep.ID != nil
}

// ServerID returns the id to address the endpoint with, or nil when the
// endpoint is an entity that has not been saved.
func (ep Endpoint) ServerID() any {
	if ep.Entity != nil {
		return ep.Entity.ID()
	}
	return ep.ID
}

// Entity is a vertex or edge instance.
type Entity struct {
	typ    *Type
	fields *field.Fields
	outV   Endpoint
	inV    Endpoint
	dirty  bool
}

// New creates an empty entity of typ. A nil type yields a generic vertex.
func New(typ *Type, rep field.Representation) *Entity {
	if typ == nil {
		typ = GenericVertex
	}
	fs := field.NewFields(typ.AllowUndefined, rep)
	fs.Add(
		field.Any(FieldID).Single().Immutable().Descriptor().New(),
		field.String(FieldLabel).Single().Immutable().Default(typ.ResolvedLabel()).Descriptor().New(),
		field.String(FieldType).Single().Immutable().Default(string(typ.Kind)).Descriptor().New(),
		field.String(FieldDiscriminator).Single().Immutable().Default(typ.Name).Descriptor().New(),
	)
	for _, spec := range typ.Fields {
		fs.Add(spec.New())
	}
	return &Entity{typ: typ, fields: fs, dirty: true}
}

// IsSystemField reports whether name is an element key rather than a
// property.
func IsSystemField(name string) bool {
	return name == FieldID || name == FieldLabel || name == FieldType
}

// Type returns the entity type.
func (e *Entity) Type() *Type { return e.typ }

// Kind returns vertex or edge.
func (e *Entity) Kind() Kind { return e.typ.Kind }

// IsEdge reports whether the entity is an edge.
func (e *Entity) IsEdge() bool { return e.typ.Kind == KindEdge }

// Fields exposes the field set.
func (e *Entity) Fields() *field.Fields { return e.fields }

// Get returns a field value in the entity's representation.
func (e *Entity) Get(name string) any { return e.fields.Get(name) }

// Set writes a field and marks the entity dirty when the write was accepted.
func (e *Entity) Set(name string, value any) bool {
	ok := e.fields.Set(name, value)
	if ok {
		e.dirty = true
	}
	return ok
}

// Append adds another value, with meta-properties, to a multi-valued field.
func (e *Entity) Append(name string, value any, props map[string]any) bool {
	ok := e.fields.Append(name, value, props)
	if ok {
		e.dirty = true
	}
	return ok
}

// Delete marks a field's values deleted so the next save removes the property.
func (e *Entity) Delete(name string) bool {
	if IsSystemField(name) || name == FieldDiscriminator {
		return false
	}
	ok := e.fields.Delete(name)
	if ok {
		e.dirty = true
	}
	return ok
}

// ID returns the server id, nil when unsaved. The result does not depend on
// the representation.
func (e *Entity) ID() any {
	f, _ := e.fields.Field(FieldID)
	raws := f.Store().Raws()
	if len(raws) == 0 {
		return nil
	}
	return raws[0]
}

// Label returns the graph label.
func (e *Entity) Label() string {
	f, _ := e.fields.Field(FieldLabel)
	raws := f.Store().Raws()
	if len(raws) == 0 {
		return ""
	}
	s, _ := raws[0].(string)
	return s
}

// GetRep returns the traversal step letter and id addressing this entity.
func (e *Entity) GetRep() (string, any, error) {
	id := e.ID()
	if id == nil {
		return "", nil, fmt.Errorf("%w: %s", ErrNoID, e.typ.Name)
	}
	return e.typ.Kind.Letter(), id, nil
}

// OutV returns the outgoing endpoint of an edge.
func (e *Entity) OutV() Endpoint { return e.outV }

// InV returns the incoming endpoint of an edge.
func (e *Entity) InV() Endpoint { return e.inV }

// SetOutV sets the outgoing endpoint to an *Entity, an Endpoint or a raw id.
func (e *Entity) SetOutV(v any) {
	e.outV = toEndpoint(v)
	e.dirty = true
}

// SetInV sets the incoming endpoint to an *Entity, an Endpoint or a raw id.
func (e *Entity) SetInV(v any) {
	e.inV = toEndpoint(v)
	e.dirty = true
}

func toEndpoint(v any) Endpoint {
	switch val := v.(type) {
	case nil:
		return Endpoint{}
	case *Entity:
		return Endpoint{Entity: val}
	case Endpoint:
		return val
	}
	return Endpoint{ID: v}
}

// Hydrate applies data to the entity. Edge endpoints are taken out of data
// first and the id is written last. With resetBaseline set, immutable fields
// are overwritten and the result becomes the change-tracking baseline.
func (e *Entity) Hydrate(data map[string]any, resetBaseline bool) {
	rest := make(map[string]any, len(data))
	for k, v := range data {
		rest[k] = v
	}
	if e.IsEdge() {
		if v, ok := takeEndpoint(rest, outKeys); ok && !sameID(e.outV.ServerID(), v) {
			e.outV = toEndpoint(v)
		}
		if v, ok := takeEndpoint(rest, inKeys); ok && !sameID(e.inV.ServerID(), v) {
			e.inV = toEndpoint(v)
		}
	}
	for _, k := range endpointMetaKeys {
		delete(rest, k)
	}
	id, hasID := rest[FieldID]
	delete(rest, FieldID)

	e.fields.Hydrate(rest, resetBaseline)
	if hasID && id != nil {
		f, _ := e.fields.Field(FieldID)
		f.Hydrate(id, resetBaseline)
	}
	if resetBaseline {
		e.MarkClean()
		return
	}
	e.dirty = true
}

var (
	outKeys          = []string{"outV", "out_v", "_outV"}
	inKeys           = []string{"inV", "in_v", "_inV"}
	endpointMetaKeys = []string{"outVLabel", "inVLabel"}
)

// sameID compares ids loosely: a server may echo 7 for an id sent as "7".
func sameID(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func takeEndpoint(data map[string]any, keys []string) (any, bool) {
	var (
		found any
		ok    bool
	)
	for _, k := range keys {
		if v, exists := data[k]; exists {
			if !ok && v != nil {
				found, ok = v, true
			}
			delete(data, k)
		}
	}
	return found, ok
}

// Values maps field names to values in the entity's representation.
func (e *Entity) Values() map[string]any { return e.fields.Values() }

// Changes returns the per-field change summary.
func (e *Entity) Changes() map[string]field.FieldChanges { return e.fields.Changes() }

// Changed lists fields with pending writes.
func (e *Entity) Changed() []string { return e.fields.Changed() }

// Deleted lists fully deleted fields.
func (e *Entity) Deleted() []string { return e.fields.Deleted() }

// Dirty reports whether the entity holds changes not confirmed by the server.
func (e *Entity) Dirty() bool { return e.dirty }

// MarkClean resets the change baseline and clears the dirty flag.
func (e *Entity) MarkClean() {
	e.fields.ResetBaseline()
	e.dirty = false
}

// SetRepresentation switches the read representation of every field.
func (e *Entity) SetRepresentation(rep field.Representation) {
	e.fields.SetRepresentation(rep)
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s(%s id=%v)", e.typ.Name, e.typ.Kind, e.ID())
}
