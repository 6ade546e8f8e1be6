package entity

import (
	"github.com/orneryd/gizmo/pkg/field"
)

// Create builds an entity from data.
//
// The type is chosen in order: typ when non-nil, then the discriminator found
// in data looked up in reg, then the generic vertex or edge according to the
// "type" kind hint in data. The entity is hydrated without resetting its
// baseline, so everything in data counts as a pending change.
func Create(reg *Registry, data map[string]any, typ *Type, rep field.Representation) *Entity {
	if typ == nil {
		typ = ResolveType(reg, data)
	}
	e := New(typ, rep)
	if len(data) > 0 {
		e.Hydrate(data, false)
	}
	return e
}

// ResolveType picks the entity type for data using the discriminator, then
// the kind hint.
func ResolveType(reg *Registry, data map[string]any) *Type {
	if reg == nil {
		reg = DefaultRegistry
	}
	if name, ok := discriminator(data); ok {
		if t, found := reg.Lookup(name); found {
			return t
		}
	}
	if hint, _ := data[FieldType].(string); hint == string(KindEdge) {
		return GenericEdge
	}
	return GenericVertex
}

func discriminator(data map[string]any) (string, bool) {
	switch v := data[FieldDiscriminator].(type) {
	case string:
		return v, v != ""
	case field.Values:
		if len(v) > 0 {
			s, ok := v[0].Raw.(string)
			return s, ok && s != ""
		}
	}
	return "", false
}
