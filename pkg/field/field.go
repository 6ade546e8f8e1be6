// Package field implements the per-property state of gizmo entities.
//
// A graph property can hold several values, each with its own meta-properties,
// and the mapper only sends what changed. This package provides the three
// layers that make that possible:
//
//   - Store: ordered values, capacity rules and change history since a baseline
//   - Field: a typed Store with representation-aware reads and coercing writes
//   - Fields: the named collection of fields owned by one entity
//
// Field kinds are declared with builders and instantiated per entity:
//
//	name := field.String("name").Max(1).OverwriteLast().Descriptor()
//	state := field.Enum("state").Values("draft", "live").Descriptor()
//
//	fs := field.NewFields(false, field.Native)
//	fs.Add(name.New(), state.New())
//	fs.Set("name", "mark")
//	fs.Changes() // name: added "mark", state: added "draft"
//
// Reads in Wire representation encode values for the graph server. Reading an
// increment field in Wire representation bumps its stored value by one; the
// server-side counter relies on that.
package field

import (
	"maps"
)

// Values is the multi-value form of one property, in the order the server
// returned it. Hydrating a field with Values replaces its whole store.
type Values []Value

// MirrorFunc computes a mirror field from the native values of its sources.
type MirrorFunc func(sources map[string]any) any

// Field is a typed property of an entity.
type Field struct {
	name      string
	kind      Kind
	store     *Store
	rep       Representation
	immutable bool
	locked    bool
	allowed   []any
	sources   []string
	mirror    MirrorFunc
	owner     *Fields
}

// New creates a field of the given kind backed by a store with capacity
// maxValues (0 for unlimited).
func New(name string, kind Kind, maxValues int, overwriteLast bool) *Field {
	if kind == KindTimestamp {
		maxValues, overwriteLast = 1, true
	}
	return &Field{
		name:  name,
		kind:  kind,
		store: NewStore(maxValues, overwriteLast),
	}
}

// Name returns the property key.
func (f *Field) Name() string { return f.name }

// Kind returns the field kind.
func (f *Field) Kind() Kind { return f.kind }

// Immutable reports whether the field accepts only one external write.
func (f *Field) Immutable() bool { return f.immutable }

// Persisted reports whether the field is written to the graph.
func (f *Field) Persisted() bool { return f.kind != KindMirror }

// Store exposes the backing store.
func (f *Field) Store() *Store { return f.store }

// Representation returns the current read representation.
func (f *Field) Representation() Representation { return f.rep }

// SetRepresentation switches the read representation.
func (f *Field) SetRepresentation(rep Representation) { f.rep = rep }

// Allowed returns the members of an enum field.
func (f *Field) Allowed() []any { return f.allowed }

// Len returns the number of stored values.
func (f *Field) Len() int {
	if f.kind == KindMirror {
		return 1
	}
	return f.store.Len()
}

// Values returns every value in the current representation.
func (f *Field) Values() []any {
	if f.kind == KindMirror {
		return []any{f.computeMirror()}
	}
	if f.kind == KindIncrement && f.rep == Wire {
		f.bump()
	}
	raws := f.store.Raws()
	for i, raw := range raws {
		raws[i] = f.read(raw)
	}
	return raws
}

// Entries returns every value with its meta-properties in the current
// representation. Like Values, a Wire read of an increment field bumps it.
func (f *Field) Entries() Values {
	if f.kind == KindMirror {
		return Values{{Raw: f.computeMirror()}}
	}
	if f.kind == KindIncrement && f.rep == Wire {
		f.bump()
	}
	vals := f.store.Values()
	for i := range vals {
		vals[i].Raw = f.read(vals[i].Raw)
	}
	return vals
}

// WireEntries reads the entries in Wire representation whatever the field's
// own representation is. It bumps increment fields, as any wire read does.
func (f *Field) WireEntries() Values {
	rep := f.rep
	f.rep = Wire
	defer func() { f.rep = rep }()
	return f.Entries()
}

// Value returns the first value, or the kind default when the store is empty.
func (f *Field) Value() any {
	vals := f.Values()
	if len(vals) > 0 {
		return vals[0]
	}
	return f.read(f.defaultValue())
}

func (f *Field) read(raw any) any {
	if f.rep == Wire {
		return encode(f.kind, raw)
	}
	return raw
}

func (f *Field) bump() {
	f.store.mutate(func(raw any) any {
		n, _ := raw.(int64)
		return n + 1
	})
}

func (f *Field) defaultValue() any {
	if f.kind == KindEnum && len(f.allowed) > 0 {
		return f.allowed[0]
	}
	return zero(f.kind)
}

// Add appends a value with optional meta-properties.
// Returns false when the value was rejected or dropped.
func (f *Field) Add(v any, props map[string]any) bool {
	return f.add(v, props, false)
}

// Set writes v. An empty field gets v added; otherwise the first value is
// replaced in place.
func (f *Field) Set(v any) bool {
	return f.set(v, false)
}

// Delete marks every value as deleted. The field itself stays.
func (f *Field) Delete() int {
	if !f.writable(false) {
		return 0
	}
	return f.store.Clear()
}

// DeleteValue marks the values equal to v as deleted.
func (f *Field) DeleteValue(v any) int {
	if !f.writable(false) {
		return 0
	}
	raw, ok := f.accept(v)
	if !ok {
		return 0
	}
	return f.store.Delete(raw)
}

// SetProperties replaces the meta-properties of the value equal to v.
func (f *Field) SetProperties(v any, props map[string]any) bool {
	if !f.writable(false) {
		return false
	}
	raw, ok := f.accept(v)
	if !ok {
		return false
	}
	return f.store.SetProperties(raw, props)
}

// Hydrate applies data coming from a trusted source. With force set, the
// immutability lock is bypassed; this is how server-assigned ids land.
// A Values payload replaces the whole store.
func (f *Field) Hydrate(v any, force bool) {
	if v == nil || !f.writable(force) {
		return
	}
	if vals, ok := v.(Values); ok {
		entries := make([]Value, 0, len(vals))
		for _, e := range vals {
			if raw, ok := f.accept(e.Raw); ok {
				entries = append(entries, Value{Raw: raw, Properties: maps.Clone(e.Properties)})
			}
		}
		f.store.Replace(entries)
		f.lock()
		return
	}
	f.set(v, force)
}

// Changes reports activity since the baseline. Mirror fields never change.
func (f *Field) Changes() Changes {
	if f.kind == KindMirror {
		return Changes{}
	}
	return f.store.Changes()
}

// ResetBaseline makes the current values the baseline.
func (f *Field) ResetBaseline() { f.store.ResetBaseline() }

func (f *Field) add(v any, props map[string]any, force bool) bool {
	if !f.writable(force) {
		return false
	}
	raw, ok := f.accept(v)
	if !ok {
		return false
	}
	if !f.store.Add(raw, props) {
		return false
	}
	f.lock()
	return true
}

func (f *Field) set(v any, force bool) bool {
	if f.store.Len() == 0 {
		return f.add(v, nil, force)
	}
	if !f.writable(force) {
		return false
	}
	raw, ok := f.accept(v)
	if !ok {
		return false
	}
	f.store.Set(f.store.values[0].Raw, raw)
	f.lock()
	return true
}

func (f *Field) writable(force bool) bool {
	if f.kind == KindMirror {
		return false
	}
	return force || !f.locked
}

func (f *Field) lock() {
	if f.immutable {
		f.locked = true
	}
}

// accept coerces v and applies the enum restriction.
func (f *Field) accept(v any) (any, bool) {
	raw, ok := coerce(f.kind, v)
	if !ok {
		return nil, false
	}
	if f.kind == KindEnum && !f.isAllowed(raw) {
		return nil, false
	}
	return raw, true
}

func (f *Field) isAllowed(v any) bool {
	for _, a := range f.allowed {
		if equalRaw(a, v) {
			return true
		}
	}
	return false
}

func (f *Field) computeMirror() any {
	src := make(map[string]any, len(f.sources))
	if f.owner != nil {
		for _, name := range f.sources {
			if sf, ok := f.owner.fields[name]; ok && sf != f {
				src[name] = sf.nativeValue()
			}
		}
	}
	if f.mirror == nil {
		return nil
	}
	return f.mirror(src)
}

// nativeValue reads the first value without encoding or side effects.
func (f *Field) nativeValue() any {
	if f.kind == KindMirror {
		return f.computeMirror()
	}
	if f.store.Len() > 0 {
		return f.store.values[0].Raw
	}
	return f.defaultValue()
}
