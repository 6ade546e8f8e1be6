package field

import (
	"slices"
	"sort"
)

// FieldChanges is the change summary of one field.
type FieldChanges struct {
	Changes
	Immutable bool
}

// Fields is the named set of fields owned by one entity.
//
// Declared fields keep declaration order; fields created on the fly for
// unknown names (when allowUndefined is set) follow in creation order.
type Fields struct {
	fields         map[string]*Field
	order          []string
	allowUndefined bool
	rep            Representation
}

// NewFields creates an empty field set.
func NewFields(allowUndefined bool, rep Representation) *Fields {
	return &Fields{
		fields:         make(map[string]*Field),
		allowUndefined: allowUndefined,
		rep:            rep,
	}
}

// AllowUndefined reports whether unknown names create fields on write.
func (fs *Fields) AllowUndefined() bool { return fs.allowUndefined }

// Representation returns the read representation shared by all fields.
func (fs *Fields) Representation() Representation { return fs.rep }

// SetRepresentation switches every field to rep.
func (fs *Fields) SetRepresentation(rep Representation) {
	fs.rep = rep
	for _, f := range fs.fields {
		f.SetRepresentation(rep)
	}
}

// Add attaches fields to the set, replacing any field with the same name.
func (fs *Fields) Add(fields ...*Field) {
	for _, f := range fields {
		if _, exists := fs.fields[f.name]; !exists {
			fs.order = append(fs.order, f.name)
		}
		f.owner = fs
		f.rep = fs.rep
		fs.fields[f.name] = f
	}
}

// Field looks up a field by name.
func (fs *Fields) Field(name string) (*Field, bool) {
	f, ok := fs.fields[name]
	return f, ok
}

// Names returns field names in declaration order.
func (fs *Fields) Names() []string {
	return slices.Clone(fs.order)
}

// Len returns the number of fields.
func (fs *Fields) Len() int { return len(fs.fields) }

// Get returns the value of a field, nil for unknown names.
func (fs *Fields) Get(name string) any {
	f, ok := fs.fields[name]
	if !ok {
		return nil
	}
	return f.Value()
}

// Set writes value to a field. Unknown names create a field of the inferred
// kind when undefined fields are allowed, and are ignored otherwise.
func (fs *Fields) Set(name string, value any) bool {
	f := fs.fieldFor(name, value)
	if f == nil {
		return false
	}
	if vals, ok := value.(Values); ok {
		f.Hydrate(vals, false)
		return true
	}
	return f.Set(value)
}

// Append adds one more value, with meta-properties, to a field.
func (fs *Fields) Append(name string, value any, props map[string]any) bool {
	f := fs.fieldFor(name, value)
	if f == nil {
		return false
	}
	return f.Add(value, props)
}

func (fs *Fields) fieldFor(name string, value any) *Field {
	if f, ok := fs.fields[name]; ok {
		return f
	}
	if !fs.allowUndefined {
		return nil
	}
	f := New(name, InferKind(value), 0, false)
	fs.Add(f)
	return f
}

// Delete marks every value of a field as deleted.
func (fs *Fields) Delete(name string) bool {
	f, ok := fs.fields[name]
	if !ok {
		return false
	}
	f.Delete()
	return true
}

// Hydrate applies data in key order. With resetBaseline set, immutable fields
// are written regardless of their lock and the result becomes the new
// baseline, so echoed values are not reported as pending changes.
func (fs *Fields) Hydrate(data map[string]any, resetBaseline bool) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := data[k]
		if v == nil {
			continue
		}
		f := fs.fieldFor(k, v)
		if f == nil {
			continue
		}
		f.Hydrate(v, resetBaseline)
	}
	if resetBaseline {
		fs.ResetBaseline()
	}
}

// ResetBaseline resets the baseline of every field.
func (fs *Fields) ResetBaseline() {
	for _, f := range fs.fields {
		f.ResetBaseline()
	}
}

// Counters captures the raws of every increment field, or nil when there are
// none. RestoreCounters puts them back, undoing wire reads made since.
func (fs *Fields) Counters() map[string][]any {
	var out map[string][]any
	for name, f := range fs.fields {
		if f.kind != KindIncrement {
			continue
		}
		if out == nil {
			out = make(map[string][]any)
		}
		out[name] = f.store.Raws()
	}
	return out
}

// RestoreCounters applies a capture taken by Counters.
func (fs *Fields) RestoreCounters(counters map[string][]any) {
	for name, raws := range counters {
		if f, ok := fs.fields[name]; ok && f.kind == KindIncrement {
			f.store.setRaws(raws)
		}
	}
}

// Values maps each field name to its value. Fields holding several values
// map to a slice of them.
func (fs *Fields) Values() map[string]any {
	out := make(map[string]any, len(fs.fields))
	for _, name := range fs.order {
		f := fs.fields[name]
		if f.Len() > 1 {
			out[name] = f.Values()
			continue
		}
		out[name] = f.Value()
	}
	return out
}

// Changes returns the change summary of every persisted field with activity.
func (fs *Fields) Changes() map[string]FieldChanges {
	out := make(map[string]FieldChanges)
	for name, f := range fs.fields {
		if !f.Persisted() {
			continue
		}
		c := f.Changes()
		if c.Empty() {
			continue
		}
		out[name] = FieldChanges{Changes: c, Immutable: f.immutable}
	}
	return out
}

// Changed returns, sorted, the fields with pending writes: anything with
// activity that is not a full deletion.
func (fs *Fields) Changed() []string {
	var names []string
	for name, c := range fs.Changes() {
		if fs.deleted(name, c) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deleted returns, sorted, the fields whose baseline values were all deleted
// and that hold no values now.
func (fs *Fields) Deleted() []string {
	var names []string
	for name, c := range fs.Changes() {
		if fs.deleted(name, c) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (fs *Fields) deleted(name string, c FieldChanges) bool {
	return len(c.Deleted) > 0 && fs.fields[name].store.Len() == 0
}
