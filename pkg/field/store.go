package field

import (
	"maps"
	"reflect"
)

// Value is one stored datum of a property together with its meta-properties.
//
// Property-graph servers allow a property to hold several values, each carrying
// its own bag of properties ("properties on properties"). Equality between
// values is decided by Raw alone.
type Value struct {
	Raw        any
	Properties map[string]any

	origin       bool // present at the last baseline
	initialRaw   any
	initialProps map[string]any
}

// Change pairs the baseline state of a value with its current state.
type Change struct {
	From Value
	To   Value
}

// Changes summarizes activity on a store since its baseline.
type Changes struct {
	Added   []Value
	Changed []Change
	Deleted []Value
}

// Empty reports whether nothing happened since the baseline.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Deleted) == 0
}

// Store holds the ordered values of one property plus the values deleted
// since the baseline.
//
// A store with MaxValues > 0 never holds more than MaxValues values. When such
// a store is full, Add either replaces the last value (overwrite mode) or is
// ignored. Either way the attempt is counted.
type Store struct {
	values        []*Value
	deleted       []*Value
	maxValues     int
	overwriteLast bool
	attempts      int
}

// NewStore creates an empty store. maxValues <= 0 means unlimited.
func NewStore(maxValues int, overwriteLast bool) *Store {
	if maxValues < 0 {
		maxValues = 0
	}
	return &Store{maxValues: maxValues, overwriteLast: overwriteLast}
}

// MaxValues returns the capacity, 0 when unlimited.
func (s *Store) MaxValues() int { return s.maxValues }

// OverwriteLast reports whether a full store replaces its last value on Add.
func (s *Store) OverwriteLast() bool { return s.overwriteLast }

// Len returns the number of live values.
func (s *Store) Len() int { return len(s.values) }

// Attempts returns how many times Add was called.
func (s *Store) Attempts() int { return s.attempts }

func (s *Store) full() bool {
	return s.maxValues > 0 && len(s.values) >= s.maxValues
}

// Add appends a value, or overwrites the last one when the store is full and
// in overwrite mode. Returns false when the value was dropped.
func (s *Store) Add(raw any, props map[string]any) bool {
	s.attempts++
	if s.full() {
		if !s.overwriteLast {
			return false
		}
		last := s.values[len(s.values)-1]
		last.Raw = raw
		last.Properties = maps.Clone(props)
		return true
	}
	s.values = append(s.values, &Value{Raw: raw, Properties: maps.Clone(props)})
	return true
}

// Set replaces, in place, every value whose raw equals existing.
// Returns false when no value matched.
func (s *Store) Set(existing, raw any) bool {
	found := false
	for _, v := range s.values {
		if equalRaw(v.Raw, existing) {
			v.Raw = raw
			found = true
		}
	}
	return found
}

// SetProperties replaces the meta-properties of every value matching raw.
func (s *Store) SetProperties(raw any, props map[string]any) bool {
	found := false
	for _, v := range s.values {
		if equalRaw(v.Raw, raw) {
			v.Properties = maps.Clone(props)
			found = true
		}
	}
	return found
}

// Delete moves every value matching raw to the deleted list and returns how
// many were moved.
func (s *Store) Delete(raw any) int {
	kept := s.values[:0]
	n := 0
	for _, v := range s.values {
		if equalRaw(v.Raw, raw) {
			s.deleted = append(s.deleted, v)
			n++
			continue
		}
		kept = append(kept, v)
	}
	clear(s.values[len(kept):])
	s.values = kept
	return n
}

// Clear moves every live value to the deleted list.
func (s *Store) Clear() int {
	n := len(s.values)
	s.deleted = append(s.deleted, s.values...)
	s.values = nil
	return n
}

// Replace makes entries the live values of the store.
//
// Existing values with a matching raw keep their identity, so their baseline
// is preserved; the rest are moved to the deleted list. Entries pass through
// the same capacity rules as Add.
func (s *Store) Replace(entries []Value) {
	old := s.values
	s.values = nil
	used := make([]bool, len(old))
	for _, e := range entries {
		reused := false
		if !s.full() {
			for i, v := range old {
				if !used[i] && equalRaw(v.Raw, e.Raw) {
					used[i] = true
					v.Properties = maps.Clone(e.Properties)
					s.values = append(s.values, v)
					reused = true
					break
				}
			}
		}
		if !reused {
			s.Add(e.Raw, e.Properties)
		}
	}
	for i, v := range old {
		if !used[i] {
			s.deleted = append(s.deleted, v)
		}
	}
}

// Values returns snapshots of the live values in insertion order.
func (s *Store) Values() []Value {
	out := make([]Value, len(s.values))
	for i, v := range s.values {
		out[i] = v.snapshot()
	}
	return out
}

// Raws returns the raw values in insertion order.
func (s *Store) Raws() []any {
	out := make([]any, len(s.values))
	for i, v := range s.values {
		out[i] = v.Raw
	}
	return out
}

// Changes reports activity since the baseline.
//
// Added holds live values that were not present at the baseline. Changed holds
// baseline values still live whose raw or meta-properties differ. Deleted holds
// baseline values that were deleted, reported with their baseline state;
// values both added and deleted after the baseline do not appear at all.
func (s *Store) Changes() Changes {
	var c Changes
	for _, v := range s.values {
		if !v.origin {
			c.Added = append(c.Added, v.snapshot())
			continue
		}
		if !equalRaw(v.Raw, v.initialRaw) || !equalProps(v.Properties, v.initialProps) {
			c.Changed = append(c.Changed, Change{From: v.initial(), To: v.snapshot()})
		}
	}
	for _, v := range s.deleted {
		if v.origin {
			c.Deleted = append(c.Deleted, v.initial())
		}
	}
	return c
}

// ResetBaseline makes the current values the new baseline and forgets
// deleted values.
func (s *Store) ResetBaseline() {
	for _, v := range s.values {
		v.origin = true
		v.initialRaw = cloneRaw(v.Raw)
		v.initialProps = maps.Clone(v.Properties)
	}
	s.deleted = nil
}

// mutate applies fn to every live raw in place.
func (s *Store) mutate(fn func(any) any) {
	for _, v := range s.values {
		v.Raw = fn(v.Raw)
	}
}

// setRaws overwrites the live raws in order. Raws beyond the live values are
// ignored.
func (s *Store) setRaws(raws []any) {
	for i, v := range s.values {
		if i < len(raws) {
			v.Raw = raws[i]
		}
	}
}

func (v *Value) snapshot() Value {
	return Value{Raw: v.Raw, Properties: maps.Clone(v.Properties)}
}

func (v *Value) initial() Value {
	return Value{Raw: v.initialRaw, Properties: maps.Clone(v.initialProps)}
}

func equalRaw(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func equalProps(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// cloneRaw copies nested maps and slices so the baseline does not alias
// containers the application may keep mutating.
func cloneRaw(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneRaw(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneRaw(item)
		}
		return out
	}
	return v
}
