package convert

import (
	"fmt"
	"reflect"
)

// ToAnySlice normalizes any slice or array to []any.
// Returns (slice, true) on success, (nil, false) when v is not a slice.
//
// []any is returned as-is; typed slices such as []string or []int are
// copied element by element.
//
// Example:
//
//	s, ok := ToAnySlice([]string{"a", "b"}) // Returns ([]any{"a", "b"}, true)
//	s, ok := ToAnySlice("a")                // Returns (nil, false)
func ToAnySlice(v interface{}) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte is a scalar for graph purposes
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// ToStringMap normalizes any map with string-like keys to map[string]any.
// Returns (map, true) on success, (nil, false) when v is not a map.
//
// Non-string keys are formatted with fmt.Sprint, matching how the graph server
// echoes map keys back.
func ToStringMap(v interface{}) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().Interface()
		if s, ok := k.(string); ok {
			out[s] = iter.Value().Interface()
		} else {
			out[fmt.Sprint(k)] = iter.Value().Interface()
		}
	}
	return out, true
}
