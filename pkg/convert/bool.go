package convert

import (
	"reflect"
	"strings"
)

// ToBool coerces v to a boolean.
//
// The strings "true" and "false" are recognized case-insensitively (surrounding
// whitespace ignored). Anything else falls back to truthiness: nil, zero
// numbers, empty strings and empty containers are false, everything else is
// true.
//
// Example:
//
//	ToBool("False") // false
//	ToBool("no")    // true (non-empty string)
//	ToBool(0)       // false
//	ToBool([]any{}) // false
func ToBool(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true":
			return true
		case "false":
			return false
		}
		return val != ""
	}
	if f, ok := ToFloat64(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
