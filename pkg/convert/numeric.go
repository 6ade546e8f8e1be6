// Package convert provides the loose type coercion used by gizmo fields.
//
// Values reach a field from three places: application code (Go native types),
// JSON replies from the graph server (float64, int64, string, map, slice) and
// YAML or environment input from the CLI (mostly strings). Every conversion in
// this package accepts all three shapes and reports whether it succeeded, so
// callers can decide between a fallback value and ignoring the write.
//
// Key Functions:
//   - ToFloat64: Convert various types to float64
//   - ToInt64: Convert various types to int64
//   - ToBool: Boolean coercion with "true"/"false" token support
//   - ToAnySlice / ToStringMap: Normalize typed containers for list/map fields
//
// Example:
//
//	if n, ok := convert.ToInt64("42"); ok {
//		// n == 42
//	}
//
//	b := convert.ToBool("TRUE") // true
package convert

import (
	"strconv"
	"strings"
)

// ToFloat64 converts various numeric types to float64.
// Returns (value, true) on success, (0, false) on failure.
//
// Supported types:
//   - all signed and unsigned integer types
//   - float32, float64
//   - string (parsed as decimal, supports scientific notation, NaN and Inf)
//   - bool is NOT converted; use ToBool for that
//
// Example:
//
//	f, ok := ToFloat64(42)        // Returns (42.0, true)
//	f, ok := ToFloat64("1.5e-3")  // Returns (0.0015, true)
//	f, ok := ToFloat64("invalid") // Returns (0, false)
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case int16:
		return float64(val), true
	case int8:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint8:
		return float64(val), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// ToInt64 converts various numeric types to int64.
// Returns (value, true) on success, (0, false) on failure.
//
// Floats are truncated toward zero. Strings are parsed as base-10 integers
// first and fall back to float parsing, so "3.7" yields 3.
//
// Example:
//
//	i, ok := ToInt64(42)        // Returns (42, true)
//	i, ok := ToInt64(3.7)       // Returns (3, true) - truncated
//	i, ok := ToInt64("3.7")     // Returns (3, true)
//	i, ok := ToInt64("invalid") // Returns (0, false)
func ToInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int16:
		return int64(val), true
	case int8:
		return int64(val), true
	case uint:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float64:
		return int64(val), true
	case float32:
		return int64(val), true
	case string:
		s := strings.TrimSpace(val)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

// IsInteger reports whether v holds one of Go's integer types.
func IsInteger(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// IsFloat reports whether v holds float32 or float64.
func IsFloat(v interface{}) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}
