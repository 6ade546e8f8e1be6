package convert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected float64
		ok       bool
	}{
		// Direct numeric types
		{"float64", 3.14, 3.14, true},
		{"float32", float32(2.5), 2.5, true},
		{"int", 42, 42.0, true},
		{"int64", int64(99), 99.0, true},
		{"int8", int8(-3), -3.0, true},
		{"uint16", uint16(7), 7.0, true},

		// String parsing
		{"string decimal", "3.14", 3.14, true},
		{"string padded", "  2.5 ", 2.5, true},
		{"string scientific", "1.5e-3", 0.0015, true},
		{"string integer", "42", 42.0, true},

		// Error cases
		{"string invalid", "hello", 0, false},
		{"string empty", "", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
		{"slice", []int{1, 2}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat64(tt.input)
			assert.Equal(t, tt.ok, ok, "ok mismatch")
			if ok {
				assert.InDelta(t, tt.expected, got, 0.0001, "value mismatch")
			}
		})
	}

	t.Run("string NaN", func(t *testing.T) {
		got, ok := ToFloat64("NaN")
		assert.True(t, ok)
		assert.True(t, math.IsNaN(got))
	})
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected int64
		ok       bool
	}{
		{"int64", int64(99), 99, true},
		{"int", 42, 42, true},
		{"uint8", uint8(200), 200, true},
		{"float64 truncated", 3.7, 3, true},
		{"negative float", -2.9, -2, true},
		{"string", "123", 123, true},
		{"string float", "3.7", 3, true},
		{"string invalid", "abc", 0, false},
		{"nil", nil, 0, false},
		{"map", map[string]any{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToInt64(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestToBool(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected bool
	}{
		{"true", true, true},
		{"false", false, false},
		{"token upper", "TRUE", true},
		{"token mixed false", "False", false},
		{"token padded", " false ", false},
		{"non-empty string", "no", true},
		{"empty string", "", false},
		{"zero", 0, false},
		{"one", 1, true},
		{"zero float", 0.0, false},
		{"nil", nil, false},
		{"empty slice", []any{}, false},
		{"slice", []any{1}, true},
		{"empty map", map[string]any{}, false},
		{"struct", struct{}{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToBool(tt.input))
		})
	}
}

func TestToAnySlice(t *testing.T) {
	s, ok := ToAnySlice([]string{"a", "b"})
	assert.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, s)

	s, ok = ToAnySlice([2]int{1, 2})
	assert.True(t, ok)
	assert.Equal(t, []any{1, 2}, s)

	_, ok = ToAnySlice("a")
	assert.False(t, ok)

	_, ok = ToAnySlice([]byte("raw"))
	assert.False(t, ok, "byte slices are scalars")

	_, ok = ToAnySlice(nil)
	assert.False(t, ok)
}

func TestToStringMap(t *testing.T) {
	m, ok := ToStringMap(map[string]int{"a": 1})
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"a": 1}, m)

	m, ok = ToStringMap(map[int]string{7: "x"})
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"7": "x"}, m)

	_, ok = ToStringMap([]any{})
	assert.False(t, ok)
}

func BenchmarkToFloat64_String(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ToFloat64("3.14159")
	}
}
