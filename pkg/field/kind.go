package field

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/orneryd/gizmo/pkg/convert"
)

// Kind identifies how a field coerces, encodes and defaults its values.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindMap
	KindList
	KindEnum
	KindIncrement
	KindTimestamp
	KindMirror
	// KindAny stores values untouched. Element ids use it since servers
	// differ on numeric versus string ids.
	KindAny
)

var kindNames = [...]string{
	KindString:    "string",
	KindInteger:   "integer",
	KindFloat:     "float",
	KindBoolean:   "boolean",
	KindMap:       "map",
	KindList:      "list",
	KindEnum:      "enum",
	KindIncrement: "increment",
	KindTimestamp: "timestamp",
	KindMirror:    "mirror",
	KindAny:       "any",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(k), true
		}
	}
	return KindString, false
}

// Representation selects the form in which a field exposes its values.
type Representation int

const (
	// Native values are Go types: bool, int64, float64, time.Time, map, slice.
	Native Representation = iota
	// Wire values are what the graph server stores: booleans become the
	// tokens "true"/"false", timestamps epoch seconds, missing strings "".
	Wire
)

func (r Representation) String() string {
	if r == Wire {
		return "wire"
	}
	return "native"
}

// InferKind picks the kind of an undeclared field from a runtime value.
//
//	map    -> KindMap
//	slice  -> KindList
//	bool   -> KindBoolean
//	int*   -> KindInteger
//	float* -> KindFloat
//	else   -> KindString
func InferKind(v any) Kind {
	if vs, ok := v.(Values); ok {
		if len(vs) == 0 {
			return KindString
		}
		return InferKind(vs[0].Raw)
	}
	if _, ok := v.(bool); ok {
		return KindBoolean
	}
	switch {
	case v == nil:
		return KindString
	case convert.IsInteger(v):
		return KindInteger
	case convert.IsFloat(v):
		return KindFloat
	}
	if _, ok := convert.ToStringMap(v); ok {
		return KindMap
	}
	if _, ok := convert.ToAnySlice(v); ok {
		return KindList
	}
	return KindString
}

// coerce converts v to the native form stored for kind k.
// ok is false when the kind rejects the value outright.
func coerce(k Kind, v any) (any, bool) {
	switch k {
	case KindString:
		if v == nil {
			return nil, true
		}
		if s, ok := v.(string); ok {
			return s, true
		}
		return fmt.Sprint(v), true
	case KindInteger, KindIncrement:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), true
			}
			return int64(0), true
		}
		n, _ := convert.ToInt64(v)
		return n, true
	case KindFloat:
		f, _ := convert.ToFloat64(v)
		return f, true
	case KindBoolean:
		return convert.ToBool(v), true
	case KindMap:
		if s, ok := v.(string); ok {
			var m map[string]any
			if looksJSON(s, '{') && json.Unmarshal([]byte(s), &m) == nil {
				return m, true
			}
			return v, true
		}
		if m, ok := convert.ToStringMap(v); ok {
			return m, true
		}
		return v, true
	case KindList:
		if s, ok := v.(string); ok {
			var l []any
			if looksJSON(s, '[') && json.Unmarshal([]byte(s), &l) == nil {
				return l, true
			}
			return v, true
		}
		if l, ok := convert.ToAnySlice(v); ok {
			return l, true
		}
		return v, true
	case KindTimestamp:
		return toTime(v)
	}
	return v, true
}

func looksJSON(s string, open byte) bool {
	s = strings.TrimSpace(s)
	return len(s) >= 2 && s[0] == open
}

func toTime(v any) (any, bool) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(val)); err == nil {
			return t.UTC(), true
		}
	}
	if n, ok := convert.ToInt64(v); ok {
		return time.Unix(n, 0).UTC(), true
	}
	return nil, false
}

// encode converts a stored native value to its wire form.
func encode(k Kind, v any) any {
	switch k {
	case KindString:
		if v == nil {
			return ""
		}
	case KindBoolean:
		if convert.ToBool(v) {
			return "true"
		}
		return "false"
	case KindTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.Unix()
		}
		return ""
	}
	return v
}

// zero returns the value a kind reports for an empty store, in native form.
func zero(k Kind) any {
	switch k {
	case KindInteger, KindIncrement:
		return int64(0)
	case KindFloat:
		return 0.0
	case KindBoolean:
		return false
	case KindMap:
		return map[string]any{}
	case KindList:
		return []any{}
	case KindTimestamp:
		return time.Now().UTC().Truncate(time.Second)
	}
	return nil
}
