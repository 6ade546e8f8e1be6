package mapper

import (
	"sort"
	"strings"

	"github.com/orneryd/gizmo/pkg/entity"
	"github.com/orneryd/gizmo/pkg/field"
)

const varPrefix = "gizmo_var_"

// translate rewrites GraphSON elements found anywhere in v into flat field
// maps: vertex multi-properties become field.Values carrying their
// meta-properties, edge properties stay scalar.
func translate(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if isElement(val) {
			return flatten(val)
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = translate(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = translate(item)
		}
		return out
	}
	return v
}

// isElement reports whether m is a graph element. Servers may leave out any
// of id, label, type and properties, so a properties map alone is enough, and
// an id needs one of the other element keys beside it.
func isElement(m map[string]any) bool {
	if _, ok := m["properties"].(map[string]any); ok {
		return true
	}
	if _, ok := m[entity.FieldID]; !ok {
		return false
	}
	for _, k := range []string{entity.FieldLabel, entity.FieldType, "properties"} {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func flatten(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k != "properties" {
			out[k] = v
		}
	}
	props, _ := m["properties"].(map[string]any)
	edge, _ := m[entity.FieldType].(string)
	for name, p := range props {
		list, ok := p.([]any)
		if !ok || edge == string(entity.KindEdge) {
			out[name] = p
			continue
		}
		vals := make(field.Values, 0, len(list))
		for _, item := range list {
			vp, ok := item.(map[string]any)
			if value, has := vp["value"]; ok && has {
				meta, _ := vp["properties"].(map[string]any)
				vals = append(vals, field.Value{Raw: value, Properties: meta})
				continue
			}
			vals = append(vals, field.Value{Raw: item})
		}
		out[name] = vals
	}
	return out
}

// isVarMap reports whether row is the variable map closing a batch script.
func isVarMap(row any) (map[string]any, bool) {
	m, ok := row.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, varPrefix) {
			return nil, false
		}
	}
	return m, true
}

// sortedVars orders variable names by their sequence number.
func sortedVars(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return names
}
