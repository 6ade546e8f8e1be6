package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/orneryd/gizmo/pkg/convert"
	"github.com/orneryd/gizmo/pkg/pool"
)

// Quote renders s as a single-quoted script string. Only property keys and
// fixed step arguments go through here; values are always bound.
func Quote(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return "'" + escaped + "'"
}

// value renders v as script text in which every scalar leaf is a bound
// parameter. Maps become ['k': p, ...] and slices [p, ...].
func value(v any, b Binder) string {
	if m, ok := v.(map[string]any); ok {
		if len(m) == 0 {
			return "[:]"
		}
		keys := sortedKeys(m)
		sb := pool.GetStringBuilder()
		defer pool.PutStringBuilder(sb)
		sb.WriteByte('[')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(Quote(k))
			sb.WriteString(": ")
			sb.WriteString(value(m[k], b))
		}
		sb.WriteByte(']')
		return sb.String()
	}
	if m, ok := convert.ToStringMap(v); ok {
		return value(m, b)
	}
	if l, ok := convert.ToAnySlice(v); ok {
		parts := make([]string, len(l))
		for i, item := range l {
			parts[i] = value(item, b)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return b.Bind(v)
}

// keyValues renders meta-properties as trailing 'k', v argument pairs.
func keyValues(props map[string]any, b Binder) string {
	if len(props) == 0 {
		return ""
	}
	sb := pool.GetStringBuilder()
	defer pool.PutStringBuilder(sb)
	for _, k := range sortedKeys(props) {
		sb.WriteString(", ")
		sb.WriteString(Quote(k))
		sb.WriteString(", ")
		sb.WriteString(value(props[k], b))
	}
	return sb.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Debug renders script with every parameter replaced by its literal value.
// The output is for logs and humans only; it is never sent to a server.
//
// Example:
//
//	Debug("g.V(gizmo_p_1)", map[string]any{"gizmo_p_1": "7"}) // g.V('7')
func Debug(script string, params map[string]any) string {
	if len(params) == 0 {
		return script
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, regexp.QuoteMeta(name))
	}
	// longest first so gizmo_p_10 is not read as gizmo_p_1
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	re := regexp.MustCompile(`\b(` + strings.Join(names, "|") + `)\b`)
	return re.ReplaceAllStringFunc(script, func(name string) string {
		return literal(params[name])
	})
}

func literal(v any) string {
	if v == nil {
		return "null"
	}
	switch val := v.(type) {
	case string:
		return Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	if convert.IsInteger(v) {
		return fmt.Sprint(v)
	}
	if m, ok := convert.ToStringMap(v); ok {
		if len(m) == 0 {
			return "[:]"
		}
		parts := make([]string, 0, len(m))
		for _, k := range sortedKeys(m) {
			parts = append(parts, Quote(k)+": "+literal(m[k]))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if l, ok := convert.ToAnySlice(v); ok {
		parts := make([]string, len(l))
		for i, item := range l {
			parts[i] = literal(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return Quote(fmt.Sprint(v))
}
