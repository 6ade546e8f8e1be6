package query

import (
	"fmt"
	"slices"

	"github.com/orneryd/gizmo/pkg/entity"
	"github.com/orneryd/gizmo/pkg/field"
	"github.com/orneryd/gizmo/pkg/pool"
)

// StatementContext is what a statement sees when wrapping a create fragment.
type StatementContext struct {
	Entity *entity.Entity
	// Script is the fragment being wrapped; it evaluates to the element.
	Script string
	// Label is the parameter bound to the element label.
	Label string
	// Out and In are expressions evaluating to the endpoint ids of an edge.
	Out, In string
	Binder  Binder
	Graph   string
}

// Statement wraps a create fragment. Implementations may bind new parameters
// but must reuse, not rebind, the ones named in the context.
type Statement interface {
	Build(sc StatementContext) (string, error)
}

// StatementFunc adapts a function to Statement.
type StatementFunc func(sc StatementContext) (string, error)

// Build calls fn.
func (fn StatementFunc) Build(sc StatementContext) (string, error) { return fn(sc) }

// AllFields selects every persisted field in UniqueVertex.
const AllFields = "*"

// UniqueVertex turns a vertex create into get-or-create keyed on Fields.
//
//	g.V().hasLabel(L).has('name', p)...tryNext().orElseGet{ <create> }
//
// With ErrorOnNonUnique the lookup raises a server error instead of
// returning the existing vertex.
type UniqueVertex struct {
	Fields           []string
	ErrorOnNonUnique bool
}

// Build implements Statement.
func (u UniqueVertex) Build(sc StatementContext) (string, error) {
	if sc.Entity.IsEdge() {
		return "", fmt.Errorf("%w: unique fields apply to vertices, got %s", ErrSchema, sc.Entity)
	}
	sb := pool.GetStringBuilder()
	defer pool.PutStringBuilder(sb)
	fmt.Fprintf(sb, "%s.V().hasLabel(%s)", sc.Graph, sc.Label)
	for _, f := range u.keyFields(sc.Entity) {
		entries := f.WireEntries()
		if len(entries) == 0 {
			fmt.Fprintf(sb, ".hasNot(%s)", Quote(f.Name()))
			continue
		}
		fmt.Fprintf(sb, ".has(%s, %s)", Quote(f.Name()), value(entries[0].Raw, sc.Binder))
	}
	return getOrCreate(sb.String(), sc.Script, u.ErrorOnNonUnique), nil
}

func (u UniqueVertex) keyFields(e *entity.Entity) []*field.Field {
	all := slices.Contains(u.Fields, AllFields)
	var out []*field.Field
	for _, f := range persisted(e) {
		// reading a counter on the wire would bump it a second time
		if f.Kind() == field.KindIncrement {
			continue
		}
		if all || slices.Contains(u.Fields, f.Name()) {
			out = append(out, f)
		}
	}
	return out
}

// Direction selects which incident edges UniqueEdge inspects.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// UniqueEdge turns an edge create into get-or-create between its endpoints.
//
//	g.V(OUT).outE(L).where(__.inV().hasId(IN)).tryNext().orElseGet{ <create> }
type UniqueEdge struct {
	Direction        Direction
	ErrorOnNonUnique bool
}

// Build implements Statement.
func (u UniqueEdge) Build(sc StatementContext) (string, error) {
	if !sc.Entity.IsEdge() {
		return "", fmt.Errorf("%w: unique edge applied to %s", ErrSchema, sc.Entity)
	}
	var step, other string
	switch u.Direction {
	case DirectionOut, "":
		step, other = "outE", "inV"
	case DirectionIn:
		step, other = "inE", "outV"
	case DirectionBoth:
		step, other = "bothE", "otherV"
	default:
		return "", fmt.Errorf("%w: unknown direction %q", ErrSchema, u.Direction)
	}
	lookup := fmt.Sprintf("%s.V(%s).%s(%s).where(__.%s().hasId(%s))", sc.Graph, sc.Out, step, sc.Label, other, sc.In)
	return getOrCreate(lookup, sc.Script, u.ErrorOnNonUnique), nil
}

func getOrCreate(lookup, create string, errorOnExisting bool) string {
	if errorOnExisting {
		return fmt.Sprintf("%s.tryNext().map{ throw new IllegalStateException(%s) }.orElseGet{ %s }", lookup, Quote(NonUniqueMarker), create)
	}
	return fmt.Sprintf("%s.tryNext().orElseGet{ %s }", lookup, create)
}
