package mapper

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/orneryd/gizmo/pkg/entity"
	"github.com/orneryd/gizmo/pkg/pool"
)

// Traversal builds a read script anchored at an entity. Step arguments are
// bound like every other value, so a traversal never splices user data into
// the script.
type Traversal struct {
	m      *Mapper
	sb     strings.Builder
	params map[string]any
	n      int
}

// Start opens a traversal at e: by id when e is saved, otherwise over every
// element carrying e's label.
func (m *Mapper) Start(e *entity.Entity) *Traversal {
	t := &Traversal{m: m, params: make(map[string]any)}
	t.sb.WriteString(m.compiler.Graph)
	letter := entity.KindVertex.Letter()
	if e != nil && e.IsEdge() {
		letter = entity.KindEdge.Letter()
	}
	switch {
	case e == nil:
		fmt.Fprintf(&t.sb, ".%s()", letter)
	case e.ID() != nil:
		fmt.Fprintf(&t.sb, ".%s(%s)", letter, t.bind(e.ID()))
	default:
		fmt.Fprintf(&t.sb, ".%s().hasLabel(%s)", letter, t.bind(e.Label()))
	}
	return t
}

func (t *Traversal) bind(v any) string {
	t.n++
	name := fmt.Sprintf("gizmo_t_%d", t.n)
	t.params[name] = v
	return name
}

// Step appends .name(args...) with every argument bound.
func (t *Traversal) Step(name string, args ...any) *Traversal {
	sb := pool.GetStringBuilder()
	defer pool.PutStringBuilder(sb)
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.bind(a))
	}
	fmt.Fprintf(&t.sb, ".%s(%s)", name, sb.String())
	return t
}

// Raw appends script text verbatim, for steps that take lambdas or
// anonymous traversals.
func (t *Traversal) Raw(script string) *Traversal {
	t.sb.WriteString(script)
	return t
}

// Script returns the traversal text and its bindings.
func (t *Traversal) Script() (string, map[string]any) {
	return t.sb.String(), maps.Clone(t.params)
}

// ToList runs the traversal through the mapper's transport.
func (t *Traversal) ToList(ctx context.Context) (*Collection, error) {
	return t.m.Query(ctx, t.sb.String()+".toList()", t.params)
}

// Next runs the traversal and returns its first element, or nil.
func (t *Traversal) Next(ctx context.Context) (*entity.Entity, error) {
	c, err := t.m.Query(ctx, t.sb.String()+".limit(1).toList()", t.params)
	if err != nil {
		return nil, err
	}
	return c.First(), nil
}
