// Package query compiles entity mutations into Gremlin script fragments.
//
// A fragment is one statement of the batch script the mapper sends to the
// server. The compiler never writes a property value into script text: every
// value, and every scalar inside a map or list value, is handed to a Binder
// that returns a parameter name. Property keys are emitted as escaped
// single-quoted literals.
//
// Decision table for Save:
//
//	id   kind    fragment
//	---  ------  ------------------------------------------------------------
//	no   vertex  g.addV(L).property('k', p)....next()
//	no   edge    g.V(OUT).addE(L).to(__.V(IN)).property('k', p)....next()
//	yes  any     g.V(ID).next()                  when nothing changed
//	yes  any     g.V(ID).property(...)....next() for changed fields, and
//	             .as(A).sideEffect(__.properties('k').drop()).select(A)
//	             for each deleted field
//
// Edge endpoints are resolved as: the endpoint's server id when it has one,
// otherwise the variable the Resolver returns for the endpoint entity (which
// may save it on the spot).
package query

import (
	"fmt"

	"github.com/orneryd/gizmo/pkg/entity"
	"github.com/orneryd/gizmo/pkg/field"
	"github.com/orneryd/gizmo/pkg/pool"
)

// Binder binds a value to a fresh parameter and returns its name.
type Binder interface {
	Bind(value any) string
}

// Resolver returns the script variable holding an entity, queueing a save
// of the entity when it has none yet.
type Resolver interface {
	Resolve(e *entity.Entity) (string, error)
}

// Op is the effect a fragment has on the graph.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpFetch  Op = "fetch"
	OpDelete Op = "delete"
)

// Fragment is one compiled statement.
type Fragment struct {
	Script string
	Op     Op
}

// Compiler turns entities into fragments. It holds no per-call state and is
// safe for concurrent use; binding state lives in the Binder.
type Compiler struct {
	// Graph is the traversal source variable, usually "g".
	Graph string
}

// NewCompiler creates a compiler for the traversal source graph.
func NewCompiler(graph string) *Compiler {
	if graph == "" {
		graph = "g"
	}
	return &Compiler{Graph: graph}
}

// Save compiles the pending state of e. Statements wrap create fragments
// only; updates ignore them.
func (c *Compiler) Save(e *entity.Entity, b Binder, r Resolver, stmts ...Statement) (Fragment, error) {
	if e == nil || e.Type() == nil {
		return Fragment{}, ErrNoType
	}
	if e.ID() != nil {
		return c.update(e, b)
	}
	if e.Label() == "" {
		return Fragment{}, fmt.Errorf("%w: %s", ErrNoLabel, e.Type().Name)
	}

	sc := StatementContext{Entity: e, Binder: b, Graph: c.Graph}
	var inner string
	if e.IsEdge() {
		out, err := c.endpoint(e.OutV(), "out", b, r)
		if err != nil {
			return Fragment{}, err
		}
		in, err := c.endpoint(e.InV(), "in", b, r)
		if err != nil {
			return Fragment{}, err
		}
		sc.Out, sc.In = out, in
		sc.Label = b.Bind(e.Label())
		inner = c.createEdge(e, sc, b)
	} else {
		sc.Label = b.Bind(e.Label())
		inner = c.createVertex(e, sc, b)
	}

	sc.Script = inner
	for _, stmt := range stmts {
		wrapped, err := stmt.Build(sc)
		if err != nil {
			return Fragment{}, err
		}
		sc.Script = wrapped
	}
	return Fragment{Script: sc.Script, Op: OpCreate}, nil
}

// Delete compiles the removal of e.
func (c *Compiler) Delete(e *entity.Entity, b Binder) (Fragment, error) {
	if e == nil || e.Type() == nil {
		return Fragment{}, ErrNoType
	}
	letter, id, err := e.GetRep()
	if err != nil {
		return Fragment{}, fmt.Errorf("%w: delete %s", ErrNoID, e.Type().Name)
	}
	return Fragment{
		Script: fmt.Sprintf("%s.%s(%s).drop().iterate()", c.Graph, letter, b.Bind(id)),
		Op:     OpDelete,
	}, nil
}

// Fetch compiles a read of e by id.
func (c *Compiler) Fetch(e *entity.Entity, b Binder) (Fragment, error) {
	if e == nil || e.Type() == nil {
		return Fragment{}, ErrNoType
	}
	letter, id, err := e.GetRep()
	if err != nil {
		return Fragment{}, fmt.Errorf("%w: fetch %s", ErrNoID, e.Type().Name)
	}
	return Fragment{
		Script: fmt.Sprintf("%s.%s(%s).next()", c.Graph, letter, b.Bind(id)),
		Op:     OpFetch,
	}, nil
}

// endpoint returns a script expression evaluating to the endpoint's id.
func (c *Compiler) endpoint(ep entity.Endpoint, side string, b Binder, r Resolver) (string, error) {
	if !ep.IsSet() {
		return "", fmt.Errorf("%w: %s", ErrNoEndpoint, side)
	}
	if id := ep.ServerID(); id != nil {
		return b.Bind(id), nil
	}
	if ep.Entity.IsEdge() {
		return "", fmt.Errorf("%w: %s is %s", ErrInvalidEndpoint, side, ep.Entity)
	}
	if r == nil {
		return "", fmt.Errorf("%w: %s is unsaved and nothing can save it", ErrNoEndpoint, side)
	}
	v, err := r.Resolve(ep.Entity)
	if err != nil {
		return "", err
	}
	return v + ".id()", nil
}

func (c *Compiler) createVertex(e *entity.Entity, sc StatementContext, b Binder) string {
	sb := pool.GetStringBuilder()
	defer pool.PutStringBuilder(sb)
	sb.WriteString(c.Graph)
	sb.WriteString(".addV(")
	sb.WriteString(sc.Label)
	sb.WriteByte(')')
	for _, f := range persisted(e) {
		if f.Len() == 0 {
			continue
		}
		writeProperty(sb, f, false, b)
	}
	sb.WriteString(".next()")
	return sb.String()
}

func (c *Compiler) createEdge(e *entity.Entity, sc StatementContext, b Binder) string {
	sb := pool.GetStringBuilder()
	defer pool.PutStringBuilder(sb)
	fmt.Fprintf(sb, "%s.V(%s).addE(%s).to(__.V(%s))", c.Graph, sc.Out, sc.Label, sc.In)
	for _, f := range persisted(e) {
		if f.Len() == 0 {
			continue
		}
		writeProperty(sb, f, true, b)
	}
	sb.WriteString(".next()")
	return sb.String()
}

func (c *Compiler) update(e *entity.Entity, b Binder) (Fragment, error) {
	changed := e.Changed()
	deleted := e.Deleted()
	writes := make([]*field.Field, 0, len(changed))
	for _, name := range changed {
		if entity.IsSystemField(name) {
			continue
		}
		if f, ok := e.Fields().Field(name); ok {
			writes = append(writes, f)
		}
	}
	if len(writes) == 0 && len(deleted) == 0 {
		return c.Fetch(e, b)
	}
	// counters move whenever the element is written
	for _, f := range persisted(e) {
		if f.Kind() == field.KindIncrement && !contains(writes, f) {
			writes = append(writes, f)
		}
	}

	letter, id, _ := e.GetRep()
	sb := pool.GetStringBuilder()
	defer pool.PutStringBuilder(sb)
	fmt.Fprintf(sb, "%s.%s(%s)", c.Graph, letter, b.Bind(id))
	for _, f := range writes {
		if e.IsEdge() {
			writeProperty(sb, f, true, b)
			continue
		}
		if f.Store().MaxValues() == 1 {
			writeSingle(sb, f, b)
			continue
		}
		sb.WriteString(".sideEffect(__.properties(")
		sb.WriteString(Quote(f.Name()))
		sb.WriteString(").drop())")
		writeProperty(sb, f, false, b)
	}
	for i, name := range deleted {
		if entity.IsSystemField(name) {
			continue
		}
		alias := Quote(fmt.Sprintf("gizmo_alias_%d", i+1))
		fmt.Fprintf(sb, ".as(%s).sideEffect(__.properties(%s).drop()).select(%s)", alias, Quote(name), alias)
	}
	sb.WriteString(".next()")
	return Fragment{Script: sb.String(), Op: OpUpdate}, nil
}

// writeProperty emits one property step per value. Vertex fields that may
// hold several values use list cardinality; edges carry plain key/value
// properties without meta-properties.
func writeProperty(sb *pool.PooledStringBuilder, f *field.Field, edge bool, b Binder) {
	entries := f.WireEntries()
	if edge {
		if len(entries) > 0 {
			fmt.Fprintf(sb, ".property(%s, %s)", Quote(f.Name()), value(entries[0].Raw, b))
		}
		return
	}
	card := ""
	if f.Store().MaxValues() != 1 {
		card = "list, "
	}
	for _, v := range entries {
		fmt.Fprintf(sb, ".property(%s%s, %s%s)", card, Quote(f.Name()), value(v.Raw, b), keyValues(v.Properties, b))
	}
}

func writeSingle(sb *pool.PooledStringBuilder, f *field.Field, b Binder) {
	entries := f.WireEntries()
	if len(entries) == 0 {
		return
	}
	v := entries[0]
	fmt.Fprintf(sb, ".property(single, %s, %s%s)", Quote(f.Name()), value(v.Raw, b), keyValues(v.Properties, b))
}

// persisted returns the fields written as properties, in declaration order.
func persisted(e *entity.Entity) []*field.Field {
	names := e.Fields().Names()
	out := make([]*field.Field, 0, len(names))
	for _, name := range names {
		if entity.IsSystemField(name) {
			continue
		}
		f, _ := e.Fields().Field(name)
		if f.Persisted() {
			out = append(out, f)
		}
	}
	return out
}

func contains(fields []*field.Field, f *field.Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
