package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/gizmo/pkg/entity"
	"github.com/orneryd/gizmo/pkg/field"
)

func TestUniqueVertex_WrapsCreate(t *testing.T) {
	c := NewCompiler("g")
	b := newTestBinder()
	v := entity.New(person, field.Native)
	v.Set("name", "mark")

	frag, err := c.Save(v, b, nil, UniqueVertex{Fields: []string{"name", "age"}})
	require.NoError(t, err)

	assert.Equal(t,
		"g.V().hasLabel(gizmo_p_1).has('name', gizmo_p_4).hasNot('age').tryNext().orElseGet{ "+
			"g.addV(gizmo_p_1).property('__gizmo_entity__', gizmo_p_2).property('name', gizmo_p_3).next() }",
		frag.Script)
	assert.Equal(t, OpCreate, frag.Op)
	assert.Equal(t, 4, b.n, "the label parameter is reused, not rebound")
}

func TestUniqueVertex_AllFieldsSkipsCounters(t *testing.T) {
	c := NewCompiler("g")
	b := newTestBinder()
	v := entity.New(counted, field.Native)
	v.Set("title", "home")

	frag, err := c.Save(v, b, nil, UniqueVertex{Fields: []string{AllFields}})
	require.NoError(t, err)

	lookup := frag.Script[:strings.Index(frag.Script, ".tryNext()")]
	assert.Contains(t, lookup, ".has('__gizmo_entity__', ")
	assert.Contains(t, lookup, ".has('title', ")
	assert.NotContains(t, lookup, "'views'")
	assert.Equal(t, int64(1), v.Get("views"), "counter bumped once by the create")
}

func TestUniqueVertex_ErrorOnNonUnique(t *testing.T) {
	c := NewCompiler("g")
	v := entity.New(person, field.Native)
	v.Set("name", "mark")

	frag, err := c.Save(v, newTestBinder(), nil, UniqueVertex{Fields: []string{"name"}, ErrorOnNonUnique: true})
	require.NoError(t, err)
	assert.Contains(t, frag.Script, ".tryNext().map{ throw new IllegalStateException('gizmo_non_unique') }.orElseGet{ g.addV(")
}

func TestUniqueVertex_RejectsEdges(t *testing.T) {
	e := entity.New(entity.GenericEdge, field.Native)
	e.SetOutV("1")
	e.SetInV("2")
	_, err := NewCompiler("g").Save(e, newTestBinder(), nil, UniqueVertex{Fields: []string{AllFields}})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestUniqueEdge_Directions(t *testing.T) {
	tests := []struct {
		dir    Direction
		lookup string
	}{
		{DirectionOut, "g.V(gizmo_p_1).outE(gizmo_p_3).where(__.inV().hasId(gizmo_p_2))"},
		{"", "g.V(gizmo_p_1).outE(gizmo_p_3).where(__.inV().hasId(gizmo_p_2))"},
		{DirectionIn, "g.V(gizmo_p_1).inE(gizmo_p_3).where(__.outV().hasId(gizmo_p_2))"},
		{DirectionBoth, "g.V(gizmo_p_1).bothE(gizmo_p_3).where(__.otherV().hasId(gizmo_p_2))"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			e := entity.New(entity.GenericEdge, field.Native)
			e.SetOutV("1")
			e.SetInV("2")
			frag, err := NewCompiler("g").Save(e, newTestBinder(), nil, UniqueEdge{Direction: tt.dir})
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(frag.Script, tt.lookup+".tryNext().orElseGet{ g.V(gizmo_p_1).addE(gizmo_p_3)"), frag.Script)
		})
	}
}

func TestUniqueEdge_Errors(t *testing.T) {
	e := entity.New(entity.GenericEdge, field.Native)
	e.SetOutV("1")
	e.SetInV("2")
	_, err := NewCompiler("g").Save(e, newTestBinder(), nil, UniqueEdge{Direction: "sideways"})
	assert.ErrorIs(t, err, ErrSchema)

	_, err = NewCompiler("g").Save(genericVertex(nil), newTestBinder(), nil, UniqueEdge{})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestStatementFunc(t *testing.T) {
	wrap := StatementFunc(func(sc StatementContext) (string, error) {
		return "[" + sc.Script + "]", nil
	})
	frag, err := NewCompiler("g").Save(genericVertex(nil), newTestBinder(), nil, wrap, wrap)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(frag.Script, "[[g.addV("))
}

// ============================================================================
// Literals
// ============================================================================

func TestQuote(t *testing.T) {
	assert.Equal(t, `'name'`, Quote("name"))
	assert.Equal(t, `'it\'s'`, Quote("it's"))
	assert.Equal(t, `'a\\b'`, Quote(`a\b`))
}

func TestDebug(t *testing.T) {
	params := map[string]any{
		"gizmo_p_1":  "it's",
		"gizmo_p_10": int64(10),
		"gizmo_p_2":  map[string]any{"k": []any{true, nil, 1.5}},
	}
	got := Debug("g.V(gizmo_p_1).has('x', gizmo_p_10).property('m', gizmo_p_2)", params)
	assert.Equal(t, `g.V('it\'s').has('x', 10).property('m', ['k': [true, null, 1.5]])`, got)

	assert.Equal(t, "g.V()", Debug("g.V()", nil))
}
