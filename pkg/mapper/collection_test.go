package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/gizmo/pkg/entity"
	"github.com/orneryd/gizmo/pkg/field"
)

func TestCollection_LazyAndCached(t *testing.T) {
	rows := []any{
		translate(vertexReply("1", "vertex", map[string]any{"name": "a"})),
		translate(map[string]any{
			"id": "e", "label": "knows", "type": "edge", "outV": "1", "inV": "2",
			"properties": map[string]any{"weight": 0.5},
		}),
		true,
	}
	c := newCollection(entity.NewRegistry(), rows, nil)
	assert.Equal(t, 3, c.Len())
	assert.Empty(t, c.cache)

	first := c.Get(0)
	require.NotNil(t, first)
	assert.Same(t, first, c.First())
	assert.Len(t, c.cache, 1)
	assert.Equal(t, "a", first.Get("name"))

	edge := c.Get(1)
	require.True(t, edge.IsEdge())
	assert.Equal(t, "1", edge.OutV().ID)
	assert.Equal(t, "2", edge.InV().ID)
	assert.Equal(t, 0.5, edge.Get("weight"))

	assert.Equal(t, "true", c.Last().Get(ResponseKey))
	assert.Nil(t, c.Get(-1))
}

func TestCollection_WireRepresentation(t *testing.T) {
	reg := entity.NewRegistry()
	flagged := &entity.Type{
		Name: "Flagged",
		Kind: entity.KindVertex,
		Fields: []*field.Spec{
			field.Boolean("active").Single().Descriptor(),
		},
	}
	reg.MustRegister(flagged)
	row := translate(vertexReply("4", "flagged", map[string]any{
		"active":                  true,
		entity.FieldDiscriminator: "Flagged",
	}))

	e := newCollection(reg, []any{row}, nil).First()
	require.NotNil(t, e)
	assert.Equal(t, flagged, e.Type())
	assert.Equal(t, "true", e.Get("active"))
	assert.False(t, e.Dirty())

	e.SetRepresentation(field.Native)
	assert.Equal(t, true, e.Get("active"))
}

func TestTranslate_ElementWithoutLabel(t *testing.T) {
	out := translate(map[string]any{
		"id":         "7",
		"properties": map[string]any{"name": []any{map[string]any{"value": "mark"}}},
	}).(map[string]any)
	assert.Equal(t, field.Values{{Raw: "mark"}}, out["name"])
	assert.NotContains(t, out, "properties")

	plain := translate(map[string]any{"id": "7", "count": int64(2)}).(map[string]any)
	assert.Equal(t, map[string]any{"id": "7", "count": int64(2)}, plain)
}

func TestCollection_Cursor(t *testing.T) {
	c := newCollection(entity.NewRegistry(), []any{"a", "b"}, nil)

	var seen []any
	for e, ok := c.Next(); ok; e, ok = c.Next() {
		seen = append(seen, e.Get(ResponseKey))
	}
	assert.Equal(t, []any{"a", "b"}, seen)

	_, ok := c.Next()
	assert.False(t, ok)
	c.Reset()
	e, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, "a", e.Get(ResponseKey))
}

func TestCollection_KnownEntities(t *testing.T) {
	v := entity.New(entity.GenericVertex, field.Native)
	c := newCollection(entity.NewRegistry(), []any{map[string]any{"id": "1"}}, map[int]*entity.Entity{0: v})
	assert.Same(t, v, c.Get(0))
	assert.Equal(t, []*entity.Entity{v}, c.Entities())
}

func TestTranslate_MetaProperties(t *testing.T) {
	out := translate(map[string]any{
		"id": "1", "label": "person", "type": "vertex",
		"properties": map[string]any{
			"name": []any{
				map[string]any{"id": "p1", "value": "mark", "properties": map[string]any{"since": 2010}},
				map[string]any{"id": "p2", "value": "marko"},
			},
		},
	}).(map[string]any)

	vals, ok := out["name"].(field.Values)
	require.True(t, ok)
	require.Len(t, vals, 2)
	assert.Equal(t, "mark", vals[0].Raw)
	assert.Equal(t, map[string]any{"since": 2010}, vals[0].Properties)
	assert.Equal(t, "marko", vals[1].Raw)
	assert.NotContains(t, out, "properties")
}
