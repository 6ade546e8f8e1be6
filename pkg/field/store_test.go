package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Capacity
// ============================================================================

func TestStore_SingleOverwriteKeepsLast(t *testing.T) {
	s := NewStore(1, true)
	assert.True(t, s.Add("a", nil))
	assert.True(t, s.Add("b", nil))
	assert.True(t, s.Add("c", nil))

	require.Equal(t, 1, s.Len())
	assert.Equal(t, []any{"c"}, s.Raws())
	assert.Equal(t, 3, s.Attempts())
}

func TestStore_UnlimitedKeepsInsertionOrder(t *testing.T) {
	s := NewStore(0, false)
	s.Add("a", nil)
	s.Add("b", nil)
	s.Add("c", nil)

	assert.Equal(t, []any{"a", "b", "c"}, s.Raws())
}

func TestStore_FullWithoutOverwriteDrops(t *testing.T) {
	s := NewStore(2, false)
	assert.True(t, s.Add("a", nil))
	assert.True(t, s.Add("b", nil))
	assert.False(t, s.Add("c", nil))

	assert.Equal(t, []any{"a", "b"}, s.Raws())
	assert.Equal(t, 3, s.Attempts(), "dropped add still counts")
}

func TestStore_OverwriteReplacesProperties(t *testing.T) {
	s := NewStore(1, true)
	s.Add("a", map[string]any{"since": 1})
	s.Add("b", nil)

	vals := s.Values()
	require.Len(t, vals, 1)
	assert.Equal(t, "b", vals[0].Raw)
	assert.Nil(t, vals[0].Properties)
}

// ============================================================================
// Set / Delete
// ============================================================================

func TestStore_SetInPlace(t *testing.T) {
	s := NewStore(0, false)
	s.Add("a", nil)
	s.Add("b", nil)

	assert.True(t, s.Set("a", "z"))
	assert.Equal(t, []any{"z", "b"}, s.Raws())

	assert.False(t, s.Set("missing", "x"), "absent raw is a no-op")
	assert.Equal(t, []any{"z", "b"}, s.Raws())
}

func TestStore_DeleteMovesToDeleted(t *testing.T) {
	s := NewStore(0, false)
	s.Add("a", nil)
	s.Add("b", nil)
	s.Add("a", nil)
	s.ResetBaseline()

	assert.Equal(t, 2, s.Delete("a"))
	assert.Equal(t, []any{"b"}, s.Raws())

	c := s.Changes()
	assert.Len(t, c.Deleted, 2)
	assert.Empty(t, c.Added)
	assert.Empty(t, c.Changed)
}

func TestStore_SetProperties(t *testing.T) {
	s := NewStore(0, false)
	s.Add("a", nil)
	s.ResetBaseline()

	assert.True(t, s.SetProperties("a", map[string]any{"source": "import"}))
	c := s.Changes()
	require.Len(t, c.Changed, 1)
	assert.Nil(t, c.Changed[0].From.Properties)
	assert.Equal(t, map[string]any{"source": "import"}, c.Changed[0].To.Properties)
}

// ============================================================================
// Change tracking
// ============================================================================

func TestStore_ChangesSinceBaseline(t *testing.T) {
	s := NewStore(0, false)
	s.Add("a", nil)

	c := s.Changes()
	require.Len(t, c.Added, 1, "values without a baseline are added")
	assert.Equal(t, "a", c.Added[0].Raw)

	s.ResetBaseline()
	assert.True(t, s.Changes().Empty())

	s.Set("a", "b")
	c = s.Changes()
	require.Len(t, c.Changed, 1)
	assert.Equal(t, "a", c.Changed[0].From.Raw)
	assert.Equal(t, "b", c.Changed[0].To.Raw)

	s.Delete("b")
	c = s.Changes()
	assert.Empty(t, c.Changed)
	require.Len(t, c.Deleted, 1)
	assert.Equal(t, "a", c.Deleted[0].Raw, "deleted values report their baseline raw")
}

func TestStore_AddThenDeleteCancels(t *testing.T) {
	s := NewStore(0, false)
	s.ResetBaseline()
	s.Add("tmp", nil)
	s.Delete("tmp")

	assert.True(t, s.Changes().Empty())
}

func TestStore_BaselineDoesNotAliasContainers(t *testing.T) {
	s := NewStore(0, false)
	m := map[string]any{"k": "v"}
	s.Add(m, nil)
	s.ResetBaseline()

	m["k"] = "changed"
	c := s.Changes()
	require.Len(t, c.Changed, 1)
	assert.Equal(t, map[string]any{"k": "v"}, c.Changed[0].From.Raw)
}

func TestStore_ReplaceKeepsMatchingBaseline(t *testing.T) {
	s := NewStore(0, false)
	s.Add("a", nil)
	s.Add("b", nil)
	s.ResetBaseline()

	s.Replace([]Value{{Raw: "b"}, {Raw: "c"}})
	assert.Equal(t, []any{"b", "c"}, s.Raws())

	c := s.Changes()
	require.Len(t, c.Added, 1)
	assert.Equal(t, "c", c.Added[0].Raw)
	require.Len(t, c.Deleted, 1)
	assert.Equal(t, "a", c.Deleted[0].Raw)
	assert.Empty(t, c.Changed)
}

func TestStore_ReplaceHonorsCapacity(t *testing.T) {
	s := NewStore(1, true)
	s.Replace([]Value{{Raw: "a"}, {Raw: "b"}})
	assert.Equal(t, []any{"b"}, s.Raws())
}
