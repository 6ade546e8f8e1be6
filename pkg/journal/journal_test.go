package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_RecordAndGet(t *testing.T) {
	j := openTest(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	b := &Batch{
		Script:    "gizmo_var_1 = g.addV(gizmo_p_1).next();\n[gizmo_var_1: gizmo_var_1]",
		Params:    map[string]any{"gizmo_p_1": "person"},
		Variables: []string{"gizmo_var_1"},
		StartedAt: started,
		Duration:  15 * time.Millisecond,
		Status:    "ok",
		Rows:      1,
	}
	require.NoError(t, j.Record(b))
	assert.Equal(t, uint64(1), b.Seq)

	got, err := j.Get(1)
	require.NoError(t, err)
	assert.Equal(t, b.Script, got.Script)
	assert.Equal(t, "person", got.Params["gizmo_p_1"])
	assert.Equal(t, []string{"gizmo_var_1"}, got.Variables)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, 15*time.Millisecond, got.Duration)
	assert.Equal(t, 1, got.Rows)
}

func TestJournal_GetMissing(t *testing.T) {
	j := openTest(t)
	_, err := j.Get(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournal_Iterate(t *testing.T) {
	j := openTest(t)
	for _, status := range []string{"ok", "error", "canceled"} {
		require.NoError(t, j.Record(&Batch{Script: "g.V()", Status: status}))
	}

	var forward []string
	require.NoError(t, j.Iterate(false, func(b *Batch) bool {
		forward = append(forward, b.Status)
		return true
	}))
	assert.Equal(t, []string{"ok", "error", "canceled"}, forward)

	var seqs []uint64
	require.NoError(t, j.Iterate(true, func(b *Batch) bool {
		seqs = append(seqs, b.Seq)
		return len(seqs) < 2
	}))
	assert.Equal(t, []uint64{3, 2}, seqs)
}

func TestJournal_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, j.Record(&Batch{Script: "g.V().count()", Status: "ok"}))
	require.NoError(t, j.Close())

	j, err = Open(Options{Dir: dir})
	require.NoError(t, err)
	defer j.Close()

	got, err := j.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "g.V().count()", got.Script)

	next := &Batch{Script: "g.E().count()"}
	require.NoError(t, j.Record(next))
	assert.Greater(t, next.Seq, uint64(1))
}
