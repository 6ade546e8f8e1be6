package mapper

import (
	"github.com/orneryd/gizmo/pkg/entity"
	"github.com/orneryd/gizmo/pkg/field"
)

// ResponseKey holds a scalar reply row when it is turned into an entity.
const ResponseKey = "response"

// Collection is a lazily materialised view over reply rows. Entities are
// built on first access and cached, so repeated reads return the same
// instance. A Collection is not safe for concurrent use.
type Collection struct {
	registry *entity.Registry
	rows     []any
	cache    map[int]*entity.Entity
	cursor   int
}

func newCollection(reg *entity.Registry, rows []any, known map[int]*entity.Entity) *Collection {
	c := &Collection{registry: reg, rows: rows, cache: make(map[int]*entity.Entity, len(known))}
	for i, e := range known {
		c.cache[i] = e
	}
	return c
}

// Len returns the number of rows.
func (c *Collection) Len() int { return len(c.rows) }

// Rows returns the raw rows.
func (c *Collection) Rows() []any { return c.rows }

// Get returns the entity for row i, or nil when i is out of range.
func (c *Collection) Get(i int) *entity.Entity {
	if i < 0 || i >= len(c.rows) {
		return nil
	}
	if e, ok := c.cache[i]; ok {
		return e
	}
	e := c.materialize(c.rows[i])
	c.cache[i] = e
	return e
}

// First returns the entity for the first row, or nil.
func (c *Collection) First() *entity.Entity { return c.Get(0) }

// Last returns the entity for the last row, or nil.
func (c *Collection) Last() *entity.Entity { return c.Get(len(c.rows) - 1) }

// Next advances the cursor and returns the entity under it.
func (c *Collection) Next() (*entity.Entity, bool) {
	if c.cursor >= len(c.rows) {
		return nil, false
	}
	e := c.Get(c.cursor)
	c.cursor++
	return e, true
}

// Reset rewinds the cursor used by Next.
func (c *Collection) Reset() { c.cursor = 0 }

// Entities materialises every row.
func (c *Collection) Entities() []*entity.Entity {
	out := make([]*entity.Entity, len(c.rows))
	for i := range c.rows {
		out[i] = c.Get(i)
	}
	return out
}

// materialize builds the entity for row in Wire representation, the form the
// server stored. SetRepresentation switches it to native values.
func (c *Collection) materialize(row any) *entity.Entity {
	data, ok := row.(map[string]any)
	if !ok {
		data = map[string]any{ResponseKey: row}
	}
	e := entity.Create(c.registry, data, nil, field.Wire)
	e.MarkClean()
	return e
}
