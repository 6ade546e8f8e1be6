package mapper

import (
	"context"
	"fmt"

	"github.com/orneryd/gizmo/pkg/entity"
	"github.com/orneryd/gizmo/pkg/query"
)

// Callback runs after the entity it was registered with has been flushed
// and hydrated.
type Callback func(e *entity.Entity)

// EntityMapper customises how one entity type is persisted. OnCreate and
// OnUpdate run after a successful flush of a save, chosen by whether the
// entity had an id when it was queued. Statements wrap the create fragment.
type EntityMapper interface {
	OnCreate(e *entity.Entity)
	OnUpdate(e *entity.Entity)
	OnDelete(e *entity.Entity)
	Statements(e *entity.Entity) []query.Statement
}

// Method is a named operation an entity mapper exposes through Invoke.
type Method func(ctx context.Context, m *Mapper, e *entity.Entity, args ...any) (any, error)

// Invoker is implemented by entity mappers that expose methods.
type Invoker interface {
	Method(name string) (Method, bool)
}

// Hooks is an EntityMapper assembled from optional parts. The zero value
// behaves like the generic mapper.
type Hooks struct {
	Create Callback
	Update Callback
	Delete Callback

	// UniqueFields turns vertex creates into get-or-create on these fields.
	// query.AllFields selects every persisted field.
	UniqueFields []string
	// UniqueEdge turns edge creates into get-or-create between the same
	// endpoints in this direction.
	UniqueEdge query.Direction
	// ErrorOnNonUnique fails the whole batch instead of reusing a match.
	ErrorOnNonUnique bool

	Methods map[string]Method
}

var _ EntityMapper = (*Hooks)(nil)

// OnCreate calls the Create callback when one is set.
func (h *Hooks) OnCreate(e *entity.Entity) {
	if h.Create != nil {
		h.Create(e)
	}
}

// OnUpdate calls the Update callback when one is set.
func (h *Hooks) OnUpdate(e *entity.Entity) {
	if h.Update != nil {
		h.Update(e)
	}
}

// OnDelete calls the Delete callback when one is set.
func (h *Hooks) OnDelete(e *entity.Entity) {
	if h.Delete != nil {
		h.Delete(e)
	}
}

// Statements returns the uniqueness guard matching the entity kind, if any.
func (h *Hooks) Statements(e *entity.Entity) []query.Statement {
	switch {
	case e.IsEdge() && h.UniqueEdge != "":
		return []query.Statement{query.UniqueEdge{Direction: h.UniqueEdge, ErrorOnNonUnique: h.ErrorOnNonUnique}}
	case !e.IsEdge() && len(h.UniqueFields) > 0:
		return []query.Statement{query.UniqueVertex{Fields: h.UniqueFields, ErrorOnNonUnique: h.ErrorOnNonUnique}}
	}
	return nil
}

// Method looks up a named method.
func (h *Hooks) Method(name string) (Method, bool) {
	fn, ok := h.Methods[name]
	return fn, ok
}

// GenericMapper handles every type without a registered mapper.
var GenericMapper EntityMapper = &Hooks{}

// Register binds an entity mapper to a type name. A later registration for
// the same name replaces the earlier one.
func (m *Mapper) Register(typeName string, em EntityMapper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappers[typeName] = em
}

// MapperFor returns the entity mapper for e's type, or the generic mapper.
func (m *Mapper) MapperFor(e *entity.Entity) EntityMapper {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mapperFor(e)
}

func (m *Mapper) mapperFor(e *entity.Entity) EntityMapper {
	if e != nil && e.Type() != nil {
		if em, ok := m.mappers[e.Type().Name]; ok {
			return em
		}
	}
	return GenericMapper
}

// Invoke calls a named method on the entity mapper responsible for e.
func (m *Mapper) Invoke(ctx context.Context, e *entity.Entity, method string, args ...any) (any, error) {
	inv, ok := m.MapperFor(e).(Invoker)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	fn, ok := inv.Method(method)
	if !ok || fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	return fn(ctx, m, e, args...)
}
