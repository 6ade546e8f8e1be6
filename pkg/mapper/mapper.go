// Package mapper implements the unit of work that batches entity changes into
// one Gremlin script, sends it in a single round trip and hydrates the
// entities from the reply.
//
// Saving an entity compiles its pending changes into a fragment assigned to
// a script variable. Unsaved edge endpoints are saved first, in the same
// batch, and referenced through their variables. Values never appear in the
// script text; they travel as bindings. Flush joins the fragments, closes the
// script with a map of every variable, and hydrates each entity from its
// entry in that map before running hooks and callbacks.
//
// Example:
//
//	m := mapper.New(client, mapper.WithLogger(log))
//	mark := m.Create(map[string]any{"name": "mark"}, Person)
//	knows, _ := m.Connect(mark, "42", "knows", nil, nil)
//	_ = m.Save(knows)
//	if _, err := m.Flush(ctx); err != nil { ... }
//
// A Mapper is safe for concurrent use; entities are not, and must not be
// modified while a flush holding them is in flight.
package mapper

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orneryd/gizmo/pkg/entity"
	"github.com/orneryd/gizmo/pkg/field"
	"github.com/orneryd/gizmo/pkg/journal"
	"github.com/orneryd/gizmo/pkg/metrics"
	"github.com/orneryd/gizmo/pkg/query"
)

// Transport executes a script with its bindings and returns the reply rows.
type Transport interface {
	Execute(ctx context.Context, script string, params map[string]any) ([]any, error)
}

// Journal records flushed batches.
type Journal interface {
	Record(b *journal.Batch) error
}

type hook int

const (
	hookCreate hook = iota
	hookUpdate
	hookDelete
)

// pendingOp is one queued fragment.
type pendingOp struct {
	entity    *entity.Entity
	variable  string
	fragment  query.Fragment
	hook      hook
	callbacks []Callback
}

// counterSnapshot holds increment raws of an entity from before its compile,
// which bumps them.
type counterSnapshot struct {
	entity *entity.Entity
	raws   map[string][]any
}

// Mapper is the unit of work.
type Mapper struct {
	mu         sync.Mutex
	transport  Transport
	compiler   *query.Compiler
	registry   *entity.Registry
	mappers    map[string]EntityMapper
	autoCommit bool
	log        *zap.Logger
	metrics    *metrics.Metrics
	journal    Journal

	flushing   bool
	pending    []*pendingOp
	saved      map[*entity.Entity]*pendingOp
	dropped    map[*entity.Entity]*pendingOp
	params     map[string]any
	paramOrder []string
	counters   []counterSnapshot
	varSeq     int
	paramSeq   int
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(m *Mapper) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics records flush metrics on mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Mapper) { m.metrics = mt }
}

// WithRegistry resolves discriminators against reg instead of the default
// registry.
func WithRegistry(reg *entity.Registry) Option {
	return func(m *Mapper) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// WithAutoCommit controls whether the server commits on its own. When false
// every batch ends with an explicit transaction commit.
func WithAutoCommit(on bool) Option {
	return func(m *Mapper) { m.autoCommit = on }
}

// WithGraph sets the traversal source variable.
func WithGraph(graph string) Option {
	return func(m *Mapper) { m.compiler = query.NewCompiler(graph) }
}

// WithJournal records every flushed batch in j.
func WithJournal(j Journal) Option {
	return func(m *Mapper) { m.journal = j }
}

// New creates a Mapper sending batches through t.
func New(t Transport, opts ...Option) *Mapper {
	m := &Mapper{
		transport:  t,
		compiler:   query.NewCompiler("g"),
		registry:   entity.DefaultRegistry,
		mappers:    make(map[string]EntityMapper),
		autoCommit: true,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resetScratch()
	return m
}

// Registry returns the type registry used for hydration.
func (m *Mapper) Registry() *entity.Registry { return m.registry }

// Create builds an unsaved entity from data. Without a type the discriminator
// in data, then the kind hint, decides.
func (m *Mapper) Create(data map[string]any, typ *entity.Type) *entity.Entity {
	return entity.Create(m.registry, data, typ, field.Native)
}

// Connect builds an unsaved edge from out to in. Endpoints may be entities or
// raw server ids; a nil type yields a generic edge.
func (m *Mapper) Connect(out, in any, label string, typ *entity.Type, data map[string]any) (*entity.Entity, error) {
	if typ == nil {
		typ = entity.GenericEdge
	}
	if typ.Kind != entity.KindEdge {
		return nil, fmt.Errorf("%w: %s is not an edge type", query.ErrSchema, typ.Name)
	}
	for i, ep := range []any{out, in} {
		if v, ok := ep.(*entity.Entity); ok && v.IsEdge() {
			return nil, fmt.Errorf("%w: %s is %s", query.ErrInvalidEndpoint, [2]string{"out", "in"}[i], v)
		}
	}
	e := entity.Create(m.registry, data, typ, field.Native)
	e.SetOutV(out)
	e.SetInV(in)
	if label != "" {
		e.Set(entity.FieldLabel, label)
	}
	return e, nil
}

// Save queues the pending state of e. An entity already queued in this batch
// is not compiled again; the callbacks are added to its queued save. Either
// every fragment the save needs is queued, endpoints included, or none is.
func (m *Mapper) Save(e *entity.Entity, callbacks ...Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flushing {
		return ErrFlushInProgress
	}
	sp := m.savepoint()
	op, err := m.save(e)
	if err != nil {
		m.rollback(sp)
		return err
	}
	op.callbacks = append(op.callbacks, callbacks...)
	return nil
}

// save compiles e unless it is already queued. Called with mu held.
func (m *Mapper) save(e *entity.Entity) (*pendingOp, error) {
	if e == nil || e.Type() == nil {
		return nil, query.ErrNoType
	}
	if op, ok := m.saved[e]; ok {
		return op, nil
	}
	h := hookUpdate
	if e.ID() == nil {
		h = hookCreate
	}
	if raws := e.Fields().Counters(); raws != nil {
		m.counters = append(m.counters, counterSnapshot{entity: e, raws: raws})
	}
	frag, err := m.compiler.Save(e, binder{m}, resolver{m}, m.mapperFor(e).Statements(e)...)
	if err != nil {
		return nil, err
	}
	m.varSeq++
	op := &pendingOp{
		entity:   e,
		variable: fmt.Sprintf("%s%d", varPrefix, m.varSeq),
		fragment: frag,
		hook:     h,
	}
	m.pending = append(m.pending, op)
	m.saved[e] = op
	m.metrics.Fragment(string(frag.Op))
	return op, nil
}

// Delete queues the removal of e. The entity must have an id. Deleting an
// entity already queued for removal only adds the callbacks.
func (m *Mapper) Delete(e *entity.Entity, callbacks ...Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flushing {
		return ErrFlushInProgress
	}
	if op, ok := m.dropped[e]; ok {
		op.callbacks = append(op.callbacks, callbacks...)
		return nil
	}
	sp := m.savepoint()
	frag, err := m.compiler.Delete(e, binder{m})
	if err != nil {
		m.rollback(sp)
		return err
	}
	op := &pendingOp{entity: e, fragment: frag, hook: hookDelete, callbacks: callbacks}
	m.pending = append(m.pending, op)
	m.dropped[e] = op
	m.metrics.Fragment(string(frag.Op))
	return nil
}

// Pending returns the number of queued fragments.
func (m *Mapper) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Script returns the script and bindings Flush would send now, without
// sending anything.
func (m *Mapper) Script() (string, map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assemble(), maps.Clone(m.params)
}

// Reset drops everything queued since the last flush. Counters bumped by the
// dropped saves get their previous values back.
func (m *Mapper) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flushing {
		return ErrFlushInProgress
	}
	m.rollback(savepoint{})
	m.resetScratch()
	return nil
}

func (m *Mapper) assemble() string {
	if len(m.pending) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.pending)+2)
	vars := make([]string, 0, len(m.saved))
	for _, op := range m.pending {
		if op.variable == "" {
			lines = append(lines, op.fragment.Script)
			continue
		}
		lines = append(lines, op.variable+" = "+op.fragment.Script)
		vars = append(vars, op.variable+": "+op.variable)
	}
	if !m.autoCommit {
		lines = append(lines, m.compiler.Graph+".tx().commit()")
	}
	if len(vars) > 0 {
		lines = append(lines, "["+strings.Join(vars, ", ")+"]")
	}
	return strings.Join(lines, ";\n")
}

type savepoint struct {
	pending  int
	params   int
	counters int
}

func (m *Mapper) savepoint() savepoint {
	return savepoint{pending: len(m.pending), params: len(m.paramOrder), counters: len(m.counters)}
}

func (m *Mapper) rollback(sp savepoint) {
	for _, op := range m.pending[sp.pending:] {
		if op.variable != "" {
			delete(m.saved, op.entity)
		} else {
			delete(m.dropped, op.entity)
		}
	}
	m.pending = m.pending[:sp.pending]
	for _, name := range m.paramOrder[sp.params:] {
		delete(m.params, name)
	}
	m.paramOrder = m.paramOrder[:sp.params]
	for i := len(m.counters) - 1; i >= sp.counters; i-- {
		m.counters[i].entity.Fields().RestoreCounters(m.counters[i].raws)
	}
	m.counters = m.counters[:sp.counters]
}

func (m *Mapper) resetScratch() {
	m.pending = nil
	m.saved = make(map[*entity.Entity]*pendingOp)
	m.dropped = make(map[*entity.Entity]*pendingOp)
	m.params = make(map[string]any)
	m.paramOrder = nil
	m.counters = nil
}

// bind stores v under a fresh parameter name. Called with mu held.
func (m *Mapper) bind(v any) string {
	m.paramSeq++
	name := fmt.Sprintf("gizmo_p_%d", m.paramSeq)
	m.params[name] = v
	m.paramOrder = append(m.paramOrder, name)
	return name
}

type binder struct{ m *Mapper }

func (b binder) Bind(v any) string { return b.m.bind(v) }

// resolver saves unsaved endpoints into the batch being built.
type resolver struct{ m *Mapper }

func (r resolver) Resolve(e *entity.Entity) (string, error) {
	op, err := r.m.save(e)
	if err != nil {
		return "", err
	}
	return op.variable, nil
}

// batch is the scratch state taken by a flush.
type batch struct {
	script string
	params map[string]any
	ops    []*pendingOp
	vars   map[string]*pendingOp
	order  []string
}

// take moves the scratch state into a batch. Called with mu held.
func (m *Mapper) take() *batch {
	b := &batch{
		script: m.assemble(),
		params: m.params,
		ops:    m.pending,
		vars:   make(map[string]*pendingOp, len(m.saved)),
	}
	for _, op := range m.pending {
		if op.variable != "" {
			b.vars[op.variable] = op
			b.order = append(b.order, op.variable)
		}
	}
	m.resetScratch()
	return b
}

// Flush sends every queued fragment as one script and hydrates the queued
// entities from the reply. The queue is emptied whatever the outcome. On
// error, or when ctx ends before the reply is applied, no entity is touched
// and no callback runs.
func (m *Mapper) Flush(ctx context.Context) (*Collection, error) {
	m.mu.Lock()
	if m.flushing {
		m.mu.Unlock()
		return nil, ErrFlushInProgress
	}
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return newCollection(m.registry, nil, nil), nil
	}
	b := m.take()
	m.flushing = true
	m.mu.Unlock()
	done := func() {
		m.mu.Lock()
		m.flushing = false
		m.mu.Unlock()
	}

	if ce := m.log.Check(zap.DebugLevel, "flushing batch"); ce != nil {
		ce.Write(zap.Int("fragments", len(b.ops)), zap.String("script", query.Debug(b.script, b.params)))
	}

	start := time.Now()
	rows, err := m.transport.Execute(ctx, b.script, b.params)
	if ctxErr := ctx.Err(); ctxErr != nil {
		done()
		m.finish(b, start, metrics.StatusCanceled, 0, ctxErr)
		return nil, fmt.Errorf("mapper: flush canceled: %w", ctxErr)
	}
	if err != nil {
		done()
		err = wrapTransport(err)
		m.log.Warn("flush failed", zap.Int("fragments", len(b.ops)), zap.Error(err))
		m.finish(b, start, metrics.StatusError, 0, err)
		return nil, err
	}

	coll, hydrated := m.hydrate(b, rows)
	done()
	// Hooks may queue follow-up work.
	m.runHooks(b, hydrated)
	m.finish(b, start, metrics.StatusOK, coll.Len(), nil)
	m.log.Debug("flushed batch",
		zap.Int("fragments", len(b.ops)),
		zap.Int("rows", coll.Len()),
		zap.Duration("duration", time.Since(start)))
	return coll, nil
}

// hydrate applies the reply to the batch entities. Variable maps are split
// into one row per variable so the collection lines up with the entities.
func (m *Mapper) hydrate(b *batch, raw []any) (*Collection, map[*entity.Entity]bool) {
	var (
		rows     []any
		known    = make(map[int]*entity.Entity)
		hydrated = make(map[*entity.Entity]bool)
	)
	for _, r := range raw {
		row := translate(r)
		vm, ok := isVarMap(row)
		if !ok {
			rows = append(rows, row)
			continue
		}
		for _, name := range sortedVars(vm) {
			data := vm[name]
			op, found := b.vars[name]
			el, isMap := data.(map[string]any)
			if !found || !isMap {
				m.log.Warn("cannot hydrate reply variable",
					zap.String("variable", name),
					zap.Bool("queued", found),
					zap.Error(ErrHydrationMismatch))
				m.metrics.HydrationMismatch()
				rows = append(rows, data)
				continue
			}
			op.entity.Hydrate(el, true)
			hydrated[op.entity] = true
			known[len(rows)] = op.entity
			rows = append(rows, data)
		}
	}
	return newCollection(m.registry, rows, known), hydrated
}

func (m *Mapper) runHooks(b *batch, hydrated map[*entity.Entity]bool) {
	for _, op := range b.ops {
		if op.hook != hookDelete && !hydrated[op.entity] {
			continue
		}
		em := m.MapperFor(op.entity)
		switch op.hook {
		case hookCreate:
			em.OnCreate(op.entity)
		case hookUpdate:
			em.OnUpdate(op.entity)
		case hookDelete:
			em.OnDelete(op.entity)
		}
		for _, cb := range op.callbacks {
			cb(op.entity)
		}
	}
}

func (m *Mapper) finish(b *batch, start time.Time, status string, rows int, err error) {
	d := time.Since(start)
	m.metrics.Flush(status, d)
	if m.journal == nil {
		return
	}
	rec := &journal.Batch{
		Script:    b.script,
		Params:    b.params,
		Variables: b.order,
		StartedAt: start,
		Duration:  d,
		Status:    status,
		Rows:      rows,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if jerr := m.journal.Record(rec); jerr != nil {
		m.log.Warn("journal record failed", zap.Error(jerr))
	}
}

// Query runs a raw script outside the unit of work. Nothing queued is sent
// and no entity is hydrated.
func (m *Mapper) Query(ctx context.Context, script string, params map[string]any) (*Collection, error) {
	rows, err := m.transport.Execute(ctx, script, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("mapper: query canceled: %w", ctx.Err())
		}
		return nil, wrapTransport(err)
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = translate(r)
	}
	return newCollection(m.registry, out, nil), nil
}
