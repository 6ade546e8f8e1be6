package field

// Spec describes one declared field of an entity type. Specs are static
// schema data; each entity gets its own Field from Spec.New.
type Spec struct {
	name          string
	kind          Kind
	maxValues     int
	overwriteLast bool
	immutable     bool
	def           any
	defFn         func() any
	allowed       []any
	sources       []string
	mirror        MirrorFunc
}

// Name returns the field name.
func (s *Spec) Name() string { return s.name }

// Kind returns the field kind.
func (s *Spec) Kind() Kind { return s.kind }

// New creates a field from s, seeded with its default when one applies.
//
// Enum fields always start at their default, or at the first allowed member
// when the default is missing or not allowed. Increment fields start at 0 and
// timestamp fields at the current time unless another default is given.
func (s *Spec) New() *Field {
	f := New(s.name, s.kind, s.maxValues, s.overwriteLast)
	f.immutable = s.immutable
	f.allowed = s.allowed
	f.sources = s.sources
	f.mirror = s.mirror

	var seed any
	switch {
	case s.defFn != nil:
		seed = s.defFn()
	case s.def != nil:
		seed = s.def
	case s.kind == KindIncrement:
		seed = int64(0)
	case s.kind == KindTimestamp:
		seed = zero(KindTimestamp)
	}
	if s.kind == KindEnum {
		if seed == nil || !f.isAllowed(seed) {
			seed = f.defaultValue()
		}
	}
	if seed != nil {
		// seeding is not an external write; immutable fields stay open
		if raw, ok := f.accept(seed); ok {
			f.store.Add(raw, nil)
		}
	}
	return f
}

// Builder configures a Spec.
type Builder struct {
	spec *Spec
}

func newBuilder(name string, kind Kind) *Builder {
	return &Builder{spec: &Spec{name: name, kind: kind}}
}

// String declares a string field.
func String(name string) *Builder { return newBuilder(name, KindString) }

// Integer declares an int64 field.
func Integer(name string) *Builder { return newBuilder(name, KindInteger) }

// Float declares a float64 field.
func Float(name string) *Builder { return newBuilder(name, KindFloat) }

// Boolean declares a boolean field.
func Boolean(name string) *Builder { return newBuilder(name, KindBoolean) }

// Map declares a map field. JSON object strings are decoded on write.
func Map(name string) *Builder { return newBuilder(name, KindMap) }

// List declares a list field. JSON array strings are decoded on write.
func List(name string) *Builder { return newBuilder(name, KindList) }

// Enum declares a field restricted to the members passed to Values.
func Enum(name string) *Builder { return newBuilder(name, KindEnum) }

// Increment declares a counter that grows by one every time it is sent.
func Increment(name string) *Builder { return newBuilder(name, KindIncrement) }

// Timestamp declares a single-valued time field stored as epoch seconds.
func Timestamp(name string) *Builder { return newBuilder(name, KindTimestamp) }

// Any declares a field that stores values without coercion.
func Any(name string) *Builder { return newBuilder(name, KindAny) }

// Mirror declares a read-only field computed from sibling fields.
func Mirror(name string, fn MirrorFunc, sources ...string) *Builder {
	b := newBuilder(name, KindMirror)
	b.spec.mirror = fn
	b.spec.sources = sources
	return b
}

// Max limits the number of values the field holds.
func (b *Builder) Max(n int) *Builder {
	if b.spec.kind != KindTimestamp {
		b.spec.maxValues = n
	}
	return b
}

// OverwriteLast makes a full field replace its last value on add.
func (b *Builder) OverwriteLast() *Builder {
	b.spec.overwriteLast = true
	return b
}

// Single is shorthand for Max(1).OverwriteLast().
func (b *Builder) Single() *Builder {
	return b.Max(1).OverwriteLast()
}

// Immutable makes the field accept a single external write.
func (b *Builder) Immutable() *Builder {
	b.spec.immutable = true
	return b
}

// Default seeds new fields with v.
func (b *Builder) Default(v any) *Builder {
	b.spec.def = v
	return b
}

// DefaultFunc seeds new fields with the result of fn.
func (b *Builder) DefaultFunc(fn func() any) *Builder {
	b.spec.defFn = fn
	return b
}

// Values sets the allowed members of an enum field. The first member is the
// fallback for invalid input.
func (b *Builder) Values(members ...any) *Builder {
	b.spec.allowed = members
	return b
}

// Descriptor returns the built spec.
func (b *Builder) Descriptor() *Spec {
	return b.spec
}
