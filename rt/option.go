package rt

// Option is an optional value. The zero Option is None.
type Option[T any] struct {
	v  T
	ok bool
}

// Some returns an Option holding v.
func Some[T any](v T) Option[T] { return Option[T]{v: v, ok: true} }

// None returns an empty Option.
func None[T any]() Option[T] { return Option[T]{} }

func (o Option[T]) IsSome() bool { return o.ok }
func (o Option[T]) IsNone() bool { return !o.ok }

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) { return o.v, o.ok }

// Unwrap returns the value and panics on None.
func (o Option[T]) Unwrap() T {
	if !o.ok {
		panic("rt: Unwrap on None")
	}
	return o.v
}

// OrElse returns the value or def.
func (o Option[T]) OrElse(def T) T {
	if o.ok {
		return o.v
	}
	return def
}

// Ref is a shared, read-only reference. The callee must not write through it.
type Ref[T any] struct {
	p *T
}

// RefOf wraps p.
func RefOf[T any](p *T) Ref[T] { return Ref[T]{p: p} }

// Get returns the referenced value's address for reading.
func (r Ref[T]) Get() *T { return r.p }

// IsNil reports whether r references nothing.
func (r Ref[T]) IsNil() bool { return r.p == nil }
