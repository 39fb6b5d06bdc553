package rt

import "unsafe"

// Raw -> safe.

// Handle reinterprets a non-null host pointer as its mirror type.
func Handle[T any](p unsafe.Pointer) *T { return (*T)(p) }

// HandleRef is Handle for shared references.
func HandleRef[T any](p unsafe.Pointer) Ref[T] { return Ref[T]{p: (*T)(p)} }

// Erased casts an untyped host pointer to *T. A null pointer is a host
// contract violation.
func Erased[T any](p unsafe.Pointer, param string) *T {
	if p == nil {
		panic(&ContractViolation{Param: param, Reason: "null pointer for non-optional argument"})
	}
	return (*T)(p)
}

// ErasedRef is Erased for shared references.
func ErasedRef[T any](p unsafe.Pointer, param string) Ref[T] {
	return Ref[T]{p: Erased[T](p, param)}
}

// TryErased casts an untyped host pointer to *T and reports false for null.
func TryErased[T any](p unsafe.Pointer) (*T, bool) {
	return (*T)(p), p != nil
}

// TryErasedRef is TryErased for shared references.
func TryErasedRef[T any](p unsafe.Pointer) (Ref[T], bool) {
	return Ref[T]{p: (*T)(p)}, p != nil
}

// Optional maps null to None and anything else to Some.
func Optional[T any](p unsafe.Pointer) Option[*T] {
	if p == nil {
		return None[*T]()
	}
	return Some((*T)(p))
}

// OptionalRef is Optional for shared references.
func OptionalRef[T any](p unsafe.Pointer) Option[Ref[T]] {
	if p == nil {
		return None[Ref[T]]()
	}
	return Some(Ref[T]{p: (*T)(p)})
}

// Safe -> raw.

// Ptr returns the address behind v.
func Ptr[T any](v *T) unsafe.Pointer { return unsafe.Pointer(v) }

// RefPtr returns the address behind r.
func RefPtr[T any](r Ref[T]) unsafe.Pointer { return unsafe.Pointer(r.p) }

// OptionPtr maps None to null.
func OptionPtr[T any](o Option[*T]) unsafe.Pointer {
	if v, ok := o.Get(); ok {
		return unsafe.Pointer(v)
	}
	return nil
}

// OptionRefPtr maps None to null.
func OptionRefPtr[T any](o Option[Ref[T]]) unsafe.Pointer {
	if r, ok := o.Get(); ok {
		return unsafe.Pointer(r.p)
	}
	return nil
}

// Exclusive panics with a ContractViolation when two of the given mutable
// argument pointers alias.
func Exclusive(params []string, ptrs ...unsafe.Pointer) {
	for i := 0; i < len(ptrs); i++ {
		if ptrs[i] == nil {
			continue
		}
		for j := i + 1; j < len(ptrs); j++ {
			if ptrs[i] == ptrs[j] {
				panic(&ContractViolation{
					Param:  params[j],
					Reason: "mutable argument aliases " + params[i],
				})
			}
		}
	}
}
