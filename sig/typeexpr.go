package sig

import "strings"

// TypeExpr is the closed set of type shapes the generator understands:
// Named, Pointer, Instance and Composite.
type TypeExpr interface {
	String() string
	typeExpr()
}

// Named is a possibly package-qualified type name.
type Named struct {
	// Pkg is the package selector as written ("C", "http"); empty for local names.
	Pkg string
	// Path is the import path behind Pkg; empty for local names and for C.
	Path string
	Name string
}

// Pointer is *Elem.
type Pointer struct {
	Elem TypeExpr
}

// Instance is a generic instantiation such as rt.Option[*T].
type Instance struct {
	Base Named
	Args []TypeExpr
}

// Composite is any type literal (slice, map, chan, func, struct, interface,
// array). It is kept as text only.
type Composite struct {
	Kind string
	Text string
}

func (Named) typeExpr()     {}
func (Pointer) typeExpr()   {}
func (Instance) typeExpr()  {}
func (Composite) typeExpr() {}

func (n Named) String() string {
	if n.Pkg != "" {
		return n.Pkg + "." + n.Name
	}
	return n.Name
}

// IsC reports whether n names a cgo type.
func (n Named) IsC() bool { return n.Pkg == "C" }

func (p Pointer) String() string { return "*" + p.Elem.String() }

func (i Instance) String() string {
	args := make([]string, len(i.Args))
	for j, a := range i.Args {
		args[j] = a.String()
	}
	return i.Base.String() + "[" + strings.Join(args, ", ") + "]"
}

func (c Composite) String() string { return c.Text }

// IsUnit reports whether c is the empty struct.
func (c Composite) IsUnit() bool {
	return c.Kind == "struct" && strings.ReplaceAll(c.Text, " ", "") == "struct{}"
}

// Visitor dispatches over the closed TypeExpr set.
type Visitor[R any] interface {
	VisitNamed(Named) R
	VisitPointer(Pointer) R
	VisitInstance(Instance) R
	VisitComposite(Composite) R
}

// Visit calls the Visitor method matching t.
func Visit[R any](t TypeExpr, v Visitor[R]) R {
	switch t := t.(type) {
	case Named:
		return v.VisitNamed(t)
	case Pointer:
		return v.VisitPointer(t)
	case Instance:
		return v.VisitInstance(t)
	case Composite:
		return v.VisitComposite(t)
	}
	panic("sig: unknown TypeExpr")
}

// BaseName returns the unqualified name of t when t is Named, "" otherwise.
func BaseName(t TypeExpr) string {
	if n, ok := t.(Named); ok {
		return n.Name
	}
	return ""
}

// isGeneric reports whether t is an instantiation of a type whose last name is name
// with exactly one type argument.
func isGeneric(t TypeExpr, name string) (TypeExpr, bool) {
	inst, ok := t.(Instance)
	if !ok || inst.Base.Name != name || len(inst.Args) != 1 {
		return nil, false
	}
	return inst.Args[0], true
}

// IsOptionType reports whether t is spelled Option[X] with one argument.
func IsOptionType(t TypeExpr) bool {
	_, ok := isGeneric(t, "Option")
	return ok
}

// IsRefType reports whether t is spelled Ref[X] with one argument.
func IsRefType(t TypeExpr) bool {
	_, ok := isGeneric(t, "Ref")
	return ok
}
