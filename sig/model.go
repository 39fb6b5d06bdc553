// Package sig is the signature model: a small, closed description of a
// function-like declaration that the classifier and the generators work on
// instead of a general Go syntax tree.
package sig

import (
	"go/token"
	"strings"
)

// DeclKind tells which generator a declaration is meant for.
type DeclKind int

const (
	// Handler declarations are Go funcs exported to the host with an integer status result.
	Handler DeclKind = iota
	// Setter declarations are exported like handlers but return the configuration status word.
	Setter
	// Callback declarations are Go func types describing a host function pointer.
	Callback
)

func (k DeclKind) String() string {
	switch k {
	case Handler:
		return "handler"
	case Setter:
		return "setter"
	case Callback:
		return "callback"
	}
	return "unknown"
}

// ParamSpec describes one declared parameter.
type ParamSpec struct {
	Name string
	// Type is the parameter type as declared.
	Type TypeExpr
	// Elem is the referenced type for by-ref parameters (T in *T, rt.Ref[T],
	// rt.Option[*T]) and equal to Type otherwise.
	Elem TypeExpr
	// BaseTypeName is the unqualified name of Elem, empty when Elem is not named.
	BaseTypeName string

	IsOptional bool
	IsByRef    bool
	IsMutable  bool

	Pos token.Position
}

// ReturnKind is the shape of a declared result list.
type ReturnKind int

const (
	ReturnNone ReturnKind = iota
	ReturnPlain
	ReturnOutcome
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnNone:
		return "none"
	case ReturnPlain:
		return "plain"
	case ReturnOutcome:
		return "outcome"
	}
	return "unknown"
}

// ReturnSpec describes the declared results.
type ReturnSpec struct {
	Kind ReturnKind
	// Type is set for ReturnPlain.
	Type TypeExpr
	// Ok is the success payload of an outcome; nil means unit.
	Ok TypeExpr
	// Err is the failure payload of an outcome.
	Err TypeExpr

	Pos token.Position
}

// UnitOk reports whether an outcome carries no success payload.
func (r ReturnSpec) UnitOk() bool {
	return r.Kind == ReturnOutcome && r.Ok == nil
}

// ErrIsInterface reports whether the outcome's error is the predeclared error interface.
func (r ReturnSpec) ErrIsInterface() bool {
	n, ok := r.Err.(Named)
	return ok && n.Pkg == "" && n.Name == "error"
}

func (r ReturnSpec) String() string {
	switch r.Kind {
	case ReturnPlain:
		return r.Type.String()
	case ReturnOutcome:
		if r.Ok == nil {
			return r.Err.String()
		}
		return "(" + r.Ok.String() + ", " + r.Err.String() + ")"
	}
	return ""
}

// SignatureModel is the normalized signature of a declaration.
type SignatureModel struct {
	Params []ParamSpec
	Return ReturnSpec
}

func (s SignatureModel) String() string {
	var b strings.Builder
	b.WriteString("func(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteByte(' ')
		b.WriteString(p.Type.String())
	}
	b.WriteByte(')')
	if r := s.Return.String(); r != "" {
		b.WriteByte(' ')
		b.WriteString(r)
	}
	return b.String()
}

// CallbackSuffix names a callback wrapper after its func type when no name
// option is given: BodyHandler → BodyHandlerPtr.
const CallbackSuffix = "Ptr"

// Decl is an annotated declaration ready for classification.
type Decl struct {
	Kind DeclKind
	// Name is the declared Go identifier.
	Name string
	// Symbol is the exported symbol (handlers, setters) or wrapper type name
	// (callbacks): the name option when given, otherwise DefaultSymbol(Name),
	// or Name plus CallbackSuffix for callbacks.
	Symbol string
	// LogErr is the logger expression from the log_err option, empty when absent.
	LogErr string

	Signature SignatureModel
	Package   string
	Pos       token.Position
}
