package marshal

import (
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/ngxgen/sig"
)

// TypeCode renders signature-model types as jennifer code. Types from the
// package being generated render unqualified; imported ones keep their path
// so the generated file imports them.
type TypeCode struct{}

func (TypeCode) VisitNamed(n sig.Named) jen.Code {
	switch {
	case n.Pkg == "":
		return jen.Id(n.Name)
	case n.IsC():
		return jen.Qual("C", n.Name)
	case n.Path != "":
		return jen.Qual(n.Path, n.Name)
	}
	return jen.Id(n.Pkg + "." + n.Name)
}

func (t TypeCode) VisitPointer(p sig.Pointer) jen.Code {
	return jen.Op("*").Add(sig.Visit[jen.Code](p.Elem, t))
}

func (t TypeCode) VisitInstance(i sig.Instance) jen.Code {
	args := make([]jen.Code, len(i.Args))
	for j, a := range i.Args {
		args[j] = sig.Visit[jen.Code](a, t)
	}
	return jen.Add(t.VisitNamed(i.Base)).Types(args...)
}

func (TypeCode) VisitComposite(c sig.Composite) jen.Code {
	return jen.Id(c.Text)
}

// Type renders t.
func Type(t sig.TypeExpr) jen.Code {
	return sig.Visit[jen.Code](t, TypeCode{})
}

// goCTypes spells Go basic types as C types of the same width.
var goCTypes = map[string]string{
	"int":     "intptr_t",
	"uint":    "uintptr_t",
	"uintptr": "uintptr_t",
	"int8":    "int8_t",
	"int16":   "int16_t",
	"int32":   "int32_t",
	"rune":    "int32_t",
	"int64":   "int64_t",
	"uint8":   "uint8_t",
	"byte":    "uint8_t",
	"uint16":  "uint16_t",
	"uint32":  "uint32_t",
	"uint64":  "uint64_t",
	"float32": "float",
	"float64": "double",
}

// cgoTypes are the predeclared types cgo accepts as they are.
var cgoTypes = map[string]bool{
	"bool": true, "string": true, "error": true, "complex64": true, "complex128": true,
}

// needsCType reports whether t is a named Go type that must cross the
// boundary as a C type. Predeclared types, C types, unsafe.Pointer and
// pointers cross as written.
func needsCType(t sig.TypeExpr) bool {
	n, ok := t.(sig.Named)
	if !ok || n.IsC() || (n.Pkg == "unsafe" && n.Name == "Pointer") {
		return false
	}
	if n.Pkg == "" {
		_, basic := goCTypes[n.Name]
		return !basic && !cgoTypes[n.Name]
	}
	return true
}

// cSpelling describes how a raw Go type reaches C.
type cSpelling struct {
	// Type is the C declaration spelling ("void *", "ngx_str_t *", "int32_t").
	Type string
	// Convert names the C type the Go value must be converted to before the
	// call, empty when cgo already sees the right type.
	Convert string
}

// cTypeOf spells a raw Go type in C. ok is false when no mapping is known.
func (tb *Table) cTypeOf(t sig.TypeExpr) (cSpelling, bool) {
	switch v := t.(type) {
	case sig.Named:
		switch {
		case v.IsC():
			return cSpelling{Type: v.Name}, true
		case v.Pkg == "unsafe" && v.Name == "Pointer":
			return cSpelling{Type: "void *"}, true
		case v.Pkg == "":
			if c, ok := goCTypes[v.Name]; ok {
				return cSpelling{Type: c, Convert: c}, true
			}
		}
		if c, ok := tb.lookupCType(v); ok {
			return cSpelling{Type: c, Convert: c}, true
		}
	case sig.Pointer:
		if n, ok := v.Elem.(sig.Named); ok && n.IsC() {
			return cSpelling{Type: n.Name + " *"}, true
		}
	}
	return cSpelling{}, false
}

func (tb *Table) lookupCType(n sig.Named) (string, bool) {
	if c, ok := tb.CTypes[n.String()]; ok {
		return strings.TrimPrefix(c, "C."), true
	}
	if c, ok := tb.CTypes[n.Name]; ok {
		return strings.TrimPrefix(c, "C."), true
	}
	return "", false
}
