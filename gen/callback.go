package gen

import (
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/ngxgen/classify"
	"github.com/chazu/ngxgen/diag"
	"github.com/chazu/ngxgen/marshal"
	"github.com/chazu/ngxgen/sentinel"
	"github.com/chazu/ngxgen/sig"
)

// Wrapper is the generated safe wrapper around one host function pointer type.
type Wrapper struct {
	Decl *sig.Decl
	// Name is the wrapper struct type.
	Name string
	// RawFnType is the Go alias of the C function pointer type.
	RawFnType string
	// CTypedef and Trampoline are C source for the cgo preamble.
	CTypedef   string
	Trampoline string
	// Params are in declared order.
	Params []Param
	Plan   *sentinel.Plan

	typedefName    string
	trampolineName string
	recv           string
	log            jen.Code
	names          marshal.Names
}

// Callback builds the wrapper for a callback declaration.
func (g *Generator) Callback(d *sig.Decl) (*Wrapper, error) {
	if d.Kind != sig.Callback {
		return nil, diag.New(diag.KindMalformed).At(d.Pos).Decl(d.Name).
			Detail("%s declarations have no callback wrapper", d.Kind).Build()
	}
	if d.Symbol == d.Name {
		return nil, diag.New(diag.KindDuplicate).At(d.Pos).Decl(d.Name).
			Detail("wrapper name %s collides with the callback type itself", d.Symbol).Build()
	}

	plan, err := sentinel.New(d, g.Runtime())
	if err != nil {
		return nil, err
	}

	names := reserved(d)
	names[d.Symbol] = true
	recv := names.Fresh("cb")
	params, err := g.params(d, names)
	if err != nil {
		return nil, err
	}

	ctypes := make([]string, len(params))
	for i, p := range params {
		if p.Pair.CType == "" {
			return nil, diag.New(diag.KindNoCType).At(p.Spec.Pos).Decl(d.Name).
				Detail("parameter %s: no C type for %s; add it to [ctypes]", p.Spec.Name, p.Spec.Type).Build()
		}
		ctypes[i] = p.Pair.CType
	}

	w := &Wrapper{
		Decl:           d,
		Name:           d.Symbol,
		RawFnType:      marshal.RawTypeName(d.Symbol),
		Params:         params,
		Plan:           plan,
		typedefName:    marshal.CTypedefName(d.Symbol),
		trampolineName: marshal.TrampolineName(d.Symbol),
		recv:           recv,
		log:            g.logger(d),
		names:          names,
	}

	ret := "void"
	if plan.HasResult() {
		ret = "intptr_t"
	}
	w.CTypedef = fmt.Sprintf("typedef %s (*%s)(%s);", ret, w.typedefName, cParams(ctypes, false))
	w.Trampoline = trampoline(ret, w.typedefName, w.trampolineName, ctypes)

	log.Debugf("callback %s -> %s", d.Name, w.Name)
	return w, nil
}

// cParams spells a C parameter list; named lists use a0, a1, ...
func cParams(ctypes []string, named bool) string {
	if len(ctypes) == 0 {
		return "void"
	}
	parts := make([]string, len(ctypes))
	for i, c := range ctypes {
		if named {
			parts[i] = cDecl(c, fmt.Sprintf("a%d", i))
		} else {
			parts[i] = c
		}
	}
	return strings.Join(parts, ", ")
}

// cDecl joins a C type and a declarator: "void *" + "a0" → "void *a0".
func cDecl(ctype, name string) string {
	if strings.HasSuffix(ctype, "*") {
		return ctype + name
	}
	return ctype + " " + name
}

func trampoline(ret, typedef, name string, ctypes []string) string {
	args := make([]string, len(ctypes))
	for i := range ctypes {
		args[i] = fmt.Sprintf("a%d", i)
	}
	params := cDecl(typedef, "fn")
	if len(ctypes) > 0 {
		params += ", " + cParams(ctypes, true)
	}
	call := fmt.Sprintf("fn(%s);", strings.Join(args, ", "))
	if ret != "void" {
		call = "return " + call
	}
	return fmt.Sprintf("static inline %s %s(%s) { %s }", ret, name, params, call)
}

// Preamble is the C source for this wrapper.
func (w *Wrapper) Preamble() string {
	return w.CTypedef + "\n" + w.Trampoline
}

// Call returns the body of the Call method: every argument converted to its
// raw form in order, the trampoline invoked, and the status expanded.
func (w *Wrapper) Call() []jen.Code {
	var body []jen.Code
	args := []jen.Code{jen.Id(w.recv).Dot("Raw")}

	for _, p := range w.Params {
		if p.Category == classify.Passthrough {
			args = append(args, p.Pair.ToC(jen.Id(p.Safe)))
			continue
		}
		body = append(body, jen.Id(p.Raw).Op(":=").Add(p.Pair.SafeToRaw(jen.Id(p.Safe))))
		args = append(args, p.Pair.ToC(jen.Id(p.Raw)))
	}

	call := jen.Qual("C", w.trampolineName).Call(args...)
	return append(body, w.Plan.Expand(sentinel.Scope{
		Symbol: w.Name,
		Call:   call,
		Log:    w.log,
		Names:  w.names.Clone(),
	})...)
}

// results is the safe result list of Call.
func (w *Wrapper) results() []jen.Code {
	r := w.Plan.Return
	switch r.Kind {
	case sig.ReturnPlain:
		return []jen.Code{marshal.Type(r.Type)}
	case sig.ReturnOutcome:
		if r.UnitOk() {
			return []jen.Code{jen.Error()}
		}
		return []jen.Code{marshal.Type(r.Ok), jen.Error()}
	}
	return nil
}

// Render appends the Go side of the wrapper to f. The C side goes into the
// file's preamble; see Preamble.
func (w *Wrapper) Render(f *jen.File) {
	raw := jen.Id(w.RawFnType)
	p := jen.Id("p")

	f.Commentf("%s is the host function pointer type behind %s.", w.RawFnType, w.Name)
	f.Type().Id(w.RawFnType).Op("=").Qual("C", w.typedefName)
	f.Line()

	f.Commentf("%s calls a host function pointer with the signature of %s.", w.Name, w.Decl.Name)
	f.Type().Id(w.Name).Struct(jen.Id("Raw").Add(raw))
	f.Line()

	f.Commentf("%s wraps a raw function pointer received from the host.", marshal.ConstructorName(w.Name))
	f.Func().Id(marshal.ConstructorName(w.Name)).Params(jen.Add(p).Qual("unsafe", "Pointer")).Id(w.Name).Block(
		jen.Return(jen.Id(w.Name).Values(jen.Dict{jen.Id("Raw"): jen.Add(raw).Call(p)})),
	)
	f.Line()

	f.Comment("IsNil reports whether the host passed a null function pointer.")
	f.Func().Params(jen.Id(w.recv).Id(w.Name)).Id("IsNil").Params().Bool().Block(
		jen.Return(jen.Id(w.recv).Dot("Raw").Op("==").Nil()),
	)
	f.Line()

	params := make([]jen.Code, len(w.Params))
	for i, p := range w.Params {
		params[i] = jen.Id(p.Safe).Add(marshal.Type(p.Spec.Type))
	}
	f.Comment("Call invokes the host function.")
	f.Func().Params(jen.Id(w.recv).Id(w.Name)).Id("Call").Params(params...).Params(w.results()...).Block(w.Call()...)
	f.Line()
}
