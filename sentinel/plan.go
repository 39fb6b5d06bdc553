// Package sentinel decides, at generation time, how a declared result is
// reduced to the host status word in a handler shim and expanded back from it
// in a callback wrapper.
//
// The runtime half of the contract lives in package rt; a Plan only emits
// calls into it.
package sentinel

import (
	"github.com/dave/jennifer/jen"

	"github.com/chazu/ngxgen/diag"
	"github.com/chazu/ngxgen/marshal"
	"github.com/chazu/ngxgen/sig"
)

// Plan is the result translation for one declaration.
type Plan struct {
	Kind    sig.DeclKind
	Return  sig.ReturnSpec
	Runtime string
}

// New checks that d's result can be reduced to a status word and returns its plan.
func New(d *sig.Decl, runtime string) (*Plan, error) {
	if runtime == "" {
		runtime = marshal.DefaultRuntime
	}
	r := d.Signature.Return
	p := &Plan{Kind: d.Kind, Return: r, Runtime: runtime}

	switch r.Kind {
	case sig.ReturnPlain:
		if err := statusPayload(d, r.Type, "result"); err != nil {
			return nil, err
		}
	case sig.ReturnOutcome:
		if r.Ok != nil {
			if err := statusPayload(d, r.Ok, "success value"); err != nil {
				return nil, err
			}
		}
		if d.Kind == sig.Callback && !r.ErrIsInterface() {
			return nil, diag.New(diag.KindIrreducible).At(r.Pos).Decl(d.Name).
				Detail("callback results must use error, not %s; statuses expand to rt.Code", r.Err).Build()
		}
	case sig.ReturnNone:
		if d.Kind == sig.Setter {
			return nil, diag.New(diag.KindIrreducible).At(d.Pos).Decl(d.Name).
				Detail("setters must return a configuration status or an error").Build()
		}
	}
	return p, nil
}

// nonStatus lists predeclared types that never convert to a status word.
var nonStatus = map[string]bool{
	"string": true, "bool": true, "error": true, "any": true,
	"complex64": true, "complex128": true, "float32": true, "float64": true,
}

// statusPayload rejects types that cannot be a status word. Named types
// pass; the generated conversion enforces the rest at compile time.
func statusPayload(d *sig.Decl, t sig.TypeExpr, what string) error {
	irreducible := func() error {
		return diag.New(diag.KindIrreducible).At(d.Signature.Return.Pos).Decl(d.Name).
			Detail("%s of type %s cannot be reduced to a status word", what, t).Build()
	}
	switch v := t.(type) {
	case sig.Named:
		if v.Pkg == "" && nonStatus[v.Name] {
			return irreducible()
		}
		return nil
	}
	return irreducible()
}

func (p *Plan) rt(name string) *jen.Statement {
	return jen.Qual(p.Runtime, name)
}

// HasResult reports whether the raw function returns a status word.
func (p *Plan) HasResult() bool {
	return p.Return.Kind != sig.ReturnNone
}

// ResultType is the raw result type of an exported shim. cgo only accepts
// predeclared and C types in //export signatures, so it is spelled int
// (rt.Int) or uintptr (rt.ConfStatus for setters) rather than by alias.
func (p *Plan) ResultType() jen.Code {
	if p.Kind == sig.Setter {
		return jen.Uintptr()
	}
	return jen.Int()
}

// Success is the status returned when a unit outcome succeeds.
func (p *Plan) Success() jen.Code {
	if p.Kind == sig.Setter {
		return p.rt("ConfOK")
	}
	return p.rt("OK")
}

// Failure is the status stored when the shim cannot complete.
func (p *Plan) Failure() jen.Code {
	if p.Kind == sig.Setter {
		return p.rt("ConfError")
	}
	return p.rt("ERROR")
}

// Scope is what a plan needs from the surrounding function body.
type Scope struct {
	// Symbol names the failing call in log messages.
	Symbol string
	// Call is the inner call expression.
	Call jen.Code
	// Log is the logger expression, invoked with one string. Nil means no
	// logger was configured and failures are not logged.
	Log jen.Code
	Names marshal.Names
}

func (p *Plan) into(v jen.Code) jen.Code {
	if p.Kind == sig.Setter {
		return p.rt("IntoConf").Call(v)
	}
	return p.rt("IntoStatus").Call(v)
}

// valueErr reports whether the error is a concrete type passed by value.
// Such an error fails exactly when its own status is not the success
// status; its zero value is not special. Named interface types land here
// too and must never be nil.
func (p *Plan) valueErr() bool {
	if p.Return.ErrIsInterface() {
		return false
	}
	_, ptr := p.Return.Err.(sig.Pointer)
	return !ptr
}

// errStatus reduces the failure err. Concrete error types must carry their
// own status: RawErr for handlers, RawConf for setters.
func (p *Plan) errStatus(err string) jen.Code {
	switch {
	case p.Return.ErrIsInterface() && p.Kind == sig.Setter:
		return p.rt("ConfErrStatus").Call(jen.Id(err))
	case p.Return.ErrIsInterface():
		return p.rt("ErrStatus").Call(jen.Id(err))
	case p.Kind == sig.Setter:
		return jen.Id(err).Dot("RawConf").Call()
	}
	return jen.Id(err).Dot("RawErr").Call()
}

// logFailure is the logger call for err, or nothing without a logger.
func (p *Plan) logFailure(s Scope, err string) []jen.Code {
	if s.Log == nil {
		return nil
	}
	return []jen.Code{jen.Add(s.Log).Call(p.rt("FailureMessage").Call(jen.Lit(s.Symbol), jen.Id(err)))}
}

// Reduce emits the handler statements that make the inner call and return
// its status. The logger, if any, runs once, on failure only.
func (p *Plan) Reduce(s Scope) []jen.Code {
	r := p.Return
	switch r.Kind {
	case sig.ReturnNone:
		return []jen.Code{s.Call}
	case sig.ReturnPlain:
		return []jen.Code{jen.Return(p.into(s.Call))}
	}

	err := s.Names.Fresh("err")
	var failed jen.Code
	if p.valueErr() {
		rc := s.Names.Fresh("status")
		failed = jen.If(
			jen.Id(rc).Op(":=").Add(p.errStatus(err)),
			jen.Id(rc).Op("!=").Add(p.Success()),
		).Block(append(p.logFailure(s, err), jen.Return(jen.Id(rc)))...)
	} else {
		failed = jen.If(p.rt("IsErr").Call(jen.Id(err))).Block(
			append(p.logFailure(s, err), jen.Return(p.errStatus(err)))...,
		)
	}

	if r.UnitOk() {
		return []jen.Code{
			jen.Id(err).Op(":=").Add(s.Call),
			failed,
			jen.Return(p.Success()),
		}
	}

	v := s.Names.Fresh("v")
	return []jen.Code{
		jen.List(jen.Id(v), jen.Id(err)).Op(":=").Add(s.Call),
		failed,
		jen.Return(p.into(jen.Id(v))),
	}
}

// Expand emits the callback statements that invoke call, which yields a
// status word (or nothing for ReturnNone), and return the declared results.
// OK expands to success, named sentinels and HTTP statuses to rt.Code, and
// anything else to *rt.UnknownStatusError.
func (p *Plan) Expand(s Scope) []jen.Code {
	r := p.Return
	status := p.rt("Int").Call(s.Call)

	switch r.Kind {
	case sig.ReturnNone:
		return []jen.Code{s.Call}
	case sig.ReturnPlain:
		return []jen.Code{jen.Return(jen.Parens(marshal.Type(r.Type)).Call(status))}
	}

	err := s.Names.Fresh("err")
	var logged []jen.Code
	if s.Log != nil {
		logged = []jen.Code{jen.If(jen.Id(err).Op("!=").Nil()).Block(p.logFailure(s, err)...)}
	}

	if r.UnitOk() {
		body := []jen.Code{jen.Id(err).Op(":=").Add(p.rt("StatusError").Call(status))}
		body = append(body, logged...)
		return append(body, jen.Return(jen.Id(err)))
	}

	v := s.Names.Fresh("v")
	body := []jen.Code{jen.List(jen.Id(v), jen.Id(err)).Op(":=").Add(p.rt("SplitStatus").Call(status))}
	body = append(body, logged...)
	return append(body, jen.Return(jen.Parens(marshal.Type(r.Ok)).Call(jen.Id(v)), jen.Id(err)))
}
