package gen

import (
	"github.com/dave/jennifer/jen"

	"github.com/chazu/ngxgen/diag"
	"github.com/chazu/ngxgen/marshal"
	"github.com/chazu/ngxgen/sentinel"
	"github.com/chazu/ngxgen/sig"
)

// Shim is the generated exported function for one handler or setter.
type Shim struct {
	Decl   *sig.Decl
	Symbol string
	// RawParams are in declared order.
	RawParams []Param
	Plan      *sentinel.Plan

	// Result is the name of the status result, empty when there is none.
	Result string
	// Guard is the deferred panic guard, always the first statement.
	Guard jen.Code
	// Exclusive checks that mutable pointers do not alias; nil when fewer
	// than two mutable references are passed.
	Exclusive jen.Code
	// Conversions turn every raw parameter into its safe value, in order.
	Conversions []jen.Code
	InnerCall   jen.Code
	// ResultTranslation makes InnerCall and returns the status.
	ResultTranslation []jen.Code
}

// Handler builds the shim for a handler or setter declaration.
func (g *Generator) Handler(d *sig.Decl) (*Shim, error) {
	if d.Kind == sig.Callback {
		return nil, diag.New(diag.KindMalformed).At(d.Pos).Decl(d.Name).
			Detail("callback declarations have no handler shim").Build()
	}
	if d.Symbol == d.Name {
		return nil, diag.New(diag.KindDuplicate).At(d.Pos).Decl(d.Name).
			Detail("exported symbol %s collides with the Go function; set name=", d.Symbol).Build()
	}

	plan, err := sentinel.New(d, g.Runtime())
	if err != nil {
		return nil, err
	}

	names := reserved(d)
	names[d.Symbol] = true
	params, err := g.params(d, names)
	if err != nil {
		return nil, err
	}

	s := &Shim{Decl: d, Symbol: d.Symbol, RawParams: params, Plan: plan}

	if plan.HasResult() {
		s.Result = names.Fresh("rc")
		s.Guard = jen.Defer().Add(g.rt("Guard").Call(jen.Lit(s.Symbol), jen.Op("&").Id(s.Result), plan.Failure()))
	} else {
		s.Guard = jen.Defer().Add(g.rt("GuardVoid").Call(jen.Lit(s.Symbol)))
	}

	s.Exclusive = g.exclusive(params)

	args := make([]jen.Code, len(params))
	for i, p := range params {
		s.Conversions = append(s.Conversions, g.convert(s, p, names)...)
		args[i] = jen.Id(p.Safe)
	}
	s.InnerCall = jen.Id(d.Name).Call(args...)

	s.ResultTranslation = plan.Reduce(sentinel.Scope{
		Symbol: s.Symbol,
		Call:   s.InnerCall,
		Log:    g.logger(d),
		Names:  names,
	})

	log.Debugf("handler %s -> %s", d.Name, s.Symbol)
	return s, nil
}

// convert emits the statements turning p's raw value into its safe value.
// Fallible conversions return the failure status when the value is null.
func (g *Generator) convert(s *Shim, p Param, names marshal.Names) []jen.Code {
	raw := jen.Id(p.Raw)
	if !p.Pair.Fallible {
		return []jen.Code{jen.Id(p.Safe).Op(":=").Add(p.Pair.RawToSafe(raw))}
	}

	ok := names.Fresh("ok")
	bail := []jen.Code{g.rt("NullArgument").Call(jen.Lit(s.Symbol), jen.Lit(p.Spec.Name))}
	if s.Result != "" {
		bail = append(bail, jen.Return(s.Plan.Failure()))
	} else {
		bail = append(bail, jen.Return())
	}
	return []jen.Code{
		jen.List(jen.Id(p.Safe), jen.Id(ok)).Op(":=").Add(p.Pair.RawToSafe(raw)),
		jen.If(jen.Op("!").Id(ok)).Block(bail...),
	}
}

// exclusive emits a runtime alias check over the mutable reference
// parameters when there are two or more.
func (g *Generator) exclusive(params []Param) jen.Code {
	var labels, ptrs []jen.Code
	for _, p := range params {
		if !p.Spec.IsByRef || !p.Spec.IsMutable {
			continue
		}
		labels = append(labels, jen.Lit(p.Spec.Name))
		if p.Pair.Untyped() {
			ptrs = append(ptrs, jen.Id(p.Raw))
		} else {
			ptrs = append(ptrs, jen.Qual("unsafe", "Pointer").Call(jen.Id(p.Raw)))
		}
	}
	if len(labels) < 2 {
		return nil
	}
	return g.rt("Exclusive").Call(append([]jen.Code{jen.Index().String().Values(labels...)}, ptrs...)...)
}

// Signature returns the raw parameter list and result of the shim.
func (s *Shim) Signature() (params []jen.Code, result jen.Code) {
	for _, p := range s.RawParams {
		params = append(params, jen.Id(p.Raw).Add(p.Pair.RawType))
	}
	if s.Result != "" {
		result = jen.Id(s.Result).Add(s.Plan.ResultType())
	}
	return params, result
}

// Body returns the statements of the shim in emission order.
func (s *Shim) Body() []jen.Code {
	body := []jen.Code{s.Guard}
	if s.Exclusive != nil {
		body = append(body, s.Exclusive)
	}
	body = append(body, s.Conversions...)
	return append(body, s.ResultTranslation...)
}

// Render appends the exported function to f.
func (s *Shim) Render(f *jen.File) {
	params, result := s.Signature()
	f.Comment("//export " + s.Symbol)
	fn := f.Func().Id(s.Symbol).Params(params...)
	if result != nil {
		fn.Params(result)
	}
	fn.Block(s.Body()...)
	f.Line()
}

// Declaration spells the signature of the exported function.
func (s *Shim) Declaration() string {
	params, result := s.Signature()
	fn := jen.Func().Id(s.Symbol).Params(params...)
	if result != nil {
		fn.Params(result)
	}
	return spell(fn)
}
