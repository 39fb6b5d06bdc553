package gen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/ngxgen/diag"
	"github.com/chazu/ngxgen/sig"
	"github.com/chazu/ngxgen/symbols"
)

// Output is the generated code for one package.
type Output struct {
	Package string
	// Handlers is the source of the file with exported shims; nil when the
	// package has no handlers or setters.
	Handlers []byte
	// Callbacks is the source of the file with callback wrappers; nil when
	// the package has none. Wrappers live in their own file because cgo
	// forbids C definitions in the preamble of a file using //export.
	Callbacks []byte

	Shims    []*Shim
	Wrappers []*Wrapper
}

// Package generates every annotated declaration of one package. Either every
// declaration succeeds or the returned error lists all diagnostics and no
// output is produced.
func (g *Generator) Package(name string, decls []*sig.Decl) (*Output, error) {
	out := &Output{Package: name}
	var errs diag.List

	declared := make(map[string]bool, len(decls))
	for _, d := range decls {
		declared[d.Name] = true
	}
	seen := make(map[string]*sig.Decl, len(decls))

	for _, d := range decls {
		if prev, dup := seen[d.Symbol]; dup {
			errs.Add(diag.New(diag.KindDuplicate).At(d.Pos).Decl(d.Name).
				Detail("symbol %s is already generated for %s at %s", d.Symbol, prev.Name, prev.Pos).Build())
			continue
		}
		if declared[d.Symbol] {
			errs.Add(diag.New(diag.KindDuplicate).At(d.Pos).Decl(d.Name).
				Detail("generated name %s collides with an annotated declaration; set name=", d.Symbol).Build())
			continue
		}
		seen[d.Symbol] = d

		switch d.Kind {
		case sig.Callback:
			w, err := g.Callback(d)
			if err != nil {
				errs.Add(err)
				continue
			}
			out.Wrappers = append(out.Wrappers, w)
		default:
			s, err := g.Handler(d)
			if err != nil {
				errs.Add(err)
				continue
			}
			out.Shims = append(out.Shims, s)
		}
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}

	var err error
	if len(out.Shims) > 0 {
		if out.Handlers, err = g.render(g.handlersFile(name, out.Shims)); err != nil {
			return nil, err
		}
	}
	if len(out.Wrappers) > 0 {
		if out.Callbacks, err = g.render(g.callbacksFile(name, out.Wrappers)); err != nil {
			return nil, err
		}
	}

	log.Infof("package %s: %d shims, %d wrappers", name, len(out.Shims), len(out.Wrappers))
	return out, nil
}

func (g *Generator) newFile(pkg, preamble string) *jen.File {
	f := jen.NewFile(pkg)
	f.HeaderComment(Header)
	f.ImportName(g.Runtime(), "rt")
	f.CgoPreamble(preamble)
	return f
}

// cPreamble joins the configured preamble with extra C source.
func (g *Generator) cPreamble(extra ...string) string {
	parts := []string{"#include <stdint.h>"}
	if p := strings.TrimSpace(g.preamble); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, extra...)
	return strings.Join(parts, "\n")
}

func (g *Generator) handlersFile(pkg string, shims []*Shim) *jen.File {
	f := g.newFile(pkg, g.cPreamble())

	// The host status word is an intptr_t. This also keeps the "C" import
	// present when no parameter mentions a C type.
	f.Var().Id("_").Op("=").Index(jen.Lit(1)).Struct().Values().Index(
		jen.Qual("unsafe", "Sizeof").Call(g.rt("Int").Call(jen.Lit(0))).Op("-").
			Qual("unsafe", "Sizeof").Call(jen.Qual("C", "intptr_t").Call(jen.Lit(0))),
	)
	f.Line()

	for _, s := range shims {
		s.Render(f)
	}
	return f
}

func (g *Generator) callbacksFile(pkg string, wrappers []*Wrapper) *jen.File {
	c := make([]string, len(wrappers))
	for i, w := range wrappers {
		c[i] = w.Preamble()
	}
	f := g.newFile(pkg, g.cPreamble(c...))
	for _, w := range wrappers {
		w.Render(f)
	}
	return f
}

// render formats f and checks the result parses.
func (g *Generator) render(f *jen.File) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := f.Render(buf); err != nil {
		return nil, diag.New(diag.KindInvalidEmit).Detail("rendering: %v", err).Build()
	}
	if errs := NewCodeValidator("generated.go").ValidateSyntax(buf.String()); len(errs) > 0 {
		return nil, diag.New(diag.KindInvalidEmit).
			Detail("generated code does not parse:\n%s", FormatValidationErrors(errs)).Build()
	}
	return buf.Bytes(), nil
}

// Symbols lists the symbol contract of the package.
func (o *Output) Symbols() []symbols.Symbol {
	var out []symbols.Symbol
	for _, s := range o.Shims {
		kind := symbols.KindHandler
		if s.Decl.Kind == sig.Setter {
			kind = symbols.KindSetter
		}
		result := ""
		if s.Result != "" {
			result = spell(s.Plan.ResultType())
		}
		out = append(out, symbols.Symbol{
			Name:     s.Symbol,
			Kind:     kind,
			Decl:     s.Decl.Name,
			Package:  o.Package,
			Params:   symbolParams(s.RawParams, true),
			Result:   result,
			Position: s.Decl.Pos.String(),
		})
	}
	for _, w := range o.Wrappers {
		result := ""
		if w.Plan.HasResult() {
			result = "intptr_t"
		}
		out = append(out, symbols.Symbol{
			Name:     w.Name,
			Kind:     symbols.KindCallback,
			Decl:     w.Decl.Name,
			Package:  o.Package,
			Params:   symbolParams(w.Params, false),
			Result:   result,
			Position: w.Decl.Pos.String(),
		})
	}
	return out
}

func symbolParams(params []Param, raw bool) []symbols.Param {
	out := make([]symbols.Param, len(params))
	for i, p := range params {
		name := p.Spec.Name
		if raw {
			name = p.Raw
		}
		out[i] = symbols.Param{Name: name, GoType: spell(p.Pair.RawType), CType: p.Pair.CType}
	}
	return out
}

// spell renders code the way it appears in generated files.
func spell(c jen.Code) string {
	return strings.TrimSpace(fmt.Sprintf("%#v", c))
}
