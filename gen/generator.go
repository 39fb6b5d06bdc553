// Package gen generates cgo glue from annotated declarations.
//
// For each //ngx:handler or //ngx:setter function it emits an exported shim
// with raw parameters and a status result (see Shim). For each //ngx:callback
// func type it emits a wrapper around a host function pointer with a safe
// Call method (see Wrapper). Output for a package is assembled by
// Generator.Package and is all-or-nothing: one diagnostic and nothing is
// returned.
package gen

import (
	"github.com/dave/jennifer/jen"
	"github.com/tliron/commonlog"

	"github.com/chazu/ngxgen/classify"
	"github.com/chazu/ngxgen/marshal"
	"github.com/chazu/ngxgen/sig"
)

var log = commonlog.GetLogger("ngxgen.gen")

// Header heads every generated file.
const Header = "Code generated by ngxgen. DO NOT EDIT."

// Options configure a Generator. Zero values select the defaults.
type Options struct {
	// Classifier decides parameter categories. Defaults to the "Ref" suffix rule.
	Classifier *classify.Classifier
	// Table instantiates marshaling rules. Its Runtime is the runtime import path.
	Table *marshal.Table
	// LogErr is the logger expression used when a declaration has no log_err
	// option, for example "rt.LogError". Empty means failures are not logged.
	LogErr string
	// Preamble is C source placed before the generated declarations in both
	// files, typically #include lines for the host headers.
	Preamble string
}

// Generator turns classified declarations into shims and wrappers.
type Generator struct {
	classifier *classify.Classifier
	table      *marshal.Table
	logErr     string
	preamble   string
}

// New returns a Generator.
func New(opts Options) *Generator {
	g := &Generator{
		classifier: opts.Classifier,
		table:      opts.Table,
		logErr:     opts.LogErr,
		preamble:   opts.Preamble,
	}
	if g.classifier == nil {
		g.classifier = classify.New(nil)
	}
	if g.table == nil {
		g.table = marshal.NewTable()
	}
	return g
}

// Runtime is the import path of the runtime package used by generated code.
func (g *Generator) Runtime() string {
	if g.table.Runtime == "" {
		return marshal.DefaultRuntime
	}
	return g.table.Runtime
}

func (g *Generator) rt(name string) *jen.Statement {
	return jen.Qual(g.Runtime(), name)
}

// logger returns the logger expression for d: its log_err option or the
// configured default. Nil means failures are not logged.
func (g *Generator) logger(d *sig.Decl) jen.Code {
	switch {
	case d.LogErr != "":
		return jen.Id(d.LogErr)
	case g.logErr != "":
		return jen.Id(g.logErr)
	}
	return nil
}

// Param is a classified parameter with its instantiated conversion.
type Param struct {
	Spec     sig.ParamSpec
	Category classify.Category
	Pair     *marshal.ConversionPair
	// Safe and Raw are the local names used for the converted and raw values.
	Safe string
	Raw  string
}

// params classifies and instantiates every parameter of d in declared order,
// allocating safe and raw names from names.
func (g *Generator) params(d *sig.Decl, names marshal.Names) ([]Param, error) {
	cats, err := g.classifier.Params(d)
	if err != nil {
		return nil, err
	}

	params := make([]Param, len(cats))
	for i, p := range d.Signature.Params {
		pair, err := g.table.Pair(d.Name, p, cats[i])
		if err != nil {
			return nil, err
		}
		params[i] = Param{Spec: p, Category: cats[i], Pair: pair, Safe: names.Fresh(p.Name)}
	}
	for i := range params {
		params[i].Raw = names.Fresh(marshal.RawName(params[i].Spec.Name))
	}

	log.Debugf("classified %s: %s", d.Name, categoryList(params))
	return params, nil
}

func categoryList(params []Param) string {
	s := ""
	for i, p := range params {
		if i > 0 {
			s += ", "
		}
		s += p.Spec.Name + "=" + p.Category.String()
	}
	return s
}

// reserved are the identifiers generated bodies must never shadow.
func reserved(d *sig.Decl) marshal.Names {
	return marshal.NewNames(d.Name, "rt", "unsafe", "C")
}
