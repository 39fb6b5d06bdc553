package server

import (
	"go/token"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/ngxgen/gen"
	"github.com/chazu/ngxgen/loader"
	"github.com/chazu/ngxgen/manifest"
	"github.com/chazu/ngxgen/sig"
)

// analyzer runs the generator over a single source text. The language server
// and the check service share it.
type analyzer struct {
	opts    gen.Options
	isError func(sig.TypeExpr) bool
}

func newAnalyzer(m *manifest.Manifest) (analyzer, error) {
	opts, err := m.Options()
	if err != nil {
		return analyzer{}, err
	}
	return analyzer{opts: opts, isError: m.IsError()}, nil
}

// document is the analysis of one source text.
type document struct {
	text  string
	decls []*sig.Decl
	out   *gen.Output
	diags []protocol.Diagnostic
}

// analyze parses text and runs the generator on its declarations. Generated
// files and sources without directives produce no diagnostics.
func (a analyzer) analyze(filename, text string) *document {
	doc := &document{text: text, diags: []protocol.Diagnostic{}}

	fset := token.NewFileSet()
	_, decls, err := loader.ParseSource(fset, filename, text, a.isError)
	if err != nil {
		doc.diags = toProtocol(err)
		return doc
	}
	doc.decls = decls
	if len(decls) == 0 {
		return doc
	}

	out, err := gen.New(a.opts).Package(decls[0].Package, decls)
	if err != nil {
		doc.diags = toProtocol(err)
		return doc
	}
	doc.out = out
	return doc
}
