// Package loader finds the Go packages named by patterns and extracts their
// annotated declarations.
//
// Package resolution goes through golang.org/x/tools/go/packages, but files
// are parsed here with go/parser: asking the loader for syntax would make it
// run cgo, which needs the host's headers on every machine that generates.
package loader

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	"golang.org/x/tools/go/packages"

	"github.com/chazu/ngxgen/diag"
	"github.com/chazu/ngxgen/sig"
)

var log = commonlog.GetLogger("ngxgen.loader")

// Package is one loaded package and the declarations annotated in it.
type Package struct {
	ImportPath string
	Name       string
	Dir        string
	// Files are the parsed source files, generated files excluded.
	Files []*ast.File
	// Sources maps each parsed file name to its contents.
	Sources map[string]string
	Fset    *token.FileSet
	Decls   []*sig.Decl
	// Diagnostics holds every problem found while normalizing declarations.
	Diagnostics diag.List
}

// Config controls loading.
type Config struct {
	// Dir is the directory patterns are resolved in; empty means the current one.
	Dir string
	// IsError classifies result types as error payloads; nil accepts only error.
	IsError func(sig.TypeExpr) bool
	// Skip lists base file names never to parse, typically the outputs.
	Skip []string
}

// Load resolves patterns and normalizes every annotated declaration. The
// error reports loading failures only; declaration problems are recorded on
// each Package.
func Load(cfg Config, patterns ...string) ([]*Package, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	pcfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles,
		Dir:  cfg.Dir,
		// Files importing "C" are dropped from GoFiles when cgo is off.
		Env: append(os.Environ(), "CGO_ENABLED=1"),
	}

	pkgs, err := packages.Load(pcfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading %v: %w", patterns, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %v", patterns)
	}

	var out []*Package
	for _, p := range pkgs {
		if len(p.Errors) > 0 {
			return nil, fmt.Errorf("package %s: %v", p.PkgPath, p.Errors)
		}
		lp, err := loadFiles(cfg, p.PkgPath, p.Name, p.GoFiles)
		if err != nil {
			return nil, err
		}
		out = append(out, lp)
	}
	return out, nil
}

func loadFiles(cfg Config, importPath, name string, files []string) (*Package, error) {
	skip := make(map[string]bool, len(cfg.Skip))
	for _, s := range cfg.Skip {
		skip[s] = true
	}

	p := &Package{
		ImportPath: importPath,
		Name:       name,
		Sources:    make(map[string]string),
		Fset:       token.NewFileSet(),
	}
	norm := &sig.Normalizer{Fset: p.Fset, IsError: cfg.IsError}

	for _, path := range files {
		if p.Dir == "" {
			p.Dir = filepath.Dir(path)
		}
		if skip[filepath.Base(path)] {
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		f, err := parser.ParseFile(p.Fset, path, src, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if ast.IsGenerated(f) {
			log.Debugf("skipping generated file %s", path)
			continue
		}
		p.Files = append(p.Files, f)
		p.Sources[path] = string(src)

		decls, err := norm.File(f)
		if err != nil {
			p.Diagnostics.Add(err)
			continue
		}
		p.Decls = append(p.Decls, decls...)
	}

	p.Diagnostics.Sort()
	log.Debugf("package %s: %d annotated declarations", importPath, len(p.Decls))
	return p, nil
}

// Err returns the package diagnostics as an error, or nil.
func (p *Package) Err() error {
	return p.Diagnostics.Err()
}

// ParseSource normalizes the annotated declarations of a single source text.
// It is what the language server runs on unsaved buffers.
func ParseSource(fset *token.FileSet, filename, src string, isError func(sig.TypeExpr) bool) (*ast.File, []*sig.Decl, error) {
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, nil, err
	}
	norm := &sig.Normalizer{Fset: fset, IsError: isError}
	decls, err := norm.File(f)
	return f, decls, err
}
