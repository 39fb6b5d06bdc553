package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/ngxgen/diag"
	"github.com/chazu/ngxgen/gen"
	"github.com/chazu/ngxgen/loader"
	"github.com/chazu/ngxgen/manifest"
	"github.com/chazu/ngxgen/symbols"
)

var log = commonlog.GetLogger("ngxgen")

// handleGenerateCommand processes `ngxgen generate` and `ngxgen check`.
// Usage:
//
//	ngxgen generate                # package in the current directory
//	ngxgen generate ./...          # every package of the module
//	ngxgen check -typecheck ./...  # diagnostics only, output type-checked
func handleGenerateCommand(args []string, check bool) error {
	name := "generate"
	if check {
		name = "check"
	}
	flags := flag.NewFlagSet(name, flag.ExitOnError)
	var c common
	c.register(flags)
	typecheck := flags.Bool("typecheck", false, "Type-check the generated files against their package")
	flags.Parse(args)

	m, err := c.setup()
	if err != nil {
		return err
	}

	res, err := run(m, runConfig{Dir: c.dir, Typecheck: *typecheck}, flags.Args()...)
	if err != nil {
		return err
	}

	if check {
		fmt.Printf("%d packages, %d symbols: ok\n", len(res.Packages), len(res.Symbols.Symbols))
		return nil
	}
	if err := res.Write(); err != nil {
		return err
	}
	return writeSymbolArtifacts(m, res.Symbols)
}

// runConfig controls one generator run.
type runConfig struct {
	// Dir is the directory patterns are resolved in.
	Dir       string
	Typecheck bool
}

// planned is the output of one package, computed before anything is written.
type planned struct {
	Pkg *loader.Package
	Out *gen.Output
	// HandlersPath and CallbacksPath are where the package's files go.
	HandlersPath  string
	CallbacksPath string
}

// result is a complete run; nothing is on disk until Write.
type result struct {
	Packages []planned
	Symbols  *symbols.Table
}

// run loads every package and generates its glue. Any diagnostic in any
// package fails the whole run, so no partial output is ever written.
func run(m *manifest.Manifest, cfg runConfig, patterns ...string) (*result, error) {
	opts, err := m.Options()
	if err != nil {
		return nil, err
	}

	pkgs, err := loader.Load(loader.Config{
		Dir:     cfg.Dir,
		IsError: m.IsError(),
		Skip:    m.Outputs(),
	}, patterns...)
	if err != nil {
		return nil, err
	}

	g := gen.New(opts)
	res := &result{Symbols: symbols.New()}
	var errs diag.List

	for _, pkg := range pkgs {
		if err := pkg.Err(); err != nil {
			errs.Add(err)
			continue
		}
		p := planned{Pkg: pkg}
		p.HandlersPath, p.CallbacksPath = m.OutputPaths(pkg.Dir)

		if len(pkg.Decls) > 0 {
			p.Out, err = g.Package(pkg.Name, pkg.Decls)
			if err != nil {
				errs.Add(err)
				continue
			}
			if cfg.Typecheck {
				if err := typecheck(p); err != nil {
					errs.Add(err)
					continue
				}
			}
			if err := res.Symbols.Add(p.Out.Symbols()...); err != nil {
				errs.Add(diag.New(diag.KindDuplicate).Detail("%v", err).Build())
				continue
			}
		}
		res.Packages = append(res.Packages, p)
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	res.Symbols.Sort()
	return res, nil
}

// typecheck checks both generated files against the package they join.
func typecheck(p planned) error {
	files := make(map[string]string, len(p.Pkg.Sources)+1)
	for name, src := range p.Pkg.Sources {
		files[name] = src
	}

	var errs diag.List
	check := func(path string, src []byte) {
		if src == nil {
			return
		}
		verrs := gen.NewCodeValidator(path).Validate(string(src), files)
		if len(verrs) > 0 {
			what := path + " does not type-check"
			if funcs := failingFunctions(verrs); funcs != "" {
				what += " in " + funcs
			}
			errs.Add(diag.New(diag.KindInvalidEmit).
				Detail("%s:\n%s", what, gen.FormatValidationErrors(verrs)).Build())
		}
		files[path] = string(src)
	}
	check(p.HandlersPath, p.Out.Handlers)
	check(p.CallbacksPath, p.Out.Callbacks)
	return errs.Err()
}

// failingFunctions lists the generated functions with type errors, sorted.
func failingFunctions(verrs []gen.ValidationError) string {
	funcs := gen.FunctionsWithErrors(verrs)
	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Write puts every planned file on disk. Output files a package no longer
// needs are removed, but only when they carry the generated header. Every
// target is checked before the first file changes.
func (r *result) Write() error {
	type target struct {
		path string
		src  []byte
	}
	var targets []target
	for _, p := range r.Packages {
		var handlers, callbacks []byte
		if p.Out != nil {
			handlers, callbacks = p.Out.Handlers, p.Out.Callbacks
		}
		targets = append(targets, target{p.HandlersPath, handlers}, target{p.CallbacksPath, callbacks})
	}

	var errs diag.List
	for _, t := range targets {
		if err := checkTarget(t.path, t.src); err != nil {
			errs.Add(err)
		}
	}
	if err := errs.Err(); err != nil {
		return err
	}

	for _, t := range targets {
		if err := syncFile(t.path, t.src); err != nil {
			return err
		}
	}
	return nil
}

// checkTarget fails when path holds a file ngxgen did not generate, which
// writing src (or removing the file, for nil src) would destroy.
func checkTarget(path string, src []byte) error {
	old, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return err
	case isGenerated(old):
		return nil
	case src == nil:
		return fmt.Errorf("%s exists and was not generated by ngxgen; not removing it", path)
	}
	return fmt.Errorf("%s exists and was not generated by ngxgen; not overwriting it", path)
}

// syncFile writes src to path, or removes a stale generated file when src is nil.
func syncFile(path string, src []byte) error {
	if err := checkTarget(path, src); err != nil {
		return err
	}
	if src == nil {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		log.Infof("removing %s", path)
		return os.Remove(path)
	}

	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, src) {
		log.Debugf("%s unchanged", path)
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ngxgen-*.go")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(src); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	log.Infof("writing %s", path)
	return os.Rename(tmp.Name(), path)
}

var generatedHeader = []byte("// " + gen.Header)

func isGenerated(src []byte) bool {
	return bytes.HasPrefix(src, generatedHeader)
}

// writeSymbolArtifacts stores the symbol contract where the manifest asks.
func writeSymbolArtifacts(m *manifest.Manifest, t *symbols.Table) error {
	if path := m.SymbolsCBORPath(); path != "" {
		if err := t.WriteFile(path); err != nil {
			return err
		}
		log.Infof("wrote %d symbols to %s", len(t.Symbols), path)
	}
	if path := m.SymbolsDBPath(); path != "" {
		store, err := symbols.OpenStore(path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Replace(t); err != nil {
			return err
		}
		log.Infof("stored %d symbols in %s", len(t.Symbols), path)
	}
	return nil
}
