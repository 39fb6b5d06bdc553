// Package manifest handles ngxgen.toml project configuration.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"

	"github.com/chazu/ngxgen/classify"
	"github.com/chazu/ngxgen/gen"
	"github.com/chazu/ngxgen/marshal"
	"github.com/chazu/ngxgen/sig"
)

// FileName is the manifest looked up by Load and FindAndLoad.
const FileName = "ngxgen.toml"

// Default output file names, relative to each generated package.
const (
	DefaultOutput          = "ngx_handlers.go"
	DefaultCallbacksOutput = "ngx_callbacks.go"
	DefaultHandleSuffix    = "Ref"
)

//go:embed schema.cue
var schemaSrc string

// Manifest represents an ngxgen.toml project configuration.
type Manifest struct {
	Generate Generate `toml:"generate"`
	Classify Classify `toml:"classify"`
	// Handles maps handle type names to their C mirror type. Listed types are
	// handles whatever their name.
	Handles map[string]string `toml:"handles"`
	// CTypes maps named passthrough types to their C spelling.
	CTypes  map[string]string `toml:"ctypes"`
	Policy  Policy            `toml:"policy"`
	Symbols Symbols           `toml:"symbols"`

	// Dir is the directory containing the ngxgen.toml file (set at load time).
	Dir string `toml:"-"`
}

// Generate configures the emitted files.
type Generate struct {
	Output          string `toml:"output"`
	CallbacksOutput string `toml:"callbacks_output"`
	Runtime         string `toml:"runtime"`
	Preamble        string `toml:"preamble"`
	LogErr          string `toml:"log_err"`
}

// Classify configures the handle and error predicates.
type Classify struct {
	HandleSuffix  string   `toml:"handle_suffix"`
	ErrorSuffixes []string `toml:"error_suffixes"`
}

// Policy holds behavior switches.
type Policy struct {
	// NullErased is "abort" or "fail".
	NullErased string `toml:"null_erased"`
}

// Symbols configures the symbol contract artifacts. Empty paths disable them.
type Symbols struct {
	CBOR   string `toml:"cbor"`
	SQLite string `toml:"sqlite"`
}

// Default returns the configuration used when no manifest exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults(toml.MetaData{})
	return m
}

// Load parses the ngxgen.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(path, data)
	if err != nil {
		return nil, err
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes and validates manifest text. name is used in errors.
func Parse(name string, data []byte) (*Manifest, error) {
	raw := map[string]any{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	m.applyDefaults(md)
	return &m, nil
}

// validate checks the decoded document against the embedded CUE schema.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("manifest schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", cueerrors.Details(err, nil))
	}
	return nil
}

func (m *Manifest) applyDefaults(md toml.MetaData) {
	if m.Generate.Output == "" {
		m.Generate.Output = DefaultOutput
	}
	if m.Generate.CallbacksOutput == "" {
		m.Generate.CallbacksOutput = DefaultCallbacksOutput
	}
	if m.Generate.Runtime == "" {
		m.Generate.Runtime = marshal.DefaultRuntime
	}
	// An explicit empty suffix turns the naming convention off.
	if !md.IsDefined("classify", "handle_suffix") {
		m.Classify.HandleSuffix = DefaultHandleSuffix
	}
	if m.Policy.NullErased == "" {
		m.Policy.NullErased = marshal.NullAbort.String()
	}
}

// FindAndLoad walks up from startDir to find an ngxgen.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// HandlePredicate combines the suffix convention with the [handles] table.
func (m *Manifest) HandlePredicate() classify.HandlePredicate {
	var preds classify.AnyOf
	if m.Classify.HandleSuffix != "" {
		preds = append(preds, classify.SuffixPredicate{Suffix: m.Classify.HandleSuffix})
	}
	if len(m.Handles) > 0 {
		set := make(classify.SetPredicate, len(m.Handles))
		for name := range m.Handles {
			set[name] = true
		}
		preds = append(preds, set)
	}
	return preds
}

// IsError is the result predicate for declarations.
func (m *Manifest) IsError() func(sig.TypeExpr) bool {
	return classify.ErrorPredicate(m.Classify.ErrorSuffixes...)
}

// Table builds the marshaling rule table.
func (m *Manifest) Table() (*marshal.Table, error) {
	policy, err := marshal.ParseNullPolicy(m.Policy.NullErased)
	if err != nil {
		return nil, err
	}
	return &marshal.Table{
		Runtime: m.Generate.Runtime,
		Handles: m.Handles,
		CTypes:  m.CTypes,
		Policy:  policy,
	}, nil
}

// Options returns the generator configuration.
func (m *Manifest) Options() (gen.Options, error) {
	table, err := m.Table()
	if err != nil {
		return gen.Options{}, err
	}
	return gen.Options{
		Classifier: classify.New(m.HandlePredicate()),
		Table:      table,
		LogErr:     m.Generate.LogErr,
		Preamble:   m.Generate.Preamble,
	}, nil
}

// Outputs lists the generated file names, which the loader must not parse.
func (m *Manifest) Outputs() []string {
	return []string{m.Generate.Output, m.Generate.CallbacksOutput}
}

// OutputPaths returns where the handlers and callbacks files of the package
// in pkgDir are written.
func (m *Manifest) OutputPaths(pkgDir string) (handlers, callbacks string) {
	return filepath.Join(pkgDir, m.Generate.Output), filepath.Join(pkgDir, m.Generate.CallbacksOutput)
}

// SymbolsCBORPath returns the symbol table file path, or "" when disabled.
func (m *Manifest) SymbolsCBORPath() string {
	return m.resolve(m.Symbols.CBOR)
}

// SymbolsDBPath returns the symbol database path, or "" when disabled.
func (m *Manifest) SymbolsDBPath() string {
	return m.resolve(m.Symbols.SQLite)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
