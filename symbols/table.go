// Package symbols records the exported symbol contract of generated glue:
// every exported handler and setter and every callback wrapper, with the Go
// and C spelling of its parameters. The table is what a downstream
// registration-table builder consumes; it is written as canonical CBOR or
// into a SQLite database.
package symbols

import (
	"fmt"
	"sort"
)

// Kind values mirror the directive that produced a symbol.
const (
	KindHandler  = "handler"
	KindSetter   = "setter"
	KindCallback = "callback"
)

// Param is one raw parameter of a symbol.
type Param struct {
	Name   string `cbor:"name" json:"name"`
	GoType string `cbor:"go_type" json:"go_type"`
	CType  string `cbor:"c_type,omitempty" json:"c_type,omitempty"`
}

// Symbol is one exported function or callback wrapper.
type Symbol struct {
	// Name is the exported C symbol, or the wrapper type for callbacks.
	Name string `cbor:"name" json:"name"`
	Kind string `cbor:"kind" json:"kind"`
	// Decl is the annotated Go declaration.
	Decl    string  `cbor:"decl" json:"decl"`
	Package string  `cbor:"package" json:"package"`
	Params  []Param `cbor:"params" json:"params"`
	// Result is the raw result type, empty for void.
	Result   string `cbor:"result,omitempty" json:"result,omitempty"`
	Position string `cbor:"position" json:"position"`
}

// Table is the symbol contract of one or more packages.
type Table struct {
	Version int      `cbor:"version" json:"version"`
	Symbols []Symbol `cbor:"symbols" json:"symbols"`
}

// Version is the current table layout.
const Version = 1

// New returns an empty table.
func New() *Table {
	return &Table{Version: Version}
}

// Add appends symbols, rejecting a name that is already present.
func (t *Table) Add(syms ...Symbol) error {
	for _, s := range syms {
		if prev, ok := t.Lookup(s.Name); ok {
			return fmt.Errorf("symbol %s from %s already defined at %s", s.Name, s.Position, prev.Position)
		}
		t.Symbols = append(t.Symbols, s)
	}
	return nil
}

// Lookup finds a symbol by name.
func (t *Table) Lookup(name string) (Symbol, bool) {
	for _, s := range t.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// Sort orders symbols by package, then name.
func (t *Table) Sort() {
	sort.SliceStable(t.Symbols, func(i, j int) bool {
		a, b := t.Symbols[i], t.Symbols[j]
		if a.Package != b.Package {
			return a.Package < b.Package
		}
		return a.Name < b.Name
	})
}

// Exported returns the symbols the host links against: handlers and setters.
func (t *Table) Exported() []Symbol {
	var out []Symbol
	for _, s := range t.Symbols {
		if s.Kind != KindCallback {
			out = append(out, s)
		}
	}
	return out
}
