// Package diag carries generation-time diagnostics.
//
// Every diagnostic is anchored to a source position and names the declaration
// it was raised for. Generation of a package aborts on the first List that is
// non-empty; nothing is written for that package.
//
//	err := diag.New(diag.KindUnsupported).
//		At(pos).
//		Decl("helloHandler").
//		Detail("variadic parameter %q", name).
//		Build()
package diag

import (
	"fmt"
	"go/token"
	"sort"
	"strings"
)

// Kind categorizes a diagnostic.
type Kind string

const (
	KindMalformed    Kind = "malformed_declaration"
	KindUnsupported  Kind = "unsupported_pattern"
	KindAmbiguous    Kind = "ambiguous_classification"
	KindIrreducible  Kind = "irreducible_return"
	KindOption       Kind = "invalid_option"
	KindMissing      Kind = "missing_expression"
	KindDuplicate    Kind = "duplicate_symbol"
	KindNoCType      Kind = "no_c_mapping"
	KindInvalidEmit  Kind = "invalid_output"
	KindInvalidInput Kind = "invalid_input"
)

// Diagnostic is a single positioned generation error.
type Diagnostic struct {
	Pos    token.Position
	Decl   string
	Kind   Kind
	Detail string
}

// Error implements the error interface as "file:line:col: `decl`: kind: detail".
func (d *Diagnostic) Error() string {
	var b strings.Builder

	if d.Pos.IsValid() {
		b.WriteString(d.Pos.String())
		b.WriteString(": ")
	}
	if d.Decl != "" {
		b.WriteByte('`')
		b.WriteString(d.Decl)
		b.WriteString("`: ")
	}
	b.WriteString(string(d.Kind))
	if d.Detail != "" {
		b.WriteString(": ")
		b.WriteString(d.Detail)
	}

	return b.String()
}

// Is reports whether target is a Diagnostic of the same kind.
func (d *Diagnostic) Is(target error) bool {
	if t, ok := target.(*Diagnostic); ok {
		return d.Kind == t.Kind
	}
	return false
}

// Builder provides structured diagnostic construction
type Builder struct {
	d Diagnostic
}

// New creates a new diagnostic builder
func New(kind Kind) *Builder {
	return &Builder{d: Diagnostic{Kind: kind}}
}

// At sets the source position
func (b *Builder) At(pos token.Position) *Builder {
	b.d.Pos = pos
	return b
}

// Decl sets the offending declaration name
func (b *Builder) Decl(name string) *Builder {
	b.d.Decl = name
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.d.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.d.Detail = msg
	}
	return b
}

// Build returns the constructed diagnostic
func (b *Builder) Build() *Diagnostic {
	d := b.d
	return &d
}

// List is an ordered collection of diagnostics. A nil or empty List is not an error.
type List []*Diagnostic

// Add appends err, flattening nested lists. Non-diagnostic errors are wrapped
// with KindInvalidInput.
func (l *List) Add(err error) {
	if err == nil {
		return
	}
	switch e := err.(type) {
	case *Diagnostic:
		*l = append(*l, e)
	case List:
		*l = append(*l, e...)
	default:
		*l = append(*l, &Diagnostic{Kind: KindInvalidInput, Detail: err.Error()})
	}
}

// Sort orders diagnostics by file, line and column.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i].Pos, l[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Err returns l as an error, or nil when l is empty.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	l.Sort()
	return l
}

func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no diagnostics"
	case 1:
		return l[0].Error()
	}
	var b strings.Builder
	for i, d := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(d.Error())
	}
	return b.String()
}

// Unwrap exposes the individual diagnostics to errors.Is and errors.As.
func (l List) Unwrap() []error {
	errs := make([]error, len(l))
	for i, d := range l {
		errs[i] = d
	}
	return errs
}
