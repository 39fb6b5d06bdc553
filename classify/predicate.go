package classify

import (
	"strings"

	"github.com/chazu/ngxgen/sig"
)

// HandlePredicate decides whether a named type is a foreign handle.
type HandlePredicate interface {
	IsHandle(sig.Named) bool
}

// HandleFunc adapts a function to HandlePredicate.
type HandleFunc func(sig.Named) bool

func (f HandleFunc) IsHandle(n sig.Named) bool { return f(n) }

// SuffixPredicate matches type names ending in Suffix, excluding the bare suffix.
type SuffixPredicate struct {
	Suffix string
}

func (p SuffixPredicate) IsHandle(n sig.Named) bool {
	return p.Suffix != "" && len(n.Name) > len(p.Suffix) && strings.HasSuffix(n.Name, p.Suffix)
}

// SetPredicate matches an explicit set of type names. Keys may be bare
// ("RequestRef") or qualified as written ("http.RequestRef").
type SetPredicate map[string]bool

func (p SetPredicate) IsHandle(n sig.Named) bool {
	return p[n.Name] || p[n.String()]
}

// AnyOf matches when any predicate matches.
type AnyOf []HandlePredicate

func (a AnyOf) IsHandle(n sig.Named) bool {
	for _, p := range a {
		if p.IsHandle(n) {
			return true
		}
	}
	return false
}

// DefaultHandles is the "Ref" suffix convention.
var DefaultHandles HandlePredicate = SuffixPredicate{Suffix: "Ref"}

// ErrorPredicate returns a result predicate accepting the predeclared error,
// and named types (or pointers to them) whose name ends in one of suffixes.
func ErrorPredicate(suffixes ...string) func(sig.TypeExpr) bool {
	return func(t sig.TypeExpr) bool {
		if p, ok := t.(sig.Pointer); ok {
			t = p.Elem
		}
		n, ok := t.(sig.Named)
		if !ok {
			return false
		}
		if n.Pkg == "" && n.Name == "error" {
			return true
		}
		for _, s := range suffixes {
			if s != "" && strings.HasSuffix(n.Name, s) {
				return true
			}
		}
		return false
	}
}
