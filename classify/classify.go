// Package classify maps signature-model parameters and results to a closed
// set of marshaling categories.
//
// Classification looks only at declared syntax. Whether a referenced type is a
// foreign handle is decided by an explicit HandlePredicate, so the rule can be
// tested and swapped independently of the generators.
package classify

import (
	"fmt"

	"github.com/chazu/ngxgen/diag"
	"github.com/chazu/ngxgen/sig"
)

// Category is the marshaling category of a parameter or result.
type Category int

const (
	// Passthrough values cross the boundary unchanged.
	Passthrough Category = iota
	// Opaque is a reference to a foreign-owned handle with a mirror layout.
	Opaque
	// Erased is a reference to any other type; it crosses as an untyped pointer.
	Erased
	// OptionalOpaque is an Opaque reference where null is legal.
	OptionalOpaque
	// OptionalErased is an Erased reference where null is legal.
	OptionalErased
	// Outcome is a success/error result shape.
	Outcome
)

var categoryNames = [...]string{
	Passthrough:    "Passthrough",
	Opaque:         "Opaque",
	Erased:         "Erased",
	OptionalOpaque: "OptionalOpaque",
	OptionalErased: "OptionalErased",
	Outcome:        "Outcome",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{Passthrough, Opaque, Erased, OptionalOpaque, OptionalErased, Outcome}
}

// IsReference reports whether c crosses the boundary as a pointer.
func (c Category) IsReference() bool {
	switch c {
	case Opaque, Erased, OptionalOpaque, OptionalErased:
		return true
	}
	return false
}

// IsOptional reports whether null is a legal raw value for c.
func (c Category) IsOptional() bool {
	return c == OptionalOpaque || c == OptionalErased
}

// Classifier classifies parameters using a handle predicate.
type Classifier struct {
	Handles HandlePredicate
}

// New returns a classifier using pred, or the default "Ref" suffix rule when pred is nil.
func New(pred HandlePredicate) *Classifier {
	if pred == nil {
		pred = DefaultHandles
	}
	return &Classifier{Handles: pred}
}

// Classify returns the category of p. decl names the owning declaration for diagnostics.
func (c *Classifier) Classify(decl string, p sig.ParamSpec) (Category, error) {
	if p.IsByRef {
		handle := c.isHandle(p.Elem)
		switch {
		case p.IsOptional && handle:
			return OptionalOpaque, nil
		case p.IsOptional:
			return OptionalErased, nil
		case handle:
			return Opaque, nil
		default:
			return Erased, nil
		}
	}

	if p.IsOptional {
		return 0, diag.New(diag.KindUnsupported).At(p.Pos).Decl(decl).
			Detail("parameter %s %s: Option must wrap a reference (*T or Ref[T])", p.Name, p.Type).Build()
	}

	switch t := p.Type.(type) {
	case sig.Named:
		if sig.IsPredeclaredError(t) {
			return 0, diag.New(diag.KindUnsupported).At(p.Pos).Decl(decl).
				Detail("parameter %s: error values cannot cross the C ABI", p.Name).Build()
		}
		return Passthrough, nil
	case sig.Instance:
		if t.Base.Name == "Option" || t.Base.Name == "Ref" {
			return 0, diag.New(diag.KindAmbiguous).At(p.Pos).Decl(decl).
				Detail("parameter %s %s: %s takes exactly one type argument", p.Name, p.Type, t.Base.Name).Build()
		}
		return 0, diag.New(diag.KindUnsupported).At(p.Pos).Decl(decl).
			Detail("parameter %s: generic type %s cannot be passed by value", p.Name, p.Type).Build()
	case sig.Composite:
		return 0, diag.New(diag.KindUnsupported).At(p.Pos).Decl(decl).
			Detail("parameter %s: %s type %s cannot cross the C ABI by value", p.Name, t.Kind, t.Text).Build()
	}

	return 0, diag.New(diag.KindUnsupported).At(p.Pos).Decl(decl).
		Detail("parameter %s: unrecognized pattern %s", p.Name, p.Type).Build()
}

// ClassifyReturn returns Outcome for success/error shapes and Passthrough otherwise.
func (c *Classifier) ClassifyReturn(r sig.ReturnSpec) Category {
	if r.Kind == sig.ReturnOutcome {
		return Outcome
	}
	return Passthrough
}

// Params classifies every parameter of d in declaration order.
func (c *Classifier) Params(d *sig.Decl) ([]Category, error) {
	cats := make([]Category, len(d.Signature.Params))
	for i, p := range d.Signature.Params {
		cat, err := c.Classify(d.Name, p)
		if err != nil {
			return nil, err
		}
		cats[i] = cat
	}
	return cats, nil
}

func (c *Classifier) isHandle(t sig.TypeExpr) bool {
	n, ok := t.(sig.Named)
	return ok && c.Handles.IsHandle(n)
}
