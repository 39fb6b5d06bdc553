// Package marshal holds the rule table that says, for every parameter
// category, which raw type crosses the boundary and how a value is converted
// between the raw and safe conventions in both directions.
//
// Rules are templates over jennifer code. A Table instantiates them for one
// parameter, producing a ConversionPair the generators splice into shims and
// wrappers.
package marshal

import (
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/ngxgen/classify"
	"github.com/chazu/ngxgen/diag"
	"github.com/chazu/ngxgen/sig"
)

// DefaultRuntime is the import path of the runtime package generated code uses.
const DefaultRuntime = "github.com/chazu/ngxgen/rt"

// NullPolicy decides what a null non-optional Erased argument does.
type NullPolicy int

const (
	// NullAbort treats the null as a host contract violation and terminates.
	NullAbort NullPolicy = iota
	// NullFail returns the failure sentinel without calling the inner function.
	NullFail
)

func (p NullPolicy) String() string {
	if p == NullFail {
		return "fail"
	}
	return "abort"
}

// ParseNullPolicy accepts "abort", "fail" or the empty string (abort).
func ParseNullPolicy(s string) (NullPolicy, error) {
	switch s {
	case "", "abort":
		return NullAbort, nil
	case "fail":
		return NullFail, nil
	}
	return NullAbort, fmt.Errorf("unknown null policy %q (want abort or fail)", s)
}

// Vars are the names a rule template is instantiated with.
type Vars struct {
	// Param is the declared parameter name.
	Param string
	// Value is the expression being converted.
	Value jen.Code
	// Elem is the referenced type.
	Elem jen.Code
	// Safe is the declared parameter type.
	Safe jen.Code
	// Raw is the raw parameter type.
	Raw jen.Code
	// Untyped is true when Raw is unsafe.Pointer.
	Untyped bool
	// Runtime is the runtime package import path.
	Runtime string
}

func (v Vars) rt(name string) *jen.Statement {
	return jen.Qual(v.Runtime, name)
}

// untyped converts a typed raw value to unsafe.Pointer when needed.
func (v Vars) untyped() jen.Code {
	if v.Untyped {
		return v.Value
	}
	return jen.Qual("unsafe", "Pointer").Call(v.Value)
}

// typed converts an unsafe.Pointer expression back to the raw type when needed.
func (v Vars) typed(c jen.Code) jen.Code {
	if v.Untyped {
		return c
	}
	return jen.Parens(v.Raw).Parens(c)
}

// Rule is a conversion template for one (Category, mutability) pair.
type Rule struct {
	// Handle selects the configured mirror type as raw type instead of unsafe.Pointer.
	Handle bool
	// Identity rules keep the declared type on both sides.
	Identity bool
	// Fallible raw->safe conversions yield (value, ok).
	Fallible bool

	RawToSafe func(Vars) jen.Code
	SafeToRaw func(Vars) jen.Code
}

type ruleKey struct {
	cat     classify.Category
	mutable bool
}

func identity(v Vars) jen.Code { return v.Value }

// cPassthrough replaces the Passthrough rows for named Go types, which cgo
// does not accept in an //export signature; the raw side is their C type.
var cPassthrough = Rule{
	Identity:  true,
	RawToSafe: func(v Vars) jen.Code { return jen.Add(v.Safe).Call(v.Value) },
	SafeToRaw: func(v Vars) jen.Code { return jen.Add(v.Raw).Call(v.Value) },
}

// rules holds the abort-policy table; fallibleErased replaces the Erased rows
// under the fail policy.
var rules = map[ruleKey]Rule{
	{classify.Passthrough, false}: {Identity: true, RawToSafe: identity, SafeToRaw: identity},
	{classify.Passthrough, true}:  {Identity: true, RawToSafe: identity, SafeToRaw: identity},

	{classify.Opaque, true}: {
		Handle:    true,
		RawToSafe: func(v Vars) jen.Code { return v.rt("Handle").Types(v.Elem).Call(v.untyped()) },
		SafeToRaw: func(v Vars) jen.Code { return v.typed(v.rt("Ptr").Call(v.Value)) },
	},
	{classify.Opaque, false}: {
		Handle:    true,
		RawToSafe: func(v Vars) jen.Code { return v.rt("HandleRef").Types(v.Elem).Call(v.untyped()) },
		SafeToRaw: func(v Vars) jen.Code { return v.typed(v.rt("RefPtr").Call(v.Value)) },
	},

	{classify.Erased, true}: {
		RawToSafe: func(v Vars) jen.Code {
			return v.rt("Erased").Types(v.Elem).Call(v.untyped(), jen.Lit(v.Param))
		},
		SafeToRaw: func(v Vars) jen.Code { return v.typed(v.rt("Ptr").Call(v.Value)) },
	},
	{classify.Erased, false}: {
		RawToSafe: func(v Vars) jen.Code {
			return v.rt("ErasedRef").Types(v.Elem).Call(v.untyped(), jen.Lit(v.Param))
		},
		SafeToRaw: func(v Vars) jen.Code { return v.typed(v.rt("RefPtr").Call(v.Value)) },
	},

	{classify.OptionalOpaque, true}: {
		Handle:    true,
		RawToSafe: func(v Vars) jen.Code { return v.rt("Optional").Types(v.Elem).Call(v.untyped()) },
		SafeToRaw: func(v Vars) jen.Code { return v.typed(v.rt("OptionPtr").Call(v.Value)) },
	},
	{classify.OptionalOpaque, false}: {
		Handle:    true,
		RawToSafe: func(v Vars) jen.Code { return v.rt("OptionalRef").Types(v.Elem).Call(v.untyped()) },
		SafeToRaw: func(v Vars) jen.Code { return v.typed(v.rt("OptionRefPtr").Call(v.Value)) },
	},

	{classify.OptionalErased, true}: {
		RawToSafe: func(v Vars) jen.Code { return v.rt("Optional").Types(v.Elem).Call(v.untyped()) },
		SafeToRaw: func(v Vars) jen.Code { return v.typed(v.rt("OptionPtr").Call(v.Value)) },
	},
	{classify.OptionalErased, false}: {
		RawToSafe: func(v Vars) jen.Code { return v.rt("OptionalRef").Types(v.Elem).Call(v.untyped()) },
		SafeToRaw: func(v Vars) jen.Code { return v.typed(v.rt("OptionRefPtr").Call(v.Value)) },
	},
}

var fallibleErased = map[bool]Rule{
	true: {
		Fallible:  true,
		RawToSafe: func(v Vars) jen.Code { return v.rt("TryErased").Types(v.Elem).Call(v.untyped()) },
		SafeToRaw: rules[ruleKey{classify.Erased, true}].SafeToRaw,
	},
	false: {
		Fallible:  true,
		RawToSafe: func(v Vars) jen.Code { return v.rt("TryErasedRef").Types(v.Elem).Call(v.untyped()) },
		SafeToRaw: rules[ruleKey{classify.Erased, false}].SafeToRaw,
	},
}

// Lookup returns the rule for a category and mutability. Outcome is a result
// shape, not a parameter category, and has no rule.
func Lookup(cat classify.Category, mutable bool, policy NullPolicy) (Rule, error) {
	if cat == classify.Erased && policy == NullFail {
		return fallibleErased[mutable], nil
	}
	r, ok := rules[ruleKey{cat, mutable}]
	if !ok {
		return Rule{}, fmt.Errorf("no marshaling rule for %s parameters", cat)
	}
	return r, nil
}

// ConversionPair is a rule instantiated for one parameter.
type ConversionPair struct {
	Category classify.Category
	// RawType is the Go type of the raw parameter.
	RawType jen.Code
	// CType is the C spelling of RawType; empty when none is known.
	CType string
	// CConvert names the C type a raw value is converted to before a C call,
	// empty when no conversion is needed.
	CConvert string
	Fallible bool

	param   string
	elem    jen.Code
	safe    jen.Code
	untyped bool
	runtime string
	rule    Rule
}

func (p *ConversionPair) vars(value jen.Code) Vars {
	return Vars{
		Param:   p.param,
		Value:   value,
		Elem:    p.elem,
		Safe:    p.safe,
		Raw:     p.RawType,
		Untyped: p.untyped,
		Runtime: p.runtime,
	}
}

// RawToSafe converts the raw expression raw to the safe convention.
func (p *ConversionPair) RawToSafe(raw jen.Code) jen.Code {
	return p.rule.RawToSafe(p.vars(raw))
}

// SafeToRaw converts the safe expression safe to the raw convention.
func (p *ConversionPair) SafeToRaw(safe jen.Code) jen.Code {
	return p.rule.SafeToRaw(p.vars(safe))
}

// Untyped reports whether the raw type is unsafe.Pointer.
func (p *ConversionPair) Untyped() bool {
	return p.untyped
}

// ToC converts a raw value into the argument a C function expects.
func (p *ConversionPair) ToC(raw jen.Code) jen.Code {
	if p.CConvert == "" {
		return raw
	}
	return jen.Qual("C", p.CConvert).Call(raw)
}

// Table instantiates rules with project configuration.
type Table struct {
	// Runtime is the import path of the runtime package.
	Runtime string
	// Handles maps handle type names (bare or as written) to their C mirror
	// type, for example "RequestRef" = "C.ngx_http_request_t".
	Handles map[string]string
	// CTypes maps named passthrough types to their C spelling.
	CTypes map[string]string
	Policy NullPolicy
}

// NewTable returns a table with the default runtime and abort policy.
func NewTable() *Table {
	return &Table{Runtime: DefaultRuntime}
}

func (tb *Table) runtime() string {
	if tb.Runtime == "" {
		return DefaultRuntime
	}
	return tb.Runtime
}

// mirror returns the C mirror type configured for a handle type.
func (tb *Table) mirror(t sig.TypeExpr) (string, bool) {
	n, ok := t.(sig.Named)
	if !ok {
		return "", false
	}
	c, ok := tb.Handles[n.String()]
	if !ok {
		c, ok = tb.Handles[n.Name]
	}
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(c, "C."), true
}

// Pair instantiates the rule for p in category cat. decl names the owning
// declaration for diagnostics.
func (tb *Table) Pair(decl string, p sig.ParamSpec, cat classify.Category) (*ConversionPair, error) {
	rule, err := Lookup(cat, p.IsMutable, tb.Policy)
	if err != nil {
		return nil, diag.New(diag.KindUnsupported).At(p.Pos).Decl(decl).
			Detail("parameter %s: %v", p.Name, err).Build()
	}

	pair := &ConversionPair{
		Category: cat,
		Fallible: rule.Fallible,
		param:    p.Name,
		elem:     Type(p.Elem),
		safe:     Type(p.Type),
		runtime:  tb.runtime(),
		rule:     rule,
	}

	switch {
	case rule.Identity && needsCType(p.Type):
		c, ok := tb.cTypeOf(p.Type)
		if !ok {
			return nil, diag.New(diag.KindNoCType).At(p.Pos).Decl(decl).
				Detail("parameter %s: cgo cannot pass %s; add its C type to [ctypes]", p.Name, p.Type).Build()
		}
		pair.rule = cPassthrough
		pair.RawType = jen.Qual("C", c.Type)
		pair.CType, pair.CConvert = c.Type, c.Convert
	case rule.Identity:
		pair.RawType = Type(p.Type)
		if c, ok := tb.cTypeOf(p.Type); ok {
			pair.CType, pair.CConvert = c.Type, c.Convert
		}
	case rule.Handle:
		if m, ok := tb.mirror(p.Elem); ok {
			pair.RawType = jen.Op("*").Qual("C", m)
			pair.CType = m + " *"
			break
		}
		fallthrough
	default:
		pair.RawType = jen.Qual("unsafe", "Pointer")
		pair.CType = "void *"
		pair.untyped = true
	}
	return pair, nil
}
