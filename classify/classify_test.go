package classify

import (
	"errors"
	"go/token"
	"testing"

	"github.com/chazu/ngxgen/diag"
	"github.com/chazu/ngxgen/sig"
)

func named(name string) sig.Named { return sig.Named{Name: name} }

func rtGeneric(base string, arg sig.TypeExpr) sig.Instance {
	return sig.Instance{Base: sig.Named{Pkg: "rt", Name: base}, Args: []sig.TypeExpr{arg}}
}

func param(name string, t sig.TypeExpr) sig.ParamSpec {
	return sig.NewParamSpec(name, t, token.Position{Filename: "f.go", Line: 1})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		typ  sig.TypeExpr
		want Category
	}{
		{"int", named("int"), Passthrough},
		{"named value", named("Flags"), Passthrough},
		{"C value", sig.Named{Pkg: "C", Name: "ngx_uint_t"}, Passthrough},
		{"handle pointer", sig.Pointer{Elem: named("RequestRef")}, Opaque},
		{"handle ref", rtGeneric("Ref", named("RequestRef")), Opaque},
		{"erased pointer", sig.Pointer{Elem: named("Config")}, Erased},
		{"erased ref", rtGeneric("Ref", named("Config")), Erased},
		{"optional handle", rtGeneric("Option", sig.Pointer{Elem: named("RequestRef")}), OptionalOpaque},
		{"optional handle ref", rtGeneric("Option", rtGeneric("Ref", named("RequestRef"))), OptionalOpaque},
		{"optional erased", rtGeneric("Option", sig.Pointer{Elem: named("Config")}), OptionalErased},
		{"bare suffix is not a handle", sig.Pointer{Elem: named("Ref")}, Erased},
	}

	c := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify("f", param("p", tt.typ))
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyRejects(t *testing.T) {
	tests := []struct {
		name string
		typ  sig.TypeExpr
		kind diag.Kind
	}{
		{"option by value", rtGeneric("Option", named("int")), diag.KindUnsupported},
		{"error value", named("error"), diag.KindUnsupported},
		{"slice", sig.Composite{Kind: "slice", Text: "[]byte"}, diag.KindUnsupported},
		{"struct literal", sig.Composite{Kind: "struct", Text: "struct{}"}, diag.KindUnsupported},
		{"generic by value", sig.Instance{Base: named("List"), Args: []sig.TypeExpr{named("int")}}, diag.KindUnsupported},
		{"two-argument Ref", sig.Instance{Base: named("Ref"), Args: []sig.TypeExpr{named("A"), named("B")}}, diag.KindAmbiguous},
	}

	c := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Classify("f", param("p", tt.typ))
			if !errors.Is(err, diag.New(tt.kind).Build()) {
				t.Errorf("got %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	d := &sig.Decl{Name: "f", Signature: sig.SignatureModel{Params: []sig.ParamSpec{
		param("a", sig.Pointer{Elem: named("RequestRef")}),
		param("b", named("int")),
		param("c", rtGeneric("Option", sig.Pointer{Elem: named("Config")})),
	}}}
	c := New(nil)
	first, err := c.Params(d)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, _ := c.Params(d)
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d: param %d classified %s, then %s", i, j, first[j], again[j])
			}
		}
	}
	want := []Category{Opaque, Passthrough, OptionalErased}
	for i := range want {
		if first[i] != want[i] {
			t.Errorf("param %d = %s, want %s", i, first[i], want[i])
		}
	}
}

func TestClassifyReturn(t *testing.T) {
	c := New(nil)
	if got := c.ClassifyReturn(sig.ReturnSpec{Kind: sig.ReturnOutcome}); got != Outcome {
		t.Errorf("outcome classified %s", got)
	}
	if got := c.ClassifyReturn(sig.ReturnSpec{Kind: sig.ReturnPlain}); got != Passthrough {
		t.Errorf("plain classified %s", got)
	}
}

func TestPredicates(t *testing.T) {
	set := SetPredicate{"Request": true, "http.Conn": true}
	if !set.IsHandle(named("Request")) || !set.IsHandle(sig.Named{Pkg: "http", Name: "Conn"}) {
		t.Error("SetPredicate missed a listed type")
	}
	if set.IsHandle(named("Conn")) {
		t.Error("SetPredicate matched an unqualified name listed qualified")
	}

	either := AnyOf{SuffixPredicate{Suffix: "Handle"}, set}
	if !either.IsHandle(named("PoolHandle")) || !either.IsHandle(named("Request")) || either.IsHandle(named("Config")) {
		t.Error("AnyOf did not combine predicates")
	}

	fn := HandleFunc(func(n sig.Named) bool { return n.Pkg == "C" })
	c := New(fn)
	got, err := c.Classify("f", param("p", sig.Pointer{Elem: sig.Named{Pkg: "C", Name: "ngx_buf_t"}}))
	if err != nil || got != Opaque {
		t.Errorf("custom predicate: %s, %v", got, err)
	}
}

func TestErrorPredicate(t *testing.T) {
	isErr := ErrorPredicate("Error", "Err")
	tests := []struct {
		typ  sig.TypeExpr
		want bool
	}{
		{named("error"), true},
		{named("StatusErr"), true},
		{sig.Pointer{Elem: named("ParseError")}, true},
		{sig.Named{Pkg: "rt", Name: "Code"}, false},
		{named("int"), false},
		{sig.Composite{Kind: "slice", Text: "[]error"}, false},
	}
	for _, tt := range tests {
		if got := isErr(tt.typ); got != tt.want {
			t.Errorf("isErr(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	if Categories()[4].String() != "OptionalErased" || Category(42).String() != "Category(42)" {
		t.Error("unexpected category names")
	}
	for _, c := range Categories() {
		if c.IsOptional() && !c.IsReference() {
			t.Errorf("%s is optional but not a reference", c)
		}
	}
}
