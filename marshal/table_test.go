package marshal

import (
	"bytes"
	"errors"
	"go/token"
	"strings"
	"testing"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/ngxgen/classify"
	"github.com/chazu/ngxgen/diag"
	"github.com/chazu/ngxgen/sig"
)

// render places c in a var declaration and returns the formatted file.
func render(t *testing.T, c jen.Code) string {
	t.Helper()
	f := jen.NewFile("p")
	f.Var().Id("_").Op("=").Add(c)
	buf := &bytes.Buffer{}
	if err := f.Render(buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func param(name string, t sig.TypeExpr) sig.ParamSpec {
	return sig.NewParamSpec(name, t, token.Position{Filename: "h.go", Line: 3})
}

var (
	request   = sig.Named{Name: "RequestRef"}
	counter   = sig.Named{Name: "Counter"}
	rtPkg     = func(name string) sig.Named { return sig.Named{Pkg: "rt", Path: DefaultRuntime, Name: name} }
	refOf     = func(t sig.TypeExpr) sig.TypeExpr { return sig.Instance{Base: rtPkg("Ref"), Args: []sig.TypeExpr{t}} }
	optionOf  = func(t sig.TypeExpr) sig.TypeExpr { return sig.Instance{Base: rtPkg("Option"), Args: []sig.TypeExpr{t}} }
	mirrorTbl = &Table{Handles: map[string]string{"RequestRef": "C.ngx_http_request_t"}}
)

func TestLookupCoversEveryParameterCategory(t *testing.T) {
	for _, cat := range classify.Categories() {
		for _, mutable := range []bool{true, false} {
			_, err := Lookup(cat, mutable, NullAbort)
			if cat == classify.Outcome {
				if err == nil {
					t.Errorf("Lookup(Outcome) should fail")
				}
				continue
			}
			if err != nil {
				t.Errorf("Lookup(%s, %v): %v", cat, mutable, err)
			}
		}
	}
}

func TestLookupFailPolicyIsFallible(t *testing.T) {
	r, err := Lookup(classify.Erased, true, NullFail)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Fallible {
		t.Error("Erased under fail policy should be fallible")
	}
	r, _ = Lookup(classify.Erased, true, NullAbort)
	if r.Fallible {
		t.Error("Erased under abort policy should not be fallible")
	}
	r, _ = Lookup(classify.OptionalErased, true, NullFail)
	if r.Fallible {
		t.Error("optional rules never fail")
	}
}

func TestPairRules(t *testing.T) {
	tests := []struct {
		name     string
		param    sig.ParamSpec
		cat      classify.Category
		table    *Table
		ctype    string
		toSafe   string
		toRaw    string
		fallible bool
	}{
		{
			name:   "opaque with mirror",
			param:  param("req", sig.Pointer{Elem: request}),
			cat:    classify.Opaque,
			table:  mirrorTbl,
			ctype:  "ngx_http_request_t *",
			toSafe: "rt.Handle[RequestRef](unsafe.Pointer(reqRaw))",
			toRaw:  "(*C.ngx_http_request_t)(rt.Ptr(req))",
		},
		{
			name:   "shared opaque without mirror",
			param:  param("req", refOf(request)),
			cat:    classify.Opaque,
			table:  NewTable(),
			ctype:  "void *",
			toSafe: "rt.HandleRef[RequestRef](reqRaw)",
			toRaw:  "rt.RefPtr(req)",
		},
		{
			name:   "erased abort",
			param:  param("c", sig.Pointer{Elem: counter}),
			cat:    classify.Erased,
			table:  NewTable(),
			ctype:  "void *",
			toSafe: `rt.Erased[Counter](cRaw, "c")`,
			toRaw:  "rt.Ptr(c)",
		},
		{
			name:   "shared erased",
			param:  param("c", refOf(counter)),
			cat:    classify.Erased,
			table:  NewTable(),
			ctype:  "void *",
			toSafe: `rt.ErasedRef[Counter](cRaw, "c")`,
			toRaw:  "rt.RefPtr(c)",
		},
		{
			name:     "erased fail",
			param:    param("c", sig.Pointer{Elem: counter}),
			cat:      classify.Erased,
			table:    &Table{Policy: NullFail},
			ctype:    "void *",
			toSafe:   "rt.TryErased[Counter](cRaw)",
			toRaw:    "rt.Ptr(c)",
			fallible: true,
		},
		{
			name:   "optional opaque",
			param:  param("req", optionOf(sig.Pointer{Elem: request})),
			cat:    classify.OptionalOpaque,
			table:  mirrorTbl,
			ctype:  "ngx_http_request_t *",
			toSafe: "rt.Optional[RequestRef](unsafe.Pointer(reqRaw))",
			toRaw:  "(*C.ngx_http_request_t)(rt.OptionPtr(req))",
		},
		{
			name:   "optional shared erased",
			param:  param("c", optionOf(refOf(counter))),
			cat:    classify.OptionalErased,
			table:  NewTable(),
			ctype:  "void *",
			toSafe: "rt.OptionalRef[Counter](cRaw)",
			toRaw:  "rt.OptionRefPtr(c)",
		},
		{
			name:   "passthrough",
			param:  param("n", sig.Named{Name: "int32"}),
			cat:    classify.Passthrough,
			table:  NewTable(),
			ctype:  "int32_t",
			toSafe: "nRaw",
			toRaw:  "n",
		},
		{
			name:   "named passthrough",
			param:  param("f", sig.Named{Name: "Flags"}),
			cat:    classify.Passthrough,
			table:  &Table{CTypes: map[string]string{"Flags": "C.ngx_uint_t"}},
			ctype:  "ngx_uint_t",
			toSafe: "Flags(fRaw)",
			toRaw:  "C.ngx_uint_t(f)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := tt.table.Pair("h", tt.param, tt.cat)
			if err != nil {
				t.Fatalf("Pair: %v", err)
			}
			if pair.CType != tt.ctype {
				t.Errorf("CType = %q, want %q", pair.CType, tt.ctype)
			}
			if pair.Fallible != tt.fallible {
				t.Errorf("Fallible = %v, want %v", pair.Fallible, tt.fallible)
			}
			if got := render(t, pair.RawToSafe(jen.Id(tt.param.Name+"Raw"))); !strings.Contains(got, tt.toSafe) {
				t.Errorf("raw->safe:\n%s\nwant %s", got, tt.toSafe)
			}
			if got := render(t, pair.SafeToRaw(jen.Id(tt.param.Name))); !strings.Contains(got, tt.toRaw) {
				t.Errorf("safe->raw:\n%s\nwant %s", got, tt.toRaw)
			}
		})
	}
}

func TestPairRawTypes(t *testing.T) {
	pair, err := mirrorTbl.Pair("h", param("req", sig.Pointer{Elem: request}), classify.Opaque)
	if err != nil {
		t.Fatal(err)
	}
	if got := render(t, jen.Parens(pair.RawType).Parens(jen.Nil())); !strings.Contains(got, "(*C.ngx_http_request_t)(nil)") {
		t.Errorf("raw type rendered as:\n%s", got)
	}

	pair, err = NewTable().Pair("h", param("c", sig.Pointer{Elem: counter}), classify.Erased)
	if err != nil {
		t.Fatal(err)
	}
	if got := render(t, jen.Parens(pair.RawType).Parens(jen.Nil())); !strings.Contains(got, "(unsafe.Pointer)(nil)") {
		t.Errorf("raw type rendered as:\n%s", got)
	}
}

func TestPairNamedPassthroughRawType(t *testing.T) {
	tb := &Table{CTypes: map[string]string{"time.Duration": "C.int64_t"}}
	pair, err := tb.Pair("h", param("d", sig.Named{Pkg: "time", Path: "time", Name: "Duration"}), classify.Passthrough)
	if err != nil {
		t.Fatal(err)
	}
	if got := render(t, jen.Parens(pair.RawType).Parens(jen.Lit(0))); !strings.Contains(got, "(C.int64_t)(0)") {
		t.Errorf("raw type rendered as:\n%s", got)
	}
	if got := render(t, pair.RawToSafe(jen.Id("dRaw"))); !strings.Contains(got, "time.Duration(dRaw)") {
		t.Errorf("raw->safe rendered as:\n%s", got)
	}

	for _, typ := range []sig.TypeExpr{
		sig.Named{Name: "int"},
		sig.Named{Name: "string"},
		sig.Named{Pkg: "C", Name: "ngx_uint_t"},
		sig.Pointer{Elem: sig.Named{Pkg: "C", Name: "ngx_str_t"}},
	} {
		pair, err := NewTable().Pair("h", param("x", typ), classify.Passthrough)
		if err != nil {
			t.Fatalf("Pair(%s): %v", typ, err)
		}
		if got, want := render(t, pair.RawType), render(t, Type(typ)); got != want {
			t.Errorf("%s should cross as written, got\n%s", typ, got)
		}
	}
}

func TestPairNamedPassthroughNeedsCType(t *testing.T) {
	_, err := NewTable().Pair("flags", param("f", sig.Named{Name: "Flags"}), classify.Passthrough)
	if !errors.Is(err, diag.New(diag.KindNoCType).Build()) {
		t.Fatalf("got %v, want %s", err, diag.KindNoCType)
	}
	if !strings.Contains(err.Error(), "[ctypes]") {
		t.Errorf("diagnostic %q should point at [ctypes]", err)
	}
}

func TestPairOutcomeIsRejected(t *testing.T) {
	_, err := NewTable().Pair("h", param("x", sig.Named{Name: "int"}), classify.Outcome)
	if err == nil {
		t.Fatal("expected error for Outcome parameter")
	}
	if !strings.Contains(err.Error(), "Outcome") {
		t.Errorf("error %q should name the category", err)
	}
}

func TestCTypes(t *testing.T) {
	tb := &Table{CTypes: map[string]string{"Flags": "C.ngx_uint_t"}}
	tests := []struct {
		t       sig.TypeExpr
		ctype   string
		convert string
		ok      bool
	}{
		{sig.Named{Name: "int"}, "intptr_t", "intptr_t", true},
		{sig.Named{Name: "uint8"}, "uint8_t", "uint8_t", true},
		{sig.Named{Name: "float64"}, "double", "double", true},
		{sig.Named{Pkg: "C", Name: "ngx_int_t"}, "ngx_int_t", "", true},
		{sig.Named{Pkg: "unsafe", Path: "unsafe", Name: "Pointer"}, "void *", "", true},
		{sig.Pointer{Elem: sig.Named{Pkg: "C", Name: "ngx_str_t"}}, "ngx_str_t *", "", true},
		{sig.Named{Name: "Flags"}, "ngx_uint_t", "ngx_uint_t", true},
		{sig.Named{Name: "string"}, "", "", false},
	}
	for _, tt := range tests {
		c, ok := tb.cTypeOf(tt.t)
		if ok != tt.ok || c.Type != tt.ctype || c.Convert != tt.convert {
			t.Errorf("cTypeOf(%s) = %+v, %v; want %q %q %v", tt.t, c, ok, tt.ctype, tt.convert, tt.ok)
		}
	}
}

func TestToC(t *testing.T) {
	pair, err := NewTable().Pair("cb", param("n", sig.Named{Name: "int"}), classify.Passthrough)
	if err != nil {
		t.Fatal(err)
	}
	if got := render(t, pair.ToC(jen.Id("n"))); !strings.Contains(got, "C.intptr_t(n)") {
		t.Errorf("ToC rendered:\n%s", got)
	}

	pair, err = NewTable().Pair("cb", param("c", sig.Pointer{Elem: counter}), classify.Erased)
	if err != nil {
		t.Fatal(err)
	}
	if got := render(t, pair.ToC(jen.Id("cRaw"))); strings.Contains(got, "C.") {
		t.Errorf("untyped pointers need no C conversion:\n%s", got)
	}
}

func TestTypeRendering(t *testing.T) {
	tests := []struct {
		t    sig.TypeExpr
		want string
	}{
		{sig.Pointer{Elem: request}, "*RequestRef"},
		{optionOf(refOf(counter)), "rt.Option[rt.Ref[Counter]]"},
		{sig.Named{Pkg: "C", Name: "ngx_uint_t"}, "C.ngx_uint_t"},
	}
	for _, tt := range tests {
		got := render(t, jen.Parens(Type(tt.t)).Parens(jen.Nil()))
		if !strings.Contains(got, "("+tt.want+")(nil)") {
			t.Errorf("Type(%s) rendered:\n%s", tt.t, got)
		}
	}
}

func TestParseNullPolicy(t *testing.T) {
	for in, want := range map[string]NullPolicy{"": NullAbort, "abort": NullAbort, "fail": NullFail} {
		got, err := ParseNullPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseNullPolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseNullPolicy("panic"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
