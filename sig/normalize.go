package sig

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path"
	"strconv"
	"strings"

	"github.com/chazu/ngxgen/diag"
)

// Normalizer turns annotated Go declarations into Decls.
type Normalizer struct {
	Fset *token.FileSet
	// IsError reports whether a result type is an error payload. When nil
	// only the predeclared error type qualifies.
	IsError func(TypeExpr) bool
}

// NewParamSpec derives the reference and optionality flags of a parameter from
// its declared shape.
func NewParamSpec(name string, t TypeExpr, pos token.Position) ParamSpec {
	p := ParamSpec{Name: name, Type: t, Elem: t, Pos: pos}

	inner := t
	if x, ok := isGeneric(t, "Option"); ok {
		p.IsOptional = true
		inner = x
		p.Elem = x
	}

	switch v := inner.(type) {
	case Pointer:
		p.IsByRef = true
		p.IsMutable = true
		p.Elem = v.Elem
	case Instance:
		if x, ok := isGeneric(v, "Ref"); ok {
			p.IsByRef = true
			p.Elem = x
		}
	}

	p.BaseTypeName = BaseName(p.Elem)
	return p
}

// File normalizes every annotated declaration in f. Declarations without a
// directive are skipped. All diagnostics of the file are returned together.
func (n *Normalizer) File(f *ast.File) ([]*Decl, error) {
	imports := Imports(f)
	var decls []*Decl
	var errs diag.List

	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			c := FindDirective(d.Doc)
			if c == nil {
				continue
			}
			dir, err := ParseDirective(c.Text, n.Fset.Position(c.Pos()), d.Name.Name)
			if err != nil {
				errs.Add(err)
				continue
			}
			decl, err := n.FuncDecl(imports, d, dir)
			if err != nil {
				errs.Add(err)
				continue
			}
			decl.Package = f.Name.Name
			decls = append(decls, decl)

		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts := spec.(*ast.TypeSpec)
				doc := ts.Doc
				if doc == nil && len(d.Specs) == 1 {
					doc = d.Doc
				}
				c := FindDirective(doc)
				if c == nil {
					continue
				}
				dir, err := ParseDirective(c.Text, n.Fset.Position(c.Pos()), ts.Name.Name)
				if err != nil {
					errs.Add(err)
					continue
				}
				decl, err := n.TypeSpec(imports, ts, dir)
				if err != nil {
					errs.Add(err)
					continue
				}
				decl.Package = f.Name.Name
				decls = append(decls, decl)
			}
		}
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return decls, nil
}

// FuncDecl normalizes a handler or setter function.
func (n *Normalizer) FuncDecl(imports map[string]string, fd *ast.FuncDecl, dir *Directive) (*Decl, error) {
	name := fd.Name.Name
	pos := n.Fset.Position(fd.Pos())

	if dir.Kind == Callback {
		return nil, diag.New(diag.KindMalformed).At(pos).Decl(name).
			Detail("//ngx:callback applies to func types, not functions").Build()
	}
	if fd.Recv != nil {
		return nil, diag.New(diag.KindUnsupported).At(pos).Decl(name).
			Detail("methods cannot be exported to the host").Build()
	}
	if fd.Type.TypeParams != nil && len(fd.Type.TypeParams.List) > 0 {
		return nil, diag.New(diag.KindUnsupported).At(pos).Decl(name).
			Detail("generic functions cannot be exported to the host").Build()
	}

	params, err := n.params(imports, name, fd.Type.Params, false)
	if err != nil {
		return nil, err
	}
	ret, err := n.results(imports, name, fd.Type)
	if err != nil {
		return nil, err
	}

	return n.decl(dir, name, pos, SignatureModel{Params: params, Return: ret}), nil
}

// TypeSpec normalizes a callback func type.
func (n *Normalizer) TypeSpec(imports map[string]string, ts *ast.TypeSpec, dir *Directive) (*Decl, error) {
	name := ts.Name.Name
	pos := n.Fset.Position(ts.Pos())

	if dir.Kind != Callback {
		return nil, diag.New(diag.KindMalformed).At(pos).Decl(name).
			Detail("//ngx:%s applies to functions; use //ngx:callback on func types", dir.Kind).Build()
	}
	if ts.TypeParams != nil && len(ts.TypeParams.List) > 0 {
		return nil, diag.New(diag.KindUnsupported).At(pos).Decl(name).
			Detail("generic callback types are not supported").Build()
	}
	ft, ok := ts.Type.(*ast.FuncType)
	if !ok {
		return nil, diag.New(diag.KindMalformed).At(pos).Decl(name).
			Detail("only bare func types are supported, got %s", types.ExprString(ts.Type)).Build()
	}

	params, err := n.params(imports, name, ft.Params, true)
	if err != nil {
		return nil, err
	}
	ret, err := n.results(imports, name, ft)
	if err != nil {
		return nil, err
	}

	return n.decl(dir, name, pos, SignatureModel{Params: params, Return: ret}), nil
}

func (n *Normalizer) decl(dir *Directive, name string, pos token.Position, s SignatureModel) *Decl {
	symbol := dir.Name
	switch {
	case symbol != "":
	case dir.Kind == Callback:
		symbol = name + CallbackSuffix
	default:
		symbol = DefaultSymbol(name)
	}
	return &Decl{
		Kind:      dir.Kind,
		Name:      name,
		Symbol:    symbol,
		LogErr:    dir.LogErr,
		Signature: s,
		Pos:       pos,
	}
}

func (n *Normalizer) params(imports map[string]string, decl string, fl *ast.FieldList, allowUnnamed bool) ([]ParamSpec, error) {
	if fl == nil {
		return nil, nil
	}
	var params []ParamSpec
	seen := make(map[string]bool)

	for _, field := range fl.List {
		pos := n.Fset.Position(field.Pos())
		if _, ok := field.Type.(*ast.Ellipsis); ok {
			return nil, diag.New(diag.KindUnsupported).At(pos).Decl(decl).
				Detail("variadic parameters cannot cross the C ABI").Build()
		}
		t := TypeOf(imports, field.Type)

		if len(field.Names) == 0 {
			if !allowUnnamed {
				return nil, diag.New(diag.KindUnsupported).At(pos).Decl(decl).
					Detail("parameter of type %s has no name; only named parameters are supported", t).Build()
			}
			params = append(params, NewParamSpec("arg"+strconv.Itoa(len(params)), t, pos))
			continue
		}

		for _, id := range field.Names {
			if id.Name == "_" {
				return nil, diag.New(diag.KindUnsupported).At(n.Fset.Position(id.Pos())).Decl(decl).
					Detail("blank parameter pattern is not supported; name every parameter").Build()
			}
			if seen[id.Name] {
				return nil, diag.New(diag.KindMalformed).At(n.Fset.Position(id.Pos())).Decl(decl).
					Detail("duplicate parameter %q", id.Name).Build()
			}
			seen[id.Name] = true
			params = append(params, NewParamSpec(id.Name, t, n.Fset.Position(id.Pos())))
		}
	}
	return params, nil
}

func (n *Normalizer) results(imports map[string]string, decl string, ft *ast.FuncType) (ReturnSpec, error) {
	if ft.Results == nil || len(ft.Results.List) == 0 {
		return ReturnSpec{Kind: ReturnNone}, nil
	}
	pos := n.Fset.Position(ft.Results.Pos())

	var res []TypeExpr
	for _, field := range ft.Results.List {
		t := TypeOf(imports, field.Type)
		count := len(field.Names)
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			res = append(res, t)
		}
	}

	isErr := n.IsError
	if isErr == nil {
		isErr = IsPredeclaredError
	}

	switch len(res) {
	case 1:
		if isErr(res[0]) {
			return ReturnSpec{Kind: ReturnOutcome, Err: res[0], Pos: pos}, nil
		}
		return ReturnSpec{Kind: ReturnPlain, Type: res[0], Pos: pos}, nil
	case 2:
		if !isErr(res[1]) || isErr(res[0]) {
			return ReturnSpec{}, diag.New(diag.KindIrreducible).At(pos).Decl(decl).
				Detail("results (%s, %s) cannot be reduced to a status; want (T, error)", res[0], res[1]).Build()
		}
		r := ReturnSpec{Kind: ReturnOutcome, Ok: res[0], Err: res[1], Pos: pos}
		if c, ok := res[0].(Composite); ok && c.IsUnit() {
			r.Ok = nil
		}
		return r, nil
	}

	return ReturnSpec{}, diag.New(diag.KindIrreducible).At(pos).Decl(decl).
		Detail("%d results cannot be reduced to a status", len(res)).Build()
}

// IsPredeclaredError reports whether t is the predeclared error type.
func IsPredeclaredError(t TypeExpr) bool {
	n, ok := t.(Named)
	return ok && n.Pkg == "" && n.Name == "error"
}

// TypeOf converts a type expression into the closed TypeExpr model.
func TypeOf(imports map[string]string, expr ast.Expr) TypeExpr {
	switch e := expr.(type) {
	case *ast.Ident:
		return Named{Name: e.Name}
	case *ast.SelectorExpr:
		if x, ok := e.X.(*ast.Ident); ok {
			return Named{Pkg: x.Name, Path: imports[x.Name], Name: e.Sel.Name}
		}
	case *ast.StarExpr:
		return Pointer{Elem: TypeOf(imports, e.X)}
	case *ast.ParenExpr:
		return TypeOf(imports, e.X)
	case *ast.IndexExpr:
		if base, ok := TypeOf(imports, e.X).(Named); ok {
			return Instance{Base: base, Args: []TypeExpr{TypeOf(imports, e.Index)}}
		}
	case *ast.IndexListExpr:
		if base, ok := TypeOf(imports, e.X).(Named); ok {
			args := make([]TypeExpr, len(e.Indices))
			for i, idx := range e.Indices {
				args[i] = TypeOf(imports, idx)
			}
			return Instance{Base: base, Args: args}
		}
	case *ast.ArrayType:
		if e.Len == nil {
			return Composite{Kind: "slice", Text: types.ExprString(e)}
		}
		return Composite{Kind: "array", Text: types.ExprString(e)}
	case *ast.MapType:
		return Composite{Kind: "map", Text: types.ExprString(e)}
	case *ast.ChanType:
		return Composite{Kind: "chan", Text: types.ExprString(e)}
	case *ast.FuncType:
		return Composite{Kind: "func", Text: types.ExprString(e)}
	case *ast.StructType:
		return Composite{Kind: "struct", Text: types.ExprString(e)}
	case *ast.InterfaceType:
		return Composite{Kind: "interface", Text: types.ExprString(e)}
	}
	return Composite{Kind: fmt.Sprintf("%T", expr), Text: types.ExprString(expr)}
}

// Imports maps the package names visible in f to their import paths. Unnamed
// imports use the conventional name derived from the path.
func Imports(f *ast.File) map[string]string {
	m := make(map[string]string, len(f.Imports))
	for _, spec := range f.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := AssumedPackageName(p)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == "_" || name == "." {
			continue
		}
		m[name] = p
	}
	return m
}

// AssumedPackageName guesses the package name of an import path: the last
// element without a "go-" prefix, "-go" suffix or major version element.
func AssumedPackageName(importPath string) string {
	base := path.Base(importPath)
	if strings.HasPrefix(base, "v") {
		if _, err := strconv.Atoi(base[1:]); err == nil {
			if dir := path.Dir(importPath); dir != "." {
				base = path.Base(dir)
			}
		}
	}
	base = strings.TrimPrefix(base, "go-")
	base = strings.TrimSuffix(base, "-go")
	base = strings.TrimSuffix(base, ".go")

	for i, r := range base {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || i > 0 && r >= '0' && r <= '9') {
			return base[:i]
		}
	}
	return base
}
