package sig

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/chazu/ngxgen/diag"
)

// DirectivePrefix starts every generator directive comment.
const DirectivePrefix = "//ngx:"

// Directive is a parsed `//ngx:<kind> key=value ...` comment.
type Directive struct {
	Kind DeclKind
	// Name overrides the exported symbol or wrapper type name.
	Name string
	// LogErr is the logger expression invoked with the failure message.
	LogErr string
	Pos    token.Position
}

var directiveKinds = map[string]DeclKind{
	"handler":  Handler,
	"setter":   Setter,
	"callback": Callback,
}

// FindDirective returns the first directive comment in doc.
func FindDirective(doc *ast.CommentGroup) *ast.Comment {
	if doc == nil {
		return nil
	}
	for _, c := range doc.List {
		if strings.HasPrefix(c.Text, DirectivePrefix) {
			return c
		}
	}
	return nil
}

// ParseDirective parses the text of a directive comment. decl names the
// annotated declaration for diagnostics.
func ParseDirective(text string, pos token.Position, decl string) (*Directive, error) {
	body := strings.TrimPrefix(text, DirectivePrefix)
	kindWord, rest, _ := strings.Cut(body, " ")

	kind, ok := directiveKinds[kindWord]
	if !ok {
		return nil, diag.New(diag.KindOption).At(pos).Decl(decl).
			Detail("unknown directive %q, want one of handler, setter, callback", DirectivePrefix+kindWord).
			Build()
	}

	d := &Directive{Kind: kind, Pos: pos}
	fields, err := splitOptions(rest)
	if err != nil {
		return nil, diag.New(diag.KindOption).At(pos).Decl(decl).Detail("%v", err).Build()
	}

	seen := make(map[string]bool)
	for _, f := range fields {
		key, value, hasValue := strings.Cut(f, "=")
		if seen[key] {
			return nil, diag.New(diag.KindOption).At(pos).Decl(decl).
				Detail("option %q given twice", key).Build()
		}
		seen[key] = true

		switch key {
		case "name":
			if !hasValue || value == "" {
				return nil, diag.New(diag.KindMissing).At(pos).Decl(decl).
					Detail("option name requires an identifier").Build()
			}
			if !token.IsIdentifier(value) {
				return nil, diag.New(diag.KindOption).At(pos).Decl(decl).
					Detail("name %q is not a valid identifier", value).Build()
			}
			d.Name = value
		case "log_err":
			if !hasValue || value == "" {
				return nil, diag.New(diag.KindMissing).At(pos).Decl(decl).
					Detail("option log_err requires a logger expression").Build()
			}
			if _, err := parser.ParseExpr(value); err != nil {
				return nil, diag.New(diag.KindOption).At(pos).Decl(decl).
					Detail("log_err %q is not an expression: %v", value, err).Build()
			}
			d.LogErr = value
		default:
			return nil, diag.New(diag.KindOption).At(pos).Decl(decl).
				Detail("unknown option %q, want name or log_err", key).Build()
		}
	}

	return d, nil
}

// splitOptions splits on spaces that are outside brackets and quotes, so
// log_err=req.Log().With("a b").Error stays one field.
func splitOptions(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	depth := 0
	var quote rune

	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}

	for _, r := range s {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '`' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == '(' || r == '[' || r == '{':
			depth++
			cur.WriteRune(r)
		case r == ')' || r == ']' || r == '}':
			depth--
			if depth < 0 {
				return nil, errUnbalanced
			}
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && depth == 0:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if depth != 0 || quote != 0 {
		return nil, errUnbalanced
	}
	flush()
	return fields, nil
}

type optionError string

func (e optionError) Error() string { return string(e) }

const errUnbalanced = optionError("unbalanced brackets or quotes in directive options")
