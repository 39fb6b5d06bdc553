package gen

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"strings"
)

// ValidationError represents a problem in generated code with position info
type ValidationError struct {
	Line     int
	Column   int
	Function string // Function or method containing the error
	Receiver string // Receiver type for methods (empty for functions)
	Message  string
}

// CodeValidator checks generated Go source in memory
type CodeValidator struct {
	fset     *token.FileSet
	filename string
}

// NewCodeValidator creates a validator for the given filename (used in error messages)
func NewCodeValidator(filename string) *CodeValidator {
	return &CodeValidator{
		filename: filename,
	}
}

// ValidateSyntax parses source and reports syntax errors only.
func (cv *CodeValidator) ValidateSyntax(source string) []ValidationError {
	cv.fset = token.NewFileSet()
	_, err := parser.ParseFile(cv.fset, cv.filename, source, parser.AllErrors|parser.ParseComments)
	if err != nil {
		return cv.parseErrorsToValidationErrors(err)
	}
	return nil
}

// Validate parses source and type-checks it together with the package files
// it is generated into. References to the C pseudo-package are accepted
// without checking.
func (cv *CodeValidator) Validate(source string, pkgFiles map[string]string) []ValidationError {
	cv.fset = token.NewFileSet()

	file, err := parser.ParseFile(cv.fset, cv.filename, source, parser.AllErrors|parser.ParseComments)
	if err != nil {
		return cv.parseErrorsToValidationErrors(err)
	}
	files := []*ast.File{file}
	for name, src := range pkgFiles {
		f, err := parser.ParseFile(cv.fset, name, src, parser.ParseComments)
		if err != nil {
			return cv.parseErrorsToValidationErrors(err)
		}
		files = append(files, f)
	}

	funcMap := cv.buildFunctionMap(file)

	var typeCheckErrors []ValidationError
	conf := types.Config{
		Importer:    importer.ForCompiler(cv.fset, "source", nil),
		FakeImportC: true,
		Error: func(err error) {
			typeErr, ok := err.(types.Error)
			if !ok {
				return
			}
			pos := cv.fset.Position(typeErr.Pos)
			// Only errors in generated code are ours to report.
			if pos.Filename != cv.filename {
				return
			}
			fn := funcMap[pos.Line]
			if fn == nil {
				fn = &functionInfo{Name: "<package>"}
			}
			typeCheckErrors = append(typeCheckErrors, ValidationError{
				Line:     pos.Line,
				Column:   pos.Column,
				Function: fn.Name,
				Receiver: fn.Receiver,
				Message:  typeErr.Msg,
			})
		},
	}

	_, _ = conf.Check(file.Name.Name, cv.fset, files, nil)

	return typeCheckErrors
}

// FunctionsWithErrors returns the set of functions that have errors
func FunctionsWithErrors(errors []ValidationError) map[string]bool {
	funcs := make(map[string]bool)
	for _, err := range errors {
		if err.Function != "" && err.Function != "<package>" {
			if err.Receiver != "" {
				funcs[err.Receiver+"."+err.Function] = true
			} else {
				funcs[err.Function] = true
			}
		}
	}
	return funcs
}

type functionInfo struct {
	Name      string
	Receiver  string
	StartLine int
	EndLine   int
}

func (cv *CodeValidator) parseErrorsToValidationErrors(err error) []ValidationError {
	var errors []ValidationError

	if list, ok := err.(scanner.ErrorList); ok {
		for _, e := range list {
			errors = append(errors, ValidationError{
				Line:    e.Pos.Line,
				Column:  e.Pos.Column,
				Message: e.Msg,
			})
		}
		return errors
	}

	return append(errors, ValidationError{Line: 1, Column: 1, Message: err.Error()})
}

func (cv *CodeValidator) buildFunctionMap(file *ast.File) map[int]*functionInfo {
	funcMap := make(map[int]*functionInfo)

	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			startPos := cv.fset.Position(fn.Pos())
			endPos := cv.fset.Position(fn.End())

			info := &functionInfo{
				Name:      fn.Name.Name,
				StartLine: startPos.Line,
				EndLine:   endPos.Line,
			}

			if fn.Recv != nil && len(fn.Recv.List) > 0 {
				info.Receiver = cv.extractReceiverType(fn.Recv.List[0].Type)
			}

			for line := startPos.Line; line <= endPos.Line; line++ {
				funcMap[line] = info
			}
		}
	}

	return funcMap
}

func (cv *CodeValidator) extractReceiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return "*" + ident.Name
		}
	}
	return ""
}

// FormatValidationErrors returns a human-readable error report
func FormatValidationErrors(errors []ValidationError) string {
	if len(errors) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, err := range errors {
		sb.WriteString("  ")
		if err.Function != "" && err.Function != "<package>" {
			if err.Receiver != "" {
				sb.WriteString("(" + err.Receiver + ")." + err.Function)
			} else {
				sb.WriteString(err.Function)
			}
			sb.WriteString(": ")
		}
		sb.WriteString(err.Message)
		sb.WriteString("\n")
	}

	return sb.String()
}
