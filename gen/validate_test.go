package gen

import (
	"strings"
	"testing"
)

func TestNewCodeValidator(t *testing.T) {
	cv := NewCodeValidator("test.go")
	if cv == nil {
		t.Fatal("NewCodeValidator returned nil")
	}
	if cv.filename != "test.go" {
		t.Errorf("filename = %q, want %q", cv.filename, "test.go")
	}
}

func TestValidateSyntax(t *testing.T) {
	cv := NewCodeValidator("test.go")
	if errs := cv.ValidateSyntax("package main\n\nfunc main() {}\n"); len(errs) != 0 {
		t.Errorf("valid code reported %v", errs)
	}

	errs := cv.ValidateSyntax("package main\n\nfunc main() {\n\tx :=\n}\n")
	if len(errs) == 0 {
		t.Fatal("expected a syntax error")
	}
	if errs[0].Line != 5 {
		t.Errorf("syntax error at line %d, want 5", errs[0].Line)
	}
}

func TestValidate_ValidCode(t *testing.T) {
	cv := NewCodeValidator("test.go")
	source := `package main

func main() {
	x := 1
	_ = x
}
`
	errors := cv.Validate(source, nil)
	if len(errors) != 0 {
		t.Errorf("Expected no errors for valid code, got %d: %v", len(errors), errors)
	}
}

func TestValidate_TypeErrorWrongType(t *testing.T) {
	cv := NewCodeValidator("test.go")
	source := `package main

func main() {
	var x int = "not an int"
	_ = x
}
`
	errors := cv.Validate(source, nil)
	if len(errors) == 0 {
		t.Error("Expected type error for wrong type, got none")
	}
}

func TestValidate_AgainstPackageFiles(t *testing.T) {
	cv := NewCodeValidator("ngx_handlers.go")
	generated := `package hello

func shim() int {
	return hello(1)
}

func broken() int {
	return missing()
}
`
	pkg := map[string]string{
		"hello.go": `package hello

func hello(n int) int { return n }

var unused int = "package files are not ours to report"
`,
	}

	errors := cv.Validate(generated, pkg)
	if len(errors) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errors), errors)
	}
	if errors[0].Function != "broken" || !strings.Contains(errors[0].Message, "missing") {
		t.Errorf("error = %+v", errors[0])
	}
}

func TestValidate_AcceptsC(t *testing.T) {
	cv := NewCodeValidator("test.go")
	source := `package hello

// #include <stdint.h>
import "C"

func width() C.intptr_t {
	return C.intptr_t(0)
}
`
	if errors := cv.Validate(source, nil); len(errors) != 0 {
		t.Errorf("cgo references reported: %v", errors)
	}
}

func TestValidate_MethodWithReceiver(t *testing.T) {
	cv := NewCodeValidator("test.go")
	source := `package main

type Counter struct {
	value int
}

func (c *Counter) Increment() {
	_ = undefinedVar
}

func main() {}
`
	errors := cv.Validate(source, nil)
	found := false
	for _, err := range errors {
		if err.Function == "Increment" && err.Receiver == "*Counter" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Expected error attributed to Increment method, got: %v", errors)
	}
}

func TestFunctionsWithErrors(t *testing.T) {
	errors := []ValidationError{
		{Function: "Increment", Receiver: "*Counter", Message: "test"},
		{Function: "helper", Message: "test"},
		{Function: "<package>", Message: "package level"},
		{Function: "", Message: "no function"},
	}

	funcs := FunctionsWithErrors(errors)
	if len(funcs) != 2 || !funcs["*Counter.Increment"] || !funcs["helper"] {
		t.Errorf("FunctionsWithErrors = %v", funcs)
	}
}

func TestFormatValidationErrors(t *testing.T) {
	if got := FormatValidationErrors(nil); got != "" {
		t.Errorf("empty input formatted as %q", got)
	}

	got := FormatValidationErrors([]ValidationError{
		{Function: "Increment", Receiver: "*Counter", Message: "undefined: x"},
		{Function: "ngx_hello", Message: "missing return"},
		{Function: "<package>", Message: "imported and not used"},
	})
	for _, want := range []string{
		"(*Counter).Increment: undefined: x",
		"ngx_hello: missing return",
		"  imported and not used",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}
