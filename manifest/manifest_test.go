package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/ngxgen/marshal"
	"github.com/chazu/ngxgen/sig"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[generate]
output = "hello_ngx.go"
callbacks_output = "hello_ngx_cb.go"
preamble = """
#include <ngx_config.h>
#include <ngx_http.h>
"""
log_err = "logger.Error"

[classify]
handle_suffix = "Handle"
error_suffixes = ["Err"]

[handles]
Request = "C.ngx_http_request_t"

[ctypes]
Flags = "C.ngx_uint_t"

[policy]
null_erased = "fail"

[symbols]
cbor = "build/symbols.cbor"
sqlite = "/var/lib/ngxgen/symbols.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Generate.Output != "hello_ngx.go" || m.Generate.CallbacksOutput != "hello_ngx_cb.go" {
		t.Errorf("outputs = %q, %q", m.Generate.Output, m.Generate.CallbacksOutput)
	}
	if !strings.Contains(m.Generate.Preamble, "#include <ngx_http.h>") {
		t.Errorf("preamble = %q", m.Generate.Preamble)
	}
	if m.Generate.Runtime != marshal.DefaultRuntime {
		t.Errorf("runtime = %q, want default", m.Generate.Runtime)
	}
	if m.Handles["Request"] != "C.ngx_http_request_t" || m.CTypes["Flags"] != "C.ngx_uint_t" {
		t.Errorf("tables = %v %v", m.Handles, m.CTypes)
	}

	pred := m.HandlePredicate()
	if !pred.IsHandle(sig.Named{Name: "PoolHandle"}) || !pred.IsHandle(sig.Named{Name: "Request"}) {
		t.Error("configured handles not recognized")
	}
	if pred.IsHandle(sig.Named{Name: "RequestRef"}) {
		t.Error("default suffix still active after override")
	}
	if !m.IsError()(sig.Pointer{Elem: sig.Named{Name: "StatusErr"}}) {
		t.Error("error suffix not applied")
	}

	table, err := m.Table()
	if err != nil {
		t.Fatal(err)
	}
	if table.Policy != marshal.NullFail {
		t.Errorf("policy = %s, want fail", table.Policy)
	}

	opts, err := m.Options()
	if err != nil {
		t.Fatal(err)
	}
	if opts.LogErr != "logger.Error" || opts.Classifier == nil || opts.Table.Policy != marshal.NullFail {
		t.Errorf("options = %+v", opts)
	}

	if got := m.SymbolsCBORPath(); got != filepath.Join(m.Dir, "build", "symbols.cbor") {
		t.Errorf("cbor path = %q", got)
	}
	if got := m.SymbolsDBPath(); got != "/var/lib/ngxgen/symbols.db" {
		t.Errorf("sqlite path = %q", got)
	}
	h, cb := m.OutputPaths("/src/hello")
	if h != "/src/hello/hello_ngx.go" || cb != "/src/hello/hello_ngx_cb.go" {
		t.Errorf("output paths = %q, %q", h, cb)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Generate.Output != DefaultOutput || m.Generate.CallbacksOutput != DefaultCallbacksOutput {
		t.Errorf("default outputs = %v", m.Outputs())
	}
	if m.Classify.HandleSuffix != DefaultHandleSuffix || m.Policy.NullErased != "abort" {
		t.Errorf("defaults = %+v %+v", m.Classify, m.Policy)
	}
	if m.SymbolsCBORPath() != "" || m.SymbolsDBPath() != "" {
		t.Error("symbol artifacts must be off by default")
	}

	d := Default(dir)
	if d.Generate.Output != m.Generate.Output || d.Classify.HandleSuffix != m.Classify.HandleSuffix {
		t.Errorf("Default() = %+v, want the same defaults as an empty file", d)
	}
}

func TestEmptyHandleSuffixDisablesConvention(t *testing.T) {
	m, err := Parse(FileName, []byte("[classify]\nhandle_suffix = \"\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if m.HandlePredicate().IsHandle(sig.Named{Name: "RequestRef"}) {
		t.Error("an explicit empty suffix must disable the convention")
	}
}

func TestManifestValidation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown section", "[project]\nname = \"x\"\n", "project"},
		{"unknown key", "[generate]\nflavor = \"spicy\"\n", "flavor"},
		{"bad policy", "[policy]\nnull_erased = \"ignore\"\n", "null_erased"},
		{"output not a go file", "[generate]\noutput = \"shims.c\"\n", "output"},
		{"output with directory", "[generate]\noutput = \"out/shims.go\"\n", "output"},
		{"mirror not a C type", "[handles]\nRequestRef = \"ngx_http_request_t\"\n", "RequestRef"},
		{"wrong type", "[classify]\nerror_suffixes = \"Err\"\n", "error_suffixes"},
		{"toml syntax", "[generate\n", "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(FileName, []byte(tt.src))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[generate]\noutput = \"found.go\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Generate.Output != "found.go" {
		t.Errorf("output = %q, want found.go", m.Generate.Output)
	}
	abs, _ := filepath.Abs(dir)
	if m.Dir != abs {
		t.Errorf("Dir = %q, want %q", m.Dir, abs)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no ngxgen.toml exists")
	}
}

func TestExampleManifest(t *testing.T) {
	m, err := Load("testdata")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Handles["Conf"] != "C.ngx_conf_t" || m.Generate.LogErr != "rt.LogError" {
		t.Errorf("manifest = %+v", m)
	}
	if !m.HandlePredicate().IsHandle(sig.Named{Name: "Conf"}) {
		t.Error("Conf is listed in [handles]")
	}
	if _, err := m.Options(); err != nil {
		t.Errorf("Options: %v", err)
	}
}
