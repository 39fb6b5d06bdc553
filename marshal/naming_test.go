package marshal

import "testing"

func TestCallbackNames(t *testing.T) {
	tests := []struct {
		name     string
		typedef  string
		tramp    string
		rawType  string
		newFunc  string
	}{
		{"BodyHandler", "ngxgen_body_handler_fn", "ngxgen_call_body_handler", "BodyHandlerRaw", "NewBodyHandler"},
		{"HTTPHandler", "ngxgen_http_handler_fn", "ngxgen_call_http_handler", "HTTPHandlerRaw", "NewHTTPHandler"},
		{"cleanup", "ngxgen_cleanup_fn", "ngxgen_call_cleanup", "cleanupRaw", "Newcleanup"},
		{"Phase2Hook", "ngxgen_phase2_hook_fn", "ngxgen_call_phase2_hook", "Phase2HookRaw", "NewPhase2Hook"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CTypedefName(tt.name); got != tt.typedef {
				t.Errorf("CTypedefName(%q) = %q, want %q", tt.name, got, tt.typedef)
			}
			if got := TrampolineName(tt.name); got != tt.tramp {
				t.Errorf("TrampolineName(%q) = %q, want %q", tt.name, got, tt.tramp)
			}
			if got := RawTypeName(tt.name); got != tt.rawType {
				t.Errorf("RawTypeName(%q) = %q, want %q", tt.name, got, tt.rawType)
			}
			if got := ConstructorName(tt.name); got != tt.newFunc {
				t.Errorf("ConstructorName(%q) = %q, want %q", tt.name, got, tt.newFunc)
			}
		})
	}
}

func TestNamesFresh(t *testing.T) {
	n := NewNames("err", "rc", "rc1")
	if got := n.Fresh("err"); got != "err1" {
		t.Errorf("Fresh(err) = %q, want err1", got)
	}
	if got := n.Fresh("err"); got != "err2" {
		t.Errorf("second Fresh(err) = %q, want err2", got)
	}
	if got := n.Fresh("rc"); got != "rc2" {
		t.Errorf("Fresh(rc) = %q, want rc2", got)
	}
	if got := n.Fresh("v"); got != "v" {
		t.Errorf("Fresh(v) = %q, want v", got)
	}
}
