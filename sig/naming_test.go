package sig

import "testing"

func TestToSnake(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Handler", "handler"},
		{"bodyHandler", "body_handler"},
		{"URLRewrite", "url_rewrite"},
		{"already_snake", "already_snake"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Snake(tt.input); got != tt.expected {
				t.Errorf("Snake(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDefaultSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"helloHandler", "ngx_hello_handler"},
		{"SetGreeting", "ngx_set_greeting"},
		{"ngx_hello", "ngx_hello"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := DefaultSymbol(tt.input); got != tt.expected {
				t.Errorf("DefaultSymbol(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
