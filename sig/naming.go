package sig

import (
	"strings"
	"unicode"
)

// SymbolPrefix starts the default exported symbol of handlers and setters.
const SymbolPrefix = "ngx_"

// DefaultSymbol derives the exported symbol for a handler or setter named
// name: "helloHandler" → "ngx_hello_handler".
func DefaultSymbol(name string) string {
	return SymbolPrefix + Snake(strings.TrimPrefix(name, SymbolPrefix))
}

// Snake converts a Go identifier to lower snake case.
// Runs of capitals stay together: "HTTPHandler" → "http_handler".
func Snake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
