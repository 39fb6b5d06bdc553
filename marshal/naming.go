package marshal

import (
	"strconv"

	"github.com/chazu/ngxgen/sig"
)

// RawName is the name of the raw parameter carrying param.
// e.g., "req" → "reqRaw"
func RawName(param string) string {
	return param + "Raw"
}

// CTypedefName is the C function pointer typedef for a callback type.
// e.g., "BodyHandler" → "ngxgen_body_handler_fn"
func CTypedefName(callback string) string {
	return "ngxgen_" + sig.Snake(callback) + "_fn"
}

// TrampolineName is the static C function that invokes a callback pointer.
// e.g., "BodyHandler" → "ngxgen_call_body_handler"
func TrampolineName(callback string) string {
	return "ngxgen_call_" + sig.Snake(callback)
}

// RawTypeName is the Go alias of a callback's raw function pointer type.
func RawTypeName(callback string) string {
	return callback + "Raw"
}

// ConstructorName is the function wrapping a raw pointer into a callback.
func ConstructorName(callback string) string {
	return "New" + callback
}

// Names hands out identifiers that do not collide with names already taken
// in a generated function body.
type Names map[string]bool

// NewNames reserves taken.
func NewNames(taken ...string) Names {
	n := make(Names, len(taken))
	for _, t := range taken {
		n[t] = true
	}
	return n
}

// Fresh reserves and returns base, or base followed by the first free number.
func (n Names) Fresh(base string) string {
	name := base
	for i := 1; n[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	n[name] = true
	return name
}

// Clone returns an independent copy of n.
func (n Names) Clone() Names {
	c := make(Names, len(n))
	for k := range n {
		c[k] = true
	}
	return c
}
