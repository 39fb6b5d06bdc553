package rt

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// ContractViolation is raised when the host breaks the calling contract, for
// instance by passing null for a non-optional argument.
type ContractViolation struct {
	Param  string
	Reason string
}

func (v *ContractViolation) Error() string {
	return fmt.Sprintf("host contract violation on %s: %s", v.Param, v.Reason)
}

// Abort terminates the process after a contract violation. It must not return
// into host frames by unwinding; the default exits.
var Abort = func(symbol string, v *ContractViolation) {
	Logger().Error("aborting",
		zap.String("symbol", symbol),
		zap.String("param", v.Param),
		zap.String("reason", v.Reason))
	_ = Logger().Sync()
	os.Exit(2)
}

// Guard is deferred first in every generated shim. It stops any panic at the
// boundary and stores failure into *rc instead.
func Guard[S Sentinel](symbol string, rc *S, failure S) {
	if r := recover(); r != nil {
		handlePanic(symbol, r)
		*rc = failure
	}
}

// GuardVoid is Guard for shims without a result.
func GuardVoid(symbol string) {
	if r := recover(); r != nil {
		handlePanic(symbol, r)
	}
}

func handlePanic(symbol string, r any) {
	if v, ok := r.(*ContractViolation); ok {
		Abort(symbol, v)
		return
	}
	Logger().Error("panic stopped at host boundary",
		zap.String("symbol", symbol),
		zap.Any("panic", r),
		zap.StackSkip("stack", 2))
}

// NullArgument records a null non-optional argument that degrades to the
// failure status.
func NullArgument(symbol, param string) {
	Logger().Warn("null pointer for non-optional argument",
		zap.String("symbol", symbol),
		zap.String("param", param))
}
