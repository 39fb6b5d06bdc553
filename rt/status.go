package rt

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Int is the host status integer (ngx_int_t). Go's int has the width of
// intptr_t on every platform cgo supports.
type Int = int

// Host status sentinels.
const (
	OK       Int = 0
	ERROR    Int = -1
	AGAIN    Int = -2
	BUSY     Int = -3
	DONE     Int = -4
	DECLINED Int = -5
	ABORT    Int = -6
)

// Sentinel is any integer type that converts losslessly into a status word.
type Sentinel interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Code is a host status carried as a Go error.
type Code Int

var codeNames = map[Code]string{
	Code(OK):       "OK",
	Code(ERROR):    "ERROR",
	Code(AGAIN):    "AGAIN",
	Code(BUSY):     "BUSY",
	Code(DONE):     "DONE",
	Code(DECLINED): "DECLINED",
	Code(ABORT):    "ABORT",
}

// IsOK reports whether c is the success sentinel.
func (c Code) IsOK() bool { return Int(c) == OK }

// StatusCode returns c as an HTTP status when it is in the HTTP range.
func (c Code) StatusCode() (int, bool) {
	if c >= 100 && c <= 599 {
		return int(c), true
	}
	return 0, false
}

// Known reports whether c is a named sentinel or an HTTP status.
func (c Code) Known() bool {
	if _, ok := codeNames[c]; ok {
		return true
	}
	_, ok := c.StatusCode()
	return ok
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	if s, ok := c.StatusCode(); ok {
		if text := http.StatusText(s); text != "" {
			return strconv.Itoa(s) + " " + text
		}
		return strconv.Itoa(s)
	}
	return "status " + strconv.Itoa(int(c))
}

func (c Code) Error() string { return c.String() }

// RawErr returns c as a status word.
func (c Code) RawErr() Int { return Int(c) }

// RawErrer is implemented by errors that carry their own host status.
type RawErrer interface {
	RawErr() Int
}

// UnknownStatusError is returned for a status the host convention does not define.
type UnknownStatusError struct {
	Status Int
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unrecognized host status %d", e.Status)
}

// ErrStatus reduces a failure to a status word. Errors implementing RawErrer
// anywhere in their chain keep their status; everything else is ERROR. A
// failure never reduces to OK.
func ErrStatus(err error) Int {
	var r RawErrer
	if errors.As(err, &r) {
		if rc := r.RawErr(); rc != OK {
			return rc
		}
	}
	return ERROR
}

// IntoStatus converts a plain or success value into a status word.
func IntoStatus[T Sentinel](v T) Int { return Int(v) }

// IsErr reports whether e differs from the zero value of its type. Generated
// shims use it for error interfaces and pointer error types only; an error
// passed by value fails when its RawErr or RawConf status is not OK.
func IsErr[E comparable](e E) bool {
	var zero E
	return e != zero
}

// StatusError expands a status word into an error: OK is nil, named
// sentinels and HTTP statuses are Codes, anything else is an UnknownStatusError.
func StatusError(rc Int) error {
	if rc == OK {
		return nil
	}
	if c := Code(rc); c.Known() {
		return c
	}
	return &UnknownStatusError{Status: rc}
}

// SplitStatus expands a status word that may carry a success payload.
// Non-negative values are payloads; negative values are failures.
func SplitStatus(rc Int) (Int, error) {
	if rc >= 0 {
		return rc, nil
	}
	return 0, StatusError(rc)
}

// ConfStatus is the pointer-sized configuration status (char * in the host).
type ConfStatus = uintptr

// Configuration status sentinels: NGX_CONF_OK is NULL, NGX_CONF_ERROR is (void *) -1.
const (
	ConfOK    ConfStatus = 0
	ConfError ConfStatus = ^ConfStatus(0)
)

// RawConfErrer is implemented by errors that carry their own configuration status.
type RawConfErrer interface {
	RawConf() ConfStatus
}

// ConfErrStatus reduces a configuration failure to a status word.
func ConfErrStatus(err error) ConfStatus {
	var r RawConfErrer
	if errors.As(err, &r) {
		if rc := r.RawConf(); rc != ConfOK {
			return rc
		}
	}
	return ConfError
}

// IntoConf converts a plain value into a configuration status word.
func IntoConf[T ~uintptr](v T) ConfStatus { return ConfStatus(v) }

// FailureMessage is the text handed to a logger when a call fails.
func FailureMessage(symbol string, err any) string {
	return fmt.Sprintf("call `%s` failed, %v", symbol, err)
}
