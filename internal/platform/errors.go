// Package platform holds what the simulated platform services share: SDK
// style result codes and subscriber fan-out.
//
// Each service lives in its own subpackage and raises events on the goroutine
// that caused them (an injection command, a timer, a discovery worker), never
// on a page's engine loop.
package platform

import "github.com/wrtplugins/wrt/internal/apierr"

// Code is a platform SDK result code.
type Code int

const (
	ErrorNone Code = iota
	ErrorInvalidParameter
	ErrorOutOfMemory
	ErrorIO
	ErrorPermissionDenied
	ErrorNotSupported
	ErrorNotEnabled
	ErrorNotFound
	ErrorResourceBusy
	ErrorTimedOut
	ErrorInvalidState
	ErrorAlreadyDone
	ErrorOperationFailed
)

var messages = map[Code]string{
	ErrorNone:             "Successful",
	ErrorInvalidParameter: "Invalid parameter",
	ErrorOutOfMemory:      "Out of memory",
	ErrorIO:               "Internal I/O error",
	ErrorPermissionDenied: "Permission denied",
	ErrorNotSupported:     "Not supported",
	ErrorNotEnabled:       "Service not enabled",
	ErrorNotFound:         "Not found",
	ErrorResourceBusy:     "Device or resource busy",
	ErrorTimedOut:         "Timed out",
	ErrorInvalidState:     "Invalid state",
	ErrorAlreadyDone:      "Operation already done",
	ErrorOperationFailed:  "Operation failed",
}

// String returns the human-readable message for c.
func (c Code) String() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return "Unknown error"
}

// Kind maps c to the exception kind scripts see.
func (c Code) Kind() apierr.Kind {
	switch c {
	case ErrorInvalidParameter:
		return apierr.InvalidValues
	case ErrorPermissionDenied:
		return apierr.Security
	case ErrorNotSupported:
		return apierr.NotSupported
	case ErrorNotEnabled:
		return apierr.ServiceNotAvailable
	case ErrorNotFound:
		return apierr.NotFound
	case ErrorInvalidState, ErrorAlreadyDone, ErrorResourceBusy:
		return apierr.InvalidState
	default:
		return apierr.Unknown
	}
}

// Error is a failed platform call.
type Error struct {
	Op   string
	Code Code
}

// NewError returns an *Error for op.
func NewError(op string, code Code) *Error {
	return &Error{Op: op, Code: code}
}

func (e *Error) Error() string { return e.Op + ": " + e.Code.String() }

// APIErrorKind implements apierr.Kinded.
func (e *Error) APIErrorKind() apierr.Kind { return e.Code.Kind() }

// Is matches another *Error with the same code, ignoring Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
