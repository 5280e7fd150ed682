// Package apierr defines the error kinds surfaced to scripts by device API
// plugins, and converts them to WebAPIException-shaped script values.
//
// Go code returns these as ordinary errors. Only the script boundary turns
// them into thrown exceptions (synchronous calls) or error callback arguments
// (asynchronous calls).
package apierr

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// Kind is the exception name seen by scripts.
type Kind string

const (
	TypeMismatch        Kind = "TypeMismatchError"
	InvalidValues       Kind = "InvalidValuesError"
	NotFound            Kind = "NotFoundError"
	Unknown             Kind = "UnknownError"
	Security            Kind = "SecurityError"
	NotSupported        Kind = "NotSupportedError"
	ServiceNotAvailable Kind = "ServiceNotAvailableError"
	InvalidState        Kind = "InvalidStateError"
)

// Code returns the legacy numeric code scripts see as exception.code.
// Kinds without a legacy code use 0.
func (k Kind) Code() int {
	switch k {
	case NotFound:
		return 8
	case NotSupported:
		return 9
	case InvalidState:
		return 11
	case TypeMismatch:
		return 17
	case Security:
		return 18
	default:
		return 0
	}
}

// Error is a device API error with a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error of the same kind, so errors.Is(err,
// apierr.New(apierr.NotFound, "")) works as a kind test.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind whose message is prefixed by msg
// and which unwraps to cause.
func Wrap(kind Kind, cause error, msg string) *Error {
	m := msg
	if cause != nil {
		if m != "" {
			m += ": "
		}
		m += cause.Error()
	}
	return &Error{Kind: kind, Message: m, cause: cause}
}

// Kinded is implemented by errors from other layers, such as platform
// service errors, that know which kind they map to.
type Kinded interface {
	error
	APIErrorKind() Kind
}

// KindOf returns the kind of err, or Unknown if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.APIErrorKind()
	}
	return Unknown
}

// From normalizes err into an *Error. Errors without a kind become Unknown.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var k Kinded
	if errors.As(err, &k) {
		return &Error{Kind: k.APIErrorKind(), Message: err.Error(), cause: err}
	}
	return &Error{Kind: Unknown, Message: err.Error(), cause: err}
}

// ToJS builds the WebAPIException-shaped object for err.
func ToJS(vm *goja.Runtime, err error) *goja.Object {
	e := From(err)
	obj := vm.NewObject()
	_ = obj.Set("name", string(e.Kind))
	_ = obj.Set("code", e.Kind.Code())
	_ = obj.Set("message", e.Message)
	_ = obj.Set("toString", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(e.Error())
	})
	return obj
}

// Throw raises err as a script exception. It must only be called from a
// native function invoked by the engine; it never returns.
func Throw(vm *goja.Runtime, err error) {
	panic(ToJS(vm, err))
}

// FromJS recovers an *Error from a thrown script value, when the value has the
// WebAPIException shape. ok is false for other values.
func FromJS(v goja.Value) (e *Error, ok bool) {
	obj, isObj := v.(*goja.Object)
	if !isObj {
		return nil, false
	}
	name := obj.Get("name")
	if name == nil || goja.IsUndefined(name) {
		return nil, false
	}
	msg := ""
	if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
		msg = m.String()
	}
	return &Error{Kind: Kind(name.String()), Message: msg}, true
}
