// Package jsconv converts script arguments to Go values.
//
// Every converter reports a TypeMismatchError naming the argument when the
// value has the wrong shape, so plugins can pass the error straight to
// plugin.Env.Throw.
package jsconv

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/apierr"
)

// IsNullish reports whether v is absent, undefined or null.
func IsNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func mismatch(name, want string) error {
	return apierr.New(apierr.TypeMismatch, "%s must be %s", name, want)
}

// String converts v with ToString semantics. Nullish values are rejected.
func String(v goja.Value, name string) (string, error) {
	if IsNullish(v) {
		return "", mismatch(name, "a string")
	}
	if _, isObj := v.(*goja.Object); isObj {
		if _, isFn := goja.AssertFunction(v); isFn {
			return "", mismatch(name, "a string")
		}
	}
	return v.String(), nil
}

// OptionalString is String, but nullish values yield ok == false.
func OptionalString(v goja.Value, name string) (s string, ok bool, err error) {
	if IsNullish(v) {
		return "", false, nil
	}
	s, err = String(v, name)
	return s, err == nil, err
}

// Bool converts v with ToBoolean semantics. Nullish values are rejected.
func Bool(v goja.Value, name string) (bool, error) {
	if IsNullish(v) {
		return false, mismatch(name, "a boolean")
	}
	return v.ToBoolean(), nil
}

// Number converts v with ToNumber semantics, rejecting NaN.
func Number(v goja.Value, name string) (float64, error) {
	if IsNullish(v) {
		return 0, mismatch(name, "a number")
	}
	f := v.ToFloat()
	if math.IsNaN(f) {
		return 0, mismatch(name, "a number")
	}
	return f, nil
}

// Int is Number truncated toward zero.
func Int(v goja.Value, name string) (int64, error) {
	f, err := Number(v, name)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) {
		return 0, mismatch(name, "a finite number")
	}
	return int64(f), nil
}

// Enum converts v to a string that must be one of allowed.
func Enum(v goja.Value, name string, allowed []string) (string, error) {
	s, err := String(v, name)
	if err != nil {
		return "", err
	}
	if !slices.Contains(allowed, s) {
		return "", mismatch(name, "one of "+strings.Join(allowed, ", "))
	}
	return s, nil
}

// Function asserts v is callable.
func Function(v goja.Value, name string) (goja.Callable, error) {
	if IsNullish(v) {
		return nil, mismatch(name, "a function")
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, mismatch(name, "a function")
	}
	return fn, nil
}

// OptionalFunction returns v unchanged when it is nullish or a function.
func OptionalFunction(v goja.Value, name string) (goja.Value, error) {
	if IsNullish(v) {
		return goja.Undefined(), nil
	}
	if _, err := Function(v, name); err != nil {
		return nil, err
	}
	return v, nil
}

// Object asserts v is an object (functions excluded).
func Object(v goja.Value, name string) (*goja.Object, error) {
	obj, ok := v.(*goja.Object)
	if !ok || IsNullish(v) {
		return nil, mismatch(name, "an object")
	}
	if _, isFn := goja.AssertFunction(v); isFn {
		return nil, mismatch(name, "an object")
	}
	return obj, nil
}

// OptionalObject is Object, but nullish values yield nil.
func OptionalObject(v goja.Value, name string) (*goja.Object, error) {
	if IsNullish(v) {
		return nil, nil
	}
	return Object(v, name)
}

// Date converts a script Date to a time.Time.
func Date(v goja.Value, name string) (time.Time, error) {
	if IsNullish(v) {
		return time.Time{}, mismatch(name, "a Date")
	}
	t, ok := v.Export().(time.Time)
	if !ok {
		return time.Time{}, mismatch(name, "a Date")
	}
	return t, nil
}

// NewDate builds a script Date for t.
func NewDate(vm *goja.Runtime, t time.Time) goja.Value {
	d, err := vm.New(vm.Get("Date"), vm.ToValue(t.UnixMilli()))
	if err != nil {
		return goja.Null()
	}
	return d
}

// Field returns obj[key], or undefined when obj is nil.
func Field(obj *goja.Object, key string) goja.Value {
	if obj == nil {
		return goja.Undefined()
	}
	v := obj.Get(key)
	if v == nil {
		return goja.Undefined()
	}
	return v
}

// Callbacks reads the named function properties of obj, as passed to
// bridge.Bridge.Listen. Missing properties are omitted; non-functions are left
// in place for Listen to reject.
func Callbacks(obj *goja.Object, names ...string) map[string]goja.Value {
	out := make(map[string]goja.Value, len(names))
	for _, n := range names {
		if v := Field(obj, n); !IsNullish(v) {
			out[n] = v
		}
	}
	return out
}

// StringArray converts an array-like value to a []string.
func StringArray(vm *goja.Runtime, v goja.Value, name string) ([]string, error) {
	obj, err := Object(v, name)
	if err != nil {
		return nil, err
	}
	var out []string
	if err := vm.ExportTo(obj, &out); err != nil {
		return nil, mismatch(name, "an array of strings")
	}
	return out, nil
}
