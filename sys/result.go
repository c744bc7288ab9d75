package sys

import "errors"

// Result carries either a value or the error that prevented producing it. Code that
// must never fail its caller (such as cache lookups) passes Results between layers
// and decides at the boundary how to log and which default to return.
type Result[T any] struct {
	Ok  T
	Err error
}

// IsOk returns true if the Result holds a value.
func (r Result[T]) IsOk() bool {
	return r.Err == nil
}

// IsErr returns true if the Result holds an error. With arguments, it returns true
// only if the error matches one of them via errors.Is.
func (r Result[T]) IsErr(checks ...error) bool {
	if r.Err == nil {
		return false
	}
	if len(checks) == 0 {
		return true
	}
	for _, err := range checks {
		if errors.Is(r.Err, err) {
			return true
		}
	}
	return false
}

// Or returns the value, or def when the Result holds an error.
func (r Result[T]) Or(def T) T {
	if r.Err != nil {
		return def
	}
	return r.Ok
}

// Ok creates a successful Result.
func Ok[T any](value T) Result[T] {
	return Result[T]{Ok: value}
}

// Err creates a failed Result holding the zero value of T.
func Err[T any](err error) Result[T] {
	var zero T
	return Result[T]{Ok: zero, Err: err}
}
