package gateway

// Result carries the outcome of a gateway call. On failure Value is the zero value and
// Err describes what went wrong, so callers can tell "no data" apart from "request failed".
type Result[T any] struct {
	Value T
	Err   error
}

func ok[T any](value T) Result[T] {
	return Result[T]{Value: value, Err: nil}
}

func failed[T any](err error) Result[T] {
	var zero T
	return Result[T]{Value: zero, Err: err}
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// OrEmpty returns the value, or the zero value when the call failed.
func (r Result[T]) OrEmpty() T {
	if r.Err != nil {
		var zero T
		return zero
	}
	return r.Value
}

// Get unpacks the result into the conventional value/error pair.
func (r Result[T]) Get() (T, error) {
	return r.OrEmpty(), r.Err
}
