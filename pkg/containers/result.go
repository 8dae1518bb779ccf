// Package containers holds small generic helpers shared by the readers.
package containers

// Result carries either a value or the error that prevented producing it.
// Iterators yield Results because range-over-func sequences cannot return an
// error of their own.
type Result[T any] struct {
	Value T
	Err   error
}

func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Err[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

func (r Result[T]) IsErr() bool {
	return r.Err != nil
}

// Get splits the result into the usual value and error pair.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Err
}

// Unwrap returns the value and panics if the result holds an error.
func (r Result[T]) Unwrap() T {
	if r.Err != nil {
		panic("containers: Unwrap called on an error result: " + r.Err.Error())
	}
	return r.Value
}
