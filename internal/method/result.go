package method

import (
	"errors"

	"github.com/vietddude/methodwatch/internal/core/domain"
)

// Result holds the classified outcome of one method invocation. Exactly one
// of the value or the error is set; classification is total, so every
// invocation that completes yields exactly one Result.
type Result[T any] struct {
	val T
	err error
	ok  bool
}

// OK wraps a decoded payload value.
func OK[T any](val T) Result[T] {
	return Result[T]{val: val, ok: true}
}

// Err wraps a classified failure.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Value returns the payload and true when the call succeeded.
func (r Result[T]) Value() (T, bool) {
	return r.val, r.ok
}

// Err returns the classified error, or nil on success.
func (r Result[T]) Err() error {
	return r.err
}

// Kind reports the classification label for a result, suitable for metrics
// and persisted observations.
func Kind[T any](r Result[T]) string {
	err := r.Err()
	if err == nil {
		return domain.KindOK
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind.String()
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return domain.KindDecode
	}
	return domain.KindError
}
