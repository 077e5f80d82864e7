package synth

import (
	"errors"
	"fmt"
)

// ErrSynthesis matches every *Error via errors.Is.
var ErrSynthesis = errors.New("payload synthesis error")

// Error reports why no conforming payload could be produced for a schema.
// Pointer locates the offending fragment relative to the body schema ("#" is
// the root).
type Error struct {
	Pointer string
	Reason  string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("synth: %s: %s", e.Pointer, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error        { return e.Cause }
func (e *Error) Is(target error) bool { return target == ErrSynthesis }

func newError(ptr, format string, args ...any) *Error {
	return &Error{Pointer: ptr, Reason: fmt.Sprintf(format, args...)}
}
