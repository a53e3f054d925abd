package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error-kind taxonomy of spec.md §7. Callers use
// errors.Is against these; the concrete error returned is still a
// *TracedError wrapping one of these via Errorf/Error-style construction,
// so %w-compatible wrapping is required at each construction site.
var (
	// ErrParse covers ill-formed commands, locations or expressions.
	ErrParse = errors.New("parse error")
	// ErrIO covers failures opening or reading the executable / ELF sections.
	ErrIO = errors.New("i/o error")
	// ErrKernel covers a failed ptrace or waitpid call.
	ErrKernel = errors.New("kernel error")
	// ErrState covers an operation invalid for the current lifecycle state.
	ErrState = errors.New("state error")
	// ErrTimeout covers wait_until exceeding its budget.
	ErrTimeout = errors.New("timeout")
	// ErrResolution covers a location that resolved to zero addresses.
	ErrResolution = errors.New("resolution error")
)

// Wrap returns a *TracedError whose message is msg (the kind is not part
// of the text) and which errors.Is-matches kind.
func Wrap(kind error, msg string) *TracedError {
	return Error(&kindError{kind: kind, msg: msg})
}

// Wrapf is like Wrap with a format string.
func Wrapf(kind error, format string, args ...interface{}) *TracedError {
	return Error(&kindError{kind: kind, msg: fmt.Sprintf(format, args...)})
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }
