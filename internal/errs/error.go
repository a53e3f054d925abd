// Package errs implements the call-site-framed error used throughout the
// module: every exported function that can fail wraps the underlying error
// with the frame it was returned from, so a top-level failure carries a
// breadcrumb trail without needing a stack trace capture.
package errs

import (
	"fmt"
	"runtime"
	"strings"
)

// TracedError contains an error and the call frames it passed through.
type TracedError struct {
	Err    error
	Frames []runtime.Frame
}

// Error implements the error interface.
func (err *TracedError) Error() string {
	str := fmt.Sprint(err.Err)
	for _, frame := range err.Frames {
		str += fmt.Sprintf("\n[%s:%d]", frame.Function, frame.Line)
	}
	return str
}

// Unwrap allows errors.Is/errors.As to see through to the underlying error.
func (err *TracedError) Unwrap() error {
	return err.Err
}

// Error wraps e in a *TracedError, or appends a frame if e already is one.
func Error(e interface{}) *TracedError {
	if e == nil {
		return nil
	}

	frame := lastFrame()

	switch err := e.(type) {
	case *TracedError:
		err.Frames = append(err.Frames, frame)
		return err

	case error:
		return &TracedError{
			Err:    err,
			Frames: []runtime.Frame{frame},
		}

	default:
		return &TracedError{
			Err:    fmt.Errorf("%v", e),
			Frames: []runtime.Frame{frame},
		}
	}
}

// Errorf creates a new TracedError from a format string.
func Errorf(format string, args ...interface{}) *TracedError {
	return &TracedError{
		Err:    fmt.Errorf(format, args...),
		Frames: []runtime.Frame{lastFrame()},
	}
}

// MergeErrors merges multiple errors into a single TracedError, or returns
// nil if errors is empty.
func MergeErrors(errors []error) *TracedError {
	if len(errors) == 0 {
		return nil
	}

	str := make([]string, 0, len(errors))
	for _, err := range errors {
		str = append(str, fmt.Sprint(err))
	}

	return &TracedError{
		Err:    fmt.Errorf("%s", strings.Join(str, "; ")),
		Frames: []runtime.Frame{lastFrame()},
	}
}

func lastFrame() runtime.Frame {
	pc := make([]uintptr, 1)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])
	frame, _ := frames.Next()

	return frame
}
