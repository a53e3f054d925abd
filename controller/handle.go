package controller

import (
	"os"

	"github.com/soltesz/inferior/anchor"
	"github.com/soltesz/inferior/breakpoint"
	"github.com/soltesz/inferior/ptrace"
)

// State is a ProcessHandle's lifecycle state (spec.md §3, §4.7).
type State int

const (
	StateStopped State = iota
	StateRunning
	StateExited
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ProcessHandle is the identity and lifecycle state of one traced
// inferior (spec.md §3 ProcessHandle).
type ProcessHandle struct {
	PID             ptrace.Process
	Anchor          *anchor.Anchor
	TerminateOnDrop bool // true when launched, false when attached
	State           State
	Breakpoints     *breakpoint.Set
	Stdout          *os.File // optional read end of the inferior's stdout pipe
}

// Zeroed reports whether the identifier has been reaped (spec.md §3
// invariant: "Identifier is zero iff the inferior has been reaped").
func (h *ProcessHandle) Zeroed() bool {
	return h.PID == 0
}
