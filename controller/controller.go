// Package controller implements spec.md §4.7's ProcessController: the
// single-threaded, cooperative state machine that composes PtraceFacade,
// Launcher, AddressSpaceAnchor, BreakpointSet and Resolver into launch,
// attach, resume, step, stop, wait, wait_until, set_breakpoint and
// register read/write, plus the teardown semantics of §4.8.
package controller

import (
	"io"
	"runtime"
	"time"

	"golang.org/x/sys/unix"

	"github.com/soltesz/inferior/anchor"
	"github.com/soltesz/inferior/breakpoint"
	"github.com/soltesz/inferior/dwarfindex"
	"github.com/soltesz/inferior/internal/errs"
	"github.com/soltesz/inferior/internal/logging"
	"github.com/soltesz/inferior/launch"
	"github.com/soltesz/inferior/ptrace"
	"github.com/soltesz/inferior/resolver"
)

// si_code values the kernel reports for SIGTRAP stops, none of which
// golang.org/x/sys/unix exposes directly; values match the kernel's
// include/uapi/asm-generic/siginfo.h.
const (
	siKernel   = 0x80
	trapTrace  = 2
	trapHWBkpt = 4
)

// Event classifies an extended ptrace stop (spec.md §3 StopReason).
type Event int

const (
	EventNone Event = iota
	EventFork
	EventVfork
	EventClone
	EventExec
	EventExit
)

// TrapReason classifies why a SIGTRAP stop occurred (spec.md §3 StopReason).
type TrapReason int

const (
	TrapReasonNone TrapReason = iota
	TrapReasonSingleStep
	TrapReasonSoftwareBreak
	TrapReasonHardwareBreak
)

// StopReason is what wait/wait_until deliver (spec.md §3).
type StopReason struct {
	State      State
	Signal     unix.Signal
	ExitCode   int
	Event      Event
	TrapReason TrapReason
}

// Controller owns one ProcessHandle and every operation spec.md §4.7
// defines over it. It must be used from a single goroutine pinned to one
// OS thread, since every ptrace call must come from the thread that
// attached (runtime.LockOSThread, the way the teacher's tracer.go runs
// its tracing loop on a dedicated goroutine).
type Controller struct {
	handle *ProcessHandle
	index  *dwarfindex.DwarfIndex
	res    *resolver.Resolver
	sink   logging.Sink
}

// Launch starts path under tracing (spec.md §4.2, §4.7's launch
// transition). Initial state after the post-exec SIGTRAP is consumed is
// Stopped.
func Launch(path string, argv, envp []string, sink logging.Sink) (*Controller, error) {
	runtime.LockOSThread()

	if sink == nil {
		sink = logging.Noop
	}

	result, err := launch.Launch(path, argv, envp, sink)
	if err != nil {
		return nil, errs.Error(err)
	}

	pid := result.PID
	if _, _, err := pid.WaitBlocking(pid.Getpgid(), 5*time.Second); err != nil {
		return nil, errs.Wrapf(errs.ErrKernel, "initial post-exec stop: %v", err)
	}

	if err := pid.SetOptions(ptrace.Options); err != nil {
		return nil, errs.Error(err)
	}

	index, err := dwarfindex.New(path)
	if err != nil {
		return nil, errs.Error(err)
	}

	a, err := anchor.ComputeBias(pid, index.EntryAddress(), path, sink)
	if err != nil {
		return nil, errs.Error(err)
	}

	handle := &ProcessHandle{
		PID:             pid,
		Anchor:          a,
		TerminateOnDrop: true,
		State:           StateStopped,
		Breakpoints:     breakpoint.NewSet(pid),
		Stdout:          result.Stdout,
	}

	return &Controller{
		handle: handle,
		index:  index,
		res:    resolver.New(index, a),
		sink:   sink,
	}, nil
}

// Attach gains tracing control of an already-running process (spec.md
// §4.7's attach transition). execPath names the executable backing pid,
// used to build its DwarfIndex and compute its load bias.
func Attach(pid ptrace.Process, execPath string, sink logging.Sink) (*Controller, error) {
	runtime.LockOSThread()

	if sink == nil {
		sink = logging.Noop
	}

	if err := pid.Attach(); err != nil {
		return nil, errs.Error(err)
	}

	if _, _, err := pid.WaitBlocking(pid.Getpgid(), 5*time.Second); err != nil {
		return nil, errs.Wrapf(errs.ErrKernel, "attach stop: %v", err)
	}

	if err := pid.SetOptions(ptrace.Options); err != nil {
		return nil, errs.Error(err)
	}

	index, err := dwarfindex.New(execPath)
	if err != nil {
		return nil, errs.Error(err)
	}

	a, err := anchor.ComputeBias(pid, index.EntryAddress(), execPath, sink)
	if err != nil {
		return nil, errs.Error(err)
	}

	handle := &ProcessHandle{
		PID:             pid,
		Anchor:          a,
		TerminateOnDrop: false,
		State:           StateStopped,
		Breakpoints:     breakpoint.NewSet(pid),
	}

	return &Controller{
		handle: handle,
		index:  index,
		res:    resolver.New(index, a),
		sink:   sink,
	}, nil
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State { return c.handle.State }

// PID returns the traced process identifier, or 0 if reaped.
func (c *Controller) PID() ptrace.Process { return c.handle.PID }

// Breakpoints returns every breakpoint currently installed.
func (c *Controller) Breakpoints() []*breakpoint.Breakpoint {
	return c.handle.Breakpoints.List()
}

// ReadStdout implements spec.md §4.7's read_stdout(): reads whatever the
// launched inferior has written to its stdout pipe into buf, the pipe
// spec.md §4.2 describes as existing specifically to serve this call. It
// returns io.EOF once the inferior has exited and closed its write end.
// An attached process has no such pipe and always returns ErrState.
func (c *Controller) ReadStdout(buf []byte) (int, error) {
	if c.handle.Stdout == nil {
		return 0, errs.Wrap(errs.ErrState, "read_stdout: no stdout pipe (attached, not launched)")
	}
	n, err := c.handle.Stdout.Read(buf)
	if err != nil && err != io.EOF {
		return n, errs.Error(err)
	}
	return n, err
}

// Resume implements spec.md §4.7's resume(): step over a breakpoint at
// PC if one is armed there, then continue. Breakpoints that Step left
// disarmed are not re-armed here.
func (c *Controller) Resume() error {
	pc, err := breakpoint.GetPC(c.handle.PID)
	if err == nil {
		if bp, ok := c.handle.Breakpoints.AtHit(pc); ok {
			if err := c.handle.Breakpoints.StepOver(bp); err != nil {
				return errs.Error(err)
			}
		}
	}

	if err := c.handle.PID.Cont(0); err != nil {
		return errs.Error(err)
	}

	c.handle.State = StateRunning
	return nil
}

// Step implements spec.md §4.7's step(): disarm + rewind + single-step
// over a breakpoint at PC, otherwise a plain single-step. Does not
// re-arm, and Resume does not re-arm either: a breakpoint stepped over
// here stays disarmed until it is removed.
func (c *Controller) Step() error {
	pc, err := breakpoint.GetPC(c.handle.PID)
	if err == nil {
		if bp, ok := c.handle.Breakpoints.AtHit(pc); ok {
			if err := c.handle.Breakpoints.StepOverNoRearm(bp); err != nil {
				return errs.Error(err)
			}
			c.handle.State = StateStopped
			return nil
		}
	}

	if err := c.handle.PID.SingleStep(); err != nil {
		return errs.Error(err)
	}

	if _, _, err := c.handle.PID.WaitBlocking(c.handle.PID.Getpgid(), time.Second); err != nil {
		return errs.Error(err)
	}

	c.handle.State = StateStopped
	return nil
}

// Stop implements spec.md §4.7's stop(): delivers SIGSTOP without
// waiting; the caller must call Wait.
func (c *Controller) Stop() error {
	if c.handle.State != StateRunning {
		return nil // idempotent no-op per the state diagram
	}
	if err := c.handle.PID.Kill(unix.SIGSTOP); err != nil {
		return errs.Error(err)
	}
	return nil
}

// Wait implements spec.md §4.7's wait(): a single non-blocking waitpid,
// returning nil when nothing has changed.
func (c *Controller) Wait() (*StopReason, error) {
	if c.handle.Zeroed() {
		return nil, errs.Wrap(errs.ErrState, "wait on a reaped process")
	}

	wpid, status, err := c.handle.PID.Wait4(c.handle.PID.Getpgid())
	if err != nil {
		return nil, errs.Error(err)
	}
	if wpid == 0 {
		return nil, nil
	}

	return c.decodeStatus(status)
}

// WaitUntil implements spec.md §4.7's wait_until(timeout): busy-polls
// Wait until exactly one StopReason is produced or timeout elapses.
func (c *Controller) WaitUntil(timeout time.Duration) (*StopReason, error) {
	deadline := time.Now().Add(timeout)

	for {
		if time.Now().After(deadline) {
			return nil, errs.Wrap(errs.ErrTimeout, "wait_until timed out")
		}

		reason, err := c.Wait()
		if err != nil {
			return nil, err
		}
		if reason != nil {
			return reason, nil
		}

		runtime.Gosched()
	}
}

func (c *Controller) decodeStatus(status ptrace.WaitStatus) (*StopReason, error) {
	switch {
	case status.Exited():
		c.handle.State = StateExited
		c.handle.PID = 0
		return &StopReason{State: StateExited, ExitCode: status.ExitStatus()}, nil

	case status.Signaled():
		c.handle.State = StateTerminated
		c.handle.PID = 0
		return &StopReason{State: StateTerminated, Signal: status.Signal()}, nil

	case status.Stopped():
		c.handle.State = StateStopped
		sig := status.StopSignal()

		reason := &StopReason{State: StateStopped, Signal: sig}

		if trapCause := status.TrapCause(); trapCause > 0 {
			reason.Event = eventFromTrapCause(trapCause)
		}

		if sig == unix.SIGTRAP && reason.Event == EventNone {
			reason.TrapReason = c.classifyTrap()
		}

		return reason, nil
	}

	return nil, errs.Errorf("unrecognized wait status %v", status)
}

func eventFromTrapCause(cause int) Event {
	switch cause {
	case unix.PTRACE_EVENT_FORK:
		return EventFork
	case unix.PTRACE_EVENT_VFORK:
		return EventVfork
	case unix.PTRACE_EVENT_CLONE:
		return EventClone
	case unix.PTRACE_EVENT_EXEC:
		return EventExec
	case unix.PTRACE_EVENT_EXIT:
		return EventExit
	default:
		return EventNone
	}
}

// classifyTrap consults siginfo.si_code to distinguish a single-step trap
// from a software (INT3) or hardware breakpoint trap (spec.md §4.7 wait).
func (c *Controller) classifyTrap() TrapReason {
	info, err := c.handle.PID.GetSigInfo()
	if err != nil {
		return TrapReasonNone
	}

	switch info.Code {
	case trapTrace:
		return TrapReasonSingleStep
	case siKernel:
		return TrapReasonSoftwareBreak
	case trapHWBkpt:
		return TrapReasonHardwareBreak
	default:
		return TrapReasonNone
	}
}

// SetBreakpoint implements spec.md §4.7's set_breakpoint(loc): resolves
// loc to zero or more runtime addresses and installs a breakpoint at
// each, returning their ids.
func (c *Controller) SetBreakpoint(loc resolver.Location) ([]uint64, error) {
	addrs, err := c.res.Resolve(loc)
	if err != nil {
		return nil, errs.Error(err)
	}

	ids := make([]uint64, 0, len(addrs))
	for _, addr := range addrs {
		id, err := c.handle.Breakpoints.Add(addr)
		if err != nil {
			return ids, errs.Error(err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// ReadRegisters implements spec.md §4.7's read_registers(); valid only
// while Stopped.
func (c *Controller) ReadRegisters() (unix.PtraceRegs, error) {
	if c.handle.State != StateStopped {
		return unix.PtraceRegs{}, errs.Wrap(errs.ErrState, "read_registers while not stopped")
	}
	regs, err := c.handle.PID.GetRegs()
	if err != nil {
		return regs, errs.Error(err)
	}
	return regs, nil
}

// WriteRegisters implements spec.md §4.7's write_registers(); valid only
// while Stopped.
func (c *Controller) WriteRegisters(regs *unix.PtraceRegs) error {
	if c.handle.State != StateStopped {
		return errs.Wrap(errs.ErrState, "write_registers while not stopped")
	}
	if err := c.handle.PID.SetRegs(regs); err != nil {
		return errs.Error(err)
	}
	return nil
}

// Teardown implements spec.md §4.8's drop semantics. It never returns an
// error to the caller; every failure is logged and swallowed, since
// teardown must never panic or block the caller on a dying inferior.
func (c *Controller) Teardown() {
	if c.handle.Zeroed() {
		return
	}

	pid := c.handle.PID

	if c.handle.State == StateRunning {
		if err := pid.Kill(unix.SIGSTOP); err != nil {
			c.sink.Warn("teardown: SIGSTOP failed", logging.Fields{"pid": pid, "err": err.Error()})
		}
		if _, _, err := pid.WaitBlocking(pid.Getpgid(), 5*time.Second); err != nil {
			c.sink.Warn("teardown: reap after SIGSTOP failed", logging.Fields{"pid": pid, "err": err.Error()})
		}
	}

	if err := pid.Detach(); err != nil {
		c.sink.Warn("teardown: detach failed", logging.Fields{"pid": pid, "err": err.Error()})
	}

	if err := pid.Kill(unix.SIGCONT); err != nil {
		c.sink.Warn("teardown: SIGCONT failed", logging.Fields{"pid": pid, "err": err.Error()})
	}

	if c.handle.TerminateOnDrop {
		if err := pid.Kill(unix.SIGKILL); err != nil {
			c.sink.Warn("teardown: SIGKILL failed", logging.Fields{"pid": pid, "err": err.Error()})
		}
		if _, _, err := pid.WaitBlocking(pid.Getpgid(), 5*time.Second); err != nil {
			c.sink.Warn("teardown: final reap failed", logging.Fields{"pid": pid, "err": err.Error()})
		}
	}

	c.handle.PID = 0
}
