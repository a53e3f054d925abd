// Package ptrace is the PtraceFacade of spec.md §4.1: a thin, typed
// wrapper over the kernel tracing primitives used by every other package.
// Every operation here requires the target to already be in tracing-stop;
// callers are responsible for that precondition.
package ptrace

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/soltesz/inferior/internal/errs"
)

// Linux ptrace request numbers not exposed as named wrappers by
// golang.org/x/sys/unix on every platform/version. Values are from
// include/uapi/linux/ptrace.h and are architecture independent.
const (
	ptraceGetFPRegs  = 14
	ptraceSetFPRegs  = 15
	ptraceGetSigInfo = 0x4202
	ptraceTraceMe    = unix.PTRACE_TRACEME
)

// Options mirrors the PTRACE_O_* bits the core needs to intercept
// clone/fork/vfork/exec/exit, per spec.md §4.1.
const Options = unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_TRACEEXEC |
	unix.PTRACE_O_TRACEEXIT

// Process is a ptrace-traceable OS thread/process identifier. It is the
// PtraceFacade: every method is a direct, typed wrapper over one ptrace
// request, failing with an *errs.TracedError wrapping errs.ErrKernel on
// kernel refusal.
type Process int

// TraceMe requests that the kernel stop this (the calling, child-side)
// process at the next execve. Must be called between fork and execve.
func TraceMe() error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, uintptr(ptraceTraceMe), 0, 0, 0, 0, 0)
	return wrapErrno(errno)
}

// Attach requests tracing control over an already-running process.
func (p Process) Attach() error {
	return wrap(unix.PtraceAttach(int(p)))
}

// Detach relinquishes tracing control, letting the process run free.
func (p Process) Detach() error {
	return wrap(unix.PtraceDetach(int(p)))
}

// Cont resumes execution, optionally delivering a pending signal.
func (p Process) Cont(sig unix.Signal) error {
	return wrap(unix.PtraceCont(int(p), int(sig)))
}

// SingleStep executes exactly one instruction and re-stops the process.
func (p Process) SingleStep() error {
	return wrap(unix.PtraceSingleStep(int(p)))
}

// SetOptions enables the PTRACE_O_* bits needed to observe clone/fork/
// vfork/exec/exit events as PTRACE_EVENT stops.
func (p Process) SetOptions(opts int) error {
	return wrap(unix.PtraceSetOptions(int(p), opts))
}

// GetRegs reads the general-purpose register set.
func (p Process) GetRegs() (unix.PtraceRegs, error) {
	var regs unix.PtraceRegs
	err := unix.PtraceGetRegs(int(p), &regs)
	return regs, wrap(err)
}

// SetRegs writes the general-purpose register set.
func (p Process) SetRegs(regs *unix.PtraceRegs) error {
	return wrap(unix.PtraceSetRegs(int(p), regs))
}

// FPRegs is the x86_64 floating-point/SSE register image as the kernel
// returns it for PTRACE_GETFPREGS (struct user_fpregs_struct).
type FPRegs struct {
	Cwd      uint16
	Swd      uint16
	Ftw      uint16
	Fop      uint16
	Rip      uint64
	Rdp      uint64
	Mxcsr    uint32
	MxcrMask uint32
	StSpace  [32]uint32
	XmmSpace [64]uint32
	Padding  [24]uint32
}

// GetFPRegs reads the floating-point/SSE register set.
func (p Process) GetFPRegs() (FPRegs, error) {
	var regs FPRegs
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, ptraceGetFPRegs, uintptr(p), 0, uintptr(unsafe.Pointer(&regs)), 0, 0)
	return regs, wrapErrno(errno)
}

// SetFPRegs writes the floating-point/SSE register set.
func (p Process) SetFPRegs(regs *FPRegs) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, ptraceSetFPRegs, uintptr(p), 0, uintptr(unsafe.Pointer(regs)), 0, 0)
	return wrapErrno(errno)
}

// PeekData reads len(out) bytes of the traced process's memory.
func (p Process) PeekData(addr uintptr, out []byte) error {
	_, err := unix.PtracePeekData(int(p), addr, out)
	return wrap(err)
}

// PokeData writes data into the traced process's memory.
func (p Process) PokeData(addr uintptr, data []byte) error {
	_, err := unix.PtracePokeData(int(p), addr, data)
	return wrap(err)
}

// SigInfo is the subset of siginfo_t the core consults to classify a trap.
type SigInfo struct {
	Signo int32
	Errno int32
	Code  int32
}

// GetSigInfo returns the signal-info record of the last delivered signal.
// Its Code field (si_code) is what distinguishes a single-step trap from a
// software breakpoint trap when both raise SIGTRAP.
func (p Process) GetSigInfo() (SigInfo, error) {
	var info SigInfo
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, ptraceGetSigInfo, uintptr(p), 0, uintptr(unsafe.Pointer(&info)), 0, 0)
	return info, wrapErrno(errno)
}

// GetEventMsg returns the extra message word of the most recent
// PTRACE_EVENT_* stop (e.g. the new pid for a clone/fork event).
func (p Process) GetEventMsg() (uint, error) {
	msg, err := unix.PtraceGetEventMsg(int(p))
	return msg, wrap(err)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return errs.Wrap(errs.ErrKernel, err.Error())
}

func wrapErrno(errno unix.Errno) error {
	if errno == 0 {
		return nil
	}
	return errs.Wrap(errs.ErrKernel, errno.Error())
}
