// Package launch implements spec.md §4.2's Launcher: fork a child, disable
// ASLR on it, request tracing on itself, then execve the target.
package launch

import (
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/soltesz/inferior/internal/errs"
	"github.com/soltesz/inferior/internal/logging"
	"github.com/soltesz/inferior/ptrace"
)

// Result is what a successful Launch returns to the parent.
type Result struct {
	PID     ptrace.Process
	Stdout  *os.File // read end of the child's stdout pipe
}

// ADDR_NO_RANDOMIZE, from include/uapi/linux/personality.h. golang.org/x/sys
// doesn't expose personality(2) on amd64, so the bit is named here the way
// the teacher names its own ptrace constants.
const addrNoRandomize = 0x0040000

// Launch forks a child, optionally disables ASLR on it (after checking
// whether it's even enabled, per original_source/src/linux.rs's
// is_aslr_enabled), requests tracing, and execve's path with the given
// argv/envp. The child delivers a SIGTRAP on the post-execve stop that the
// caller (ProcessController) consumes as the initial stop.
func Launch(path string, argv []string, envp []string, sink logging.Sink) (*Result, error) {
	if sink == nil {
		sink = logging.Noop
	}

	absPath, err := exec.LookPath(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, errs.Wrapf(errs.ErrIO, "executable not found: %s", path)
		}
		absPath = path
	}

	if len(argv) == 0 {
		argv = []string{absPath}
	}
	if envp == nil {
		envp = os.Environ()
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, errs.Error(err)
	}

	aslrWasEnabled := aslrEnabled()

	// Go's SysProcAttr has no Personality field and os/exec offers no
	// pre-exec hook to run in the child between fork and execve. The
	// personality(2) flags of a process are inherited across fork and
	// preserved across execve, so the parent sets ADDR_NO_RANDOMIZE on
	// itself immediately before forking and restores its own value right
	// after, the way original_source/src/linux.rs disables ASLR for the
	// child it is about to spawn.
	var oldPersonality uintptr
	if aslrWasEnabled {
		var err error
		oldPersonality, err = setPersonality(addrNoRandomize)
		if err != nil {
			sink.Warn("failed to disable ASLR, launching with it enabled", logging.Fields{"err": err.Error()})
			aslrWasEnabled = false
		}
	}

	proc, err := os.StartProcess(absPath, argv, &os.ProcAttr{
		Env:   envp,
		Files: []*os.File{os.Stdin, stdoutW, os.Stderr},
		Sys: &syscall.SysProcAttr{
			Ptrace:    true,
			Setpgid:   true,
			Pdeathsig: syscall.SIGKILL,
		},
	})

	if aslrWasEnabled {
		if _, restoreErr := setPersonality(oldPersonality); restoreErr != nil {
			sink.Warn("failed to restore parent personality", logging.Fields{"err": restoreErr.Error()})
		}
	}

	stdoutW.Close()
	if err != nil {
		stdoutR.Close()
		return nil, errs.Wrapf(errs.ErrIO, "failed to launch %s: %v", absPath, err)
	}

	if aslrWasEnabled {
		sink.Debug("disabled ASLR for traced child", logging.Fields{"pid": proc.Pid})
	}

	return &Result{PID: ptrace.Process(proc.Pid), Stdout: stdoutR}, nil
}

// setPersonality issues the raw personality(2) syscall on the calling
// process (golang.org/x/sys/unix exposes the syscall number but no
// wrapper for amd64) and returns the previous persona value. persona=0xffffffff
// reads the current value without changing it.
func setPersonality(persona uintptr) (uintptr, error) {
	old, _, errno := unix.Syscall(unix.SYS_PERSONALITY, persona, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return old, nil
}

// aslrEnabled reports whether the kernel currently randomizes address
// space, read from /proc/sys/kernel/randomize_va_space the way
// original_source/src/linux.rs's is_aslr_enabled does (that file inspects
// /proc/sys/kernel/boot_random, a renamed/older sysctl; the modern
// equivalent is randomize_va_space, 0 meaning disabled).
func aslrEnabled() bool {
	data, err := os.ReadFile("/proc/sys/kernel/randomize_va_space")
	if err != nil {
		return true // conservative default: assume ASLR is on
	}
	return strings.TrimSpace(string(data)) != "0"
}

// TraceMe is exposed for the (rare) caller that forks manually instead of
// going through Launch; it wraps ptrace.TraceMe and sets no ptrace options.
func TraceMe() error {
	if err := ptrace.TraceMe(); err != nil {
		return errs.Error(err)
	}
	return nil
}
