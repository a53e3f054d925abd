package controller

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/soltesz/inferior/anchor"
	"github.com/soltesz/inferior/breakpoint"
	"github.com/soltesz/inferior/internal/logging"
	"github.com/soltesz/inferior/launch"
	"github.com/soltesz/inferior/ptrace"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "exited", StateExited.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestZeroedTracksPID(t *testing.T) {
	h := &ProcessHandle{PID: 1234}
	assert.False(t, h.Zeroed())

	h.PID = 0
	assert.True(t, h.Zeroed())
}

func newTestController() *Controller {
	pid := ptrace.Process(0)
	return &Controller{
		handle: &ProcessHandle{
			PID:         pid,
			Anchor:      &anchor.Anchor{},
			State:       StateStopped,
			Breakpoints: breakpoint.NewSet(pid),
		},
		sink: logging.Noop,
	}
}

func TestStopIsANoOpWhenNotRunning(t *testing.T) {
	c := newTestController()
	assert.Equal(t, StateStopped, c.State())
	assert.NoError(t, c.Stop())
}

func TestReadWriteRegistersRequireStopped(t *testing.T) {
	c := newTestController()
	c.handle.State = StateRunning

	_, err := c.ReadRegisters()
	assert.Error(t, err)

	err = c.WriteRegisters(&unix.PtraceRegs{})
	assert.Error(t, err)
}

func TestWaitOnReapedProcessErrors(t *testing.T) {
	c := newTestController()
	c.handle.PID = 0

	_, err := c.Wait()
	assert.Error(t, err)
}

func TestWaitUntilErrorsWhenPIDIsNotAChild(t *testing.T) {
	c := newTestController()
	// init is never our child, so the non-blocking waitpid fails and
	// WaitUntil returns that error instead of a StopReason.
	c.handle.PID = ptrace.Process(1)

	_, err := c.WaitUntil(50 * time.Millisecond)
	assert.Error(t, err)
}

func TestEventFromTrapCause(t *testing.T) {
	assert.Equal(t, EventFork, eventFromTrapCause(unix.PTRACE_EVENT_FORK))
	assert.Equal(t, EventVfork, eventFromTrapCause(unix.PTRACE_EVENT_VFORK))
	assert.Equal(t, EventClone, eventFromTrapCause(unix.PTRACE_EVENT_CLONE))
	assert.Equal(t, EventExec, eventFromTrapCause(unix.PTRACE_EVENT_EXEC))
	assert.Equal(t, EventExit, eventFromTrapCause(unix.PTRACE_EVENT_EXIT))
	assert.Equal(t, EventNone, eventFromTrapCause(-1))
}

// spawnStoppedController launches a real, already-present executable under
// ptrace and wires a Controller at its initial post-execve stop, bypassing
// Launch's DWARF-loading path (which a stripped system binary like
// /bin/sleep won't satisfy) the same way newTestController bypasses it for
// a fake pid.
func spawnStoppedController(t *testing.T) *Controller {
	t.Helper()

	result, err := launch.Launch("/bin/sleep", []string{"/bin/sleep", "5"}, os.Environ(), logging.Noop)
	require.NoError(t, err)

	_, _, err = result.PID.WaitBlocking(result.PID.Getpgid(), 5*time.Second)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = result.PID.Kill(syscall.SIGKILL)
	})

	return &Controller{
		handle: &ProcessHandle{
			PID:         result.PID,
			Anchor:      &anchor.Anchor{},
			State:       StateStopped,
			Breakpoints: breakpoint.NewSet(result.PID),
			Stdout:      result.Stdout,
		},
		sink: logging.Noop,
	}
}

// TestReadWriteRegistersRoundTrip drives the register round-trip Testable
// Property spec.md §8 names: a write through WriteRegisters must be visible
// to a subsequent ReadRegisters against the same, really-stopped inferior.
func TestReadWriteRegistersRoundTrip(t *testing.T) {
	c := spawnStoppedController(t)

	regs, err := c.ReadRegisters()
	require.NoError(t, err)

	original := regs.Rax
	regs.Rax = original ^ 0xdeadbeef

	require.NoError(t, c.WriteRegisters(&regs))

	roundTripped, err := c.ReadRegisters()
	require.NoError(t, err)
	assert.Equal(t, regs.Rax, roundTripped.Rax)
	assert.NotEqual(t, original, roundTripped.Rax)
}

func TestReadStdoutReturnsErrStateWithoutPipe(t *testing.T) {
	c := newTestController()

	buf := make([]byte, 16)
	_, err := c.ReadStdout(buf)
	assert.Error(t, err)
}

func TestDecodeStatusExited(t *testing.T) {
	c := newTestController()
	c.handle.PID = ptrace.Process(42)

	// A waitpid status with the low byte 0 decodes as a clean exit with
	// the high byte as the exit code, per the W*-macro encoding wait(2)
	// documents.
	var status ptrace.WaitStatus = ptrace.WaitStatus(7 << 8)

	reason, err := c.decodeStatus(status)
	assert.NoError(t, err)
	assert.Equal(t, StateExited, reason.State)
	assert.Equal(t, 7, reason.ExitCode)
	assert.True(t, c.handle.Zeroed())
}
