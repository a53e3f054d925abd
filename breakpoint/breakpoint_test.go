package breakpoint_test

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltesz/inferior/breakpoint"
	"github.com/soltesz/inferior/internal/logging"
	"github.com/soltesz/inferior/launch"
	"github.com/soltesz/inferior/ptrace"
)

// spawnStopped launches a real, already-present executable under ptrace and
// waits for the post-execve SIGTRAP, the same initial stop
// ProcessController.Launch consumes. Tests in this file exercise the arm/
// disarm round trip (spec.md §8) against this live, stopped inferior rather
// than asserting on Breakpoint's fields directly.
func spawnStopped(t *testing.T) ptrace.Process {
	t.Helper()

	result, err := launch.Launch("/bin/sleep", []string{"/bin/sleep", "5"}, os.Environ(), logging.Noop)
	require.NoError(t, err)

	_, _, err = result.PID.WaitBlocking(result.PID.Getpgid(), 5*time.Second)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = result.PID.Kill(syscall.SIGKILL)
	})

	return result.PID
}

func TestArmDisarmRoundTrip(t *testing.T) {
	pid := spawnStopped(t)

	regs, err := pid.GetRegs()
	require.NoError(t, err)
	addr := uintptr(regs.Rip)

	var original [1]byte
	require.NoError(t, pid.PeekData(addr, original[:]))

	set := breakpoint.NewSet(pid)
	id, err := set.Add(addr)
	require.NoError(t, err)

	bp, ok := set.ByAddress(addr)
	require.True(t, ok)
	assert.True(t, bp.Armed())

	var patched [1]byte
	require.NoError(t, pid.PeekData(addr, patched[:]))
	assert.EqualValues(t, 0xcc, patched[0])

	require.NoError(t, set.Remove(id))
	assert.False(t, bp.Armed())

	var restored [1]byte
	require.NoError(t, pid.PeekData(addr, restored[:]))
	assert.Equal(t, original[0], restored[0])

	_, ok = set.ByAddress(addr)
	assert.False(t, ok)
}

func TestAddRejectsDuplicateAddress(t *testing.T) {
	pid := spawnStopped(t)

	regs, err := pid.GetRegs()
	require.NoError(t, err)
	addr := uintptr(regs.Rip)

	set := breakpoint.NewSet(pid)
	_, err = set.Add(addr)
	require.NoError(t, err)

	_, err = set.Add(addr)
	assert.Error(t, err)
}

func TestStepOverReArmsAndAdvancesPC(t *testing.T) {
	pid := spawnStopped(t)

	regs, err := pid.GetRegs()
	require.NoError(t, err)
	addr := uintptr(regs.Rip)

	set := breakpoint.NewSet(pid)
	_, err = set.Add(addr)
	require.NoError(t, err)

	bp, ok := set.ByAddress(addr)
	require.True(t, ok)

	require.NoError(t, set.StepOver(bp))
	assert.True(t, bp.Armed(), "StepOver must leave the breakpoint armed for the caller's next resume")

	newRegs, err := pid.GetRegs()
	require.NoError(t, err)
	assert.NotEqual(t, addr, uintptr(newRegs.Rip), "single-stepping the original instruction should move PC")

	var patched [1]byte
	require.NoError(t, pid.PeekData(addr, patched[:]))
	assert.EqualValues(t, 0xcc, patched[0], "the trap byte must be restored once StepOver re-arms")
}

func TestStepOverNoRearmLeavesDisarmed(t *testing.T) {
	pid := spawnStopped(t)

	regs, err := pid.GetRegs()
	require.NoError(t, err)
	addr := uintptr(regs.Rip)

	var original [1]byte
	require.NoError(t, pid.PeekData(addr, original[:]))

	set := breakpoint.NewSet(pid)
	_, err = set.Add(addr)
	require.NoError(t, err)

	bp, ok := set.ByAddress(addr)
	require.True(t, ok)

	require.NoError(t, set.StepOverNoRearm(bp))
	assert.False(t, bp.Armed(), "step() must not re-arm")

	var current [1]byte
	require.NoError(t, pid.PeekData(addr, current[:]))
	assert.Equal(t, original[0], current[0], "the original byte must stay restored after the step")
}

func TestAtHitMatchesPCDecrement(t *testing.T) {
	pid := spawnStopped(t)

	regs, err := pid.GetRegs()
	require.NoError(t, err)
	addr := uintptr(regs.Rip)

	set := breakpoint.NewSet(pid)
	_, err = set.Add(addr)
	require.NoError(t, err)

	bp, ok := set.AtHit(addr + 1)
	require.True(t, ok)
	assert.Equal(t, addr, bp.Address())

	_, ok = set.AtHit(addr)
	assert.False(t, ok)
}
