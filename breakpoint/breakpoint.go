// Package breakpoint implements spec.md §4.4's BreakpointSet: install,
// arm/disarm via single-byte INT3 patching, hit detection and step-over.
package breakpoint

import (
	"bytes"

	"github.com/soltesz/inferior/arch"
	"github.com/soltesz/inferior/internal/errs"
	"github.com/soltesz/inferior/ptrace"
)

var trapInstructionSize = uintptr(len(arch.TrapInstruction))
var emptyInstr = make([]byte, len(arch.TrapInstruction))

// Breakpoint is one armed or disarmed software breakpoint.
type Breakpoint struct {
	id        uint64
	pid       ptrace.Process
	addr      uintptr
	enabled   bool
	armed     bool
	savedData []byte
}

// ID returns the breakpoint's identifier, unique within its BreakpointSet.
func (bp *Breakpoint) ID() uint64 { return bp.id }

// Address returns the runtime, bias-corrected target address.
func (bp *Breakpoint) Address() uintptr { return bp.addr }

// Enabled reports the breakpoint's enabled flag, which is set when the
// breakpoint is added. The flag alone does not re-arm a disarmed
// breakpoint.
func (bp *Breakpoint) Enabled() bool { return bp.enabled }

// Armed reports whether the trap byte is currently written into the
// inferior's memory.
func (bp *Breakpoint) Armed() bool { return bp.armed }

func newBreakpoint(id uint64, pid ptrace.Process, addr uintptr) *Breakpoint {
	return &Breakpoint{
		id:        id,
		pid:       pid,
		addr:      addr,
		enabled:   true,
		savedData: make([]byte, trapInstructionSize),
	}
}

// arm reads the original byte at the target address and overwrites it with
// the INT3 trap instruction. It is the "add" step of spec.md §4.4.
func (bp *Breakpoint) arm() error {
	if bp.armed {
		return errs.Errorf("breakpoint already armed at %#x", bp.addr)
	}

	if err := bp.pid.PeekData(bp.addr, bp.savedData); err != nil {
		return errs.Error(err)
	}

	if bytes.Equal(bp.savedData, emptyInstr) {
		return errs.Errorf("could not save original instruction at %#x", bp.addr)
	}

	if err := bp.pid.PokeData(bp.addr, arch.TrapInstruction); err != nil {
		return errs.Error(err)
	}

	bp.armed = true
	return nil
}

// disarm restores the byte that was at the target address before arming.
func (bp *Breakpoint) disarm() error {
	if !bp.armed {
		return errs.Errorf("breakpoint already disarmed at %#x", bp.addr)
	}

	if err := bp.pid.PokeData(bp.addr, bp.savedData); err != nil {
		return errs.Error(err)
	}

	bp.armed = false
	return nil
}
