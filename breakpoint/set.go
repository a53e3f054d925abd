package breakpoint

import (
	"time"

	"github.com/soltesz/inferior/internal/errs"
	"github.com/soltesz/inferior/ptrace"
)

// Set owns the collection of breakpoints for one inferior, keyed by a
// monotonically-increasing identifier (spec.md §4.4, §9 "breakpoint
// identified by id, not pointer-equality").
type Set struct {
	pid         ptrace.Process
	breakpoints map[uint64]*Breakpoint
	byAddr      map[uintptr]*Breakpoint
	nextID      uint64
}

// NewSet returns an empty breakpoint set for pid.
func NewSet(pid ptrace.Process) *Set {
	return &Set{
		pid:         pid,
		breakpoints: make(map[uint64]*Breakpoint),
		byAddr:      make(map[uintptr]*Breakpoint),
	}
}

// SetPID repoints every not-yet-armed operation at a new tracee thread id;
// used when the controller switches which thread it is addressing.
func (s *Set) SetPID(pid ptrace.Process) {
	s.pid = pid
}

// Add installs a new breakpoint at addr and returns its id. Two
// breakpoints at the same address are rejected (spec.md §4.4 invariant).
func (s *Set) Add(addr uintptr) (uint64, error) {
	if _, exists := s.byAddr[addr]; exists {
		return 0, errs.Errorf("breakpoint already exists at %#x", addr)
	}

	s.nextID++
	id := s.nextID

	bp := newBreakpoint(id, s.pid, addr)
	if err := bp.arm(); err != nil {
		return 0, errs.Error(err)
	}

	s.breakpoints[id] = bp
	s.byAddr[addr] = bp
	return id, nil
}

// Remove disarms (if armed) and forgets the breakpoint with the given id.
func (s *Set) Remove(id uint64) error {
	bp, found := s.breakpoints[id]
	if !found {
		return nil
	}

	var err error
	if bp.armed {
		err = bp.disarm()
	}

	delete(s.breakpoints, id)
	delete(s.byAddr, bp.addr)
	if err != nil {
		return errs.Error(err)
	}
	return nil
}

// List returns every breakpoint in the set, in no particular order.
func (s *Set) List() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(s.breakpoints))
	for _, bp := range s.breakpoints {
		out = append(out, bp)
	}
	return out
}

// ByAddress returns the breakpoint installed at addr, if any.
func (s *Set) ByAddress(addr uintptr) (*Breakpoint, bool) {
	bp, ok := s.byAddr[addr]
	return bp, ok
}

// AtHit returns the breakpoint the inferior is currently stopped at, given
// the PC reported immediately after an INT3 trap. On x86_64 the trap
// advances PC past the trap byte, so "at PC" means (pc-1) == bp.addr
// (spec.md §4.4 has_hit, and §9's "PC decrement after software trap" fix).
func (s *Set) AtHit(trappedPC uintptr) (*Breakpoint, bool) {
	if trappedPC < trapInstructionSize {
		return nil, false
	}
	bp, ok := s.byAddr[trappedPC-trapInstructionSize]
	return bp, ok
}

// StepOver disarms bp, rewinds the PC onto it, single-steps past it, waits
// for the step to complete, then re-arms it. This is atomic from the
// caller's perspective (spec.md §5): no intermediate state is observable.
// Used by resume() for the breakpoint at PC, which is armed again before
// continuing.
func (s *Set) StepOver(bp *Breakpoint) error {
	return s.stepOver(bp, true)
}

// StepOverNoRearm is StepOver without the final re-arm. Used by step(),
// which leaves the breakpoint disarmed after a single step. Nothing in
// this package or in resume() re-arms it later; it stays disarmed until
// it is removed.
func (s *Set) StepOverNoRearm(bp *Breakpoint) error {
	return s.stepOver(bp, false)
}

func (s *Set) stepOver(bp *Breakpoint, rearm bool) error {
	if !bp.armed {
		return nil
	}

	if err := bp.disarm(); err != nil {
		return errs.Error(err)
	}

	if err := SetPC(s.pid, bp.addr); err != nil {
		return errs.Error(err)
	}

	if err := s.pid.SingleStep(); err != nil {
		return errs.Error(err)
	}

	if _, _, err := s.pid.WaitBlocking(s.pid.Getpgid(), time.Second); err != nil {
		return errs.Error(err)
	}

	if !rearm {
		return nil
	}

	if err := bp.arm(); err != nil {
		return errs.Error(err)
	}

	return nil
}

// GetPC reads the program counter of pid.
func GetPC(pid ptrace.Process) (uintptr, error) {
	regs, err := pid.GetRegs()
	if err != nil {
		return 0, errs.Error(err)
	}
	return uintptr(regs.Rip), nil
}

// SetPC writes the program counter of pid.
func SetPC(pid ptrace.Process, pc uintptr) error {
	regs, err := pid.GetRegs()
	if err != nil {
		return errs.Error(err)
	}
	regs.Rip = uint64(pc)
	if err := pid.SetRegs(&regs); err != nil {
		return errs.Error(err)
	}
	return nil
}
