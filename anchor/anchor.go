// Package anchor implements spec.md §4.3's AddressSpaceAnchor: the
// translation between the static addresses DWARF carries and the runtime
// addresses the kernel reports, for both PIE and non-PIE inferiors.
package anchor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soltesz/inferior/internal/abi"
	"github.com/soltesz/inferior/internal/errs"
	"github.com/soltesz/inferior/internal/logging"
	"github.com/soltesz/inferior/ptrace"
)

// atEntry is the amd64 auxv tag for the runtime entry point, AT_ENTRY in
// the kernel's include/uapi/linux/auxvec.h (golang-debug's
// internal/core/process.go findEntryPoint names the same constant while
// reading it back out of a core file's NT_AUXV note; here it's read live
// from /proc/<pid>/auxv instead of a core dump).
const atEntry = 9

// Anchor holds the computed bias between an inferior's static (DWARF) and
// runtime (kernel) address spaces. Zero value means "no bias known yet".
type Anchor struct {
	bias uintptr
}

// ComputeBias derives the load bias for pid's executable, whose static
// entry point (as recorded in its ELF header) is staticEntry. execPath
// is the absolute path to the inferior's executable, used by the
// memory-map fallback to identify its own mapping among shared libraries.
func ComputeBias(pid ptrace.Process, staticEntry uintptr, execPath string, sink logging.Sink) (*Anchor, error) {
	if sink == nil {
		sink = logging.Noop
	}

	if runtimeEntry, ok := auxvEntry(pid); ok {
		return &Anchor{bias: runtimeEntry - staticEntry}, nil
	}

	if bias, ok, err := mapBias(pid, execPath); err != nil {
		return nil, errs.Error(err)
	} else if ok {
		return &Anchor{bias: bias}, nil
	}

	sink.Warn("could not determine load bias, assuming zero", logging.Fields{"pid": pid})
	return &Anchor{bias: 0}, nil
}

// Bias returns runtime_address - static_address.
func (a *Anchor) Bias() uintptr {
	if a == nil {
		return 0
	}
	return a.bias
}

// ToRuntime converts a static DWARF address into the address the kernel
// understands (spec.md §4.3: "addresses derived from DWARF ... are added
// to this bias before being handed to the kernel").
func (a *Anchor) ToRuntime(static uintptr) uintptr {
	return static + a.Bias()
}

// ToStatic converts a kernel-reported address (a PC, a mapping start)
// back into the static address space DWARF indexes by.
func (a *Anchor) ToStatic(runtime uintptr) uintptr {
	return runtime - a.Bias()
}

// auxvEntry reads /proc/<pid>/auxv, which is a flat array of native-word
// (tag, value) pairs, and returns the AT_ENTRY value if present.
func auxvEntry(pid ptrace.Process) (uintptr, bool) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/auxv", pid))
	if err != nil {
		return 0, false
	}

	wordSize := int(abi.SizeofPtr)
	pairSize := wordSize * 2
	r := bytes.NewReader(data)

	for r.Len() >= pairSize {
		tag, err := readWord(r, wordSize)
		if err != nil {
			return 0, false
		}
		val, err := readWord(r, wordSize)
		if err != nil {
			return 0, false
		}
		if tag == 0 {
			break // AT_NULL terminator
		}
		if tag == atEntry {
			return uintptr(val), true
		}
	}

	return 0, false
}

func readWord(r *bytes.Reader, wordSize int) (uint64, error) {
	buf := make([]byte, wordSize)
	if _, err := r.Read(buf); err != nil {
		return 0, err
	}
	if wordSize == 8 {
		return abi.ByteOrder.Uint64(buf), nil
	}
	return uint64(abi.ByteOrder.Uint32(buf)), nil
}

// mapBias scans /proc/<pid>/maps for the first region whose backing path
// equals execPath, the fallback spec.md §4.3 describes for non-PIE
// binaries where AT_ENTRY is unavailable or unreliable.
func mapBias(pid ptrace.Process, execPath string) (uintptr, bool, error) {
	regions, err := pid.MemRegions()
	if err != nil {
		return 0, false, errs.Error(err)
	}

	absExec, err := filepath.Abs(execPath)
	if err != nil {
		absExec = execPath
	}

	for _, region := range regions {
		if region.Pathname == absExec || region.Pathname == execPath {
			return region.Address[0], true, nil
		}
	}

	return 0, false, nil
}
