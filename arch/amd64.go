//go:build amd64

// Package arch contains the x86_64 constants the rest of the module
// assumes; today that is only the software-breakpoint trap instruction.
// Non-x86_64 architectures are a non-goal (see spec.md §1).
package arch

// TrapInstruction is the int3 single-byte trap used for software breakpoints.
var TrapInstruction = []byte{0xcc}
