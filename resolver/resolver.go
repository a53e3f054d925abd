// Package resolver implements spec.md §4.6: translating a Location value
// into zero or more runtime addresses by combining a DwarfIndex with an
// AddressSpaceAnchor's load bias.
package resolver

import (
	"github.com/soltesz/inferior/anchor"
	"github.com/soltesz/inferior/dwarfindex"
	"github.com/soltesz/inferior/internal/errs"
)

// Kind discriminates the Location variants of spec.md §3.
type Kind int

const (
	// KindAddress is a raw, already-runtime address; no bias is applied.
	KindAddress Kind = iota
	// KindLineInFile names a source file and line number.
	KindLineInFile
	// KindFunction names a function by its DWARF name.
	KindFunction
)

// Location is the tagged value the external command parser produces for
// a breakpoint target (spec.md §3, §6).
type Location struct {
	Kind    Kind
	Address uintptr
	Path    string
	Line    int
	Name    string
}

// NewAddressLocation builds an Address(a) Location.
func NewAddressLocation(addr uintptr) Location {
	return Location{Kind: KindAddress, Address: addr}
}

// NewLineLocation builds a LineInFile{path,line} Location.
func NewLineLocation(path string, line int) Location {
	return Location{Kind: KindLineInFile, Path: path, Line: line}
}

// NewFunctionLocation builds a Function(name) Location.
func NewFunctionLocation(name string) Location {
	return Location{Kind: KindFunction, Name: name}
}

// Resolver combines a DwarfIndex and an Anchor to turn Locations into
// runtime addresses.
type Resolver struct {
	index  *dwarfindex.DwarfIndex
	anchor *anchor.Anchor
}

// New returns a Resolver over index, translating static DWARF addresses
// through anchor's load bias.
func New(index *dwarfindex.DwarfIndex, anchor *anchor.Anchor) *Resolver {
	return &Resolver{index: index, anchor: anchor}
}

// Resolve implements spec.md §4.6's resolve(loc) -> Vec<u64>.
func (r *Resolver) Resolve(loc Location) ([]uintptr, error) {
	switch loc.Kind {
	case KindAddress:
		// user supplies a raw runtime address; no bias applied.
		return []uintptr{loc.Address}, nil

	case KindLineInFile:
		static := r.index.AddressesOfLine(loc.Path, loc.Line)
		addrs := make([]uintptr, 0, len(static))
		for _, a := range static {
			addrs = append(addrs, r.anchor.ToRuntime(a))
		}
		if len(addrs) == 0 {
			return nil, errs.Wrapf(errs.ErrResolution, "no address for %s:%d", loc.Path, loc.Line)
		}
		return addrs, nil

	case KindFunction:
		matches := r.index.FunctionsNamed(loc.Name)
		addrs := make([]uintptr, 0, len(matches))
		for _, fn := range matches {
			addrs = append(addrs, r.anchor.ToRuntime(fn.LowPC))
		}
		if len(addrs) == 0 {
			return nil, errs.Wrapf(errs.ErrResolution, "no function named %q", loc.Name)
		}
		return addrs, nil

	default:
		return nil, errs.Errorf("unknown location kind %d", loc.Kind)
	}
}
