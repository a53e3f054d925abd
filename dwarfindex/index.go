// Package dwarfindex implements spec.md §4.5's DwarfIndex: a once-loaded,
// cached view over an executable's ELF and DWARF data, answering the
// compile-unit, function, and line queries the resolver needs.
package dwarfindex

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"path/filepath"

	"github.com/ianlancetaylor/demangle"

	"github.com/soltesz/inferior/internal/errs"
)

// DwarfIndex is the parsed view of one ELF executable's debug information.
// Construction touches the global file cache exactly once per path
// (spec.md §4.5, §9).
type DwarfIndex struct {
	path       string
	elfFile    *elf.File
	data       *dwarf.Data
	entryPoint uintptr
}

// New loads and parses the executable at path, caching its raw bytes in
// the process-wide cache first. Missing optional sections degrade to
// empty results rather than failing (spec.md §7: "local recovery only
// for DWARF per-section missing-or-unreadable").
func New(path string) (*DwarfIndex, error) {
	raw, err := globalCache.load(path)
	if err != nil {
		return nil, errs.Error(err)
	}

	elfFile, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, errs.Wrapf(errs.ErrParse, "parsing ELF header of %s: %v", path, err)
	}

	data, err := elfFile.DWARF()
	if err != nil {
		return nil, errs.Wrapf(errs.ErrParse, "parsing DWARF of %s: %v", path, err)
	}

	return &DwarfIndex{
		path:       path,
		elfFile:    elfFile,
		data:       data,
		entryPoint: uintptr(elfFile.Entry),
	}, nil
}

// EntryAddress returns the static entry address recorded in the ELF
// header.
func (idx *DwarfIndex) EntryAddress() uintptr {
	return idx.entryPoint
}

// CompileUnitOf returns the compile unit whose range list contains addr,
// iterating units in declaration order and returning the first match
// (spec.md §4.5 compile_unit_of).
func (idx *DwarfIndex) CompileUnitOf(addr uintptr) (*CUEntry, bool) {
	reader := idx.data.Reader()

	for {
		die, err := reader.Next()
		if err != nil || die == nil {
			break
		}
		reader.SkipChildren()

		if die.Tag != dwarf.TagCompileUnit {
			continue
		}

		cu, err := newCUEntry(idx, die)
		if err != nil {
			continue
		}

		if cu.ContainsPC(addr) {
			return cu, true
		}
	}

	return nil, false
}

// FunctionOf DFS-walks the enclosing compile unit's DIE tree and returns
// the first DW_TAG_subprogram whose range contains addr (spec.md §4.5
// function_of).
func (idx *DwarfIndex) FunctionOf(addr uintptr) (*FunctionEntry, bool) {
	cu, ok := idx.CompileUnitOf(addr)
	if !ok {
		return nil, false
	}

	reader := idx.data.Reader()
	reader.Seek(cu.Offset())

	// skip the CU's own root entry, then DFS its children
	if _, err := reader.Next(); err != nil {
		return nil, false
	}

	depth := 0
	for {
		die, err := reader.Next()
		if err != nil || die == nil {
			break
		}

		if die.Tag == 0 {
			depth--
			if depth < 0 {
				break
			}
			continue
		}
		if die.Children {
			depth++
		}

		if die.Tag != dwarf.TagSubprogram {
			continue
		}

		ranges, err := idx.data.Ranges(die)
		if err != nil || len(ranges) == 0 {
			continue
		}

		fnRanges := toUintptrRanges(ranges)
		fn := newFunctionEntry(cu, die, fnRanges)
		if fn.ContainsPC(addr) {
			return fn, true
		}
	}

	return nil, false
}

// FunctionsNamed walks every compile unit's DIE tree and returns every
// DW_TAG_subprogram whose DW_AT_name, or whose demangled form, equals
// name exactly (spec.md §4.5 functions_named).
func (idx *DwarfIndex) FunctionsNamed(name string) []*FunctionEntry {
	var matches []*FunctionEntry

	cuReader := idx.data.Reader()
	for {
		cuDie, err := cuReader.Next()
		if err != nil || cuDie == nil {
			break
		}
		if cuDie.Tag != dwarf.TagCompileUnit {
			continue
		}

		cu, err := newCUEntry(idx, cuDie)
		if err != nil {
			cuReader.SkipChildren()
			continue
		}

		reader := idx.data.Reader()
		reader.Seek(cuDie.Offset)
		if _, err := reader.Next(); err != nil {
			continue
		}

		depth := 0
		for {
			die, err := reader.Next()
			if err != nil || die == nil {
				break
			}
			if die.Tag == 0 {
				depth--
				if depth < 0 {
					break
				}
				continue
			}
			if die.Children {
				depth++
			}

			if die.Tag != dwarf.TagSubprogram {
				continue
			}

			dieName, ok := die.Val(dwarf.AttrName).(string)
			if !ok {
				continue
			}

			if dieName != name && demangle.Filter(dieName) != name {
				continue
			}

			ranges, _ := idx.data.Ranges(die)
			matches = append(matches, newFunctionEntry(cu, die, toUintptrRanges(ranges)))
		}

		cuReader.SkipChildren()
	}

	return matches
}

// AddressesOfLine walks every compile unit's line-number program and
// returns the addresses of statement rows matching path (or its
// basename, if an absolute-path match fails) and line (spec.md §4.5
// addresses_of_line).
func (idx *DwarfIndex) AddressesOfLine(path string, line int) []uintptr {
	var addrs []uintptr
	base := filepath.Base(path)

	cuReader := idx.data.Reader()
	for {
		cuDie, err := cuReader.Next()
		if err != nil || cuDie == nil {
			break
		}
		cuReader.SkipChildren()

		if cuDie.Tag != dwarf.TagCompileUnit {
			continue
		}

		lineReader, err := idx.data.LineReader(cuDie)
		if err != nil || lineReader == nil {
			continue
		}

		var entry dwarf.LineEntry
		for {
			if err := lineReader.Next(&entry); err != nil {
				break
			}

			if !entry.IsStmt || int(entry.Line) != line {
				continue
			}

			if entry.File == nil {
				continue
			}

			if entry.File.Name == path || filepath.Base(entry.File.Name) == base {
				addrs = append(addrs, uintptr(entry.Address))
			}
		}
	}

	return addrs
}

func toUintptrRanges(ranges [][2]uint64) [][2]uintptr {
	out := make([][2]uintptr, 0, len(ranges))
	for _, lowhigh := range ranges {
		out = append(out, [2]uintptr{uintptr(lowhigh[0]), uintptr(lowhigh[1])})
	}
	return out
}
