package dwarfindex

import (
	"debug/dwarf"

	"github.com/soltesz/inferior/internal/errs"
)

// CUEntry is one compilation unit together with its PC range list, the
// unit the teacher's data/cuentry.go CUEntry models but without its
// StaticBase field: DwarfIndex addresses are static throughout; the
// anchor package applies the runtime bias, not this one.
type CUEntry struct {
	index *DwarfIndex
	die   *dwarf.Entry
	Name  string
	Ranges [][2]uintptr
}

func newCUEntry(index *DwarfIndex, die *dwarf.Entry) (*CUEntry, error) {
	if die.Tag != dwarf.TagCompileUnit {
		return nil, errs.Errorf("not a compile unit")
	}

	ranges, err := index.data.Ranges(die)
	if err != nil {
		return nil, errs.Error(err)
	}

	cuRanges := make([][2]uintptr, 0, len(ranges))
	for _, lowhigh := range ranges {
		cuRanges = append(cuRanges, [2]uintptr{uintptr(lowhigh[0]), uintptr(lowhigh[1])})
	}

	name, _ := die.Val(dwarf.AttrName).(string)

	return &CUEntry{index: index, die: die, Name: name, Ranges: cuRanges}, nil
}

// ContainsPC reports whether the compile unit's range list covers addr.
func (cu *CUEntry) ContainsPC(addr uintptr) bool {
	for _, lowhigh := range cu.Ranges {
		if addr >= lowhigh[0] && addr < lowhigh[1] {
			return true
		}
	}
	return false
}

// Offset returns the DWARF DIE offset of the compile unit's root entry,
// where FunctionOf starts its walk of the unit's DIE tree.
func (cu *CUEntry) Offset() dwarf.Offset {
	return cu.die.Offset
}
