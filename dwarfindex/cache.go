package dwarfindex

import (
	"os"
	"sync"

	"github.com/soltesz/inferior/internal/errs"
)

// fileCache is the process-wide, insert-only cache mapping an executable's
// path to its raw file bytes (spec.md §4.5, §5, §9: "global mutable
// state... safe under the insert-only, immutable values discipline").
// debug/dwarf and debug/elf both borrow slices out of the bytes they're
// given, so those bytes must outlive every DwarfIndex built from them;
// keeping one owned copy per path, forever, is what makes that safe
// without any lifetime bookkeeping.
type fileCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var globalCache = &fileCache{entries: make(map[string][]byte)}

// load returns the cached bytes for path, reading the file at most once.
func (c *fileCache) load(path string) ([]byte, error) {
	c.mu.RLock()
	data, ok := c.entries[path]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.entries[path]; ok {
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrIO, "reading %s: %v", path, err)
	}

	c.entries[path] = data
	return data, nil
}
