package dwarfindex

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfPath returns the path to the test binary, which is itself a valid
// ELF executable with DWARF debug info under `go test` (no -ldflags
// -s -w), making it a convenient real-world fixture.
func selfPath(t *testing.T) string {
	t.Helper()
	path, err := os.Executable()
	require.NoError(t, err)
	return path
}

func TestNewCachesBytesOncePerPath(t *testing.T) {
	path := selfPath(t)

	idx1, err := New(path)
	require.NoError(t, err)
	idx2, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, idx1.EntryAddress(), idx2.EntryAddress())
	assert.NotZero(t, idx1.EntryAddress())

	globalCache.mu.RLock()
	_, cached := globalCache.entries[path]
	globalCache.mu.RUnlock()
	assert.True(t, cached)
}

func TestNewRejectsMissingFile(t *testing.T) {
	_, err := New("/nonexistent/path/does-not-exist")
	assert.Error(t, err)
}

func TestFunctionsNamedExactMatchOnly(t *testing.T) {
	idx, err := New(selfPath(t))
	require.NoError(t, err)

	matches := idx.FunctionsNamed("this symbol does not exist anywhere")
	assert.Empty(t, matches)
}

func TestAddressesOfLineEmptyForUnknownFile(t *testing.T) {
	idx, err := New(selfPath(t))
	require.NoError(t, err)

	addrs := idx.AddressesOfLine("no_such_file.go", 1)
	assert.Empty(t, addrs)
}
