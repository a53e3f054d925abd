package resolver

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltesz/inferior/anchor"
	"github.com/soltesz/inferior/dwarfindex"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	path, err := os.Executable()
	require.NoError(t, err)

	idx, err := dwarfindex.New(path)
	require.NoError(t, err)

	return New(idx, &anchor.Anchor{})
}

func TestResolveAddressIsUnbiased(t *testing.T) {
	r := newTestResolver(t)

	addrs, err := r.Resolve(NewAddressLocation(0xdeadbeef))
	require.NoError(t, err)
	assert.Equal(t, []uintptr{0xdeadbeef}, addrs)
}

func TestResolveUnknownFunctionErrors(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(NewFunctionLocation("this_function_does_not_exist_anywhere"))
	assert.Error(t, err)
}

func TestResolveUnknownLineErrors(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(NewLineLocation("no_such_file.go", 999999))
	assert.Error(t, err)
}
