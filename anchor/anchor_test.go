package anchor

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltesz/inferior/ptrace"
)

func TestToRuntimeToStaticRoundTrip(t *testing.T) {
	a := &Anchor{bias: 0x555500000000}

	static := uintptr(0x1234)
	runtime := a.ToRuntime(static)
	assert.Equal(t, static+a.bias, runtime)
	assert.Equal(t, static, a.ToStatic(runtime))
}

func TestBiasZeroValue(t *testing.T) {
	var a *Anchor
	assert.Equal(t, uintptr(0), a.Bias())
}

func TestComputeBiasReadsOwnAuxv(t *testing.T) {
	// Every live process has an AT_ENTRY auxv entry, so ComputeBias on our
	// own pid always takes the preferred path and never needs the
	// memory-map fallback or the zero-bias degradation.
	self := ptrace.Process(os.Getpid())
	_, err := ComputeBias(self, 0, "/nonexistent/path/does-not-exist", nil)
	require.NoError(t, err)
}

func TestAuxvEntryFindsATEntry(t *testing.T) {
	self := ptrace.Process(os.Getpid())
	entry, ok := auxvEntry(self)
	require.True(t, ok)
	assert.NotZero(t, entry)
}
