package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltesz/inferior/command"
	"github.com/soltesz/inferior/resolver"
)

// Ported from original_source/src/commands.rs's basic_parsing unit test.
func TestParseBasicCommands(t *testing.T) {
	cases := []struct {
		input string
		kind  command.Kind
	}{
		{"quit", command.KindQuit},
		{"q", command.KindQuit},
		{"logs", command.KindToggleLogs},
		{"l", command.KindListBreakpoints},
		{"help", command.KindHelp},
		{"?", command.KindHelp},
		{"restart", command.KindRestart},
		{"continue", command.KindContinue},
		{"", command.KindNull},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			cmd, err := command.Parse(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, cmd.Kind)
		})
	}
}

func TestParseLoadCommand(t *testing.T) {
	cmd, err := command.Parse("load help.rs")
	require.NoError(t, err)
	assert.Equal(t, command.KindLoad, cmd.Kind)
	assert.Equal(t, "help.rs", cmd.Path)
}

func TestParseAttachCommand(t *testing.T) {
	cmd, err := command.Parse("attach 546")
	require.NoError(t, err)
	assert.Equal(t, command.KindAttach, cmd.Kind)
	assert.EqualValues(t, 546, cmd.PID)
}

func TestParsePrintRegisters(t *testing.T) {
	cmd, err := command.Parse("print registers")
	require.NoError(t, err)
	assert.Equal(t, command.KindPrint, cmd.Kind)
	assert.Equal(t, command.KindRegisters, cmd.Expr.Kind)
}

// Ported from invalid_command_args.
func TestParseInvalidCommandArgs(t *testing.T) {
	_, err := command.Parse("attach boop")
	assert.Error(t, err)

	_, err = command.Parse("dance")
	assert.Error(t, err)

	_, err = command.Parse("break 1 main.rs")
	assert.Error(t, err)

	_, err = command.Parse("break main.rs 1 2")
	assert.Error(t, err)

	_, err = command.Parse("break ")
	assert.Error(t, err)

	_, err = command.Parse("break 0xgg")
	assert.Error(t, err)
}

// Ported from break_command_parsing, extended with the Function(name)
// variant spec.md §3/§6 add on top of the original two-variant grammar.
func TestParseBreakCommand(t *testing.T) {
	cmd, err := command.Parse("break main.rs 5")
	require.NoError(t, err)
	require.Equal(t, command.KindBreak, cmd.Kind)
	require.Equal(t, resolver.KindLineInFile, cmd.Location.Kind)
	assert.Equal(t, "main.rs", cmd.Location.Path)
	assert.Equal(t, 5, cmd.Location.Line)

	cmd, err = command.Parse("break 0x12AD6")
	require.NoError(t, err)
	require.Equal(t, resolver.KindAddress, cmd.Location.Kind)
	assert.EqualValues(t, 0x12ad6, cmd.Location.Address)

	cmd, err = command.Parse("break 1234")
	require.NoError(t, err)
	require.Equal(t, resolver.KindAddress, cmd.Location.Kind)
	assert.EqualValues(t, 1234, cmd.Location.Address)

	cmd, err = command.Parse("break main")
	require.NoError(t, err)
	require.Equal(t, resolver.KindFunction, cmd.Location.Kind)
	assert.Equal(t, "main", cmd.Location.Name)
}

func TestCommandStoreInHistory(t *testing.T) {
	null, _ := command.Parse("")
	assert.False(t, null.StoreInHistory())

	help, _ := command.Parse("help")
	assert.False(t, help.StoreInHistory())

	quit, _ := command.Parse("quit")
	assert.False(t, quit.StoreInHistory())

	cont, _ := command.Parse("continue")
	assert.True(t, cont.StoreInHistory())
}
