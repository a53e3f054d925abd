// Package command implements spec.md §6's external command grammar: the
// REPL-facing Command/Location/Expression parsers. Grounded on
// original_source/src/commands.rs's FromStr impls, extended with the
// Function(name) Location variant spec.md §3/§6 add on top of the
// original two-variant grammar.
package command

import (
	"strconv"
	"strings"

	"github.com/soltesz/inferior/internal/errs"
	"github.com/soltesz/inferior/resolver"
)

// Kind discriminates the Command variants of spec.md §6. Step and Status
// are part of the variant list but spec.md §6's grammar table doesn't
// spell out their textual form; "s"/"step" and "status" fill that gap.

type Kind int

const (
	KindQuit Kind = iota
	KindToggleLogs
	KindHelp
	KindRestart
	KindLoad
	KindAttach
	KindContinue
	KindStep
	KindStatus
	KindBreak
	KindListBreakpoints
	KindPrint
	KindNull
)

// Command is the tagged value a parsed REPL line produces.
type Command struct {
	Kind     Kind
	Path     string            // KindLoad
	PID      int32             // KindAttach
	Location resolver.Location // KindBreak
	Expr     Expression        // KindPrint
}

// StoreInHistory reports whether this command should be recorded in the
// REPL's input history; true for every variant except Null, Help and
// Quit (spec.md §3).
func (c Command) StoreInHistory() bool {
	switch c.Kind {
	case KindNull, KindHelp, KindQuit:
		return false
	default:
		return true
	}
}

// Parse turns one whitespace-trimmed REPL line into a Command, per the
// grammar table of spec.md §6.
func Parse(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)

	switch trimmed {
	case "q", "quit":
		return Command{Kind: KindQuit}, nil
	case "logs":
		return Command{Kind: KindToggleLogs}, nil
	case "?", "help":
		return Command{Kind: KindHelp}, nil
	case "c", "cont", "continue":
		return Command{Kind: KindContinue}, nil
	case "s", "step":
		return Command{Kind: KindStep}, nil
	case "status":
		return Command{Kind: KindStatus}, nil
	case "restart":
		return Command{Kind: KindRestart}, nil
	case "l", "list":
		return Command{Kind: KindListBreakpoints}, nil
	case "":
		return Command{Kind: KindNull}, nil
	}

	if rest, ok := cutPrefix(trimmed, "print "); ok {
		expr, err := ParseExpression(rest)
		if err != nil {
			return Command{}, errs.Wrap(errs.ErrParse, err.Error())
		}
		return Command{Kind: KindPrint, Expr: expr}, nil
	}

	if rest, ok := cutPrefix(trimmed, "load "); ok {
		return Command{Kind: KindLoad, Path: rest}, nil
	}

	if rest, ok := cutPrefix(trimmed, "attach "); ok {
		pid, err := strconv.ParseInt(rest, 10, 32)
		if err != nil {
			return Command{}, errs.Wrapf(errs.ErrParse, "invalid pid %q: %v", rest, err)
		}
		return Command{Kind: KindAttach, PID: int32(pid)}, nil
	}

	if rest, ok := cutPrefix(trimmed, "break "); ok {
		loc, err := ParseLocation(rest)
		if err != nil {
			return Command{}, errs.Wrap(errs.ErrParse, err.Error())
		}
		return Command{Kind: KindBreak, Location: loc}, nil
	}

	return Command{}, errs.Wrapf(errs.ErrParse, "invalid command %q", trimmed)
}

func cutPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return strings.TrimPrefix(s, prefix), true
}
