package command

import "github.com/soltesz/inferior/internal/errs"

// Location parse errors, named the way original_source/src/commands.rs's
// LocationError variants are, so callers can match on message content
// the way the REPL reports a specific reason to the user.
var (
	errEmpty               = errs.Wrap(errs.ErrParse, "no location provided")
	errCouldntParseAddress = errs.Wrap(errs.ErrParse, "couldn't parse address")
	errInvalidHexAddress   = errs.Wrap(errs.ErrParse, "couldn't parse address, invalid hexadecimal")
	errInvalidLineNumber   = errs.Wrap(errs.ErrParse, "invalid line number")
	errInvalidExpression   = errs.Wrap(errs.ErrParse, "invalid expression")
)

func errTooManyArgs(n int) error {
	return errs.Wrapf(errs.ErrParse, "too many arguments for location: %d", n)
}
