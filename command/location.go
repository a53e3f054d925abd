package command

import (
	"strconv"
	"strings"

	"github.com/soltesz/inferior/resolver"
)

// ParseLocation implements spec.md §6's Location grammar (the tokens
// after "break "), extending original_source/src/commands.rs's
// Address/Line-only grammar with the Function(name) variant spec.md §3
// adds: a single token containing a non-digit is a symbol name, not a
// malformed address.
func ParseLocation(s string) (resolver.Location, error) {
	args := strings.Fields(s)

	switch len(args) {
	case 0:
		return resolver.Location{}, errEmpty

	case 1:
		tok := args[0]

		if strings.HasPrefix(tok, "0x") {
			addr, err := strconv.ParseUint(strings.TrimPrefix(tok, "0x"), 16, 64)
			if err != nil {
				return resolver.Location{}, errInvalidHexAddress
			}
			return resolver.NewAddressLocation(uintptr(addr)), nil
		}

		if isAllDigits(tok) {
			addr, err := strconv.ParseUint(tok, 10, 64)
			if err != nil {
				return resolver.Location{}, errCouldntParseAddress
			}
			return resolver.NewAddressLocation(uintptr(addr)), nil
		}

		return resolver.NewFunctionLocation(tok), nil

	case 2:
		line, err := strconv.Atoi(args[1])
		if err != nil {
			return resolver.Location{}, errInvalidLineNumber
		}
		return resolver.NewLineLocation(args[0], line), nil

	default:
		return resolver.Location{}, errTooManyArgs(len(args))
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
