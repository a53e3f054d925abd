package command

// ExpressionKind discriminates Expression variants (spec.md §3, §6).
type ExpressionKind int

// KindRegisters is the sole Expression variant spec.md defines; the
// grammar's Non-goal "expression evaluation beyond register dump" rules
// out anything richer.
const KindRegisters ExpressionKind = iota

// Expression is the parsed argument of a Print command.
type Expression struct {
	Kind ExpressionKind
}

// ParseExpression implements spec.md §6's Expression grammar: "registers"
// maps to Registers; anything else is InvalidExpression.
func ParseExpression(s string) (Expression, error) {
	if s == "registers" {
		return Expression{Kind: KindRegisters}, nil
	}
	return Expression{}, errInvalidExpression
}
