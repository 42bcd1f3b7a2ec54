package macro

import (
	"strconv"
	"strings"

	"github.com/lemenkov/pspp-go/errs"
)

// evaluateExpression parses and evaluates a macro expression (spec
// §4.I), whose grammar from weakest to strongest binding is:
// or -> and -> not -> relational -> literal-or-call. It returns the
// result as an unquoted string (logical results are "0" or "1") and
// the unconsumed remainder of input.
func (e *Expander) evaluateExpression(input []Token) (string, []Token, bool) {
	return e.parseOr(input)
}

// evaluateNumber parses an expression and requires the result to be a
// number, as !DO's bounds and step do.
func (e *Expander) evaluateNumber(input []Token) (float64, bool, []Token) {
	val, rest, ok := e.evaluateExpression(input)
	if !ok {
		return 0, false, input
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		e.warn(errs.WarnMacroBadExpression, "expecting a number, got %q", val)
		return 0, false, input
	}
	return f, true, rest
}

func boolToString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (e *Expander) parseOr(input []Token) (string, []Token, bool) {
	left, rest, ok := e.parseAnd(input)
	if !ok {
		return "", input, false
	}
	for {
		r, matched := matchKeyword(rest, "!OR")
		if !matched {
			break
		}
		right, r2, ok2 := e.parseAnd(r)
		if !ok2 {
			return "", input, false
		}
		left = boolToString(!isFalse(left) || !isFalse(right))
		rest = r2
	}
	return left, rest, true
}

func (e *Expander) parseAnd(input []Token) (string, []Token, bool) {
	left, rest, ok := e.parseNot(input)
	if !ok {
		return "", input, false
	}
	for {
		r, matched := matchKeyword(rest, "!AND")
		if !matched {
			break
		}
		right, r2, ok2 := e.parseNot(r)
		if !ok2 {
			return "", input, false
		}
		left = boolToString(!isFalse(left) && !isFalse(right))
		rest = r2
	}
	return left, rest, true
}

func (e *Expander) parseNot(input []Token) (string, []Token, bool) {
	if r, matched := matchKeyword(input, "!NOT"); matched {
		val, rest, ok := e.parseNot(r)
		if !ok {
			return "", input, false
		}
		return boolToString(isFalse(val)), rest, true
	}
	return e.parseRelational(input)
}

func (e *Expander) parseRelational(input []Token) (string, []Token, bool) {
	left, rest, ok := e.parseLiteral(input)
	if !ok {
		return "", input, false
	}
	op, rest2, matched := matchRelOp(rest)
	if !matched {
		return left, rest, true
	}
	right, rest3, ok2 := e.parseLiteral(rest2)
	if !ok2 {
		return "", input, false
	}
	return boolToString(evalRelOp(op, left, right)), rest3, true
}

func matchRelOp(input []Token) (string, []Token, bool) {
	if len(input) == 0 {
		return "", input, false
	}
	t := input[0]
	if t.Kind == TokPunct {
		switch t.Text {
		case "=", "~=", "<>", "<", ">", "<=", ">=":
			return t.Text, input[1:], true
		}
	}
	if t.Kind == TokID {
		switch strings.ToUpper(t.Text) {
		case "!EQ":
			return "=", input[1:], true
		case "!NE":
			return "~=", input[1:], true
		case "!LT":
			return "<", input[1:], true
		case "!GT":
			return ">", input[1:], true
		case "!LE":
			return "<=", input[1:], true
		case "!GE":
			return ">=", input[1:], true
		}
	}
	return "", input, false
}

func evalRelOp(op, left, right string) bool {
	lf, lerr := strconv.ParseFloat(strings.TrimSpace(left), 64)
	rf, rerr := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if lerr == nil && rerr == nil {
		switch op {
		case "=":
			return lf == rf
		case "~=", "<>":
			return lf != rf
		case "<":
			return lf < rf
		case ">":
			return lf > rf
		case "<=":
			return lf <= rf
		case ">=":
			return lf >= rf
		}
	}
	c := strings.Compare(left, right)
	switch op {
	case "=":
		return c == 0
	case "~=", "<>":
		return c != 0
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	case ">=":
		return c >= 0
	}
	return false
}

// parseLiteral parses the strongest-binding expression production: a
// parenthesized subexpression, a macro parameter or variable
// reference, a macro-function call, or else a single literal token
// taken at face value (unquoted if it is a quoted string).
func (e *Expander) parseLiteral(input []Token) (string, []Token, bool) {
	if len(input) == 0 {
		return "", input, false
	}
	t := input[0]

	if t.Kind == TokPunct && t.Text == "(" {
		val, rest, ok := e.parseOr(input[1:])
		if !ok {
			return "", input, false
		}
		rest, ok = matchPunct(rest, ")")
		if !ok {
			return "", input, false
		}
		return val, rest, true
	}

	if t.IsMacroID() {
		if e.inMacro != nil {
			if idx, found := e.inMacro.findParameter(t.Text); found {
				return tokensToSyntax(e.args[idx]), input[1:], true
			}
		}
		if v, ok := e.vars[strings.ToUpper(t.Text)]; ok {
			return v, input[1:], true
		}
		if val, rest, ok := e.tryFunctionCall(input); ok {
			return val, rest, true
		}
	}

	val := t.Text
	if t.Kind == TokString {
		val = unquote(val)
	}
	return val, input[1:], true
}

type macroFunction struct {
	minArgs, maxArgs int
	call             func(*Expander, []string) (string, bool)
}

var macroFunctions = map[string]macroFunction{
	"!BLANKS":  {1, 1, (*Expander).fnBlanks},
	"!CONCAT":  {1, 1 << 30, (*Expander).fnConcat},
	"!HEAD":    {1, 1, (*Expander).fnHead},
	"!INDEX":   {2, 2, (*Expander).fnIndex},
	"!LENGTH":  {1, 1, (*Expander).fnLength},
	"!QUOTE":   {1, 1, (*Expander).fnQuote},
	"!SUBSTR":  {2, 3, (*Expander).fnSubstr},
	"!TAIL":    {1, 1, (*Expander).fnTail},
	"!UNQUOTE": {1, 1, (*Expander).fnUnquote},
	"!UPCASE":  {1, 1, (*Expander).fnUpcase},
	"!EVAL":    {1, 1, (*Expander).fnEval},
}

// tryFunctionCall recognizes a macro-function invocation at the front
// of input: either the bare keyword !NULL, or NAME(arg, arg, ...).
func (e *Expander) tryFunctionCall(input []Token) (string, []Token, bool) {
	if len(input) == 0 || !input[0].IsMacroID() {
		return "", input, false
	}
	name := strings.ToUpper(input[0].Text)
	if name == "!NULL" {
		return "", input[1:], true
	}
	if len(input) < 2 || input[1].Kind != TokPunct || input[1].Text != "(" {
		return "", input, false
	}
	fn, ok := macroFunctions[name]
	if !ok {
		return "", input, false
	}
	args, rest, ok := e.parseFunctionArgs(input[2:])
	if !ok {
		e.warn(errs.WarnMacroBadExpression, "malformed arguments to %s", name)
		return "", input, false
	}
	if len(args) < fn.minArgs || len(args) > fn.maxArgs {
		e.warn(errs.WarnMacroWrongArgCount, "%s called with %d arguments", name, len(args))
		return "", input, false
	}
	val, ok := fn.call(e, args)
	if !ok {
		return "", input, false
	}
	return val, rest, true
}

func (e *Expander) parseFunctionArgs(input []Token) ([]string, []Token, bool) {
	if r, matched := matchPunct(input, ")"); matched {
		return nil, r, true
	}
	var args []string
	rest := input
	for {
		val, r, ok := e.evaluateExpression(rest)
		if !ok {
			return nil, input, false
		}
		args = append(args, val)
		rest = r
		if r2, matched := matchPunct(rest, ","); matched {
			rest = r2
			continue
		}
		if r2, matched := matchPunct(rest, ")"); matched {
			return args, r2, true
		}
		return nil, input, false
	}
}
