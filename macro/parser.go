package macro

import "github.com/lemenkov/pspp-go/errs"

// Call is a macro invocation matched against its Macro's parameter list:
// the arguments bound to each parameter, in declaration order.
type Call struct {
	Macro *Macro
	Args  [][]Token
}

// Arg returns the argument bound to the parameter named name, or its
// default if the call omitted it. The bool is false only if no such
// parameter exists.
func (c *Call) Arg(name string) ([]Token, bool) {
	i, ok := c.Macro.findParameter(name)
	if !ok {
		return nil, false
	}
	return c.Args[i], true
}

// Match attempts to match a macro call starting at the beginning of
// tokens against m's parameter list (spec §4.I). tokens[0] must already
// be known to name the macro (i.e. the macro-name token itself is NOT
// part of tokens; tokens holds only the argument tokens that follow it).
//
// Parameters are matched in declared order: positional parameters
// (named "!1", "!2", …) consume argument tokens directly via their own
// value-type selector, with no "name = value" wrapper expected; named
// parameters are filled wherever a "!NAME = value" pattern appears (in
// any order, as PSPP allows keyword arguments to appear out of order),
// the value being delimited by tryKeywordArg's balanced-paren scan; a
// named parameter's own selector is not applied. A parameter not
// supplied by the call falls back
// to its Default. Matching stops at the first Token{Kind: TokEnd} or
// when tokens is exhausted.
//
// This follows spec.md's own description of call matching directly
// rather than porting the token-by-token push state machine used by
// the original implementation; see DESIGN.md for why.
func Match(m *Macro, tokens []Token, sink errs.WarningSink) (*Call, int) {
	args := make([][]Token, len(m.Parameters))
	filled := make([]bool, len(m.Parameters))

	pos := 0 // next positional parameter to fill
	i := 0   // cursor into tokens

	for i < len(tokens) && tokens[i].Kind != TokEnd {
		if name, value, n, ok := tryKeywordArg(tokens[i:]); ok {
			if idx, found := m.findParameter(name); found && !m.Parameters[idx].IsPositional() {
				args[idx] = value
				filled[idx] = true
				i += n
				continue
			}
		}

		// Fall back to positional matching: the next unfilled positional
		// parameter consumes starting here via its own selector.
		for pos < len(m.Parameters) && (!m.Parameters[pos].IsPositional() || filled[pos]) {
			pos++
		}
		if pos >= len(m.Parameters) {
			errs.Emit(sink, errs.Newf(errs.WarnMacroWrongArgCount,
				"macro %s: too many arguments", m.Name))
			break
		}
		n := consumeValue(m.Parameters[pos].Arg, tokens[i:])
		if n == 0 {
			errs.Emit(sink, errs.Newf(errs.WarnMacroWrongArgCount,
				"macro %s: argument for %s never closes", m.Name, m.Parameters[pos].Name))
			break
		}
		args[pos] = tokens[i : i+n]
		filled[pos] = true
		i += n
		pos++
	}

	if i < len(tokens) && tokens[i].Kind == TokEnd {
		i++
	}

	for idx, p := range m.Parameters {
		if !filled[idx] {
			args[idx] = p.Default
		}
	}

	return &Call{Macro: m, Args: args}, i
}

// tryKeywordArg recognizes a "!NAME = value" prefix of tokens, returning
// the parameter name, the value tokens (delimited by a balanced-paren
// scan so that "!NAME = (a, b)" and similar constructs are captured
// whole), and the total number of tokens consumed.
func tryKeywordArg(tokens []Token) (name string, value []Token, n int, ok bool) {
	if len(tokens) < 2 || !tokens[0].IsMacroID() {
		return "", nil, 0, false
	}
	if tokens[1].Kind != TokPunct || tokens[1].Text != "=" {
		return "", nil, 0, false
	}
	i := 2
	depth := 0
	start := i
	for i < len(tokens) {
		t := tokens[i]
		if t.Kind == TokEnd && depth == 0 {
			break
		}
		switch {
		case t.Kind == TokPunct && (t.Text == "(" || t.Text == "["):
			depth++
		case t.Kind == TokPunct && (t.Text == ")" || t.Text == "]"):
			if depth == 0 {
				i++
				return tokens[0].Text, tokens[start:i], i, true
			}
			depth--
		case depth == 0 && t.IsMacroID() && i+1 < len(tokens) && tokens[i+1].Kind == TokPunct && tokens[i+1].Text == "=":
			// the start of the next keyword argument ends this one.
			return tokens[0].Text, tokens[start:i], i, true
		}
		i++
	}
	return tokens[0].Text, tokens[start:i], i, true
}

// consumeValue returns how many leading tokens of tokens belong to a
// value delimited by vt, or 0 if vt cannot be satisfied (e.g. an
// !ENCLOSE whose Start token never appears).
func consumeValue(vt ValueType, tokens []Token) int {
	switch vt.Kind {
	case ValNTokens:
		if vt.Count <= 0 || vt.Count > len(tokens) {
			return min(len(tokens), countUntilEnd(tokens))
		}
		return vt.Count

	case ValCharEnd:
		for i, t := range tokens {
			if t.Kind == TokEnd {
				return i
			}
			if t.equalFold(vt.End) {
				return i
			}
		}
		return len(tokens)

	case ValEnclose:
		if len(tokens) == 0 || !tokens[0].equalFold(vt.Start) {
			return 0
		}
		for i := 1; i < len(tokens); i++ {
			if tokens[i].equalFold(vt.End) {
				return i + 1
			}
			if tokens[i].Kind == TokEnd {
				break
			}
		}
		return 0

	case ValCmdEnd:
		return countUntilEnd(tokens)

	default:
		return 0
	}
}

func countUntilEnd(tokens []Token) int {
	for i, t := range tokens {
		if t.Kind == TokEnd {
			return i
		}
	}
	return len(tokens)
}
