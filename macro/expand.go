package macro

import (
	"strconv"
	"strings"

	"github.com/lemenkov/pspp-go/errs"
)

// DefaultMaxNest is the default recursive macro-expansion nesting limit
// (spec §7.3): past this depth, expansion stops and the remaining input
// is copied through unchanged with a warning, rather than failing the
// whole command.
const DefaultMaxNest = 50

// DefaultMaxIterations bounds a single !DO loop's iteration count, again
// trading an unbounded macro for a warning plus truncation rather than
// a hang.
const DefaultMaxIterations = 1000

// Expander walks a token stream, substituting macro calls, parameters,
// !LET/!DO variables, and macro-function calls for their expansions
// (spec §4.I). A zero Expander is not usable; construct one with
// NewExpander.
type Expander struct {
	Macros        *Set
	MaxNest       int
	MaxIterations int
	Sink          errs.WarningSink

	nesting int
	vars    map[string]string
	expand  *bool
	brk     *bool

	// inMacro/args are set only while expanding a macro call's body, never
	// while expanding a plain token stream or a function's string
	// argument.
	inMacro *Macro
	args   [][]Token
}

// NewExpander creates an Expander bound to the given macro set.
func NewExpander(macros *Set, sink errs.WarningSink) *Expander {
	on := true
	return &Expander{
		Macros:        macros,
		MaxNest:       DefaultMaxNest,
		MaxIterations: DefaultMaxIterations,
		Sink:          sink,
		vars:          make(map[string]string),
		expand:        &on,
	}
}

func (e *Expander) maxNest() int {
	if e.MaxNest > 0 {
		return e.MaxNest
	}
	return DefaultMaxNest
}

func (e *Expander) maxIterations() int {
	if e.MaxIterations > 0 {
		return e.MaxIterations
	}
	return DefaultMaxIterations
}

func (e *Expander) mayExpand() bool { return e.expand == nil || *e.expand }
func (e *Expander) shouldBreak() bool { return e.brk != nil && *e.brk }

func (e *Expander) warn(code errs.Code, format string, args ...any) {
	errs.Emit(e.Sink, errs.Newf(code, format, args...))
}

// Expand substitutes every macro call, parameter reference, variable,
// and function call it finds in tokens and returns the resulting token
// stream. It is the top-level entry point; tokens need not all belong
// to one command.
func (e *Expander) Expand(tokens []Token) []Token {
	root := &Expander{
		Macros:        e.Macros,
		MaxNest:       e.maxNest(),
		MaxIterations: e.maxIterations(),
		Sink:          e.Sink,
		nesting:       e.maxNest(),
		vars:          make(map[string]string),
		expand:        e.expand,
	}
	if root.expand == nil {
		on := true
		root.expand = &on
	}
	var out []Token
	root.expandAll(tokens, &out)
	return out
}

func (e *Expander) expandAll(input []Token, output *[]Token) {
	if e.nesting <= 0 {
		e.warn(errs.WarnMacroNestingOverflow, "macro expansion nested too deeply, limit is %d", e.maxNest())
		*output = append(*output, input...)
		return
	}
	for len(input) > 0 && !e.shouldBreak() {
		input = e.expandOne(input, output)
	}
}

// child returns a subexpander with this Expander's settings, one fewer
// nesting level, and forMacro/forArgs as its macro/args context. It gets
// a fresh vars map if ownVars is set and shares this one (for !DO/!LET
// scoping) otherwise; it gets its own break flag if withBreak is set and
// none otherwise.
func (e *Expander) child(forMacro *Macro, forArgs [][]Token, ownVars bool, withBreak bool) *Expander {
	c := &Expander{
		Macros:        e.Macros,
		MaxNest:       e.MaxNest,
		MaxIterations: e.MaxIterations,
		Sink:          e.Sink,
		nesting:       e.nesting - 1,
		expand:        e.expand,
		inMacro:        forMacro,
		args:          forArgs,
	}
	if ownVars {
		c.vars = make(map[string]string)
	} else {
		c.vars = e.vars
	}
	if withBreak {
		f := false
		c.brk = &f
	}
	return c
}

// expandOne processes the single next construct at the front of input
// (a macro call, a parameter reference, a variable, a control
// construct, a macro-function call, or a single literal token) and
// returns the remaining input.
func (e *Expander) expandOne(input []Token, output *[]Token) []Token {
	if e.mayExpand() && len(input) > 0 && input[0].IsMacroID() {
		if m, ok := e.Macros.Lookup(input[0].Text); ok {
			rest := input[1:]
			call, n := Match(m, rest, e.Sink)
			sub := e.child(m, call.Args, true, false)
			var body []Token
			sub.expandAll(append([]Token(nil), m.Body...), &body)
			*output = append(*output, body...)
			// Match swallows a trailing command-end token to recognize
			// where the call's arguments stop, but that token is real
			// input, not part of the call syntax: put it back.
			if n > 0 && rest[n-1].Kind == TokEnd {
				*output = append(*output, rest[n-1])
			}
			return rest[n:]
		}
	}

	t := input[0]

	if t.Kind == TokPunct && t.Text == "!*" {
		if e.inMacro != nil {
			for i := range e.inMacro.Parameters {
				e.expandArg(i, output)
			}
		} else {
			e.warn(errs.WarnMacroBadExpression, "!* used outside a macro body")
		}
		return input[1:]
	}

	if !t.IsMacroID() {
		*output = append(*output, t)
		return input[1:]
	}

	if e.inMacro != nil {
		if idx, ok := e.inMacro.findParameter(t.Text); ok {
			e.expandArg(idx, output)
			return input[1:]
		}
	}

	if v, ok := e.vars[strings.ToUpper(t.Text)]; ok {
		*output = append(*output, tokenizeString(v)...)
		return input[1:]
	}

	if rest, ok := e.tryIf(input, output); ok {
		return rest
	}
	if rest, ok := e.tryLet(input); ok {
		return rest
	}
	if rest, ok := e.tryDo(input, output); ok {
		return rest
	}
	if val, rest, ok := e.tryFunctionCall(input); ok {
		*output = append(*output, tokenizeString(val)...)
		return rest
	}

	switch strings.ToUpper(t.Text) {
	case "!BREAK":
		if e.brk != nil {
			*e.brk = true
		} else {
			e.warn(errs.WarnMacroBreakOutsideDo, "!BREAK used outside !DO")
		}
		return input[1:]
	case "!ONEXPAND":
		on := true
		e.expand = &on
		return input[1:]
	case "!OFFEXPAND":
		off := false
		e.expand = &off
		return input[1:]
	}

	*output = append(*output, t)
	return input[1:]
}

// expandArg appends the value bound to the idx'th parameter of the
// macro currently being expanded, recursively macro-expanding it first
// if the parameter was declared with !EXPAND (or no !NOEXPAND, the
// default) and expansion is currently enabled.
func (e *Expander) expandArg(idx int, output *[]Token) {
	param := e.inMacro.Parameters[idx]
	arg := e.args[idx]
	if e.mayExpand() && param.ExpandValue {
		sub := e.child(nil, nil, true, false)
		var expanded []Token
		sub.expandAll(append([]Token(nil), arg...), &expanded)
		*output = append(*output, expanded...)
		return
	}
	*output = append(*output, arg...)
}

func matchKeyword(input []Token, word string) ([]Token, bool) {
	if len(input) == 0 || input[0].Kind != TokID {
		return input, false
	}
	if !strings.EqualFold(input[0].Text, word) {
		return input, false
	}
	return input[1:], true
}

func matchPunct(input []Token, text string) ([]Token, bool) {
	if len(input) == 0 || input[0].Kind != TokPunct || input[0].Text != text {
		return input, false
	}
	return input[1:], true
}

// tryIf recognizes and expands a !IF cond !THEN ... [!ELSE ...] !IFEND
// construct at the front of input.
func (e *Expander) tryIf(input []Token, output *[]Token) ([]Token, bool) {
	rest, ok := matchKeyword(input, "!IF")
	if !ok {
		return input, false
	}
	cond, rest, ok := e.evaluateExpression(rest)
	if !ok {
		e.warn(errs.WarnMacroBadExpression, "malformed expression in !IF")
		return input, false
	}
	rest, ok = matchKeyword(rest, "!THEN")
	if !ok {
		e.warn(errs.WarnMacroBadExpression, "expecting !THEN after !IF expression")
		return input, false
	}
	thenTokens, after, elseClausePresent, ok := splitIfClause(rest)
	if !ok {
		e.warn(errs.WarnMacroUnterminatedDo, "!IF without matching !IFEND")
		return input, false
	}
	var elseTokens []Token
	rest = after
	if elseClausePresent {
		elseTokens, rest, ok = splitIfEnd(rest)
		if !ok {
			e.warn(errs.WarnMacroUnterminatedDo, "!ELSE without matching !IFEND")
			return input, false
		}
	}

	chosen := elseTokens
	if !isFalse(cond) {
		chosen = thenTokens
	}
	if len(chosen) > 0 {
		sub := e.child(e.inMacro, e.args, false, false)
		// !IF doesn't open its own break scope: a !BREAK in its chosen
		// branch must still reach an enclosing !DO.
		sub.brk = e.brk
		sub.expandAll(chosen, output)
	}
	return rest, true
}

// splitIfClause scans forward for a balanced (w.r.t. nested !IF/!IFEND)
// !ELSE or !IFEND, returning the tokens before it, the remainder after
// it, and whether the terminator found was !ELSE (as opposed to
// !IFEND).
func splitIfClause(input []Token) (clause, rest []Token, sawElse bool, ok bool) {
	depth := 0
	for i := 0; i < len(input); i++ {
		t := input[i]
		if t.Kind != TokID {
			continue
		}
		switch strings.ToUpper(t.Text) {
		case "!IF":
			depth++
		case "!IFEND":
			if depth == 0 {
				return input[:i], input[i+1:], false, true
			}
			depth--
		case "!ELSE":
			if depth == 0 {
				return input[:i], input[i+1:], true, true
			}
		}
	}
	return nil, nil, false, false
}

// splitIfEnd scans forward for the !IFEND matching an already-consumed
// !ELSE.
func splitIfEnd(input []Token) (clause, rest []Token, ok bool) {
	depth := 0
	for i := 0; i < len(input); i++ {
		t := input[i]
		if t.Kind != TokID {
			continue
		}
		switch strings.ToUpper(t.Text) {
		case "!IF":
			depth++
		case "!IFEND":
			if depth == 0 {
				return input[:i], input[i+1:], true
			}
			depth--
		}
	}
	return nil, nil, false
}

func isFalse(s string) bool {
	return strings.TrimSpace(s) == "0"
}

// tryLet recognizes and performs a !LET var = expr assignment.
func (e *Expander) tryLet(input []Token) ([]Token, bool) {
	rest, ok := matchKeyword(input, "!LET")
	if !ok {
		return input, false
	}
	if len(rest) == 0 || !rest[0].IsMacroID() {
		e.warn(errs.WarnMacroBadExpression, "expecting macro variable name after !LET")
		return input, false
	}
	name := strings.ToUpper(rest[0].Text)
	if isMacroKeyword(name) {
		e.warn(errs.WarnMacroBadExpression, "%s is reserved and cannot be used as a !LET variable", name)
		return input, false
	}
	rest = rest[1:]
	rest, ok = matchPunct(rest, "=")
	if !ok {
		e.warn(errs.WarnMacroBadExpression, "expecting = after !LET variable name")
		return input, false
	}
	value, rest, ok := e.evaluateExpression(rest)
	if !ok {
		e.warn(errs.WarnMacroBadExpression, "malformed expression in !LET")
		return input, false
	}
	e.vars[name] = value
	return rest, true
}

// tryDo recognizes and runs a !DO var !IN (list) ... !DOEND or
// !DO var = first !TO last [!BY step] ... !DOEND loop.
func (e *Expander) tryDo(input []Token, output *[]Token) ([]Token, bool) {
	rest, ok := matchKeyword(input, "!DO")
	if !ok {
		return input, false
	}
	if len(rest) == 0 || !rest[0].IsMacroID() {
		e.warn(errs.WarnMacroBadExpression, "expecting macro variable name after !DO")
		return input, false
	}
	varName := strings.ToUpper(rest[0].Text)
	rest = rest[1:]

	var items []string
	switch {
	case len(rest) > 0 && rest[0].Kind == TokID && strings.EqualFold(rest[0].Text, "!IN"):
		rest = rest[1:]
		var listTokens []Token
		listTokens, rest, ok = splitParenList(rest)
		if !ok {
			e.warn(errs.WarnMacroBadExpression, "expecting ( after !IN")
			return input, false
		}
		items = splitCommaList(listTokens)
		if len(items) > e.maxIterations()+1 {
			items = items[:e.maxIterations()+1]
		}
	default:
		rest, ok = matchPunct(rest, "=")
		if !ok {
			e.warn(errs.WarnMacroBadExpression, "expecting = or !IN after !DO variable")
			return input, false
		}
		first, ok1, r1 := e.evaluateNumber(rest)
		if !ok1 {
			e.warn(errs.WarnMacroBadExpression, "malformed start value in !DO")
			return input, false
		}
		rest = r1
		rest, ok = matchKeyword(rest, "!TO")
		if !ok {
			e.warn(errs.WarnMacroBadExpression, "expecting !TO in !DO")
			return input, false
		}
		last, ok2, r2 := e.evaluateNumber(rest)
		if !ok2 {
			e.warn(errs.WarnMacroBadExpression, "malformed end value in !DO")
			return input, false
		}
		rest = r2
		by := 1.0
		if r3, matched := matchKeyword(rest, "!BY"); matched {
			byVal, ok3, r4 := e.evaluateNumber(r3)
			if !ok3 || byVal == 0 {
				e.warn(errs.WarnMacroBadExpression, "malformed !BY step in !DO")
				return input, false
			}
			by = byVal
			rest = r4
		}
		items = numericRange(first, last, by, e.maxIterations()+1)
	}

	body, after, ok := findDoEnd(rest)
	if !ok {
		e.warn(errs.WarnMacroUnterminatedDo, "!DO without matching !DOEND")
		return input, false
	}

	sub := e.child(e.inMacro, e.args, false, true)
	for i, item := range items {
		if sub.shouldBreak() {
			break
		}
		if i >= e.maxIterations() {
			e.warn(errs.WarnMacroUnterminatedDo, "!DO loop exceeded %d iterations", e.maxIterations())
			break
		}
		e.vars[varName] = item
		sub.expandAll(append([]Token(nil), body...), output)
	}
	return after, true
}

// splitParenList consumes a parenthesized, balanced run of tokens at
// the front of input (as !DO ... !IN (...) takes), returning the
// tokens found strictly between the parens and whatever follows the
// closing paren.
func splitParenList(input []Token) (list, rest []Token, ok bool) {
	input, ok = matchPunct(input, "(")
	if !ok {
		return nil, input, false
	}
	depth := 0
	for i, t := range input {
		if t.Kind != TokPunct {
			continue
		}
		switch t.Text {
		case "(":
			depth++
		case ")":
			if depth == 0 {
				return input[:i], input[i+1:], true
			}
			depth--
		}
	}
	return nil, input, false
}

// splitCommaList turns a !DO ... !IN (...) token list into one item
// per token, the way PSPP's own !DO !IN treats each token of the list
// as a separate iteration value: "(A B C)" and "(A, B, C)" both yield
// three items, the comma (if present) being pure punctuation rather
// than a value of its own.
func splitCommaList(tokens []Token) []string {
	var items []string
	for _, t := range tokens {
		if t.Kind == TokPunct && t.Text == "," {
			continue
		}
		val := t.Text
		if t.Kind == TokString {
			val = unquote(val)
		}
		items = append(items, val)
	}
	return items
}

// findDoEnd scans forward for the !DOEND matching the !DO whose body
// begins at input (nested !DO/!DOEND pairs are skipped over).
func findDoEnd(input []Token) (body, rest []Token, ok bool) {
	depth := 0
	for i := 0; i < len(input); i++ {
		t := input[i]
		if t.Kind != TokID {
			continue
		}
		switch strings.ToUpper(t.Text) {
		case "!DO":
			depth++
		case "!DOEND":
			if depth == 0 {
				return input[:i], input[i+1:], true
			}
			depth--
		}
	}
	return nil, nil, false
}

// numericRange expands a !DO var = first !TO last !BY step loop into
// its sequence of values, per the non-monotone-bound rule: the count
// is max(0, floor((last-first)/step)+1), clamped to maxIterations.
func numericRange(first, last, by float64, maxIterations int) []string {
	if by == 0 {
		return nil
	}
	var count int
	if by > 0 {
		if last < first {
			return nil
		}
		count = int((last-first)/by) + 1
	} else {
		if last > first {
			return nil
		}
		count = int((last-first)/by) + 1
	}
	if count < 0 {
		count = 0
	}
	if count > maxIterations {
		count = maxIterations
	}
	out := make([]string, 0, count)
	v := first
	for i := 0; i < count; i++ {
		out = append(out, formatNumber(v))
		v += by
	}
	return out
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func macroKeywords() map[string]bool {
	words := []string{
		"!BREAK", "!CHAREND", "!CMDEND", "!DEFAULT", "!DO", "!DOEND", "!ELSE",
		"!ENCLOSE", "!ENDDEFINE", "!IF", "!IFEND", "!IN", "!LET", "!NOEXPAND",
		"!OFFEXPAND", "!ONEXPAND", "!POSITIONAL", "!THEN", "!TOKENS",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var macroKeywordSet = macroKeywords()

func isMacroKeyword(upperName string) bool {
	return macroKeywordSet[upperName]
}
