package macro

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lemenkov/pspp-go/errs"
)

func (e *Expander) fnBlanks(args []string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || n < 0 {
		e.warn(errs.WarnMacroBadExpression, "!BLANKS argument %q is not a non-negative integer", args[0])
		return "", false
	}
	return strings.Repeat(" ", n), true
}

func (e *Expander) fnConcat(args []string) (string, bool) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(unquote(a))
	}
	return b.String(), true
}

func (e *Expander) fnHead(args []string) (string, bool) {
	toks := tokenizeString(unquote(args[0]))
	if len(toks) == 0 {
		return "", true
	}
	return toks[0].Text, true
}

func (e *Expander) fnIndex(args []string) (string, bool) {
	haystack, needle := args[0], args[1]
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return "0", true
	}
	return strconv.Itoa(utf8.RuneCountInString(haystack[:idx]) + 1), true
}

func (e *Expander) fnLength(args []string) (string, bool) {
	return strconv.Itoa(utf8.RuneCountInString(args[0])), true
}

func (e *Expander) fnQuote(args []string) (string, bool) {
	return quote(args[0]), true
}

func (e *Expander) fnSubstr(args []string) (string, bool) {
	start, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil || start < 1 {
		e.warn(errs.WarnMacroBadExpression, "!SUBSTR start %q is not a positive integer", args[1])
		return "", false
	}
	runes := []rune(args[0])
	startIdx := start - 1
	if startIdx > len(runes) {
		return "", true
	}
	end := len(runes)
	if len(args) == 3 {
		count, err := strconv.Atoi(strings.TrimSpace(args[2]))
		if err != nil || count < 0 {
			e.warn(errs.WarnMacroBadExpression, "!SUBSTR count %q is not a non-negative integer", args[2])
			return "", false
		}
		if startIdx+count < end {
			end = startIdx + count
		}
	}
	return string(runes[startIdx:end]), true
}

func (e *Expander) fnTail(args []string) (string, bool) {
	toks := tokenizeString(unquote(args[0]))
	if len(toks) == 0 {
		return "", true
	}
	return toks[len(toks)-1].Text, true
}

func (e *Expander) fnUnquote(args []string) (string, bool) {
	return unquote(args[0]), true
}

func (e *Expander) fnUpcase(args []string) (string, bool) {
	return strings.ToUpper(unquote(args[0])), true
}

func (e *Expander) fnEval(args []string) (string, bool) {
	toks := tokenizeString(args[0])
	sub := e.child(nil, nil, true, true)
	var out []Token
	sub.expandAll(toks, &out)
	return tokensToSyntax(out), true
}
