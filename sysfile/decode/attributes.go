package decode

import (
	"strings"

	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/ident"
	"github.com/lemenkov/pspp-go/sysfile/raw"
)

// parseAttribute reads one "name('v1'\n'v2'\n)" entry from the front of
// input, returning its name, values, and what follows the closing paren.
func (dec *decoder) parseAttribute(input string) (name string, values []string, rest string, ok bool) {
	paren := strings.IndexByte(input, '(')
	if paren < 0 {
		return "", nil, "", false
	}
	name = input[:paren]
	input = input[paren+1:]

	for {
		nl := strings.IndexByte(input, '\n')
		if nl < 0 {
			return "", nil, "", false
		}
		val := input[:nl]
		rest = input[nl+1:]

		if len(val) >= 2 && val[0] == '\'' && val[len(val)-1] == '\'' {
			values = append(values, val[1:len(val)-1])
		} else {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "attribute %q: value %q missing quotes", name, val))
			values = append(values, val)
		}

		if strings.HasPrefix(rest, ")") {
			return name, values, rest[1:], true
		}
		input = rest
	}
}

// parseAttributes repeatedly parses attributes from input until it is
// empty (sentinel == 0) or sentinel is encountered and consumed.
func (dec *decoder) parseAttributes(input string, sentinel byte) (attrs map[string][]string, rest string, dup []string, ok bool) {
	attrs = make(map[string][]string)
	for {
		if input == "" {
			return attrs, input, dup, true
		}
		if sentinel != 0 && input[0] == sentinel {
			return attrs, input[1:], dup, true
		}

		name, values, next, parsed := dec.parseAttribute(input)
		if !parsed {
			return attrs, input, dup, false
		}
		if _, exists := attrs[name]; exists {
			dup = append(dup, name)
		}
		attrs[name] = values
		input = next
	}
}

// applyFileAttributes implements half of step 8 (subtype 17).
func (dec *decoder) applyFileAttributes(ext raw.ExtensionRecord) {
	text := dec.decodeText(string(ext.Payload))
	attrs, rest, dup, ok := dec.parseAttributes(text, 0)
	if !ok {
		errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "file attributes record: syntax error"))
		return
	}
	if len(dup) > 0 {
		errs.Emit(dec.sink, errs.Newf(errs.WarnDuplicateAttribute, "file attributes record: duplicate attribute(s) %v", dup))
	}
	if rest != "" {
		errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "file attributes record: trailing data %q", rest))
	}
	for k, v := range attrs {
		dec.dict.Attributes()[k] = v
	}
}

// applyVarAttributes implements the other half of step 8 (subtype 18):
// "longname:name('v1'\n)/..." blocks, one per variable, separated by '/'.
func (dec *decoder) applyVarAttributes(ext raw.ExtensionRecord) {
	text := dec.decodeText(string(ext.Payload))
	for text != "" {
		colon := strings.IndexByte(text, ':')
		if colon < 0 {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "variable attributes record: missing ':'"))
			return
		}
		longName := text[:colon]
		rest := text[colon+1:]

		id, err := ident.New(longName, dec.enc)
		if err != nil {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "variable attributes record: invalid variable name %q: %v", longName, err))
			return
		}

		attrs, next, dup, ok := dec.parseAttributes(rest, '/')
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "variable attributes record: syntax error for %q", longName))
			return
		}
		if len(dup) > 0 {
			errs.Emit(dec.sink, errs.Newf(errs.WarnDuplicateAttribute, "variable %q: duplicate attribute(s) %v", longName, dup))
		}

		if v, _, found := dec.dict.Lookup(id.String()); found {
			for k, val := range attrs {
				v.Attributes[k] = val
			}
		} else {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "variable attributes record: unknown variable %q", longName))
		}

		text = next
	}
}
