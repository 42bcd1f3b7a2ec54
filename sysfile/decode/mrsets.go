package decode

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/lemenkov/pspp-go/dict"
	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/sysfile/raw"
	"github.com/lemenkov/pspp-go/value"
)

// parseCountedString reads "<decimal length> <bytes>" from the front of
// input, returning the counted bytes and what follows them.
func parseCountedString(input []byte) (counted, rest []byte, ok bool) {
	space := bytes.IndexByte(input, ' ')
	if space < 0 {
		return nil, nil, false
	}
	n, err := strconv.Atoi(string(input[:space]))
	if err != nil || n < 0 {
		return nil, nil, false
	}
	body := input[space+1:]
	if n > len(body) {
		return nil, nil, false
	}
	return body[:n], body[n:], true
}

// applyMRSets implements step 7 (subtypes 7 and 19: pre-v14 and v14+
// multiple-response records, parsed identically).
func (dec *decoder) applyMRSets(ext raw.ExtensionRecord, _ bool) {
	input := ext.Payload
	for {
		for len(input) > 0 && input[0] == '\n' {
			input = input[1:]
		}
		if len(input) == 0 {
			return
		}

		set, rest, ok := dec.parseOneMRSet(input)
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "multiple response record: syntax error"))
			return
		}
		input = rest

		if set != nil {
			if err := dec.dict.AddMRSet(set); err != nil {
				errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "multiple response set %q: %v", set.Name, err))
			}
		}
	}
}

func (dec *decoder) parseOneMRSet(input []byte) (*dict.MRSet, []byte, bool) {
	eq := bytes.IndexByte(input, '=')
	if eq < 0 {
		return nil, nil, false
	}
	name := string(input[:eq])
	input = input[eq+1:]
	if len(input) == 0 {
		return nil, nil, false
	}

	var mrType dict.MRSetType
	var labelSource dict.CountedLabelSource
	var countedRaw []byte
	var ok bool

	switch input[0] {
	case 'C':
		mrType = dict.MRCategory
		input = input[1:]
	case 'D':
		mrType = dict.MRDichotomy
		labelSource = dict.LabelFromVariableLabel
		countedRaw, input, ok = parseCountedString(input[1:])
		if !ok {
			return nil, nil, false
		}
	case 'E':
		mrType = dict.MRDichotomy
		switch {
		case bytes.HasPrefix(input[1:], []byte(" 1 ")):
			labelSource = dict.LabelFromCountedValue
			input = input[1+3:]
		case bytes.HasPrefix(input[1:], []byte(" 11 ")):
			labelSource = dict.LabelFromVariableLabel
			input = input[1+4:]
		default:
			return nil, nil, false
		}
		countedRaw, input, ok = parseCountedString(input)
		if !ok {
			return nil, nil, false
		}
	default:
		return nil, nil, false
	}

	if len(input) == 0 || input[0] != ' ' {
		return nil, nil, false
	}
	labelRaw, input, ok := parseCountedString(input[1:])
	if !ok {
		return nil, nil, false
	}

	var shortNames []string
	for len(input) > 0 && input[0] != '\n' {
		if input[0] != ' ' {
			return nil, nil, false
		}
		input = input[1:]
		end := bytes.IndexAny(input, " \n")
		if end < 0 {
			return nil, nil, false
		}
		if end > 0 {
			shortNames = append(shortNames, string(input[:end]))
		}
		input = input[end:]
	}
	for len(input) > 0 && input[0] == '\n' {
		input = input[1:]
	}

	members, memberWidth := dec.lookupMembers(name, shortNames)
	if len(members) < 2 {
		return nil, input, true
	}

	s := &dict.MRSet{
		Name:        dec.decodeText(name),
		Label:       dec.decodeText(string(labelRaw)),
		Type:        mrType,
		LabelSource: labelSource,
		Members:     members,
	}
	if mrType == dict.MRDichotomy {
		if memberWidth > 0 {
			n := len(countedRaw)
			if n > memberWidth {
				n = memberWidth
			}
			s.CountedValue = value.Str(countedRaw[:n])
		} else {
			f, err := strconv.ParseFloat(strings.TrimSpace(string(countedRaw)), 64)
			if err == nil {
				s.CountedValue = value.Num(f)
			}
		}
	}
	return s, input, true
}

// lookupMembers resolves a multiple-response set's short names (which refer
// to original on-disk short names, independent of any later rename) to
// live variables, warning about and skipping any that don't resolve.
func (dec *decoder) lookupMembers(setName string, shortNames []string) ([]*dict.Variable, int) {
	var members []*dict.Variable
	width := -1
	for _, sn := range shortNames {
		idx, ok := dec.shortNameIndex[strings.ToUpper(sn)]
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "multiple response set %q: unknown variable %q", setName, sn))
			continue
		}
		v := dec.dict.VariableAt(idx)
		if v.Width.IsString() {
			if width < 0 || v.Width.N < width {
				width = v.Width.N
			}
		}
		members = append(members, v)
	}
	return members, width
}
