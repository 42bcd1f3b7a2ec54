package decode

import (
	"strings"

	"github.com/lemenkov/pspp-go/dict"
	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/sysfile/raw"
)

// applyVarSets implements step 9 (subtype 5): one variable set per line,
// "name=var1 var2 var3". Members are resolved by original on-disk short
// name, same as long variable names and multiple-response sets.
func (dec *decoder) applyVarSets(ext raw.ExtensionRecord) {
	text := dec.decodeText(string(ext.Payload))
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		name, rest, ok := strings.Cut(line, "=")
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "variable sets record: %q missing '='", line))
			continue
		}

		var members []*dict.Variable
		for _, sn := range strings.Fields(rest) {
			idx, ok := dec.shortNameIndex[strings.ToUpper(sn)]
			if !ok {
				errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "variable set %q: unknown variable %q", name, sn))
				continue
			}
			members = append(members, dec.dict.VariableAt(idx))
		}
		if len(members) == 0 {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "variable set %q: no members", name))
			continue
		}

		dec.dict.AddVarSet(&dict.VarSet{Name: strings.TrimSpace(name), Members: members})
	}
}
