package decode

import (
	"strconv"
	"strings"

	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/ident"
	"github.com/lemenkov/pspp-go/sysfile/raw"
	"github.com/lemenkov/pspp-go/value"
)

// applyLongVarNames implements step 4: tab-separated "short=long" pairs.
// The short name looked up is the original on-disk one, not whatever the
// variable is currently named, so the record can be applied independent of
// record order relative to other renames.
func (dec *decoder) applyLongVarNames(ext raw.ExtensionRecord) {
	text := dec.decodeText(string(ext.Payload))
	for _, pair := range strings.Split(text, "\t") {
		if pair == "" {
			continue
		}
		short, long, ok := strings.Cut(pair, "=")
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long variable names record: %q missing '='", pair))
			continue
		}

		idx, ok := dec.shortNameIndex[strings.ToUpper(short)]
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long variable names record: unknown short name %q", short))
			continue
		}

		longID, err := ident.New(long, dec.enc)
		if err != nil {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long variable names record: invalid long name %q: %v", long, err))
			continue
		}

		if err := dec.dict.RenameVariable(idx, longID); err != nil {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long variable names record: renaming %q to %q: %v", short, long, err))
		}
	}
}

// applyVeryLongStrings implements step 5: each entry widens a variable to
// its declared byte length and absorbs the N immediately following
// continuation records as its physical segments.
func (dec *decoder) applyVeryLongStrings(ext raw.ExtensionRecord) {
	text := dec.decodeText(string(ext.Payload))
	for _, tuple := range strings.Split(text, "\x00") {
		tuple = strings.TrimLeft(tuple, "\t")
		if tuple == "" {
			continue
		}

		short, lenStr, ok := strings.Cut(tuple, "=")
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "very long strings record: %q missing '='", tuple))
			continue
		}
		length, err := strconv.Atoi(lenStr)
		if err != nil {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "very long strings record: invalid length %q", lenStr))
			continue
		}

		idx, ok := dec.shortNameIndex[strings.ToUpper(short)]
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "very long strings record: unknown short name %q", short))
			continue
		}

		newWidth, err := value.NewStringWidth(length)
		if err != nil {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "very long strings record: variable %q: %v", short, err))
			continue
		}

		segs := value.Segments(newWidth)
		needed := len(segs) - 1

		v := dec.dict.VariableAt(idx)
		remembered := []string{short}

		recIdx := dec.recordIndexOf[idx]
		for i := 0; i < needed; i++ {
			ri := recIdx + 1 + i
			contShort, ok := dec.continuationShortName[ri]
			if !ok {
				errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "very long strings record: variable %q missing continuation segment %d", short, i+1))
				break
			}
			remembered = append(remembered, contShort)
			delete(dec.continuationShortName, ri)
		}

		v.Width = newWidth
		v.RememberShortNames(remembered)
	}
}
