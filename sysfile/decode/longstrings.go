package decode

import (
	"strings"

	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/sysfile/raw"
	"github.com/lemenkov/pspp-go/value"
)

// readLengthPrefixed reads a 4-byte length followed by that many bytes from
// payload at off, returning the slice and the offset just past it.
func (dec *decoder) readLengthPrefixed(payload []byte, off int) (data []byte, next int, ok bool) {
	if off+4 > len(payload) {
		return nil, off, false
	}
	n := int(dec.e.Uint32(payload[off : off+4]))
	off += 4
	if n < 0 || off+n > len(payload) {
		return nil, off, false
	}
	return payload[off : off+n], off + n, true
}

// applyLongStringValueLabels implements half of step 6 (subtype 21): one or
// more (var_name, width, n_labels, (value,label)...) groups, each entry
// length-prefixed.
func (dec *decoder) applyLongStringValueLabels(ext raw.ExtensionRecord) {
	payload := ext.Payload
	off := 0

	for off < len(payload) {
		nameBytes, next, ok := dec.readLengthPrefixed(payload, off)
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long string value labels record: truncated"))
			return
		}
		off = next

		if off+8 > len(payload) {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long string value labels record: truncated"))
			return
		}
		width := dec.e.Uint32(payload[off : off+4])
		nLabels := dec.e.Uint32(payload[off+4 : off+8])
		off += 8

		var pairs [][2][]byte
		bad := false
		for i := uint32(0); i < nLabels; i++ {
			val, next, ok := dec.readLengthPrefixed(payload, off)
			if !ok {
				bad = true
				break
			}
			off = next
			label, next, ok := dec.readLengthPrefixed(payload, off)
			if !ok {
				bad = true
				break
			}
			off = next
			pairs = append(pairs, [2][]byte{val, label})
		}
		if bad {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long string value labels record: truncated label list"))
			return
		}

		name := strings.TrimRight(dec.decodeText(string(nameBytes)), " ")
		idx, ok := dec.shortNameIndex[strings.ToUpper(name)]
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long string value labels record: unknown variable %q", name))
			continue
		}
		v := dec.dict.VariableAt(idx)
		if !v.Width.IsLongString() || v.Width.N != int(width) {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long string value labels record: variable %q width mismatch", name))
			continue
		}

		for _, p := range pairs {
			label := dec.decodeText(string(p[1]))
			v.Labels.Set(value.Str(p[0]), label)
		}
	}
}

// applyLongStringMissingValues implements the other half of step 6
// (subtype 22): one or more (var_name, n_missing, value_len, values...)
// groups. PSPP historically wrote a repeated value_len before every value
// rather than once; both forms are accepted (spec §9 Open Question).
func (dec *decoder) applyLongStringMissingValues(ext raw.ExtensionRecord) {
	payload := ext.Payload
	off := 0

	for off < len(payload) {
		nameBytes, next, ok := dec.readLengthPrefixed(payload, off)
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long string missing values record: truncated"))
			return
		}
		off = next

		if off+5 > len(payload) {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long string missing values record: truncated"))
			return
		}
		nMissing := int(payload[off])
		off++
		valueLen := dec.e.Uint32(payload[off : off+4])
		off += 4
		if valueLen != 8 {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long string missing values record: value length %d, want 8", valueLen))
			if off+int(valueLen)*nMissing > len(payload) {
				return
			}
			off += int(valueLen) * nMissing
			continue
		}

		var values [][]byte
		for i := 0; i < nMissing; i++ {
			if i > 0 && off+4 <= len(payload) && dec.e.Uint32(payload[off:off+4]) == 8 {
				// Tolerate the old buggy repeated-length form.
				off += 4
			}
			if off+8 > len(payload) {
				errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long string missing values record: truncated"))
				return
			}
			values = append(values, payload[off:off+8])
			off += 8
		}

		name := strings.TrimRight(dec.decodeText(string(nameBytes)), " ")
		idx, ok := dec.shortNameIndex[strings.ToUpper(name)]
		if !ok {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long string missing values record: unknown variable %q", name))
			continue
		}
		v := dec.dict.VariableAt(idx)
		n := 8
		if v.Width.N < n {
			n = v.Width.N
		}

		var datums []value.Datum
		for _, val := range values {
			datums = append(datums, value.Str(val[:n]))
		}
		mv, err := value.NewMissingValues(datums, nil)
		if err != nil {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "long string missing values record: variable %q: %v", name, err))
			continue
		}
		v.Missing = mv
	}
}
