// Package decode turns the record slice sysfile/raw.Reader.ReadAll produces
// into a live dict.Dictionary, applying every extension record to the
// variables the core variable records already built (spec §4.E).
package decode

import (
	"fmt"
	"math"
	"strings"

	"github.com/lemenkov/pspp-go/dict"
	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/format"
	"github.com/lemenkov/pspp-go/ident"
	"github.com/lemenkov/pspp-go/section"
	"github.com/lemenkov/pspp-go/sysfile/raw"
	"github.com/lemenkov/pspp-go/value"
)

// codepageNames maps the integer-info record's character_code field to an
// IANA/WHATWG encoding label, covering the codes observed in practice.
var codepageNames = map[int32]string{
	1:     "windows-1252", // SPSS's historical "ASCII" tag
	874:   "windows-874",
	936:   "gbk",
	949:   "windows-949",
	950:   "big5",
	1200:  "UTF-16",
	1201:  "UTF-16BE",
	1252:  "windows-1252",
	20127: "US-ASCII",
	28591: "ISO-8859-1",
	28605: "ISO-8859-15",
	65001: "UTF-8",
}

// decoder holds the cross-reference bookkeeping the ten-step process needs
// as it turns raw records into dict.Dictionary state.
type decoder struct {
	dict *dict.Dictionary
	enc  *ident.Encoding
	e    endian.EndianEngine
	sink errs.WarningSink

	// indexOf maps a 1-based on-disk variable-record index (counting every
	// VariableRecord including continuations) to the corresponding
	// variable's 0-based dictionary index, or -1 for a continuation.
	indexOf map[int]int

	// recordIndexOf is indexOf's inverse, restricted to real variables.
	recordIndexOf map[int]int

	// shortNameIndex maps a case-folded original on-disk short name to its
	// variable's dictionary index. It stays valid after a long-variable-
	// names rename, unlike looking the name up in the dictionary itself.
	shortNameIndex map[string]int

	// continuationShortName records a continuation record's own (otherwise
	// discarded) short name, needed when a very-long-strings record absorbs
	// it as a named segment.
	continuationShortName map[int]string
}

// Decode builds a Dictionary from records. e must be the same endian engine
// used to read the header and records (sysfile/raw.Reader's), since a few
// extension payloads (integer info, long numeric value labels) still carry
// unparsed multi-byte fields.
func Decode(records []raw.Record, e endian.EndianEngine, sink errs.WarningSink) (*dict.Dictionary, error) {
	enc := determineEncoding(records, e, sink)

	dec := &decoder{
		dict:                  dict.New(enc),
		enc:                   enc,
		e:                     e,
		sink:                  sink,
		indexOf:               make(map[int]int),
		recordIndexOf:         make(map[int]int),
		shortNameIndex:        make(map[string]int),
		continuationShortName: make(map[int]string),
	}

	if err := dec.buildVariables(records); err != nil {
		return nil, err
	}
	dec.applyValueLabels(records)
	dec.applyDocuments(records)

	for _, rec := range records {
		if ext, ok := rec.(raw.ExtensionRecord); ok {
			dec.applyExtension(ext)
		}
	}

	return dec.dict, nil
}

// determineEncoding implements step 1: explicit encoding-name extension,
// else the integer-info record's character_code, else UTF-8 with a warning.
func determineEncoding(records []raw.Record, e endian.EndianEngine, sink errs.WarningSink) *ident.Encoding {
	for _, rec := range records {
		ext, ok := rec.(raw.ExtensionRecord)
		if !ok || ext.Subtype != section.ExtEncoding {
			continue
		}
		name := strings.TrimRight(string(ext.Payload), "\x00")
		if enc, err := ident.NewEncoding(name); err == nil {
			return enc
		}
		errs.Emit(sink, errs.Newf(errs.WarnFallbackEncoding, "unrecognized encoding name %q", name))
	}

	for _, rec := range records {
		ext, ok := rec.(raw.ExtensionRecord)
		if !ok || ext.Subtype != section.ExtIntegerInfo || len(ext.Payload) < 32 {
			continue
		}
		code := int32(e.Uint32(ext.Payload[28:32]))
		name, known := codepageNames[code]
		if !known {
			errs.Emit(sink, errs.Newf(errs.WarnFallbackEncoding, "unrecognized character code %d, defaulting to UTF-8", code))
			break
		}
		if enc, err := ident.NewEncoding(name); err == nil {
			return enc
		}
	}

	errs.Emit(sink, errs.Newf(errs.WarnFallbackEncoding, "no encoding information present, defaulting to UTF-8"))
	return ident.UTF8()
}

// decodeText decodes raw on-disk bytes to UTF-8, warning once per call if
// any byte was unmappable.
func (dec *decoder) decodeText(raw string) string {
	text, replaced, _ := dec.enc.Decode([]byte(raw))
	if replaced > 0 {
		errs.Emit(dec.sink, errs.Newf(errs.WarnUnmappableBytes, "%d unmappable byte(s) in %q", replaced, raw))
	}
	return text
}

// buildVariables implements step 2: decode every non-continuation variable
// record into a Variable, recording the on-disk-index bookkeeping later
// steps need.
func (dec *decoder) buildVariables(records []raw.Record) error {
	recordIndex := 0
	for _, rec := range records {
		vr, ok := rec.(raw.VariableRecord)
		if !ok {
			continue
		}
		recordIndex++

		if vr.IsContinuation() {
			dec.indexOf[recordIndex] = -1
			dec.continuationShortName[recordIndex] = vr.ShortName
			continue
		}

		w := value.NumericWidth
		if vr.Width > 0 {
			sw, err := value.NewStringWidth(int(vr.Width))
			if err != nil {
				return fmt.Errorf("sysfile/decode: variable record %d: %w", recordIndex, err)
			}
			w = sw
		}

		shortName := vr.ShortName
		name := dec.decodeText(shortName)
		id, err := ident.New(name, dec.enc)
		if err != nil {
			id = ident.MustNew(fmt.Sprintf("VAR%03d", recordIndex))
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "variable record %d: invalid name %q, renamed to %s: %v", recordIndex, name, id.String(), err))
		}

		v := dict.NewVariable(id, w)
		v.Print = format.Unpack(vr.Print)
		v.Write = format.Unpack(vr.Write)
		if vr.HasLabel {
			v.Label = dec.decodeText(vr.Label)
		}
		v.RememberShortNames([]string{shortName})

		if len(vr.Discrete) > 0 || vr.HasRange {
			mv, err := dec.decodeMissingValues(vr, w)
			if err != nil {
				errs.Emit(dec.sink, errs.Newf(errs.WarnBadStringMissingCode, "variable %q: %v", name, err))
			} else {
				v.Missing = mv
			}
		}

		idx, err := dec.dict.AddVariable(v)
		if err != nil {
			errs.Emit(dec.sink, errs.Newf(errs.WarnMalformedSubRecord, "variable record %d (%q): %v", recordIndex, name, err))
			dec.indexOf[recordIndex] = -1
			continue
		}

		dec.indexOf[recordIndex] = idx
		dec.recordIndexOf[idx] = recordIndex
		dec.shortNameIndex[strings.ToUpper(shortName)] = idx
	}
	return nil
}

// decodeMissingValues rebuilds a MissingValues set from a variable record's
// discrete/range fields. sysfile/raw always reads an 8-byte missing value
// as an IEEE double bit pattern regardless of variable type, so a string
// variable's discrete values are recovered by re-encoding the float back to
// its original 8 bytes (an exact, lossless bit round-trip) and truncating
// to the variable's width.
func (dec *decoder) decodeMissingValues(vr raw.VariableRecord, w value.Width) (value.MissingValues, error) {
	toDatum := func(f float64) value.Datum {
		if w.IsNumeric() {
			return value.Num(f)
		}
		n := w.N
		if n > 8 {
			n = 8
		}
		buf := make([]byte, 8)
		dec.e.PutUint64(buf, math.Float64bits(f))
		return value.Str(buf[:n])
	}

	var datums []value.Datum
	for _, f := range vr.Discrete {
		datums = append(datums, toDatum(f))
	}

	var rng *[2]float64
	if vr.HasRange {
		rng = &[2]float64{vr.RangeLow, vr.RangeHigh}
	}
	return value.NewMissingValues(datums, rng)
}

// applyValueLabels applies every (type 3, type 4) value-label record pair,
// rewriting on-disk variable indices through indexOf (spec §4.C.4).
func (dec *decoder) applyValueLabels(records []raw.Record) {
	for _, rec := range records {
		if vl, ok := rec.(raw.ValueLabelRecord); ok {
			dec.applyOneValueLabelRecord(vl)
		}
	}
}

func (dec *decoder) applyOneValueLabelRecord(vl raw.ValueLabelRecord) {
	var targets []*dict.Variable
	isString, haveType := false, false

	for _, di := range vl.VarIndices {
		idx, ok := dec.indexOf[int(di)]
		if !ok || idx < 0 {
			errs.Emit(dec.sink, errs.Newf(errs.WarnBadValueLabelIndex, "value label record references invalid or continuation index %d", di))
			continue
		}
		v := dec.dict.VariableAt(idx)
		if !haveType {
			isString, haveType = v.Width.IsString(), true
		} else if v.Width.IsString() != isString {
			errs.Emit(dec.sink, errs.Newf(errs.WarnBadValueLabelIndex, "value label record mixes numeric and string variables"))
			continue
		}
		targets = append(targets, v)
	}

	if len(targets) == 0 {
		errs.Emit(dec.sink, errs.Newf(errs.WarnBadValueLabelIndex, "value label record has no valid variable references"))
		return
	}

	for _, entry := range vl.Values {
		label := dec.decodeText(entry.Label)
		f := math.Float64frombits(dec.e.Uint64(entry.Raw[:]))
		for _, v := range targets {
			var d value.Datum
			if isString {
				n := 8
				if v.Width.N < n {
					n = v.Width.N
				}
				d = value.Str(entry.Raw[:n])
			} else {
				d = value.Num(f)
			}
			v.Labels.Set(d, label)
		}
	}
}

// applyDocuments decodes and installs the documents record, if present.
func (dec *decoder) applyDocuments(records []raw.Record) {
	for _, rec := range records {
		doc, ok := rec.(raw.DocumentRecord)
		if !ok {
			continue
		}
		lines := make([]string, len(doc.Lines))
		for i, l := range doc.Lines {
			lines[i] = dec.decodeText(l)
		}
		dec.dict.SetDocuments(lines)
	}
}

// applyExtension dispatches one extension record by subtype (steps 3, 4, 5,
// 6, 7, 8, 9). Unknown subtypes were already preserved opaquely by
// sysfile/raw; here they only produce a WarnUnknownExtension warning.
// Integer/float info and product
// info records informed encoding determination or carry no Dictionary-level
// state, so nothing further is done with them.
func (dec *decoder) applyExtension(ext raw.ExtensionRecord) {
	switch ext.Subtype {
	case section.ExtVarDisplay:
		dec.applyVarDisplay(ext)
	case section.ExtLongVarNames:
		dec.applyLongVarNames(ext)
	case section.ExtVeryLongStrings:
		dec.applyVeryLongStrings(ext)
	case section.ExtLongStringLabels:
		dec.applyLongStringValueLabels(ext)
	case section.ExtLongStringMissing:
		dec.applyLongStringMissingValues(ext)
	case section.ExtMRSetsPreV14:
		dec.applyMRSets(ext, false)
	case section.ExtMRSets:
		dec.applyMRSets(ext, true)
	case section.ExtFileAttributes:
		dec.applyFileAttributes(ext)
	case section.ExtVarAttributes:
		dec.applyVarAttributes(ext)
	case section.ExtVarSets:
		dec.applyVarSets(ext)
	case section.ExtIntegerInfo, section.ExtFloatInfo, section.ExtProductInfo,
		section.ExtEncoding, section.ExtCaseCount64:
		// No Dictionary-level state to apply.
	default:
		errs.Emit(dec.sink, errs.Newf(errs.WarnUnknownExtension, "unhandled extension subtype %d, preserved opaquely", ext.Subtype))
	}
}
