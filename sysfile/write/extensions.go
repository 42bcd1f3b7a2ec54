package write

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/lemenkov/pspp-go/dict"
	"github.com/lemenkov/pspp-go/section"
	"github.com/lemenkov/pspp-go/value"
)

func firstShortName(v *dict.Variable) string {
	names := v.ShortNames()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// sortEntries orders label entries deterministically: strings before
// numerics, then by byte/numeric value, so repeated writes of the same
// dictionary produce byte-identical output.
func sortEntries(entries []dict.ValueLabelEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Value, entries[j].Value
		if a.IsString() != b.IsString() {
			return a.IsString()
		}
		if a.IsString() {
			return bytes.Compare(a.Bytes(), b.Bytes()) < 0
		}
		return a.Float() < b.Float()
	})
}

func labelSetKey(entries []dict.ValueLabelEntry) string {
	var sb bytes.Buffer
	for _, e := range entries {
		if e.Value.IsString() {
			sb.WriteByte('s')
			sb.Write(e.Value.Bytes())
		} else {
			sb.WriteByte('n')
			fmt.Fprintf(&sb, "%x", math.Float64bits(e.Value.Float()))
		}
		sb.WriteByte(0)
		sb.WriteString(e.Label)
		sb.WriteByte(0)
	}
	return sb.String()
}

type labelGroup struct {
	entries []dict.ValueLabelEntry
	indices []int32
}

// writeValueLabels groups short-string and numeric variables (long strings
// are handled separately by writeLongStringValueLabels) sharing an
// identical label set into one value-label record plus its companion
// variable-index-list record (spec §4.G step 3), using each variable's
// 1-based on-disk record index rather than its plain dictionary ordinal.
func (w *Writer) writeValueLabels() error {
	groups := map[string]*labelGroup{}
	var order []string

	for i, v := range w.dict.Variables() {
		if v.Width.IsLongString() {
			continue
		}
		entries := v.Labels.Entries()
		if len(entries) == 0 {
			continue
		}
		sortEntries(entries)

		k := labelSetKey(entries)
		g, ok := groups[k]
		if !ok {
			g = &labelGroup{entries: entries}
			groups[k] = g
			order = append(order, k)
		}
		g.indices = append(g.indices, int32(w.recordIndexOf[i]))
	}

	for _, k := range order {
		if err := w.writeOneValueLabelGroup(groups[k]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeOneValueLabelGroup(g *labelGroup) error {
	if err := w.writeI32(int32(section.RecValueLabel)); err != nil {
		return err
	}
	if err := w.writeI32(int32(len(g.entries))); err != nil {
		return err
	}
	for _, e := range g.entries {
		if err := w.writeRaw(w.datumRawBytes(e.Value)); err != nil {
			return err
		}

		labelBytes := w.encodeText(e.Label)
		if len(labelBytes) > 255 {
			labelBytes = labelBytes[:255]
		}
		out := make([]byte, roundUp8(1+len(labelBytes)))
		out[0] = byte(len(labelBytes))
		copy(out[1:], labelBytes)
		if err := w.writeRaw(out); err != nil {
			return err
		}
	}

	if err := w.writeI32(int32(section.RecVarIndexList)); err != nil {
		return err
	}
	if err := w.writeI32(int32(len(g.indices))); err != nil {
		return err
	}
	for _, idx := range g.indices {
		if err := w.writeI32(idx); err != nil {
			return err
		}
	}
	return nil
}

// datumRawBytes returns d's 8-byte on-disk representation: its IEEE-754
// bit pattern for a numeric, or its raw bytes zero-padded for a string.
func (w *Writer) datumRawBytes(d value.Datum) []byte {
	b := make([]byte, 8)
	if d.IsString() {
		copy(b, d.Bytes())
	} else {
		w.e.PutUint64(b, math.Float64bits(d.Float()))
	}
	return b
}

func (w *Writer) writeDocuments() error {
	lines := w.dict.Documents()
	if len(lines) == 0 {
		return nil
	}
	if err := w.writeI32(int32(section.RecDocument)); err != nil {
		return err
	}
	if err := w.writeI32(int32(len(lines))); err != nil {
		return err
	}
	for _, l := range lines {
		b := w.encodeText(l)
		if len(b) > 80 {
			b = b[:80]
		}
		if err := w.writeRaw(padSpaces(b, 80)); err != nil {
			return err
		}
	}
	return nil
}

// codepageCodes reverse-maps sysfile/decode's codepageNames, so the
// integer info record's character_code field round-trips the dictionary's
// encoding whenever it names a recognized codepage.
var codepageCodes = map[string]int32{
	"windows-1252": 1252,
	"windows-874":  874,
	"gbk":          936,
	"windows-949":  949,
	"big5":         950,
	"UTF-16":       1200,
	"UTF-16BE":     1201,
	"US-ASCII":     20127,
	"ISO-8859-1":   28591,
	"ISO-8859-15":  28605,
	"UTF-8":        65001,
}

func (w *Writer) characterCode() int32 {
	if code, ok := codepageCodes[w.dict.Encoding().Name()]; ok {
		return code
	}
	return 65001
}

func (w *Writer) writeIntegerInfo() error {
	if err := w.writeExtensionHeader(section.ExtIntegerInfo, 4, 8); err != nil {
		return err
	}
	v := w.opts.Version
	fields := []int32{
		v.Major, v.Minor, v.Revision,
		-1,                                  // machine code
		1,                                   // floating point representation
		int32(section.CompressionBytecode), // compression code
		2,                                   // endianness: always little-endian on disk
		w.characterCode(),
	}
	for _, f := range fields {
		if err := w.writeI32(f); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeFloatInfo() error {
	if err := w.writeExtensionHeader(section.ExtFloatInfo, 8, 3); err != nil {
		return err
	}
	if err := w.writeF64(value.SysmisValue); err != nil {
		return err
	}
	if err := w.writeF64(math.MaxFloat64); err != nil {
		return err
	}
	return w.writeF64(math.Nextafter(-math.MaxFloat64, math.Inf(1)))
}

func (w *Writer) writeVariableSets() error {
	if len(w.dict.VarSets()) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, vs := range w.dict.VarSets() {
		buf.Write(w.encodeText(vs.Name))
		buf.WriteString("= ")
		for i, m := range vs.Members {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.Write(w.encodeText(firstShortName(m)))
		}
		buf.WriteByte('\n')
	}
	return w.writeBytesExtension(section.ExtVarSets, buf.Bytes())
}

// writeMRSets emits a multiple-response-set extension record: subtype 7
// (pre-v14) for dichotomies labeled from their counted variable's label and
// for category sets, or subtype 19 (v14+) for dichotomies labeled from
// their counted value — a strict partition, grounded in
// sysfile/decode/mrsets.go's parseOneMRSet, which parses both subtypes
// identically.
func (w *Writer) writeMRSets(preV14 bool) error {
	subtype := section.ExtMRSetsPreV14
	if !preV14 {
		subtype = section.ExtMRSets
	}

	var buf bytes.Buffer
	for _, s := range w.dict.MRSets() {
		eligible := s.Type == dict.MRCategory ||
			(s.Type == dict.MRDichotomy && s.LabelSource == dict.LabelFromVariableLabel)
		if eligible != preV14 {
			continue
		}
		w.writeOneMRSet(&buf, s)
	}
	if buf.Len() == 0 {
		return nil
	}
	return w.writeBytesExtension(subtype, buf.Bytes())
}

func (w *Writer) writeOneMRSet(buf *bytes.Buffer, s *dict.MRSet) {
	buf.Write(w.encodeText(s.Name))
	buf.WriteByte('=')

	switch {
	case s.Type == dict.MRCategory:
		buf.WriteByte('C')
	case s.LabelSource == dict.LabelFromVariableLabel:
		buf.WriteByte('D')
		w.writeCountedValue(buf, s)
	default:
		buf.WriteString("E 1 ")
		w.writeCountedValue(buf, s)
	}

	buf.WriteByte(' ')
	writeCountedBytes(buf, w.encodeText(s.Label))

	for _, m := range s.Members {
		buf.WriteByte(' ')
		buf.Write(w.encodeText(firstShortName(m)))
	}
	buf.WriteByte('\n')
}

func (w *Writer) writeCountedValue(buf *bytes.Buffer, s *dict.MRSet) {
	if s.CountedValue.IsString() {
		writeCountedBytes(buf, s.CountedValue.Bytes())
		return
	}
	writeCountedBytes(buf, []byte(strconv.FormatFloat(s.CountedValue.Float(), 'g', -1, 64)))
}

func writeCountedBytes(buf *bytes.Buffer, b []byte) {
	fmt.Fprintf(buf, "%d ", len(b))
	buf.Write(b)
}

func measureCode(m dict.Measure) uint32 {
	switch m {
	case dict.MeasureNominal:
		return 1
	case dict.MeasureOrdinal:
		return 2
	case dict.MeasureScale:
		return 3
	default:
		return 0
	}
}

func alignmentCode(a dict.Alignment) uint32 {
	switch a {
	case dict.AlignRight:
		return 1
	case dict.AlignCenter:
		return 2
	default:
		return 0
	}
}

// writeVarDisplay always emits the richer with-width form: one
// (measure, column_width, alignment) triple per dictionary variable (not
// per physical segment), matching sysfile/decode/vardisplay.go exactly.
func (w *Writer) writeVarDisplay() error {
	n := w.dict.Count()
	if n == 0 {
		return nil
	}
	if err := w.writeExtensionHeader(section.ExtVarDisplay, 4, int32(3*n)); err != nil {
		return err
	}
	for _, v := range w.dict.Variables() {
		if err := w.writeU32(measureCode(v.Measure)); err != nil {
			return err
		}
		if err := w.writeU32(uint32(v.ColumnWidth)); err != nil {
			return err
		}
		if err := w.writeU32(alignmentCode(v.Alignment)); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeLongVarNames() error {
	if w.dict.Count() == 0 {
		return nil
	}
	var buf bytes.Buffer
	for i, v := range w.dict.Variables() {
		if i > 0 {
			buf.WriteByte('\t')
		}
		buf.Write(w.encodeText(firstShortName(v)))
		buf.WriteByte('=')
		buf.Write(w.encodeText(v.Name.String()))
	}
	return w.writeBytesExtension(section.ExtLongVarNames, buf.Bytes())
}

func (w *Writer) writeVeryLongStrings() error {
	var buf bytes.Buffer
	for _, v := range w.dict.Variables() {
		if !v.Width.IsVeryLongString() {
			continue
		}
		buf.Write(w.encodeText(firstShortName(v)))
		fmt.Fprintf(&buf, "=%05d", v.Width.N)
		buf.WriteByte(0)
		buf.WriteByte('\t')
	}
	return w.writeBytesExtension(section.ExtVeryLongStrings, buf.Bytes())
}

func writeU32To(buf *bytes.Buffer, w *Writer, v uint32) {
	var b [4]byte
	w.e.PutUint32(b[:], v)
	buf.Write(b[:])
}

// writeLongStringValueLabels emits, for every long-string variable with
// labels, its encoded name, width, label count, and (value, label) pairs
// each length-prefixed as a 4-byte count (spec §4.G step 12), grounded in
// sysfile/decode/longstrings.go's applyLongStringValueLabels.
func (w *Writer) writeLongStringValueLabels() error {
	var buf bytes.Buffer
	for _, v := range w.dict.Variables() {
		if !v.Width.IsLongString() {
			continue
		}
		entries := v.Labels.Entries()
		if len(entries) == 0 {
			continue
		}
		sortEntries(entries)

		nameBytes := w.encodeText(v.Name.String())
		writeU32To(&buf, w, uint32(len(nameBytes)))
		buf.Write(nameBytes)
		writeU32To(&buf, w, uint32(v.Width.N))
		writeU32To(&buf, w, uint32(len(entries)))
		for _, e := range entries {
			valBytes := e.Value.Bytes()
			writeU32To(&buf, w, uint32(len(valBytes)))
			buf.Write(valBytes)

			labelBytes := w.encodeText(e.Label)
			writeU32To(&buf, w, uint32(len(labelBytes)))
			buf.Write(labelBytes)
		}
	}
	return w.writeBytesExtension(section.ExtLongStringLabels, buf.Bytes())
}

// writeLongStringMissingValues emits, for every long-string variable with
// discrete missing values, its encoded name, missing-value count, a fixed
// value width of 8, and that many 8-byte values, grounded in
// sysfile/decode/longstrings.go's applyLongStringMissingValues.
func (w *Writer) writeLongStringMissingValues() error {
	var buf bytes.Buffer
	for _, v := range w.dict.Variables() {
		if !v.Width.IsLongString() || v.Missing.IsEmpty() {
			continue
		}
		discrete := v.Missing.Discrete()
		if len(discrete) == 0 {
			continue
		}

		nameBytes := w.encodeText(v.Name.String())
		writeU32To(&buf, w, uint32(len(nameBytes)))
		buf.Write(nameBytes)
		buf.WriteByte(byte(len(discrete)))
		writeU32To(&buf, w, 8)
		for _, d := range discrete {
			buf.Write(padSpaces(d.Bytes(), 8))
		}
	}
	return w.writeBytesExtension(section.ExtLongStringMissing, buf.Bytes())
}

// putAttributes writes attrs in sorted name order as
// "name('v1'\n'v2'\n)name2(...)...", matching
// sysfile/decode/attributes.go's parseAttribute/parseAttributes grammar.
func (w *Writer) putAttributes(buf *bytes.Buffer, attrs map[string][]string) {
	names := make([]string, 0, len(attrs))
	for k := range attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		buf.Write(w.encodeText(name))
		buf.WriteByte('(')
		for _, val := range attrs[name] {
			buf.WriteByte('\'')
			buf.Write(w.encodeText(val))
			buf.WriteByte('\'')
			buf.WriteByte('\n')
		}
		buf.WriteByte(')')
	}
}

func (w *Writer) writeFileAttributes() error {
	attrs := w.dict.Attributes()
	if len(attrs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	w.putAttributes(&buf, attrs)
	return w.writeBytesExtension(section.ExtFileAttributes, buf.Bytes())
}

// writeVarAttributes writes one block per variable, "name:attrs", joined by
// "/" (spec §4.G step 16). A synthetic "$@Role" attribute carrying the
// variable's role is merged into a copy of its attribute map before
// writing; the live dictionary is never mutated.
func (w *Writer) writeVarAttributes() error {
	vars := w.dict.Variables()
	if len(vars) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for i, v := range vars {
		merged := make(map[string][]string, len(v.Attributes)+1)
		for k, val := range v.Attributes {
			merged[k] = val
		}
		merged["$@Role"] = []string{strconv.Itoa(int(v.Role))}

		if i > 0 {
			buf.WriteByte('/')
		}
		buf.Write(w.encodeText(v.Name.String()))
		buf.WriteByte(':')
		w.putAttributes(&buf, merged)
	}
	return w.writeBytesExtension(section.ExtVarAttributes, buf.Bytes())
}

func (w *Writer) writeEncoding() error {
	name := w.dict.Encoding().Name()
	if name == "" {
		return nil
	}
	return w.writeBytesExtension(section.ExtEncoding, w.encodeText(name))
}
