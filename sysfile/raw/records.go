// Package raw reads a system file's header and post-header records into
// their nearly-on-disk shapes, without building a Dictionary (spec §4.C).
// sysfile/decode turns the Record slice this package produces into a
// dict.Dictionary.
package raw

import (
	"io"
	"math"

	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/section"
)

func f64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }

// Record is implemented by every record kind ReadAll can produce.
type Record interface{ isRecord() }

// VariableRecord is a parsed rec_type==2 record (spec §4.C.3).
type VariableRecord struct {
	Width       int32 // -1 continuation, 0 numeric, 1..255 string width
	HasLabel    bool
	MissingCode int32 // 0..3 discrete count, -2 range, -3 range+1 discrete
	Print       uint32
	Write       uint32
	ShortName   string
	Label       string
	Discrete    []float64
	HasRange    bool
	RangeLow    float64
	RangeHigh   float64
}

func (VariableRecord) isRecord() {}

// IsContinuation reports whether this record is a long-string continuation
// placeholder rather than a user-visible variable.
func (v VariableRecord) IsContinuation() bool { return v.Width == -1 }

// ValueLabelRecord is a parsed (type 3, type 4) record pair (spec §4.C.4).
type ValueLabelRecord struct {
	Values     []LabelEntry
	VarIndices []int32 // 1-based on-disk variable indices
}

func (ValueLabelRecord) isRecord() {}

// LabelEntry is one raw-value/label pair within a ValueLabelRecord.
type LabelEntry struct {
	Raw   [8]byte
	Label string
}

// DocumentRecord is a parsed rec_type==6 record (spec §4.C.5).
type DocumentRecord struct {
	Lines []string // each exactly 80 bytes, space-padded
}

func (DocumentRecord) isRecord() {}

// ExtensionRecord is a parsed rec_type==7 record (spec §4.C.6): the
// subtype-specific parse is left to sysfile/decode, which knows the
// current dictionary state the payload needs to be applied to.
type ExtensionRecord struct {
	Subtype      section.ExtensionSubtype
	ElementSize  int32
	ElementCount int32
	Payload      []byte
}

func (ExtensionRecord) isRecord() {}

// EndRecord is the rec_type==999 terminator.
type EndRecord struct{}

func (EndRecord) isRecord() {}

// Reader reads the sequence of records following a parsed Header.
type Reader struct {
	r      io.Reader
	e      endian.EndianEngine
	sink   errs.WarningSink
	offset int64 // bytes consumed so far, relative to where r started
}

// NewReader creates a Reader using e for multi-byte fields (normally
// header.Engine()) and sink for recoverable decode warnings. startOffset is
// the absolute file position r begins at (normally section.HeaderSize,
// since r follows the 176-byte Header), used to validate the ZLIB header
// record's self-reported offset.
func NewReader(r io.Reader, e endian.EndianEngine, sink errs.WarningSink, startOffset int64) *Reader {
	return &Reader{r: r, e: e, sink: sink, offset: startOffset}
}

// Offset returns the number of bytes consumed from r so far.
func (rd *Reader) Offset() int64 { return rd.offset }

func (rd *Reader) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errs.ErrTruncatedRecord
		}
		return nil, err
	}
	rd.offset += int64(n)
	return buf, nil
}

func (rd *Reader) readI32() (int32, error) {
	b, err := rd.readFull(4)
	if err != nil {
		return 0, err
	}
	return int32(rd.e.Uint32(b)), nil
}

func (rd *Reader) readF64() (float64, error) {
	b, err := rd.readFull(8)
	if err != nil {
		return 0, err
	}
	return f64FromBits(rd.e.Uint64(b)), nil
}

// ReadAll reads records until (and including) the end marker.
func (rd *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		recType, err := rd.readI32()
		if err != nil {
			return nil, err
		}

		switch section.RecordType(recType) {
		case section.RecVariable:
			rec, err := rd.readVariable()
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		case section.RecValueLabel:
			rec, err := rd.readValueLabelPair()
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		case section.RecDocument:
			rec, err := rd.readDocument()
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		case section.RecExtension:
			rec, err := rd.readExtension()
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		case section.RecEndHeaders:
			if _, err := rd.readFull(4); err != nil {
				return nil, err
			}
			out = append(out, EndRecord{})
			return out, nil
		default:
			return nil, errs.ErrInvalidOffset
		}
	}
}

func (rd *Reader) readVariable() (VariableRecord, error) {
	width, err := rd.readI32()
	if err != nil {
		return VariableRecord{}, err
	}
	if width < -1 || width > 255 {
		return VariableRecord{}, errs.ErrInvalidOffset
	}

	hasLabelRaw, err := rd.readI32()
	if err != nil {
		return VariableRecord{}, err
	}

	missingCode, err := rd.readI32()
	if err != nil {
		return VariableRecord{}, err
	}

	printRaw, err := rd.readI32()
	if err != nil {
		return VariableRecord{}, err
	}
	writeRaw, err := rd.readI32()
	if err != nil {
		return VariableRecord{}, err
	}

	nameBytes, err := rd.readFull(8)
	if err != nil {
		return VariableRecord{}, err
	}

	rec := VariableRecord{
		Width:       width,
		HasLabel:    hasLabelRaw != 0,
		MissingCode: missingCode,
		Print:       uint32(printRaw),
		Write:       uint32(writeRaw),
		ShortName:   trimTrailingSpaces(string(nameBytes)),
	}

	if rec.HasLabel {
		labelLen, err := rd.readI32()
		if err != nil {
			return VariableRecord{}, err
		}
		padded := roundUp4(int(labelLen))
		raw, err := rd.readFull(padded)
		if err != nil {
			return VariableRecord{}, err
		}
		if int(labelLen) > len(raw) {
			errs.Emit(rd.sink, errs.Newf(errs.WarnTruncatedLabel, "variable label length %d exceeds record", labelLen))
			labelLen = int32(len(raw))
		}
		rec.Label = string(raw[:labelLen])
	}

	isString := width > 0
	if rec.IsContinuation() && missingCode != 0 {
		errs.Emit(rd.sink, errs.Newf(errs.WarnDroppedMissingOnContinuation, "continuation record declares missing values"))
		missingCode = 0
	}

	switch missingCode {
	case 0:
	case 1, 2, 3:
		for i := int32(0); i < missingCode; i++ {
			v, err := rd.readF64()
			if err != nil {
				return VariableRecord{}, err
			}
			rec.Discrete = append(rec.Discrete, v)
		}
	case -2:
		if isString {
			errs.Emit(rd.sink, errs.Newf(errs.WarnDroppedRange, "range missing values on string variable"))
		}
		lo, err := rd.readF64()
		if err != nil {
			return VariableRecord{}, err
		}
		hi, err := rd.readF64()
		if err != nil {
			return VariableRecord{}, err
		}
		if !isString {
			rec.HasRange, rec.RangeLow, rec.RangeHigh = true, lo, hi
		}
	case -3:
		if isString {
			errs.Emit(rd.sink, errs.Newf(errs.WarnDroppedRange, "range missing values on string variable"))
		}
		lo, err := rd.readF64()
		if err != nil {
			return VariableRecord{}, err
		}
		hi, err := rd.readF64()
		if err != nil {
			return VariableRecord{}, err
		}
		v, err := rd.readF64()
		if err != nil {
			return VariableRecord{}, err
		}
		if !isString {
			rec.HasRange, rec.RangeLow, rec.RangeHigh = true, lo, hi
			rec.Discrete = append(rec.Discrete, v)
		}
	default:
		errs.Emit(rd.sink, errs.Newf(errs.WarnBadStringMissingCode, "unrecognized missing-value code %d", missingCode))
	}

	return rec, nil
}

func (rd *Reader) readValueLabelPair() (ValueLabelRecord, error) {
	n, err := rd.readI32()
	if err != nil {
		return ValueLabelRecord{}, err
	}
	if n < 0 || uint32(n) > (1<<32-1)/8 {
		return ValueLabelRecord{}, errs.ErrInvalidOffset
	}

	rec := ValueLabelRecord{}
	for i := int32(0); i < n; i++ {
		raw, err := rd.readFull(8)
		if err != nil {
			return ValueLabelRecord{}, err
		}
		lenByte, err := rd.readFull(1)
		if err != nil {
			return ValueLabelRecord{}, err
		}
		labelLen := int(lenByte[0])
		total := roundUp8(1 + labelLen)
		rest, err := rd.readFull(total - 1)
		if err != nil {
			return ValueLabelRecord{}, err
		}
		entry := LabelEntry{Label: string(rest[:labelLen])}
		copy(entry.Raw[:], raw)
		rec.Values = append(rec.Values, entry)
	}

	recType, err := rd.readI32()
	if err != nil {
		return ValueLabelRecord{}, err
	}
	if section.RecordType(recType) != section.RecVarIndexList {
		return ValueLabelRecord{}, errs.ErrInvalidOffset
	}

	m, err := rd.readI32()
	if err != nil {
		return ValueLabelRecord{}, err
	}
	if m < 0 || uint32(m) > (1<<32-1)/8 {
		return ValueLabelRecord{}, errs.ErrInvalidOffset
	}
	for i := int32(0); i < m; i++ {
		idx, err := rd.readI32()
		if err != nil {
			return ValueLabelRecord{}, err
		}
		rec.VarIndices = append(rec.VarIndices, idx)
	}

	return rec, nil
}

func (rd *Reader) readDocument() (DocumentRecord, error) {
	k, err := rd.readI32()
	if err != nil {
		return DocumentRecord{}, err
	}
	rec := DocumentRecord{}
	for i := int32(0); i < k; i++ {
		line, err := rd.readFull(80)
		if err != nil {
			return DocumentRecord{}, err
		}
		rec.Lines = append(rec.Lines, string(line))
	}
	return rec, nil
}

func (rd *Reader) readExtension() (ExtensionRecord, error) {
	subtype, err := rd.readI32()
	if err != nil {
		return ExtensionRecord{}, err
	}
	size, err := rd.readI32()
	if err != nil {
		return ExtensionRecord{}, err
	}
	count, err := rd.readI32()
	if err != nil {
		return ExtensionRecord{}, err
	}
	if size < 0 || count < 0 {
		return ExtensionRecord{}, errs.ErrInvalidOffset
	}
	total := int64(size) * int64(count)
	if total < 0 || total > (1<<32) {
		return ExtensionRecord{}, errs.ErrInvalidOffset
	}

	payload, err := rd.readFull(int(total))
	if err != nil {
		return ExtensionRecord{}, err
	}

	return ExtensionRecord{
		Subtype:      section.ExtensionSubtype(subtype),
		ElementSize:  size,
		ElementCount: count,
		Payload:      payload,
	}, nil
}

func roundUp4(n int) int { return (n + 3) &^ 3 }
func roundUp8(n int) int { return (n + 7) &^ 7 }

func trimTrailingSpaces(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == ' ' {
		i--
	}
	return s[:i]
}
