package write

import (
	"math"

	"github.com/lemenkov/pspp-go/dict"
	"github.com/lemenkov/pspp-go/section"
	"github.com/lemenkov/pspp-go/value"
)

// writeVariables emits one record (type 2) per dictionary variable, followed
// by one plain continuation record per additional physical segment of a
// very-long string (spec §4.G step 2). Ordinary numeric and short-string
// variables never get continuation records, regardless of how many 8-byte
// case slots their data occupies.
func (w *Writer) writeVariables() error {
	for _, v := range w.dict.Variables() {
		if err := w.writeVariableRecord(v); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeVariableRecord(v *dict.Variable) error {
	segs := v.Segments()
	shortNames := v.ShortNames()

	width := int32(0)
	if v.Width.IsString() {
		width = int32(segs[0].DataWidth)
	}

	missingCode := int32(0)
	if !v.Width.IsLongString() {
		missingCode = missingValueCode(v.Missing)
	}

	hasLabel := int32(0)
	if v.Label != "" {
		hasLabel = 1
	}

	if err := w.writeI32(int32(section.RecVariable)); err != nil {
		return err
	}
	if err := w.writeI32(width); err != nil {
		return err
	}
	if err := w.writeI32(hasLabel); err != nil {
		return err
	}
	if err := w.writeI32(missingCode); err != nil {
		return err
	}
	if err := w.writeU32(v.Print.Pack()); err != nil {
		return err
	}
	if err := w.writeU32(v.Write.Pack()); err != nil {
		return err
	}
	if err := w.writeRaw(padSpaces(w.encodeText(shortNames[0]), 8)); err != nil {
		return err
	}

	if v.Label != "" {
		if err := w.writeVariableLabel(v.Label); err != nil {
			return err
		}
	}

	if missingCode != 0 {
		if err := w.writeMissingValues(v.Missing, v.Width); err != nil {
			return err
		}
	}

	for i := 1; i < len(segs); i++ {
		if err := w.writeContinuationRecord(shortNames[i]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeVariableLabel(label string) error {
	b := w.encodeText(label)
	if len(b) > 255 {
		b = b[:255]
	}
	if err := w.writeI32(int32(len(b))); err != nil {
		return err
	}
	out := make([]byte, roundUp4(len(b)))
	copy(out, b)
	return w.writeRaw(out)
}

func (w *Writer) writeContinuationRecord(shortName string) error {
	if err := w.writeI32(int32(section.RecVariable)); err != nil {
		return err
	}
	if err := w.writeI32(-1); err != nil {
		return err
	}
	if err := w.writeI32(0); err != nil {
		return err
	}
	if err := w.writeI32(0); err != nil {
		return err
	}
	if err := w.writeU32(0); err != nil {
		return err
	}
	if err := w.writeU32(0); err != nil {
		return err
	}
	return w.writeRaw(padSpaces(w.encodeText(shortName), 8))
}

// missingValueCode derives a variable record's missing_code field: the
// discrete count (0..3) when no range is present, or -(discreteCount+2)
// when one is, matching sysfile/raw.Reader.readVariable's switch exactly.
func missingValueCode(mv value.MissingValues) int32 {
	n := int32(len(mv.Discrete()))
	if mv.HasRange() {
		return -(n + 2)
	}
	return n
}

func (w *Writer) writeMissingValues(mv value.MissingValues, wid value.Width) error {
	if mv.HasRange() {
		lo, hi := mv.Range()
		if lo == value.LowSentinel {
			lo = -math.MaxFloat64
		}
		if hi == value.HighSentinel {
			hi = math.MaxFloat64
		}
		if err := w.writeF64(lo); err != nil {
			return err
		}
		if err := w.writeF64(hi); err != nil {
			return err
		}
	}
	for _, d := range mv.Discrete() {
		if err := w.writeDiscreteMissing(d, wid); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeDiscreteMissing(d value.Datum, wid value.Width) error {
	if wid.IsNumeric() {
		return w.writeF64(d.Float())
	}
	return w.writeRaw(padSpaces(d.Bytes(), 8))
}
