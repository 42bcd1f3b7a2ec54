package decode

import (
	"github.com/lemenkov/pspp-go/dict"
	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/sysfile/raw"
)

// applyVarDisplay implements step 3: measurement level, optional display
// width, and alignment per variable. An invalid code leaves that field
// unset and warns; the record is otherwise dropped if its element count
// doesn't match either the with-width or without-width layout.
func (dec *decoder) applyVarDisplay(ext raw.ExtensionRecord) {
	n := dec.dict.Count()
	hasWidth := false
	switch int(ext.ElementCount) {
	case 3 * n:
		hasWidth = true
	case 2 * n:
		hasWidth = false
	default:
		errs.Emit(dec.sink, errs.Newf(errs.WarnBadRecordSize, "variable display record element count %d matches neither %d nor %d variables", ext.ElementCount, 2*n, 3*n))
		return
	}
	if ext.ElementSize != 4 {
		errs.Emit(dec.sink, errs.Newf(errs.WarnBadRecordSize, "variable display record element size %d, want 4", ext.ElementSize))
		return
	}

	fieldsPerVar := 2
	if hasWidth {
		fieldsPerVar = 3
	}
	need := fieldsPerVar * n * 4
	if len(ext.Payload) < need {
		errs.Emit(dec.sink, errs.Newf(errs.WarnBadRecordSize, "variable display record truncated"))
		return
	}

	off := 0
	readU32 := func() uint32 {
		v := dec.e.Uint32(ext.Payload[off : off+4])
		off += 4
		return v
	}

	for i := 0; i < n; i++ {
		v := dec.dict.VariableAt(i)

		measure := readU32()
		switch measure {
		case 0:
			v.Measure = dict.MeasureUnknown
		case 1:
			v.Measure = dict.MeasureNominal
		case 2:
			v.Measure = dict.MeasureOrdinal
		case 3:
			v.Measure = dict.MeasureScale
		default:
			errs.Emit(dec.sink, errs.Newf(errs.WarnBadMeasureOrAlign, "variable %q: invalid measurement level %d", v.Name.String(), measure))
		}

		if hasWidth {
			v.ColumnWidth = int(readU32())
		}

		alignment := readU32()
		switch alignment {
		case 0:
			v.Alignment = dict.AlignLeft
		case 1:
			v.Alignment = dict.AlignRight
		case 2:
			v.Alignment = dict.AlignCenter
		default:
			errs.Emit(dec.sink, errs.Newf(errs.WarnBadMeasureOrAlign, "variable %q: invalid alignment %d", v.Name.String(), alignment))
		}
	}
}
