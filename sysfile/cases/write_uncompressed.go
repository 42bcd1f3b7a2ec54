package cases

import (
	"io"
	"math"

	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/value"
)

// UncompressedWriter writes cases with no compression, the inverse of
// UncompressedReader: 8 raw bytes per numeric chunk, data+padding per
// string segment (spec §4.D "Uncompressed").
type UncompressedWriter struct {
	w      io.Writer
	e      endian.EndianEngine
	layout []VarLayout
}

// NewUncompressedWriter creates an UncompressedWriter writing to w.
func NewUncompressedWriter(w io.Writer, e endian.EndianEngine, layout []VarLayout) *UncompressedWriter {
	return &UncompressedWriter{w: w, e: e, layout: layout}
}

// WriteCase writes one case. vals must have exactly len(layout) entries.
func (wr *UncompressedWriter) WriteCase(vals []value.Datum) error {
	for i, vl := range wr.layout {
		d := vals[i]
		if vl.Width.IsNumeric() {
			var buf [8]byte
			wr.e.PutUint64(buf[:], math.Float64bits(d.Float()))
			if _, err := wr.w.Write(buf[:]); err != nil {
				return err
			}
			continue
		}

		s := d.Bytes()
		for _, seg := range vl.Segments {
			spaces := seg.DataWidth - len(s)
			if spaces < 0 {
				spaces = 0
			}
			dataBytes := seg.DataWidth - spaces

			chunk := make([]byte, seg.PhysicalWidth)
			copy(chunk, s[:dataBytes])
			for i := dataBytes; i < seg.DataWidth; i++ {
				chunk[i] = ' '
			}
			// chunk[seg.DataWidth:] stays zero, matching the writer's
			// physical-width padding beyond the declared data width.
			if _, err := wr.w.Write(chunk); err != nil {
				return err
			}
			s = s[dataBytes:]
		}
	}
	return nil
}

// Finish is a no-op; uncompressed case streams need no trailing flush.
func (wr *UncompressedWriter) Finish() error { return nil }
