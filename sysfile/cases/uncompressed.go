package cases

import (
	"io"
	"math"

	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/value"
)

// UncompressedReader reads cases stored with no compression: 8 raw bytes
// per numeric chunk, data+padding per string segment (spec §4.D
// "Uncompressed").
type UncompressedReader struct {
	r      io.Reader
	e      endian.EndianEngine
	layout []VarLayout
}

// NewUncompressedReader creates an UncompressedReader over r using layout
// to know each variable's segment widths.
func NewUncompressedReader(r io.Reader, e endian.EndianEngine, layout []VarLayout) *UncompressedReader {
	return &UncompressedReader{r: r, e: e, layout: layout}
}

func (rd *UncompressedReader) ReadCase() ([]value.Datum, error) {
	out := make([]value.Datum, len(rd.layout))
	anyByteConsumed := false

	for i, vl := range rd.layout {
		d, consumed, err := rd.readVar(vl, !anyByteConsumed)
		anyByteConsumed = anyByteConsumed || consumed
		if err != nil {
			if !anyByteConsumed && i == 0 && err == io.EOF {
				return nil, io.EOF
			}
			return nil, errs.ErrMidCaseEOF
		}
		out[i] = d
	}
	return out, nil
}

// readVar reads one variable's datum. allowCleanEOF permits returning
// io.EOF when the stream is exhausted before any byte of the current
// variable is consumed; once any byte has been read, running out mid-read
// is always a truncated case.
func (rd *UncompressedReader) readVar(vl VarLayout, allowCleanEOF bool) (value.Datum, bool, error) {
	if vl.Width.IsNumeric() {
		buf := make([]byte, 8)
		n, err := io.ReadFull(rd.r, buf)
		if err != nil {
			if allowCleanEOF && n == 0 && err == io.EOF {
				return value.Datum{}, false, io.EOF
			}
			return value.Datum{}, n > 0, err
		}
		return value.Num(math.Float64frombits(rd.e.Uint64(buf))), true, nil
	}

	data := make([]byte, 0, vl.Width.N)
	for segIdx, seg := range vl.Segments {
		buf := make([]byte, seg.PhysicalWidth)
		n, err := io.ReadFull(rd.r, buf)
		if err != nil {
			if allowCleanEOF && segIdx == 0 && n == 0 && err == io.EOF {
				return value.Datum{}, false, io.EOF
			}
			return value.Datum{}, segIdx > 0 || n > 0, err
		}
		data = append(data, buf[:seg.DataWidth]...)
	}
	return value.Str(data), true, nil
}
