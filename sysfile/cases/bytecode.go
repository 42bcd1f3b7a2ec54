package cases

import (
	"io"
	"math"

	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/value"
)

const (
	// opSkip is padding within an opcode run: it consumes no data or
	// output slot and the reader just fetches the next opcode (spec
	// §4.D). The real end-of-data marker is opEOD.
	opSkip      = 0
	opEOD       = 252
	opLiteral   = 253
	opAllSpaces = 254
	opSysmis    = 255
)

// BytecodeReader reads cases compressed with the opcode bytecode scheme:
// 8 opcode bytes describe the next 8 output chunks, refilled from the
// underlying stream whenever exhausted (spec §4.D "Bytecode-compressed").
type BytecodeReader struct {
	r      io.Reader
	e      endian.EndianEngine
	layout []VarLayout
	bias   float64

	opcodes [8]byte
	opPos   int
	ended   bool
}

// NewBytecodeReader creates a BytecodeReader over r. bias is the header's
// compression bias (typically 100).
func NewBytecodeReader(r io.Reader, e endian.EndianEngine, layout []VarLayout, bias float64) *BytecodeReader {
	return &BytecodeReader{r: r, e: e, layout: layout, bias: bias, opPos: 8}
}

// nextOpcode returns the next opcode byte, refilling the 8-byte FIFO from
// the underlying stream when empty. clean is true only if the FIFO refill
// hits a clean stream end (no bytes read at all).
func (rd *BytecodeReader) nextOpcode() (byte, bool, error) {
	if rd.opPos == 8 {
		n, err := io.ReadFull(rd.r, rd.opcodes[:])
		if err != nil {
			if n == 0 && err == io.EOF {
				return 0, true, io.EOF
			}
			return 0, false, errs.ErrMidCaseEOF
		}
		rd.opPos = 0
	}
	op := rd.opcodes[rd.opPos]
	rd.opPos++
	return op, false, nil
}

func (rd *BytecodeReader) readLiteral8() ([]byte, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		return nil, errs.ErrMidCaseEOF
	}
	return buf, nil
}

// ReadCase returns the next case, or (nil, io.EOF) once the opcode 252
// end-of-data marker has been consumed.
func (rd *BytecodeReader) ReadCase() ([]value.Datum, error) {
	if rd.ended {
		return nil, io.EOF
	}

	out := make([]value.Datum, len(rd.layout))
	atCaseStart := true

	for i, vl := range rd.layout {
		if vl.Width.IsNumeric() {
			d, err := rd.readNumeric(atCaseStart)
			if err != nil {
				if err == io.EOF && atCaseStart && i == 0 {
					rd.ended = true
					return nil, io.EOF
				}
				return nil, err
			}
			out[i] = d
			atCaseStart = false
			continue
		}

		d, err := rd.readString(vl)
		if err != nil {
			return nil, err
		}
		out[i] = d
		atCaseStart = false
	}

	return out, nil
}

func (rd *BytecodeReader) readNumeric(allowCleanEnd bool) (value.Datum, error) {
	for {
		op, clean, err := rd.nextOpcode()
		if err != nil {
			if clean && allowCleanEnd {
				return value.Datum{}, io.EOF
			}
			return value.Datum{}, errs.ErrMidCaseEOF
		}

		switch {
		case op == opSkip:
			// Padding within an opcode run (spec §4.D): fetch the next
			// opcode without consuming a data or output slot.
			continue
		case op == opEOD:
			return value.Datum{}, io.EOF
		case op == opLiteral:
			buf, err := rd.readLiteral8()
			if err != nil {
				return value.Datum{}, err
			}
			return value.Num(math.Float64frombits(rd.e.Uint64(buf))), nil
		case op == opSysmis:
			return value.Sysmis(), nil
		case op >= 1 && op <= 251:
			return value.Num(float64(op) - rd.bias), nil
		default:
			return value.Datum{}, errs.ErrInvalidOffset
		}
	}
}

func (rd *BytecodeReader) readString(vl VarLayout) (value.Datum, error) {
	data := make([]byte, 0, vl.Width.N)
	for _, seg := range vl.Segments {
		chunks := seg.Chunks()
		segData := make([]byte, 0, chunks*8)
		for c := 0; c < chunks; c++ {
			var op byte
			for {
				var (
					clean bool
					err   error
				)
				op, clean, err = rd.nextOpcode()
				if err != nil {
					if clean {
						return value.Datum{}, errs.ErrMidCaseEOF
					}
					return value.Datum{}, err
				}
				if op == opSkip {
					// Padding within an opcode run (spec §4.D): fetch
					// the next opcode without consuming a chunk.
					continue
				}
				break
			}
			switch {
			case op == opLiteral:
				buf, err := rd.readLiteral8()
				if err != nil {
					return value.Datum{}, err
				}
				segData = append(segData, buf...)
			case op == opAllSpaces:
				segData = append(segData, []byte("        ")...)
			case op == opEOD:
				return value.Datum{}, errs.ErrMidCaseEOF
			default:
				return value.Datum{}, errs.ErrInvalidOffset
			}
		}
		data = append(data, segData[:seg.DataWidth]...)
	}
	return value.Str(data), nil
}
