package cases

import (
	"math"

	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/value"
)

// BytecodeWriter writes cases compressed with the opcode bytecode scheme,
// the inverse of BytecodeReader: opcodes are buffered in groups of 8 and
// flushed, along with any literal data accumulated alongside them, once the
// group fills or Finish is called (spec §4.D "Bytecode-compressed").
type BytecodeWriter struct {
	w      writerFlusher
	e      endian.EndianEngine
	layout []VarLayout
	bias   float64

	opcodes []byte
	data    []byte
}

// writerFlusher is the subset of io.Writer BytecodeWriter needs; satisfied
// directly by an io.Writer.
type writerFlusher interface {
	Write(p []byte) (int, error)
}

// NewBytecodeWriter creates a BytecodeWriter writing to w. bias is the
// compression bias to encode numeric values against (typically 100).
func NewBytecodeWriter(w writerFlusher, e endian.EndianEngine, layout []VarLayout, bias float64) *BytecodeWriter {
	return &BytecodeWriter{w: w, e: e, layout: layout, bias: bias, opcodes: make([]byte, 0, 8), data: make([]byte, 0, 64)}
}

func (wr *BytecodeWriter) flush() error {
	if len(wr.opcodes) == 0 {
		return nil
	}
	padded := make([]byte, 8)
	copy(padded, wr.opcodes)
	if _, err := wr.w.Write(padded); err != nil {
		return err
	}
	if len(wr.data) > 0 {
		if _, err := wr.w.Write(wr.data); err != nil {
			return err
		}
	}
	wr.opcodes = wr.opcodes[:0]
	wr.data = wr.data[:0]
	return nil
}

func (wr *BytecodeWriter) putOpcode(op byte) error {
	if len(wr.opcodes) >= 8 {
		if err := wr.flush(); err != nil {
			return err
		}
	}
	wr.opcodes = append(wr.opcodes, op)
	return nil
}

// WriteCase writes one case. vals must have exactly len(layout) entries.
func (wr *BytecodeWriter) WriteCase(vals []value.Datum) error {
	for i, vl := range wr.layout {
		d := vals[i]
		if vl.Width.IsNumeric() {
			if err := wr.writeNumeric(d); err != nil {
				return err
			}
			continue
		}
		if err := wr.writeString(vl, d); err != nil {
			return err
		}
	}
	return nil
}

func (wr *BytecodeWriter) writeNumeric(d value.Datum) error {
	if d.IsSysmis() {
		return wr.putOpcode(opSysmis)
	}

	v := d.Float()
	biased := v + wr.bias
	if v == math.Trunc(v) && biased >= 1 && biased <= 251 {
		return wr.putOpcode(byte(biased))
	}

	if err := wr.putOpcode(opLiteral); err != nil {
		return err
	}
	var buf [8]byte
	wr.e.PutUint64(buf[:], math.Float64bits(v))
	wr.data = append(wr.data, buf[:]...)
	return nil
}

func (wr *BytecodeWriter) writeString(vl VarLayout, d value.Datum) error {
	s := d.Bytes()
	for _, seg := range vl.Segments {
		excess := seg.DataWidth - len(s)
		if excess < 0 {
			excess = 0
		}
		dataBytes := seg.DataWidth - excess
		paddingBytes := (seg.PhysicalWidth - seg.DataWidth) + excess

		data := s[:dataBytes]
		s = s[dataBytes:]

		for len(data) >= 8 {
			chunk := data[:8]
			data = data[8:]
			if err := wr.putChunk(chunk); err != nil {
				return err
			}
		}
		if len(data) > 0 {
			chunk := make([]byte, 8)
			copy(chunk, data)
			for i := len(data); i < 8; i++ {
				chunk[i] = ' '
			}
			if err := wr.putChunk(chunk); err != nil {
				return err
			}
		}
		for i := 0; i < paddingBytes/8; i++ {
			if err := wr.putOpcode(opAllSpaces); err != nil {
				return err
			}
		}
	}
	return nil
}

func (wr *BytecodeWriter) putChunk(chunk []byte) error {
	if isAllSpaces(chunk) {
		return wr.putOpcode(opAllSpaces)
	}
	if err := wr.putOpcode(opLiteral); err != nil {
		return err
	}
	wr.data = append(wr.data, chunk...)
	return nil
}

func isAllSpaces(b []byte) bool {
	for _, c := range b {
		if c != ' ' {
			return false
		}
	}
	return true
}

// Finish flushes any partially-filled opcode group, padding it to 8 with
// skip (0) opcodes.
func (wr *BytecodeWriter) Finish() error { return wr.flush() }
