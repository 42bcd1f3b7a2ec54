package write

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/lemenkov/pspp-go/dict"
	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/section"
	"github.com/lemenkov/pspp-go/sysfile/cases"
	"github.com/lemenkov/pspp-go/sysfile/raw"
	"github.com/lemenkov/pspp-go/value"
)

// zheaderSize is the size in bytes of the fixed record that precedes a ZLIB
// file's compressed case stream (spec §4.C.8).
const zheaderSize = 24

// caseWriter is the subset of sysfile/cases' writer types Writer drives.
type caseWriter interface {
	WriteCase([]value.Datum) error
	Finish() error
}

// Writer serializes a dict.Dictionary and its cases into a system file.
// New writes the header and every dictionary record up front; WriteCase is
// then called once per case, and Finish patches the header's case count
// (and, for a ZLIB file, writes the trailer and patches the zheader).
type Writer struct {
	w    io.WriteSeeker
	e    endian.EndianEngine
	dict *dict.Dictionary
	opts Options

	offset int64

	// recordIndexOf maps a dictionary index to the 1-based on-disk record
	// index of that variable's first (non-continuation) record, matching
	// sysfile/decode's bookkeeping exactly.
	recordIndexOf map[int]int

	caseWriter    caseWriter
	zlib          *cases.ZlibBlockWriter
	zheaderOffset int64
	caseCount     int64
}

// New builds a Writer over w, writing d's header and dictionary records
// immediately. d.AssignShortNames is called first, overwriting any short
// names already assigned.
func New(w io.WriteSeeker, d *dict.Dictionary, opts Options) (*Writer, error) {
	d.AssignShortNames()

	wr := &Writer{
		w:             w,
		e:             endian.GetLittleEndianEngine(),
		dict:          d,
		opts:          opts,
		recordIndexOf: computeRecordIndexOf(d),
	}

	steps := []func() error{
		wr.writeHeader,
		wr.writeVariables,
		wr.writeValueLabels,
		wr.writeDocuments,
		wr.writeIntegerInfo,
		wr.writeFloatInfo,
		wr.writeVariableSets,
		func() error { return wr.writeMRSets(true) },
		wr.writeVarDisplay,
		wr.writeLongVarNames,
		wr.writeVeryLongStrings,
		wr.writeLongStringValueLabels,
		wr.writeLongStringMissingValues,
		wr.writeFileAttributes,
		wr.writeVarAttributes,
		func() error { return wr.writeMRSets(false) },
		wr.writeEncoding,
		wr.writeEndMarker,
		wr.startCaseWriter,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	return wr, nil
}

// computeRecordIndexOf derives, for each dictionary index, the 1-based
// on-disk record index of that variable's first record: one record per
// variable plus one continuation record per additional physical segment
// (spec §4.G step 2, mirroring sysfile/decode.buildVariables).
func computeRecordIndexOf(d *dict.Dictionary) map[int]int {
	idx := make(map[int]int, d.Count())
	rec := 1
	for i, v := range d.Variables() {
		idx[i] = rec
		rec += len(v.Segments())
	}
	return idx
}

func (w *Writer) writeRaw(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	w.offset += int64(len(b))
	return nil
}

func (w *Writer) writeI32(v int32) error {
	var b [4]byte
	w.e.PutUint32(b[:], uint32(v))
	return w.writeRaw(b[:])
}

func (w *Writer) writeU32(v uint32) error {
	var b [4]byte
	w.e.PutUint32(b[:], v)
	return w.writeRaw(b[:])
}

func (w *Writer) writeF64(v float64) error {
	var b [8]byte
	w.e.PutUint64(b[:], math.Float64bits(v))
	return w.writeRaw(b[:])
}

// encodeText encodes s in the dictionary's encoding, falling back to its
// raw UTF-8 bytes if it contains characters the encoding cannot represent.
func (w *Writer) encodeText(s string) []byte {
	b, _, err := w.dict.Encoding().Encode(s)
	if err != nil {
		return []byte(s)
	}
	return b
}

func roundUp4(n int) int { return (n + 3) &^ 3 }
func roundUp8(n int) int { return (n + 7) &^ 7 }

// padSpaces returns b truncated or space-padded to exactly n bytes.
func padSpaces(b []byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	copy(out, b)
	return out
}

// writeExtensionHeader writes a rec_type==7 record's fixed leading fields;
// the caller writes elemSize*elemCount payload bytes immediately after.
func (w *Writer) writeExtensionHeader(subtype section.ExtensionSubtype, elemSize, elemCount int32) error {
	if err := w.writeI32(int32(section.RecExtension)); err != nil {
		return err
	}
	if err := w.writeI32(int32(subtype)); err != nil {
		return err
	}
	if err := w.writeI32(elemSize); err != nil {
		return err
	}
	return w.writeI32(elemCount)
}

// writeBytesExtension writes subtype's extension record with payload as a
// single-byte-element array, skipping the record entirely if payload is
// empty (spec §4.G step-by-step: every text/attribute record is omitted
// rather than written empty).
func (w *Writer) writeBytesExtension(subtype section.ExtensionSubtype, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if err := w.writeExtensionHeader(subtype, 1, int32(len(payload))); err != nil {
		return err
	}
	return w.writeRaw(payload)
}

func (w *Writer) writeEndMarker() error {
	if err := w.writeI32(int32(section.RecEndHeaders)); err != nil {
		return err
	}
	return w.writeI32(0)
}

func (w *Writer) nominalCaseSize() int {
	total := 0
	for _, v := range w.dict.Variables() {
		total += value.TotalChunks(v.Width)
	}
	return total
}

func (w *Writer) weightRecordIndex() int32 {
	wv, ok := w.dict.Weight()
	if !ok {
		return 0
	}
	for i, v := range w.dict.Variables() {
		if v == wv {
			return int32(w.recordIndexOf[i])
		}
	}
	return 0
}

func (w *Writer) writeHeader() error {
	magic := section.MagicASCII
	if w.opts.Compression == section.CompressionZlib {
		magic = section.MagicZlib
	}

	var h section.Header
	h.Magic = magic
	copy(h.ProductName[:], padSpaces(w.encodeText(w.opts.ProductName), section.EyeCatcherSize))
	h.LayoutCode = 2
	h.SetNominalCaseSize(w.nominalCaseSize())
	h.Compression = w.opts.Compression
	h.WeightIndex = w.weightRecordIndex()
	h.SetCaseCount(-1)
	h.Bias = w.opts.Bias

	ts := w.opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	copy(h.CreationDate[:], []byte(ts.Format("02 Jan 06")))
	copy(h.CreationTime[:], []byte(ts.Format("15:04:05")))
	copy(h.FileLabel[:], padSpaces(w.encodeText(w.dict.FileLabel()), section.FileLabelSize))

	return w.writeRaw(h.Bytes())
}

func (w *Writer) startCaseWriter() error {
	widths := make([]value.Width, w.dict.Count())
	for i, v := range w.dict.Variables() {
		widths[i] = v.Width
	}
	layout := cases.BuildLayout(widths)

	switch w.opts.Compression {
	case section.CompressionNone:
		w.caseWriter = cases.NewUncompressedWriter(w.w, w.e, layout)
	case section.CompressionBytecode:
		w.caseWriter = cases.NewBytecodeWriter(w.w, w.e, layout, w.opts.Bias)
	case section.CompressionZlib:
		w.zheaderOffset = w.offset
		if err := w.writeRaw(make([]byte, zheaderSize)); err != nil {
			return err
		}
		zbw, err := cases.NewZlibBlockWriter(w.w, w.zheaderOffset)
		if err != nil {
			return err
		}
		w.zlib = zbw
		w.caseWriter = cases.NewBytecodeWriter(zbw, w.e, layout, w.opts.Bias)
	default:
		return fmt.Errorf("sysfile/write: unsupported compression code %d", w.opts.Compression)
	}
	return nil
}

// WriteCase writes one case. vals must have exactly Dictionary.Count()
// entries, in dictionary order.
func (w *Writer) WriteCase(vals []value.Datum) error {
	if err := w.caseWriter.WriteCase(vals); err != nil {
		return err
	}
	w.caseCount++
	return nil
}

// Finish flushes the case stream and patches the header's case count (and,
// for a ZLIB file, the trailer and zheader record). w must not be used
// afterward.
func (w *Writer) Finish() error {
	if err := w.caseWriter.Finish(); err != nil {
		return err
	}

	if w.opts.Compression == section.CompressionZlib {
		if err := w.finishZlib(); err != nil {
			return err
		}
	}

	if _, err := w.w.Seek(80, io.SeekStart); err != nil {
		return err
	}
	var b [4]byte
	w.e.PutUint32(b[:], uint32(w.caseCount))
	if _, err := w.w.Write(b[:]); err != nil {
		return err
	}
	_, err := w.w.Seek(0, io.SeekEnd)
	return err
}

func (w *Writer) finishZlib() error {
	blocks, err := w.zlib.Finish()
	if err != nil {
		return err
	}

	trailerOffset, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	trailer := raw.ZlibTrailer{Bias: w.opts.Bias, BlockSize: section.ZlibBlockSize, Blocks: blocks}
	trailerBytes := trailer.Bytes()
	if _, err := w.w.Write(trailerBytes); err != nil {
		return err
	}

	zh := raw.ZlibHeaderRecord{
		ZHeaderOffset:  w.zheaderOffset,
		ZTrailerOffset: trailerOffset,
		ZTrailerLen:    int64(len(trailerBytes)),
	}
	if _, err := w.w.Seek(w.zheaderOffset, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.w.Write(zh.Bytes()); err != nil {
		return err
	}
	_, err = w.w.Seek(trailerOffset+int64(len(trailerBytes)), io.SeekStart)
	return err
}
