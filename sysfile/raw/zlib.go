package raw

import (
	"io"

	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/section"
)

// ZlibHeaderRecord is the 24-byte record following the end marker in a
// ZSAV ($FL3) file (spec §4.C.8): three little-endian 64-bit offsets
// locating the ZLIB trailer that must be read separately once the case
// stream has been consumed.
type ZlibHeaderRecord struct {
	ZHeaderOffset  int64
	ZTrailerOffset int64
	ZTrailerLen    int64
}

// ReadZlibHeader reads a ZlibHeaderRecord from rd, validating it against
// rd's current offset (the position immediately after the end marker).
func ReadZlibHeader(rd *Reader) (ZlibHeaderRecord, error) {
	currentOffset := rd.Offset()
	b, err := rd.readFull(24)
	if err != nil {
		return ZlibHeaderRecord{}, err
	}

	le := endian.GetLittleEndianEngine()
	zh := ZlibHeaderRecord{
		ZHeaderOffset:  int64(le.Uint64(b[0:8])),
		ZTrailerOffset: int64(le.Uint64(b[8:16])),
		ZTrailerLen:    int64(le.Uint64(b[16:24])),
	}

	if zh.ZHeaderOffset != currentOffset {
		return ZlibHeaderRecord{}, errs.ErrInvalidOffset
	}
	if zh.ZTrailerOffset < zh.ZHeaderOffset {
		return ZlibHeaderRecord{}, errs.ErrInvalidOffset
	}
	if zh.ZTrailerLen < 24 || zh.ZTrailerLen%24 != 0 {
		return ZlibHeaderRecord{}, errs.ErrInvalidOffset
	}

	return zh, nil
}

// Bytes serializes zh into its 24-byte on-disk form.
func (zh ZlibHeaderRecord) Bytes() []byte {
	le := endian.GetLittleEndianEngine()
	b := make([]byte, 24)
	le.PutUint64(b[0:8], uint64(zh.ZHeaderOffset))
	le.PutUint64(b[8:16], uint64(zh.ZTrailerOffset))
	le.PutUint64(b[16:24], uint64(zh.ZTrailerLen))
	return b
}

// ZlibBlockDescriptor locates one deflate block within the case stream.
type ZlibBlockDescriptor struct {
	UncompressedOfs  int64
	CompressedOfs    int64
	UncompressedSize int32
	CompressedSize   int32
}

// ZlibTrailer is the block index following the case stream in a ZSAV file
// (spec §4.C.9).
type ZlibTrailer struct {
	Bias      float64
	BlockSize int32
	Blocks    []ZlibBlockDescriptor
}

// ReadZlibTrailer reads and validates the trailer located at zh.ZTrailerOffset.
// expectedBias is the header's declared compression bias.
func ReadZlibTrailer(ra io.ReaderAt, zh ZlibHeaderRecord, expectedBias float64) (ZlibTrailer, error) {
	le := endian.GetLittleEndianEngine()

	head := make([]byte, 24)
	if _, err := ra.ReadAt(head, zh.ZTrailerOffset); err != nil {
		return ZlibTrailer{}, errs.ErrBadZlibTrailer
	}

	// The trailer's bias field is a plain signed 64-bit integer (e.g. -100),
	// not an IEEE-754 double despite the header's Bias field being one.
	intBias := int64(le.Uint64(head[0:8]))
	if float64(intBias) != -expectedBias {
		return ZlibTrailer{}, errs.ErrBadZlibTrailer
	}
	blockSize := int32(le.Uint32(head[16:20]))
	if blockSize != section.ZlibBlockSize {
		return ZlibTrailer{}, errs.ErrBadZlibTrailer
	}
	blockCount := int32(le.Uint32(head[20:24]))
	expectedCount := int32((zh.ZTrailerLen - 24) / 24)
	if blockCount != expectedCount {
		return ZlibTrailer{}, errs.ErrBadZlibTrailer
	}

	trailer := ZlibTrailer{Bias: -float64(intBias), BlockSize: blockSize}

	wantUncompressed := zh.ZHeaderOffset
	wantCompressed := zh.ZHeaderOffset + 24

	for i := int32(0); i < blockCount; i++ {
		buf := make([]byte, section.ZlibBlockDescriptorSize)
		off := zh.ZTrailerOffset + 24 + int64(i)*int64(section.ZlibBlockDescriptorSize)
		if _, err := ra.ReadAt(buf, off); err != nil {
			return ZlibTrailer{}, errs.ErrBadZlibTrailer
		}

		d := ZlibBlockDescriptor{
			UncompressedOfs:  int64(le.Uint64(buf[0:8])),
			CompressedOfs:    int64(le.Uint64(buf[8:16])),
			UncompressedSize: int32(le.Uint32(buf[16:20])),
			CompressedSize:   int32(le.Uint32(buf[20:24])),
		}

		if d.UncompressedOfs != wantUncompressed || d.CompressedOfs != wantCompressed {
			return ZlibTrailer{}, errs.ErrBadZlibTrailer
		}
		isLast := i == blockCount-1
		if !isLast && d.UncompressedSize != blockSize {
			return ZlibTrailer{}, errs.ErrBadZlibTrailer
		}
		maxCompressed := d.UncompressedSize + d.UncompressedSize/7 + 11
		if d.CompressedSize > maxCompressed {
			return ZlibTrailer{}, errs.ErrBadZlibTrailer
		}

		trailer.Blocks = append(trailer.Blocks, d)
		wantUncompressed += int64(d.UncompressedSize)
		wantCompressed += int64(d.CompressedSize)
	}

	return trailer, nil
}

// Bytes serializes t into its on-disk form: a 24-byte header (signed bias,
// a zero field, block size, block count) followed by one 24-byte descriptor
// per block.
func (t ZlibTrailer) Bytes() []byte {
	le := endian.GetLittleEndianEngine()
	b := make([]byte, 24+len(t.Blocks)*section.ZlibBlockDescriptorSize)

	le.PutUint64(b[0:8], uint64(int64(-t.Bias)))
	le.PutUint64(b[8:16], 0)
	le.PutUint32(b[16:20], uint32(t.BlockSize))
	le.PutUint32(b[20:24], uint32(len(t.Blocks)))

	for i, d := range t.Blocks {
		off := 24 + i*section.ZlibBlockDescriptorSize
		le.PutUint64(b[off:off+8], uint64(d.UncompressedOfs))
		le.PutUint64(b[off+8:off+16], uint64(d.CompressedOfs))
		le.PutUint32(b[off+16:off+20], uint32(d.UncompressedSize))
		le.PutUint32(b[off+20:off+24], uint32(d.CompressedSize))
	}

	return b
}
