package cases

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/lemenkov/pspp-go/section"
	"github.com/lemenkov/pspp-go/sysfile/raw"
)

// zheaderRecordSize is the size in bytes of the fixed zheader record that
// precedes the compressed case stream in a ZSAV file, equal to the
// compressed offset of the first deflate block when no data precedes it.
const zheaderRecordSize = 24

// ZlibBlockWriter implements io.Writer, splitting whatever bytes are
// written to it into independently-deflated blocks of at most
// section.ZlibBlockSize uncompressed bytes each, and writing the compressed
// blocks directly to out as they fill (spec §4.D "ZLIB-framed"). It is
// meant to sit underneath a BytecodeWriter, which sees an ordinary
// io.Writer and has no awareness of block boundaries.
type ZlibBlockWriter struct {
	out           io.Writer
	zheaderOffset int64

	buf     bytes.Buffer
	enc     *zlib.Writer
	totalIn int64

	blocks []raw.ZlibBlockDescriptor
}

// NewZlibBlockWriter creates a ZlibBlockWriter writing compressed blocks to
// out. zheaderOffset is the absolute file offset of the zheader record that
// precedes the first block, needed to compute each block descriptor's
// offsets (spec §4.C.8-9).
func NewZlibBlockWriter(out io.Writer, zheaderOffset int64) (*ZlibBlockWriter, error) {
	zw := &ZlibBlockWriter{out: out, zheaderOffset: zheaderOffset}
	enc, err := zlib.NewWriterLevel(&zw.buf, zlib.BestSpeed)
	if err != nil {
		return nil, err
	}
	zw.enc = enc
	return zw, nil
}

// Write implements io.Writer, transparently splitting p across deflate
// blocks as section.ZlibBlockSize is reached.
func (zw *ZlibBlockWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		if zw.totalIn >= section.ZlibBlockSize {
			if err := zw.flushBlock(); err != nil {
				return 0, err
			}
		}

		room := int64(section.ZlibBlockSize) - zw.totalIn
		n := int64(len(p))
		if n > room {
			n = room
		}
		if _, err := zw.enc.Write(p[:n]); err != nil {
			return 0, err
		}
		zw.totalIn += n
		p = p[n:]
	}
	return total, nil
}

func (zw *ZlibBlockWriter) flushBlock() error {
	if zw.totalIn == 0 {
		return nil
	}
	if err := zw.enc.Close(); err != nil {
		return err
	}
	compressed := zw.buf.Bytes()

	var uncompressedOfs, compressedOfs int64
	if n := len(zw.blocks); n > 0 {
		prev := zw.blocks[n-1]
		uncompressedOfs = prev.UncompressedOfs + int64(prev.UncompressedSize)
		compressedOfs = prev.CompressedOfs + int64(prev.CompressedSize)
	} else {
		uncompressedOfs = zw.zheaderOffset
		compressedOfs = zw.zheaderOffset + zheaderRecordSize
	}

	if _, err := zw.out.Write(compressed); err != nil {
		return err
	}

	zw.blocks = append(zw.blocks, raw.ZlibBlockDescriptor{
		UncompressedOfs:  uncompressedOfs,
		CompressedOfs:    compressedOfs,
		UncompressedSize: int32(zw.totalIn),
		CompressedSize:   int32(len(compressed)),
	})

	zw.buf.Reset()
	enc, err := zlib.NewWriterLevel(&zw.buf, zlib.BestSpeed)
	if err != nil {
		return err
	}
	zw.enc = enc
	zw.totalIn = 0
	return nil
}

// Finish flushes any in-progress block and returns the complete block
// descriptor list for the ZLIB trailer.
func (zw *ZlibBlockWriter) Finish() ([]raw.ZlibBlockDescriptor, error) {
	if err := zw.flushBlock(); err != nil {
		return nil, err
	}
	return zw.blocks, nil
}
