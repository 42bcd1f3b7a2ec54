package cases

import (
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/sysfile/raw"
)

// blockSource concatenates the decompressed contents of a ZLIB trailer's
// blocks into one continuous byte stream, opening each block's inflate
// stream lazily and resetting to the next block at its end (spec §4.D
// "ZLIB-framed": "reset to the next block's inflate stream").
type blockSource struct {
	ra     io.ReaderAt
	blocks []raw.ZlibBlockDescriptor
	idx    int
	cur    io.ReadCloser
}

func newBlockSource(ra io.ReaderAt, blocks []raw.ZlibBlockDescriptor) *blockSource {
	return &blockSource{ra: ra, blocks: blocks}
}

func (b *blockSource) Read(p []byte) (int, error) {
	for {
		if b.cur == nil {
			if b.idx >= len(b.blocks) {
				return 0, io.EOF
			}
			d := b.blocks[b.idx]
			b.idx++
			sr := io.NewSectionReader(b.ra, d.CompressedOfs, int64(d.CompressedSize))
			zr, err := zlib.NewReader(sr)
			if err != nil {
				return 0, err
			}
			b.cur = zr
		}

		n, err := b.cur.Read(p)
		if err == io.EOF {
			b.cur.Close()
			b.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// NewZlibCaseReader builds a BytecodeReader fed by the decompressed
// contents of every block in trailer, in order, appearing as one
// continuous bytecode-compressed stream.
func NewZlibCaseReader(ra io.ReaderAt, trailer raw.ZlibTrailer, e endian.EndianEngine, layout []VarLayout, bias float64) *BytecodeReader {
	src := newBlockSource(ra, trailer.Blocks)
	return NewBytecodeReader(src, e, layout, bias)
}
