package section

import (
	"math"

	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/errs"
)

// maxNominalCaseSize is the highest nominal case size the header field can
// carry before it is treated as unreliable (spec §4.C.1: 1..i32::MaxValue/16).
const maxNominalCaseSize = math.MaxInt32 / 16

// maxReliableCaseCount is the threshold above which the header's case count
// is treated as unreliable (spec §4.C.1: >= i32::MaxValue/2).
const maxReliableCaseCount = math.MaxInt32 / 2

// Header is the system file's fixed 176-byte leading record (spec §4.C.1).
type Header struct {
	Magic        Magic
	ProductName  [EyeCatcherSize]byte
	LayoutCode   int32
	nominalCase  int32
	Compression  CompressionCode
	WeightIndex  int32
	caseCount    int32
	Bias         float64
	CreationDate [9]byte
	CreationTime [8]byte
	FileLabel    [FileLabelSize]byte

	engine endian.EndianEngine
}

// Engine returns the byte order detected while parsing the header.
func (h *Header) Engine() endian.EndianEngine { return h.engine }

// NominalCaseSize returns the per-case byte count the header declares, and
// false if the field is outside the plausible range and should be ignored.
func (h *Header) NominalCaseSize() (int, bool) {
	if h.nominalCase < 1 || h.nominalCase > maxNominalCaseSize {
		return 0, false
	}
	return int(h.nominalCase), true
}

// SetNominalCaseSize records n as the header's nominal case size.
func (h *Header) SetNominalCaseSize(n int) { h.nominalCase = int32(n) }

// Weight returns the 1-based variable index of the weight variable, and
// false if the file declares no weight.
func (h *Header) Weight() (int, bool) {
	if h.WeightIndex == 0 {
		return 0, false
	}
	return int(h.WeightIndex), true
}

// CaseCount returns the header's declared case count, and false if it is
// absent or unreliable and the reader must count cases itself.
func (h *Header) CaseCount() (int, bool) {
	if h.caseCount < 0 || h.caseCount >= maxReliableCaseCount {
		return 0, false
	}
	return int(h.caseCount), true
}

// SetCaseCount records n as the header's declared case count.
func (h *Header) SetCaseCount(n int) { h.caseCount = int32(n) }

// Parse decodes a Header from the file's first HeaderSize bytes, detecting
// byte order from the layout code field: whichever of the two
// interpretations reads back as 2 is the file's byte order (spec §4.C.1).
// It returns errs.ErrNotSystemFile if the magic is unrecognized and
// errs.ErrInvalidLayout if neither byte order yields a layout code of 2.
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return errs.ErrInvalidHeader
	}

	copy(h.Magic[:], data[0:4])
	if h.Magic != MagicASCII && h.Magic != MagicZlib && h.Magic != MagicEBCDIC {
		return errs.ErrNotSystemFile
	}
	copy(h.ProductName[:], data[4:64])

	little := endian.GetLittleEndianEngine()
	switch little.Uint32(data[64:68]) {
	case 2:
		h.engine = little
	default:
		big := endian.GetBigEndianEngine()
		if big.Uint32(data[64:68]) != 2 {
			return errs.ErrInvalidLayout
		}
		h.engine = big
	}
	h.LayoutCode = 2

	e := h.engine
	h.nominalCase = int32(e.Uint32(data[68:72]))
	h.Compression = CompressionCode(int32(e.Uint32(data[72:76])))
	if h.Compression < CompressionNone || h.Compression > CompressionZlib {
		return errs.ErrUnsupportedComp
	}
	if h.Compression == CompressionZlib && h.Magic != MagicZlib {
		return errs.ErrUnsupportedComp
	}
	h.WeightIndex = int32(e.Uint32(data[76:80]))
	h.caseCount = int32(e.Uint32(data[80:84]))

	h.Bias = math.Float64frombits(e.Uint64(data[84:92]))

	copy(h.CreationDate[:], data[92:101])
	copy(h.CreationTime[:], data[101:109])
	copy(h.FileLabel[:], data[109:173])
	// data[173:176] are 3 reserved bytes, ignored.

	return nil
}

// Bytes serializes h into a HeaderSize-byte record using h.Engine (or
// little-endian, if the header was never parsed and has no engine set).
func (h *Header) Bytes() []byte {
	e := h.engine
	if e == nil {
		e = endian.GetLittleEndianEngine()
	}

	b := make([]byte, HeaderSize)
	copy(b[0:4], h.Magic[:])
	copy(b[4:64], h.ProductName[:])
	e.PutUint32(b[64:68], 2)
	e.PutUint32(b[68:72], uint32(h.nominalCase))
	e.PutUint32(b[72:76], uint32(h.Compression))
	e.PutUint32(b[76:80], uint32(h.WeightIndex))
	e.PutUint32(b[80:84], uint32(h.caseCount))
	e.PutUint64(b[84:92], math.Float64bits(h.Bias))
	copy(b[92:101], h.CreationDate[:])
	copy(b[101:109], h.CreationTime[:])
	copy(b[109:173], h.FileLabel[:])

	return b
}

// Validate reports whether the header's fields are internally consistent,
// beyond what Parse already checked while decoding.
func (h *Header) Validate() error {
	if h.Compression == CompressionZlib && h.Magic != MagicZlib {
		return errs.ErrUnsupportedComp
	}
	return nil
}
