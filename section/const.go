// Package section defines the on-disk layout constants and packed-field
// structs for a system file's fixed-size records: the 176-byte header and
// the extension-record subtype table (spec §4.C).
package section

const (
	// HeaderSize is the size in bytes of the fixed system-file header.
	HeaderSize = 176

	// EyeCatcherSize is the size of the free-form product-description field
	// that follows the magic number in the header.
	EyeCatcherSize = 60

	// FileLabelSize is the size of the header's file-label field.
	FileLabelSize = 64
)

// Magic identifies the header's first 4 bytes, which select both the
// character encoding of the fixed-width text fields and (for "$FL3") the
// possibility of ZLIB-compressed cases.
type Magic [4]byte

var (
	MagicASCII = Magic{'$', 'F', 'L', '2'} // ASCII/codepage file, bytecode or no compression
	MagicZlib  = Magic{'$', 'F', 'L', '3'} // ASCII/codepage file, ZLIB compression allowed
	MagicEBCDIC = Magic{0x5b, 0xc6, 0xd3, 0xf2} // EBCDIC encoding of "$FL2"
)

// RecordType is the 32-bit record-type tag that begins every record after
// the header (spec §4.C.2).
type RecordType int32

const (
	RecVariable    RecordType = 2
	RecValueLabel  RecordType = 3 // followed by a paired RecVarIndexList
	RecVarIndexList RecordType = 4
	RecDocument    RecordType = 6
	RecExtension   RecordType = 7
	RecEndHeaders  RecordType = 999
)

// CompressionCode is the header's compression field.
type CompressionCode int32

const (
	CompressionNone     CompressionCode = 0
	CompressionBytecode CompressionCode = 1
	CompressionZlib     CompressionCode = 2 // only valid with MagicZlib
)

// ExtensionSubtype identifies the payload of a RecExtension record
// (spec §4.C.6).
type ExtensionSubtype int32

const (
	ExtIntegerInfo         ExtensionSubtype = 3
	ExtFloatInfo           ExtensionSubtype = 4
	ExtVarDisplay          ExtensionSubtype = 11
	ExtMRSetsPreV14        ExtensionSubtype = 7
	ExtMRSets              ExtensionSubtype = 19
	ExtLongStringLabels    ExtensionSubtype = 21
	ExtLongStringMissing   ExtensionSubtype = 22
	ExtEncoding            ExtensionSubtype = 20
	ExtCaseCount64         ExtensionSubtype = 16
	ExtVarSets             ExtensionSubtype = 5
	ExtProductInfo         ExtensionSubtype = 10
	ExtLongVarNames        ExtensionSubtype = 13
	ExtVeryLongStrings     ExtensionSubtype = 14
	ExtFileAttributes      ExtensionSubtype = 17
	ExtVarAttributes       ExtensionSubtype = 18
)

// Compression bytecode opcodes, applied byte-wise within a group of 8
// (spec §4.D.5).
const (
	OpcodeSkip        = 0   // padding within an opcode run; 252 ends the data
	OpcodeLiteral     = 253 // raw 8-byte value follows in the data stream
	OpcodeAllSpaces   = 254 // 8 bytes of ASCII spaces (string padding)
	OpcodeSysmis      = 255 // numeric system-missing value
	OpcodeBiasLow     = 1   // opcodes 1..251 encode numeric value - bias
	OpcodeBiasHigh    = 251
)

// DefaultBias is the compression bias write.DefaultOptions sets; the writer
// always encodes against Options.Bias (spec §9 Open Question, DESIGN.md).
const DefaultBias = 100.0

// ZlibBlockSize is the mandated uncompressed size of every ZLIB block except
// optionally the last (spec §4.C.9).
const ZlibBlockSize = 0x3ff000

// ZlibBlockDescriptorSize is the size in bytes of one block descriptor in
// the ZLIB trailer's block index.
const ZlibBlockDescriptorSize = 24

// ZlibTrailerHeaderSize is the size in bytes of the fixed portion of the
// ZLIB trailer that precedes the block index.
const ZlibTrailerHeaderSize = 24
