// Package write serializes a dict.Dictionary and its cases into a system
// file: the header, dictionary records, and case stream sysfile/raw and
// sysfile/decode parse back (spec §4.G).
package write

import (
	"time"

	"github.com/lemenkov/pspp-go/section"
)

// ProductVersion is the three-part version number recorded in the integer
// info extension record (spec §4.C.6, subtype 3).
type ProductVersion struct {
	Major    int32
	Minor    int32
	Revision int32
}

// Options controls how a Dictionary and its cases are serialized.
type Options struct {
	// Compression selects the case stream's physical encoding.
	Compression section.CompressionCode

	// Bias is the compression bias bytecode-compressed numeric values are
	// encoded against; meaningless for CompressionNone.
	Bias float64

	// ProductName is stamped into the header's 60-byte eye-catcher field.
	ProductName string

	// Version is recorded in the integer info extension record.
	Version ProductVersion

	// Timestamp is recorded in the header's creation date/time fields. The
	// zero value means "use the current time" (set by New, never compared
	// against directly so repeated writes of the same dictionary remain
	// deterministic only in their content, not their timestamp).
	Timestamp time.Time
}

// DefaultOptions returns the options a new writer uses unless the caller
// overrides them: bytecode compression at the standard bias.
func DefaultOptions() Options {
	return Options{
		Compression: section.CompressionBytecode,
		Bias:        section.DefaultBias,
		ProductName: "pspp-go",
		Version:     ProductVersion{Major: 1, Minor: 0, Revision: 0},
	}
}
