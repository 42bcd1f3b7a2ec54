// Package cases implements the case (row) stream: the uncompressed,
// bytecode-compressed, and ZLIB-framed physical encodings a decoded
// dictionary's data follows the header/record section with (spec §4.D).
package cases

import "github.com/lemenkov/pspp-go/value"

// VarLayout is one user-visible variable's physical case-stream shape.
type VarLayout struct {
	Width    value.Width
	Segments []value.Segment
}

// BuildLayout derives the per-variable physical layout from declared widths,
// in dictionary order.
func BuildLayout(widths []value.Width) []VarLayout {
	out := make([]VarLayout, len(widths))
	for i, w := range widths {
		out[i] = VarLayout{Width: w, Segments: value.Segments(w)}
	}
	return out
}

// Reader produces one case (one Datum per VarLayout, in order) per call.
type Reader interface {
	// ReadCase returns the next case. It returns (nil, io.EOF) if the
	// stream ends cleanly between cases.
	ReadCase() ([]value.Datum, error)
}
