// Package value implements the raw datum model system files serialize:
// variable widths (with very-long-string segmentation), the tagged numeric
// or fixed-width-bytes Datum, and missing-value sets (spec §3, §4.B).
package value

import (
	"github.com/lemenkov/pspp-go/errs"
)

// Kind distinguishes a Numeric width from a String width.
type Kind int

const (
	Numeric Kind = iota
	String
)

// Width is a variable's tagged width: Numeric, or String(n) for n in 1..32767.
type Width struct {
	Kind Kind
	N    int // meaningful only when Kind == String
}

// NumericWidth is the width of every numeric variable.
var NumericWidth = Width{Kind: Numeric}

// NewStringWidth validates and builds a String(n) width.
func NewStringWidth(n int) (Width, error) {
	if n < 1 || n > 32767 {
		return Width{}, errs.ErrStringTooLong
	}
	return Width{Kind: String, N: n}, nil
}

// IsNumeric reports whether w is the numeric width.
func (w Width) IsNumeric() bool { return w.Kind == Numeric }

// IsString reports whether w is a string width.
func (w Width) IsString() bool { return w.Kind == String }

// IsLongString reports whether w is a string wider than 8 bytes.
func (w Width) IsLongString() bool { return w.Kind == String && w.N > 8 }

// IsVeryLongString reports whether w is a string wider than 255 bytes.
func (w Width) IsVeryLongString() bool { return w.Kind == String && w.N > 255 }

// Segment is one physical chunk of a (possibly very long) string variable's
// case layout: up to 255 data bytes, stored at an 8-byte-rounded physical
// width (spec §3, §4.C.5, §4.G.2).
type Segment struct {
	DataWidth     int
	PhysicalWidth int
}

// Chunks returns PhysicalWidth/8, the number of 8-byte case slots the
// segment occupies.
func (s Segment) Chunks() int { return roundUp8(s.PhysicalWidth) / 8 }

func roundUp8(n int) int { return (n + 7) &^ 7 }

// Segments computes the segment list for w. Numeric and short/long (<=255)
// strings always produce exactly one segment; very long strings split per
// the n = ceil(w/252) rule of spec §3.
func Segments(w Width) []Segment {
	if w.Kind == Numeric {
		return []Segment{{DataWidth: 8, PhysicalWidth: 8}}
	}

	if !w.IsVeryLongString() {
		return []Segment{{DataWidth: w.N, PhysicalWidth: roundUp8(w.N)}}
	}

	n := (w.N + 251) / 252
	segs := make([]Segment, 0, n)
	for i := 0; i < n-1; i++ {
		segs = append(segs, Segment{DataWidth: 255, PhysicalWidth: roundUp8(255)})
	}
	last := w.N - 252*(n-1)
	segs = append(segs, Segment{DataWidth: last, PhysicalWidth: roundUp8(last)})

	return segs
}

// TotalChunks sums Chunks() across every segment of w; this is the number
// of 8-byte case slots the variable (including its continuation records)
// occupies.
func TotalChunks(w Width) int {
	total := 0
	for _, s := range Segments(w) {
		total += s.Chunks()
	}
	return total
}
