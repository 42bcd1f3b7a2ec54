package value

import (
	"bytes"
	"math"
)

// SysmisValue is the in-memory/on-disk system-missing sentinel: IEEE-754
// negative maximum double (spec §3, GLOSSARY "System-missing").
const SysmisValue = -math.MaxFloat64

// Datum is a single cell value: either a numeric double (possibly
// system-missing) or a fixed-width byte string.
type Datum struct {
	str      []byte
	num      float64
	isString bool
}

// Num constructs a numeric Datum.
func Num(v float64) Datum { return Datum{num: v} }

// Sysmis constructs the system-missing numeric Datum.
func Sysmis() Datum { return Datum{num: SysmisValue} }

// Str constructs a string Datum holding exactly b (callers must supply
// data already padded/truncated to the variable's declared width).
func Str(b []byte) Datum {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Datum{str: cp, isString: true}
}

// IsString reports whether d holds string bytes rather than a number.
func (d Datum) IsString() bool { return d.isString }

// Float returns the numeric value; it is meaningless if IsString is true.
func (d Datum) Float() float64 { return d.num }

// Bytes returns the string bytes; it is nil if IsString is false.
func (d Datum) Bytes() []byte { return d.str }

// IsSysmis reports whether d is the numeric system-missing sentinel.
func (d Datum) IsSysmis() bool { return !d.isString && d.num == SysmisValue }

// Equal compares two datums for exact (unpadded) equality: numerics by
// value (including system-missing), strings byte-for-byte.
func (d Datum) Equal(other Datum) bool {
	if d.isString != other.isString {
		return false
	}
	if d.isString {
		return bytes.Equal(d.str, other.str)
	}
	return d.num == other.num
}

// EqualTrimmed compares two string datums ignoring trailing spaces, or two
// numerics by value; used by MissingValues.Contains (spec §4.B).
func (d Datum) EqualTrimmed(other Datum) bool {
	if d.isString != other.isString {
		return false
	}
	if !d.isString {
		return d.num == other.num
	}
	return bytes.Equal(bytes.TrimRight(d.str, " "), bytes.TrimRight(other.str, " "))
}
