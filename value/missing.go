package value

import (
	"math"

	"github.com/lemenkov/pspp-go/errs"
)

// LowSentinel/HighSentinel mark an open-ended range endpoint (spec §3's
// LOW/HIGH sentinels).
var (
	LowSentinel  = math.Inf(-1)
	HighSentinel = math.Inf(1)
)

// MissingValues is a variable's missing-value specification: up to 3
// discrete values, optionally plus a closed numeric range (spec §3, §4.B).
//
// For strings: up to 3 discrete values of at most 8 bytes each, no range.
type MissingValues struct {
	numeric  bool
	discrete []Datum
	hasRange bool
	low      float64
	high     float64
}

// NewMissingValues validates and builds a MissingValues set.
//
// rng, if non-nil, is the inclusive [low, high] range (which may use
// LowSentinel/HighSentinel for an open end); it is only valid for numeric
// missing values.
func NewMissingValues(values []Datum, rng *[2]float64) (MissingValues, error) {
	if len(values) > 3 {
		return MissingValues{}, errs.ErrTooManyMissing
	}

	isString := false
	haveType := false
	for _, v := range values {
		if !haveType {
			isString = v.IsString()
			haveType = true
		} else if v.IsString() != isString {
			return MissingValues{}, errs.ErrMixedMissingTypes
		}
		if v.IsString() && len(v.Bytes()) > 8 {
			return MissingValues{}, errs.ErrMissingValueWidth
		}
	}

	if rng != nil {
		if haveType && isString {
			return MissingValues{}, errs.ErrRangeWithString
		}
		isString = false
	}

	mv := MissingValues{numeric: !isString, discrete: append([]Datum(nil), values...)}
	if rng != nil {
		mv.hasRange = true
		mv.low, mv.high = rng[0], rng[1]
	}

	return mv, nil
}

// IsEmpty reports whether no missing values or range were specified.
func (mv MissingValues) IsEmpty() bool { return len(mv.discrete) == 0 && !mv.hasRange }

// HasRange reports whether a numeric range was specified.
func (mv MissingValues) HasRange() bool { return mv.hasRange }

// Range returns the [low, high] range bounds; only meaningful if HasRange.
func (mv MissingValues) Range() (low, high float64) { return mv.low, mv.high }

// Discrete returns the discrete missing values.
func (mv MissingValues) Discrete() []Datum { return append([]Datum(nil), mv.discrete...) }

// Contains reports whether d is one of the missing values: an exact match
// (trailing-space-insensitive for strings) against a discrete value, or,
// for numerics, within [low, high] with half-open sentinel semantics at an
// infinite endpoint (spec §4.B).
func (mv MissingValues) Contains(d Datum) bool {
	for _, v := range mv.discrete {
		if v.EqualTrimmed(d) {
			return true
		}
	}

	if mv.hasRange && !d.IsString() {
		v := d.Float()
		if d.IsSysmis() {
			return false
		}
		lowOK := mv.low == LowSentinel || v >= mv.low
		highOK := mv.high == HighSentinel || v <= mv.high
		if lowOK && highOK {
			return true
		}
	}

	return false
}
