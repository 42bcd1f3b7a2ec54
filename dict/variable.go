// Package dict implements the in-memory dictionary: the live, editable
// metadata index a decoded system file is unpacked into and an encoded one
// is built from (spec §3, §4.F).
package dict

import (
	"github.com/lemenkov/pspp-go/format"
	"github.com/lemenkov/pspp-go/ident"
	"github.com/lemenkov/pspp-go/value"
)

// Measure is a variable's measurement level.
type Measure int

const (
	MeasureUnknown Measure = iota
	MeasureNominal
	MeasureOrdinal
	MeasureScale
)

// Alignment is a variable's display alignment.
type Alignment int

const (
	AlignUnknown Alignment = iota
	AlignLeft
	AlignRight
	AlignCenter
)

// Role is the synthesized "$@Role" attribute's integer payload.
type Role int

const (
	RoleInput Role = iota
	RoleTarget
	RoleBoth
	RoleNone
	RolePartition
	RoleSplit
)

// ValueLabels maps a datum to its display text. Strings are keyed by their
// exact (unpadded) bytes; numerics by value.
type ValueLabels struct {
	m map[string]labeledValue
}

// labeledValue pairs the datum used to look up a label with the label
// itself, so Entries can reconstruct the original value (the map key alone
// loses the numeric/string distinction and any bit-level precision).
type labeledValue struct {
	datum value.Datum
	label string
}

func newValueLabels() *ValueLabels { return &ValueLabels{m: make(map[string]labeledValue)} }

func labelKey(d value.Datum) string {
	if d.IsString() {
		return "s:" + string(d.Bytes())
	}
	return "n:" + formatFloatKey(d.Float())
}

// Set records the label for d.
func (vl *ValueLabels) Set(d value.Datum, label string) {
	vl.m[labelKey(d)] = labeledValue{datum: d, label: label}
}

// Get returns the label for d, if any.
func (vl *ValueLabels) Get(d value.Datum) (string, bool) {
	lv, ok := vl.m[labelKey(d)]
	return lv.label, ok
}

// Delete removes the label for d.
func (vl *ValueLabels) Delete(d value.Datum) { delete(vl.m, labelKey(d)) }

// Len returns the number of labeled values.
func (vl *ValueLabels) Len() int { return len(vl.m) }

// ValueLabelEntry is one (value, label) pair returned by Entries.
type ValueLabelEntry struct {
	Value value.Datum
	Label string
}

// Entries returns every (value, label) pair, in unspecified order. Used by
// sysfile/write to emit value-label records.
func (vl *ValueLabels) Entries() []ValueLabelEntry {
	out := make([]ValueLabelEntry, 0, len(vl.m))
	for _, lv := range vl.m {
		out = append(out, ValueLabelEntry{Value: lv.datum, Label: lv.label})
	}
	return out
}

// Variable is one column of a dictionary (spec §3 "Variable").
type Variable struct {
	Name    ident.Identifier
	Width   value.Width
	Print   format.Format
	Write   format.Format
	Label   string
	Labels  *ValueLabels
	Missing value.MissingValues

	Measure   Measure
	Alignment Alignment
	ColumnWidth int
	Role      Role

	Attributes map[string][]string

	// shortNames holds one short name per physical segment (value.Segments);
	// assigned deterministically by Dictionary.AssignShortNames.
	shortNames []string

	// rememberedShortNames holds short names read back from a decoded
	// system file, honored by AssignShortNames if still unclaimed.
	rememberedShortNames []string
}

// RememberShortNames records names (typically from a decoded long-
// variable-names extension record) to be preferred by a later
// AssignShortNames call.
func (v *Variable) RememberShortNames(names []string) {
	v.rememberedShortNames = append([]string(nil), names...)
}

// NewVariable constructs a Variable named name with default formats for w.
// Uniqueness of the name is checked when the variable is added to a
// Dictionary, not here.
func NewVariable(name ident.Identifier, w value.Width) *Variable {
	f := format.Default()
	if w.IsString() {
		f = format.DefaultString(w.N)
	}
	return &Variable{
		Name:       name,
		Width:      w,
		Print:      f,
		Write:      f,
		Labels:     newValueLabels(),
		Attributes: make(map[string][]string),
	}
}

// ShortNames returns the variable's assigned short names (one per physical
// segment), or nil if short names have not yet been assigned.
func (v *Variable) ShortNames() []string { return append([]string(nil), v.shortNames...) }

// Segments returns the variable's physical layout segments.
func (v *Variable) Segments() []value.Segment { return value.Segments(v.Width) }
