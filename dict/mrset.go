package dict

import (
	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/value"
)

// MRSetType distinguishes a multiple-response set's category scheme
// (spec §3 "Multiple-response set").
type MRSetType int

const (
	MRDichotomy MRSetType = iota
	MRCategory
)

// CountedLabelSource controls how a multiple-dichotomy set's label is
// derived when emitting the pre-v14 textual record (spec §4.G step 7).
type CountedLabelSource int

const (
	LabelFromCountedValue CountedLabelSource = iota
	LabelFromVariableLabel
)

// MRSet is a multiple-response set: a named group of variables that GUI
// tools present as a single multi-valued question (spec §3).
type MRSet struct {
	Name        string
	Label       string
	Type        MRSetType
	CountedValue value.Datum // only meaningful for MRDichotomy
	LabelSource CountedLabelSource
	Members     []*Variable
}

// Validate reports whether the set satisfies the dictionary's invariants:
// at least 2 members, all of the same value kind, and (for a dichotomy) a
// counted value no wider than the narrowest member.
func (s *MRSet) Validate() error {
	if len(s.Members) < 2 {
		return errs.ErrEmptyMRSet
	}

	isString := s.Members[0].Width.IsString()
	minWidth := s.Members[0].Width.N
	for _, m := range s.Members[1:] {
		if m.Width.IsString() != isString {
			return errs.ErrMixedMRSetTypes
		}
		if isString && m.Width.N < minWidth {
			minWidth = m.Width.N
		}
	}

	if s.Type == MRDichotomy && isString && len(s.CountedValue.Bytes()) > minWidth {
		return errs.ErrMixedMRSetTypes
	}

	return nil
}
