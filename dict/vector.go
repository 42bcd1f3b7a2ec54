package dict

import "github.com/lemenkov/pspp-go/errs"

// Vector is a named ordered list of variables (spec §3 "Vector").
type Vector struct {
	Name    string
	Members []*Variable
}

// Validate reports whether the vector has at least one member.
func (v *Vector) Validate() error {
	if len(v.Members) == 0 {
		return errs.ErrEmptyVector
	}
	return nil
}

// VarSet is a named, ordered, GUI-facing grouping of variables
// (spec §3 "variable sets").
type VarSet struct {
	Name    string
	Members []*Variable
}
