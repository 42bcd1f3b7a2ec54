package dict

import (
	"strings"

	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/ident"
	"github.com/lemenkov/pspp-go/internal/collision"
	"github.com/lemenkov/pspp-go/internal/hash"
)

// Dictionary is the live, editable metadata index for a system file: an
// insertion-ordered, case-insensitive set of variables plus the
// cross-cutting structures that reference them by index (spec §3, §4.F).
type Dictionary struct {
	encoding *ident.Encoding

	vars      []*Variable
	nameIndex *collision.Tracker // case-folded name -> tracked for O(1) duplicate checks

	weight int // 0-based index; -1 means none
	filter int // 0-based index; -1 means none

	splits []int

	caseCountLimit int
	hasCaseLimit   bool
	fileLabel      string
	documents      []string

	vectors []*Vector
	mrsets  []*MRSet
	varSets []*VarSet

	attributes map[string][]string
}

// New creates an empty Dictionary using enc for name/label/string encoding.
func New(enc *ident.Encoding) *Dictionary {
	return &Dictionary{
		encoding:   enc,
		nameIndex:  collision.NewTracker(),
		attributes: make(map[string][]string),
		weight:     -1,
		filter:     -1,
	}
}

// Encoding returns the dictionary's text encoding.
func (d *Dictionary) Encoding() *ident.Encoding { return d.encoding }

// Variables returns the dictionary's variables in dictionary order.
func (d *Dictionary) Variables() []*Variable { return append([]*Variable(nil), d.vars...) }

// Count returns the number of variables.
func (d *Dictionary) Count() int { return len(d.vars) }

// VariableAt returns the variable at 0-based index i.
func (d *Dictionary) VariableAt(i int) *Variable { return d.vars[i] }

func foldKey(name string) string { return strings.ToUpper(name) }

// Lookup returns the variable named name (case-insensitive) and its 0-based
// index, or (nil, -1, false) if no such variable exists.
func (d *Dictionary) Lookup(name string) (*Variable, int, bool) {
	key := foldKey(name)
	h := hash.ID(key)
	if !d.nameIndex.Contains(key, h) {
		return nil, -1, false
	}
	for i, v := range d.vars {
		if foldKey(v.Name.String()) == key {
			return v, i, true
		}
	}
	return nil, -1, false
}

// AddVariable appends v to the dictionary, returning its 0-based index.
// It returns errs.ErrDuplicateName if a variable with that name (case-
// insensitively) already exists, or errs.ErrWrongEncoding if the name is not
// representable in the dictionary's encoding.
func (d *Dictionary) AddVariable(v *Variable) (int, error) {
	name := v.Name.String()
	if d.encoding != nil {
		if _, _, err := d.encoding.Encode(name); err != nil {
			return -1, errs.ErrWrongEncoding
		}
	}

	key := foldKey(name)
	if err := d.nameIndex.Add(key, hash.ID(key)); err != nil {
		return -1, err
	}

	d.vars = append(d.vars, v)
	return len(d.vars) - 1, nil
}

// RenameVariable renames the variable at index i, preserving its position
// and clearing its cached short names. It returns errs.ErrDuplicateName if
// newName collides (case-insensitively) with another variable.
func (d *Dictionary) RenameVariable(i int, newName ident.Identifier) error {
	if i < 0 || i >= len(d.vars) {
		return errs.ErrNoSuchVariable
	}

	oldKey := foldKey(d.vars[i].Name.String())
	newKey := foldKey(newName.String())
	if oldKey != newKey {
		if err := d.nameIndex.Add(newKey, hash.ID(newKey)); err != nil {
			return err
		}
		d.nameIndex.Remove(oldKey, hash.ID(oldKey))
	}

	d.vars[i].Name = newName
	d.vars[i].shortNames = nil

	return nil
}

// ReorderVariable moves the variable at index from to index to, updating
// every stored index (weight, filter, splits, vector/mrset/varset members
// are pointer-based and need no update) so each still refers to the same
// variable (spec §4.F).
func (d *Dictionary) ReorderVariable(from, to int) error {
	if from < 0 || from >= len(d.vars) || to < 0 || to >= len(d.vars) {
		return errs.ErrNoSuchVariable
	}
	if from == to {
		return nil
	}

	v := d.vars[from]
	d.vars = append(d.vars[:from], d.vars[from+1:]...)
	d.vars = append(d.vars[:to], append([]*Variable{v}, d.vars[to:]...)...)

	remap := func(i int) int {
		switch {
		case i < 0:
			return i
		case i == from:
			return to
		case from < to && from < i && i <= to:
			return i - 1
		case to <= i && i < from:
			return i + 1
		default:
			return i
		}
	}

	d.weight = remap(d.weight)
	d.filter = remap(d.filter)
	for i, s := range d.splits {
		d.splits[i] = remap(s)
	}

	return nil
}

// DeleteVariables removes the variables at the given 0-based indices
// (which need not be sorted or unique) and drops any stored reference that
// pointed into a deleted slot, recomputing the rest. Vectors/variable sets
// left with 0 members, and multiple-response sets left with <2 members,
// are dropped (spec §4.F).
func (d *Dictionary) DeleteVariables(indices []int) {
	if len(indices) == 0 {
		return
	}

	deleted := make(map[int]bool, len(indices))
	for _, i := range indices {
		deleted[i] = true
	}

	for i := range d.vars {
		if deleted[i] {
			key := foldKey(d.vars[i].Name.String())
			d.nameIndex.Remove(key, hash.ID(key))
		}
	}

	remap := func(idx int) (int, bool) {
		if idx < 0 {
			return idx, true
		}
		if deleted[idx] {
			return -1, false
		}
		shift := 0
		for di := range deleted {
			if di < idx {
				shift++
			}
		}
		return idx - shift, true
	}

	if n, ok := remap(d.weight); ok {
		d.weight = n
	} else {
		d.weight = -1
	}
	if n, ok := remap(d.filter); ok {
		d.filter = n
	} else {
		d.filter = -1
	}

	newSplits := d.splits[:0]
	for _, s := range d.splits {
		if n, ok := remap(s); ok {
			newSplits = append(newSplits, n)
		}
	}
	d.splits = newSplits

	newVars := make([]*Variable, 0, len(d.vars)-len(deleted))
	for i, v := range d.vars {
		if !deleted[i] {
			newVars = append(newVars, v)
		}
	}
	d.vars = newVars

	d.pruneEmptyGroups()
}

// RetainVariables keeps only the variables for which keep returns true,
// deleting the rest via DeleteVariables.
func (d *Dictionary) RetainVariables(keep func(*Variable) bool) {
	var toDelete []int
	for i, v := range d.vars {
		if !keep(v) {
			toDelete = append(toDelete, i)
		}
	}
	d.DeleteVariables(toDelete)
}

func (d *Dictionary) pruneEmptyGroups() {
	live := make(map[*Variable]bool, len(d.vars))
	for _, v := range d.vars {
		live[v] = true
	}
	filterMembers := func(members []*Variable) []*Variable {
		out := members[:0]
		for _, m := range members {
			if live[m] {
				out = append(out, m)
			}
		}
		return out
	}

	vecs := d.vectors[:0]
	for _, vec := range d.vectors {
		vec.Members = filterMembers(vec.Members)
		if len(vec.Members) > 0 {
			vecs = append(vecs, vec)
		}
	}
	d.vectors = vecs

	sets := d.mrsets[:0]
	for _, s := range d.mrsets {
		s.Members = filterMembers(s.Members)
		if len(s.Members) >= 2 {
			sets = append(sets, s)
		}
	}
	d.mrsets = sets

	varSets := d.varSets[:0]
	for _, vs := range d.varSets {
		vs.Members = filterMembers(vs.Members)
		if len(vs.Members) > 0 {
			varSets = append(varSets, vs)
		}
	}
	d.varSets = varSets
}

// SetWeight designates the 0-based-indexed variable as the dictionary's
// weight variable; it must be numeric.
func (d *Dictionary) SetWeight(i int) error {
	if i < 0 || i >= len(d.vars) {
		return errs.ErrNoSuchVariable
	}
	if !d.vars[i].Width.IsNumeric() {
		return errs.ErrNotNumeric
	}
	d.weight = i
	return nil
}

// ClearWeight removes the weight designation.
func (d *Dictionary) ClearWeight() { d.weight = -1 }

// Weight returns the weight variable and true, or (nil, false) if none is set.
func (d *Dictionary) Weight() (*Variable, bool) {
	if d.weight < 0 {
		return nil, false
	}
	return d.vars[d.weight], true
}

// SetFilter designates the 0-based-indexed variable as the dictionary's
// filter variable; it must be numeric.
func (d *Dictionary) SetFilter(i int) error {
	if i < 0 || i >= len(d.vars) {
		return errs.ErrNoSuchVariable
	}
	if !d.vars[i].Width.IsNumeric() {
		return errs.ErrNotNumeric
	}
	d.filter = i
	return nil
}

// ClearFilter removes the filter designation.
func (d *Dictionary) ClearFilter() { d.filter = -1 }

// Filter returns the filter variable and true, or (nil, false) if none is set.
func (d *Dictionary) Filter() (*Variable, bool) {
	if d.filter < 0 {
		return nil, false
	}
	return d.vars[d.filter], true
}

// AddVector appends a vector after validating it has at least one member.
func (d *Dictionary) AddVector(v *Vector) error {
	if err := v.Validate(); err != nil {
		return err
	}
	d.vectors = append(d.vectors, v)
	return nil
}

// Vectors returns the dictionary's vectors.
func (d *Dictionary) Vectors() []*Vector { return append([]*Vector(nil), d.vectors...) }

// AddMRSet appends a multiple-response set after validating it.
func (d *Dictionary) AddMRSet(s *MRSet) error {
	if err := s.Validate(); err != nil {
		return err
	}
	d.mrsets = append(d.mrsets, s)
	return nil
}

// MRSets returns the dictionary's multiple-response sets.
func (d *Dictionary) MRSets() []*MRSet { return append([]*MRSet(nil), d.mrsets...) }

// AddVarSet appends a variable set.
func (d *Dictionary) AddVarSet(vs *VarSet) { d.varSets = append(d.varSets, vs) }

// VarSets returns the dictionary's variable sets.
func (d *Dictionary) VarSets() []*VarSet { return append([]*VarSet(nil), d.varSets...) }

// SetFileLabel sets the dictionary-level file label.
func (d *Dictionary) SetFileLabel(label string) { d.fileLabel = label }

// FileLabel returns the dictionary-level file label.
func (d *Dictionary) FileLabel() string { return d.fileLabel }

// SetDocuments replaces the document lines.
func (d *Dictionary) SetDocuments(lines []string) { d.documents = lines }

// Documents returns the document lines.
func (d *Dictionary) Documents() []string { return append([]string(nil), d.documents...) }

// Attributes returns the dictionary-level attribute bag.
func (d *Dictionary) Attributes() map[string][]string { return d.attributes }

// SetCaseCountLimit records an expected case count (e.g. from a header that
// declared one reliably).
func (d *Dictionary) SetCaseCountLimit(n int) {
	d.caseCountLimit = n
	d.hasCaseLimit = true
}

// CaseCountLimit returns the declared case count and true, if any.
func (d *Dictionary) CaseCountLimit() (int, bool) { return d.caseCountLimit, d.hasCaseLimit }
