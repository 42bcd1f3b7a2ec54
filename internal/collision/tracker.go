// Package collision implements the hash-then-verify lookup dict's name index
// uses to stay O(1) while remaining exact: a candidate name is hashed with
// internal/hash, and only names whose hash matches are compared byte-for-byte,
// so two different names sharing a hash bucket never get confused with each
// other.
package collision

import (
	"github.com/lemenkov/pspp-go/errs"
)

// Tracker maps case-folded variable names to a hash for fast lookup, bucketing
// on hash collision instead of trusting the hash alone.
type Tracker struct {
	byHash map[uint64][]string // hash → case-folded names sharing that hash
	names  []string            // insertion order, for deterministic iteration
}

// NewTracker creates a new empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{byHash: make(map[uint64][]string)}
}

// Add records key (already case-folded by the caller) under hash.
// It returns errs.ErrDuplicateName if key was already tracked.
func (t *Tracker) Add(key string, hash uint64) error {
	if t.Contains(key, hash) {
		return errs.ErrDuplicateName
	}

	t.byHash[hash] = append(t.byHash[hash], key)
	t.names = append(t.names, key)

	return nil
}

// Remove drops key from the tracker.
func (t *Tracker) Remove(key string, hash uint64) {
	bucket := t.byHash[hash]
	for i, name := range bucket {
		if name == key {
			t.byHash[hash] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	for i, name := range t.names {
		if name == key {
			t.names = append(t.names[:i], t.names[i+1:]...)
			break
		}
	}
}

// Contains reports whether key is already tracked, verifying the candidate
// bucket by exact string comparison rather than trusting hash equality alone.
func (t *Tracker) Contains(key string, hash uint64) bool {
	for _, name := range t.byHash[hash] {
		if name == key {
			return true
		}
	}
	return false
}

// Names returns the tracked keys in insertion order.
func (t *Tracker) Names() []string {
	return append([]string(nil), t.names...)
}

// Count returns the number of tracked keys.
func (t *Tracker) Count() int {
	return len(t.names)
}

// Reset clears all tracked keys.
func (t *Tracker) Reset() {
	for k := range t.byHash {
		delete(t.byHash, k)
	}
	t.names = t.names[:0]
}
