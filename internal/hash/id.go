// Package hash provides the fast lookup key used by dict's case-insensitive
// name index: a name is hashed once on insert, and membership checks compare
// hashes before falling back to a real string comparison on collision.
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of the given string. Callers that need
// case-insensitive identity (variable names, short names) must normalize
// (e.g. upper-case) the string before hashing.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}
