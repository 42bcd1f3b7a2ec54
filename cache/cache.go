// Package cache implements a snapshot store for decoded dictionaries,
// keyed by the hash of the system-file bytes they were built from. Re-
// opening the same file (a common pattern when a pipeline re-reads a
// dataset across several passes) can skip the header/record parse entirely
// by replaying a cached, compressed Dictionary snapshot instead.
package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/lemenkov/pspp-go/compress"
	"github.com/lemenkov/pspp-go/format"
)

// Entry is one cached snapshot: compressed dictionary bytes plus enough
// metadata to decompress and validate it.
type Entry struct {
	Algorithm      format.CompressionType
	CompressedSize int
	OriginalSize   int
	Payload        []byte
}

// Cache stores Entry values keyed by a content hash of the source bytes.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[uint64]Entry
	codec   format.CompressionType
	maxSize int // maximum number of entries retained (0 = unbounded)
	order   []uint64
}

// New creates an empty Cache. codec selects the compression algorithm used
// for every stored snapshot; maxSize, if > 0, evicts the oldest entry once
// the count would exceed it.
func New(codec format.CompressionType, maxSize int) *Cache {
	return &Cache{
		entries: make(map[uint64]Entry),
		codec:   codec,
		maxSize: maxSize,
	}
}

// Key computes the cache key for raw source bytes.
func Key(raw []byte) uint64 {
	return xxhash.Sum64(raw)
}

// Put compresses snapshot and stores it under key, evicting the oldest
// entry first if the cache is at capacity.
func (c *Cache) Put(key uint64, snapshot []byte) error {
	codec, err := compress.GetCodec(c.codec)
	if err != nil {
		return err
	}

	compressed, err := codec.Compress(snapshot)
	if err != nil {
		return err
	}

	entry := Entry{
		Algorithm:      c.codec,
		CompressedSize: len(compressed),
		OriginalSize:   len(snapshot),
		Payload:        append([]byte(nil), compressed...),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = entry

	return nil
}

// Get decompresses and returns the snapshot stored under key.
func (c *Cache) Get(key uint64) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	codec, err := compress.GetCodec(entry.Algorithm)
	if err != nil {
		return nil, false, err
	}

	data, err := codec.Decompress(entry.Payload)
	if err != nil {
		return nil, false, err
	}

	return data, true, nil
}

// Evict removes the entry stored under key, if any.
func (c *Cache) Evict(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats summarizes the cache's current footprint.
type Stats struct {
	Entries         int
	TotalOriginal   int64
	TotalCompressed int64
}

// Stats computes aggregate compression statistics across all entries.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		s.TotalOriginal += int64(e.OriginalSize)
		s.TotalCompressed += int64(e.CompressedSize)
	}
	return s
}
