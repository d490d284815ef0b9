// Package domain defines the persistence and cache models shared by the
// download pipeline, the repository layer, and the HTTP handlers.
package domain

import "time"

// Identifier names a beatmapset in the upstream catalogue. It carries no
// further structure beyond being a signed 64-bit integer.
type Identifier int64

// CachedArchive is the unit of content the LRU store and disk store hold for
// one Identifier.
//
// Invariants:
//   - len(Payload) == 0 implies the entry is a tombstone (the identifier is
//     known to be unavailable upstream).
//   - len(Payload) > 0 implies Filename is non-empty.
//   - Timestamp is set once at construction and never mutated afterwards;
//     CachedArchive values are immutable after insertion into the LRU store,
//     which is what lets a streamed-out payload survive a later eviction.
type CachedArchive struct {
	Filename  string
	Payload   []byte
	RetryHint bool
	Timestamp time.Time
}

// IsTombstone reports whether a is a negative-cache entry.
func (a *CachedArchive) IsTombstone() bool {
	return a == nil || len(a.Payload) == 0
}

// NewTombstone builds a negative-cache entry. retryHint marks the entry as
// eligible for re-attempt after the cooldown window the pipeline enforces.
func NewTombstone(retryHint bool, now time.Time) *CachedArchive {
	return &CachedArchive{RetryHint: retryHint, Timestamp: now}
}

// NewArchive builds a populated cache entry for a successfully fetched
// beatmapset archive.
func NewArchive(filename string, payload []byte, now time.Time) *CachedArchive {
	return &CachedArchive{Filename: filename, Payload: payload, Timestamp: now}
}
