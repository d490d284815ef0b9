// Package cachestore implements the bounded in-memory cache of beatmapset
// archives sitting in front of the disk store. It wraps
// github.com/hashicorp/golang-lru/v2 with the exact promote-on-read
// semantics the download pipeline depends on: a cache hit always counts as
// a use for eviction purposes, and a stored archive is immutable and safe
// to keep streaming after it falls out of the bounded map.
package cachestore

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hanaru-mirror/beatmapd/internal/domain"
)

// Store is a capacity-bounded mapping from domain.Identifier to a shared
// *domain.CachedArchive handle. Values are immutable after Insert, so a
// handle returned by Find or Insert remains valid for the caller even after
// the entry is evicted from the bounded map underneath it.
type Store struct {
	mu  sync.RWMutex
	lru *lru.Cache[domain.Identifier, *domain.CachedArchive]

	retryCooldown time.Duration
	nowFn         func() time.Time
}

// New builds a Store with the given capacity and retry-tombstone cooldown.
func New(capacity int, retryCooldown time.Duration) (*Store, error) {
	c, err := lru.New[domain.Identifier, *domain.CachedArchive](capacity)
	if err != nil {
		return nil, err
	}
	return &Store{lru: c, retryCooldown: retryCooldown, nowFn: time.Now}, nil
}

// Find returns the archive cached for id, promoting it to most-recently-used
// on hit. The bool result reports presence; a present tombstone is returned
// with a non-nil handle whose IsTombstone() is true.
func (s *Store) Find(id domain.Identifier) (*domain.CachedArchive, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Get(id)
}

// Insert stores or replaces the archive for id, evicting the
// least-recently-used entry on overflow. Returns the stored handle.
func (s *Store) Insert(id domain.Identifier, archive *domain.CachedArchive) *domain.CachedArchive {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(id, archive)
	return archive
}

// InsertTombstone is a convenience wrapper storing a negative-cache entry
// timestamped now.
func (s *Store) InsertTombstone(id domain.Identifier, retryHint bool) *domain.CachedArchive {
	return s.Insert(id, domain.NewTombstone(retryHint, s.nowFn()))
}

// Len reports the current number of entries, always <= capacity.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lru.Len()
}

// TombstoneExpired reports whether a retry-hinted tombstone's cooldown has
// elapsed. A present LRU tombstone always answers a download request with
// 404, regardless of hint or age (see internal/pipeline); this helper backs
// the separate reaper that actively evicts stale retry-tombstones from the
// bounded map so a later request can reach the disk/upstream stages instead
// of indefinitely shadowing them behind the same cached entry.
func (s *Store) TombstoneExpired(a *domain.CachedArchive) bool {
	if a == nil || !a.RetryHint {
		return false
	}
	return s.nowFn().Sub(a.Timestamp) > s.retryCooldown
}

// PurgeExpiredRetryTombstones removes every retry-hinted tombstone whose
// cooldown has elapsed, returning the count removed. Intended to run
// periodically from a background goroutine so retryable negative-cache
// entries (upstream 429/5xx) don't permanently shadow a later retry purely
// because the bounded map hasn't happened to evict them yet.
func (s *Store) PurgeExpiredRetryTombstones() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range s.lru.Keys() {
		v, ok := s.lru.Peek(id)
		if !ok {
			continue
		}
		if v.IsTombstone() && v.RetryHint && s.nowFn().Sub(v.Timestamp) > s.retryCooldown {
			s.lru.Remove(id)
			removed++
		}
	}
	return removed
}
