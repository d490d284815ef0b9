// Package singleflight coordinates concurrent fetches for the same
// identifier so only one upstream request is ever in flight at a time.
// It wraps golang.org/x/sync/singleflight with a delayed-eviction layer:
// the plain library forgets a key the instant its Do call returns, which
// would let a near-simultaneous late arrival start a fresh, duplicate
// fetch instead of observing the just-published result.
package singleflight

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hanaru-mirror/beatmapd/internal/domain"
)

// Outcome is the published result of a fetch for one Identifier: either a
// cached archive (possibly a tombstone) or an error.
type Outcome struct {
	Archive *domain.CachedArchive
	Err     error
}

// Registry deduplicates concurrent fetches keyed by Identifier.
//
// golang.org/x/sync/singleflight.Group only coalesces callers that overlap
// in time: it deletes a key from its own bookkeeping the instant Do returns,
// so a caller arriving a moment later becomes a new leader and triggers a
// fresh fetch. That's the rendezvous window recent exists to close: the
// published Outcome is kept reachable for forgetWait after publish so a
// straggler within that window observes the leader's result instead of
// re-fetching.
type Registry struct {
	group      singleflight.Group
	forgetWait time.Duration

	mu     sync.Mutex
	recent map[string]Outcome
}

// New builds a Registry. forgetWait is how long a completed key's result is
// kept reachable after publish before being forgotten, so late joiners
// within that window still observe the leader's result instead of becoming
// a new leader themselves.
func New(forgetWait time.Duration) *Registry {
	return &Registry{forgetWait: forgetWait, recent: make(map[string]Outcome)}
}

// Do runs fn for id if no fetch is already in flight for it and none
// published a result within the forget window, otherwise returns the
// in-flight or recently-published Outcome. Every caller — leader, concurrent
// follower, and late joiner alike — receives the same Outcome.
func (r *Registry) Do(id domain.Identifier, fn func() (*domain.CachedArchive, error)) Outcome {
	key := keyFor(id)

	r.mu.Lock()
	if o, ok := r.recent[key]; ok {
		r.mu.Unlock()
		return o
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key, func() (any, error) {
		return fn()
	})

	archive, _ := v.(*domain.CachedArchive)
	outcome := Outcome{Archive: archive, Err: err}

	r.mu.Lock()
	r.recent[key] = outcome
	r.mu.Unlock()
	time.AfterFunc(r.forgetWait, func() {
		r.mu.Lock()
		delete(r.recent, key)
		r.mu.Unlock()
	})

	return outcome
}

func keyFor(id domain.Identifier) string {
	return strconv.FormatInt(int64(id), 10)
}
