// Package dedup implements the message deduplication ledger: an in-memory,
// TTL-bounded set of recently processed message identifiers. The external
// platform delivers webhooks at least once, so the ledger is what turns
// at-least-once delivery into at-most-once domain processing.
//
// Design notes:
//   - MarkIfNew is the single atomic primitive: it inserts the id and reports
//     whether it was absent, closing the race between concurrent deliveries
//     of the same message.
//   - Expired entries are evicted opportunistically during lookups after a
//     threshold of operations, bounding memory without a background goroutine.
//   - The ledger is process-local; a horizontally scaled deployment would
//     need a shared store to enforce the dedup invariant globally.
package dedup

import (
	"sync"
	"time"
)

// entry records when a message id was first seen.
type entry struct {
	seenAt time.Time
}

// Ledger is a TTL-bounded set of message identifiers, safe for concurrent
// use. The zero value is not usable; construct with NewLedger.
type Ledger struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry
	sweepN  uint64

	// now is replaceable in tests.
	now func() time.Time
}

// sweepThreshold is the number of ledger operations between eviction passes.
const sweepThreshold = 1000

// NewLedger constructs a Ledger that remembers message ids for ttl.
// Non-positive ttl values are coerced to 5 minutes.
func NewLedger(ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Ledger{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// MarkIfNew atomically records id and reports true when it had not been seen
// within the TTL window. A second call with the same id returns false until
// the entry expires. Empty ids are never recorded and always report true,
// since a missing message id cannot be deduplicated.
func (l *Ledger) MarkIfNew(id string) bool {
	if id == "" {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeSweep(now)

	if e, ok := l.entries[id]; ok && now.Sub(e.seenAt) < l.ttl {
		return false
	}
	l.entries[id] = entry{seenAt: now}
	return true
}

// Seen reports whether id is currently recorded, without inserting it.
func (l *Ledger) Seen(id string) bool {
	if id == "" {
		return false
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeSweep(now)

	e, ok := l.entries[id]
	return ok && now.Sub(e.seenAt) < l.ttl
}

// Len returns the number of retained entries, expired or not. Intended for
// tests and metrics.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// maybeSweep evicts expired entries after sweepThreshold operations.
// Caller must hold the mutex. Run before touching the requested entry so a
// stale id can be evicted even when it is the one being looked up.
func (l *Ledger) maybeSweep(now time.Time) {
	l.sweepN++
	if l.sweepN < sweepThreshold {
		return
	}
	for id, e := range l.entries {
		if now.Sub(e.seenAt) >= l.ttl {
			delete(l.entries, id)
		}
	}
	l.sweepN = 0
}
