package dedup

import (
	"sync"
	"testing"
	"time"
)

func TestMarkIfNew_FirstWinsSecondSkips(t *testing.T) {
	l := NewLedger(5 * time.Minute)

	if !l.MarkIfNew("msg-1") {
		t.Fatal("first MarkIfNew should report new")
	}
	if l.MarkIfNew("msg-1") {
		t.Fatal("second MarkIfNew within TTL should report seen")
	}
	if !l.Seen("msg-1") {
		t.Fatal("Seen should report true for a marked id")
	}
}

func TestMarkIfNew_EmptyIDNeverRecorded(t *testing.T) {
	l := NewLedger(time.Minute)

	if !l.MarkIfNew("") {
		t.Fatal("empty id should always report new")
	}
	if !l.MarkIfNew("") {
		t.Fatal("empty id should not be deduplicated")
	}
	if l.Seen("") {
		t.Fatal("empty id should never be recorded")
	}
	if l.Len() != 0 {
		t.Fatalf("ledger should be empty, got %d entries", l.Len())
	}
}

func TestMarkIfNew_ExpiresAfterTTL(t *testing.T) {
	l := NewLedger(5 * time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	if !l.MarkIfNew("msg-1") {
		t.Fatal("first mark should be new")
	}

	now = base.Add(4 * time.Minute)
	if l.MarkIfNew("msg-1") {
		t.Fatal("mark before TTL expiry should be a duplicate")
	}

	now = base.Add(5*time.Minute + time.Second)
	if l.Seen("msg-1") {
		t.Fatal("expired id should not be seen")
	}
	if !l.MarkIfNew("msg-1") {
		t.Fatal("mark after TTL expiry should be new again")
	}
}

func TestSweep_EvictsExpiredEntries(t *testing.T) {
	l := NewLedger(time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	l.MarkIfNew("old-1")
	l.MarkIfNew("old-2")

	now = base.Add(2 * time.Minute)

	// Drive enough operations to trigger the opportunistic sweep.
	for i := 0; i < sweepThreshold; i++ {
		l.Seen("probe")
	}

	if got := l.Len(); got != 0 {
		t.Fatalf("expected expired entries evicted, ledger has %d", got)
	}
}

func TestMarkIfNew_ConcurrentSingleWinner(t *testing.T) {
	l := NewLedger(time.Minute)

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.MarkIfNew("contended") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var n int
	for range wins {
		n++
	}
	if n != 1 {
		t.Fatalf("expected exactly one winner, got %d", n)
	}
}
