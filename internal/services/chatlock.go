package services

import "sync"

// chatLocks serializes message handling per chat. The interview state
// machine's read-modify-write cycle is not transactionally isolated in the
// database, so two concurrent messages for the same chat could both read the
// same question number and double-advance it; holding a per-chat lock across
// the whole turn prevents that. Different chats never contend.
//
// Entries are reference-counted and removed when the last holder releases,
// so the map does not grow with the lifetime set of chat ids.
type chatLocks struct {
	mu    sync.Mutex
	locks map[string]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[string]*chatLock)}
}

// Lock acquires the lock for chatID and returns its release func.
func (c *chatLocks) Lock(chatID string) func() {
	c.mu.Lock()
	l, ok := c.locks[chatID]
	if !ok {
		l = &chatLock{}
		c.locks[chatID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, chatID)
		}
		c.mu.Unlock()
	}
}
