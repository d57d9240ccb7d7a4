package db

import "sync"

// lockTable hands out one mutex per document id. Entries are reference
// counted and dropped when the last holder or waiter releases.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{
		locks: make(map[string]*docLock),
	}
}

// acquire blocks until the caller holds id's lock and returns its release.
func (t *lockTable) acquire(id string) func() {
	t.mu.Lock()

	l, exists := t.locks[id]
	if !exists {
		l = &docLock{}
		t.locks[id] = l
	}

	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		defer t.mu.Unlock()

		l.refs--
		if l.refs == 0 {
			delete(t.locks, id)
		}
	}
}

// size returns the number of ids currently locked or waited on.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.locks)
}
