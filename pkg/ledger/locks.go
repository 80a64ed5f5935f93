package ledger

import "sync"

// ownerLocks hands out one mutex per ledger owner. Entries are dropped once nobody holds or waits
// for them, so the map only grows with the number of owners mutating at the same time.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: map[string]*ownerLock{}}
}

func (l *ownerLocks) lock(ownerUid string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[ownerUid]
	if !ok {
		entry = &ownerLock{}
		l.locks[ownerUid] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, ownerUid)
		}
		l.mu.Unlock()
	}
}

func (l *ownerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
