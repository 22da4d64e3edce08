package reservation

import "sync"

// userLocks serialises mutations per user. Entries are never evicted: the
// set of residents is small and fixed.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock blocks until the user's lock is held and returns its release func.
func (l *userLocks) Lock(userID int64) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
