package session

import "sync"

// roomLocks hands out one mutex per room id so actions in different
// rooms never contend while actions in the same room serialize.
type roomLocks struct {
	locks map[string]*sync.Mutex

	mu sync.Mutex
}

func newRoomLocks() *roomLocks {
	return &roomLocks{
		locks: map[string]*sync.Mutex{},
	}
}

// lock acquires the mutex for roomId and returns its unlock func.
func (l *roomLocks) lock(roomId string) func() {
	l.mu.Lock()
	m, ok := l.locks[roomId]
	if !ok {
		m = &sync.Mutex{}
		l.locks[roomId] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// forget drops the mutex for a room that no longer exists.
func (l *roomLocks) forget(roomId string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locks, roomId)
}
