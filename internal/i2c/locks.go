package i2c

import "sync"

// Locks hands out one mutex per physical bus. Every driver on a bus must
// take the same mutex around multi-register sequences.
//
// The zero value is ready to use. A Locks is owned by whoever opens the
// buses (main), not by a package-level registry.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// For returns the mutex for busID, creating it on first use.
func (l *Locks) For(busID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[busID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[busID] = m
	}
	return m
}

// Len returns the number of buses seen.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
