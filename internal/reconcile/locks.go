package reconcile

import "sync"

// groupLocks serializes work per group id. Entries are dropped once no
// goroutine holds or waits for them.
type groupLocks struct {
	mu    sync.Mutex
	locks map[string]*groupLock
}

type groupLock struct {
	mu   sync.Mutex
	refs int
}

func newGroupLocks() *groupLocks {
	return &groupLocks{locks: make(map[string]*groupLock)}
}

// lock blocks until the caller holds the lock for id and returns its release func.
func (g *groupLocks) lock(id string) func() {
	g.mu.Lock()
	l, ok := g.locks[id]
	if !ok {
		l = &groupLock{}
		g.locks[id] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, id)
		}
		g.mu.Unlock()
	}
}

// size returns the number of live entries.
func (g *groupLocks) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
