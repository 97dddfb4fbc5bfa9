package syncer

import "sync"

// ownerLocks serializes units per owner within this process. Two
// concurrent calls for the same owner must not both refresh the
// single-use token, and two backfill calls must not both observe the
// same missing-stream set. Cross-process deployments need a shared
// lease instead.
type ownerLocks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

func (l *ownerLocks) lock(ownerID int64) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[int64]*sync.Mutex)
	}
	om, ok := l.m[ownerID]
	if !ok {
		om = &sync.Mutex{}
		l.m[ownerID] = om
	}
	l.mu.Unlock()

	om.Lock()
	return om.Unlock
}
