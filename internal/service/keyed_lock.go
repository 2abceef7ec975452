package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// keyedLock hands out one exclusive lock per sweet id.
// Entries are reference counted and dropped once nobody holds or waits for them.
type keyedLock struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: make(map[uuid.UUID]*lockEntry)}
}

// Lock blocks until the lock for id is acquired or ctx is done.
// The returned func releases the lock and must be called exactly once.
func (l *keyedLock) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.release(id, e)
		return nil, err
	}
	return func() {
		e.sem.Release(1)
		l.release(id, e)
	}, nil
}

func (l *keyedLock) release(id uuid.UUID, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// size reports the number of live entries.
func (l *keyedLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
