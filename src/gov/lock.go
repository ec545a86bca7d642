package gov

import (
	"context"
	"sync"
)

// Locker serialises work per proposal. Lock blocks until the lock for id is
// held or ctx is done, and returns the function that releases it.
type Locker interface {
	Lock(ctx context.Context, id uint64) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker with one mutex per proposal id.
// Entries are reference counted and dropped when no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uint64]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uint64]*keyedEntry)}
}

// Lock acquires the lock for id.
func (k *KeyedMutex) Lock(ctx context.Context, id uint64) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(id, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(id, e, true) })
	}, nil
}

func (k *KeyedMutex) release(id uint64, e *keyedEntry, held bool) {
	if held {
		<-e.ch
	}
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, id)
	}
	k.mu.Unlock()
}

// Len returns the number of ids currently locked or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
