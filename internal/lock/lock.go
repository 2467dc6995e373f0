// Package lock serializes flag-changing address operations per owner.
package lock

import (
	"context"
	"sync"
)

// OwnerLocker grants exclusive access to one owner's addresses. The returned
// unlock func must be called exactly once.
type OwnerLocker interface {
	Lock(ctx context.Context, ownerID string) (unlock func(), err error)
}

// NoopLocker never blocks. Concurrent updates for the same owner may race.
type NoopLocker struct{}

// Lock implements OwnerLocker.
func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// LocalLocker holds one mutex per owner inside this process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*ownerMutex
}

type ownerMutex struct {
	ch      chan struct{}
	waiters int
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*ownerMutex)}
}

// Lock blocks until ownerID is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, ownerID string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[ownerID]
	if !ok {
		m = &ownerMutex{ch: make(chan struct{}, 1)}
		l.locks[ownerID] = m
	}
	m.waiters++
	l.mu.Unlock()

	select {
	case m.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(ownerID, m, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(ownerID, m, true) })
	}, nil
}

func (l *LocalLocker) release(ownerID string, m *ownerMutex, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held {
		<-m.ch
	}
	m.waiters--
	if m.waiters == 0 {
		delete(l.locks, ownerID)
	}
}
