package wallet

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// IdentityLocks serializes transfers per sender identity. Unrelated
// identities never contend; entries are dropped once nobody holds or waits
// for them.
type IdentityLocks struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	sem  *semaphore.Weighted
	refs int
}

// NewIdentityLocks creates an empty lock map.
func NewIdentityLocks() *IdentityLocks {
	return &IdentityLocks{locks: make(map[string]*identityLock)}
}

func (l *IdentityLocks) ref(id string) *identityLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	il, ok := l.locks[id]
	if !ok {
		il = &identityLock{sem: semaphore.NewWeighted(1)}
		l.locks[id] = il
	}
	il.refs++
	return il
}

func (l *IdentityLocks) unref(id string, il *identityLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	il.refs--
	if il.refs == 0 {
		delete(l.locks, id)
	}
}

func (l *IdentityLocks) releaser(id string, il *identityLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			il.sem.Release(1)
			l.unref(id, il)
		})
	}
}

// TryAcquire takes the lock for id without waiting. It returns
// ErrTransferInProgress when another transfer holds it.
func (l *IdentityLocks) TryAcquire(id string) (release func(), err error) {
	il := l.ref(id)
	if !il.sem.TryAcquire(1) {
		l.unref(id, il)
		return nil, ErrTransferInProgress
	}
	return l.releaser(id, il), nil
}

// Acquire waits for the lock for id until ctx is done.
func (l *IdentityLocks) Acquire(ctx context.Context, id string) (release func(), err error) {
	il := l.ref(id)
	if err := il.sem.Acquire(ctx, 1); err != nil {
		l.unref(id, il)
		return nil, err
	}
	return l.releaser(id, il), nil
}

// Len returns the number of identities currently held or waited on.
func (l *IdentityLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
