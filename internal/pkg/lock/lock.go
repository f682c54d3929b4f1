// Package lock provides keyed mutual exclusion.
// User balances are mutated under the user's key so that read-check-write
// sequences (bet placement, slave purchase, buyout) cannot interleave.
package lock

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a key cannot be locked before the deadline.
var ErrLockTimeout = errors.New("lock acquisition timeout")

// entry is a mutex shared by every holder or waiter of one key.
type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedLock hands out one mutex per int64 key and forgets keys nobody holds.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// New creates an empty KeyedLock.
func New() *KeyedLock {
	return &KeyedLock{entries: make(map[int64]*entry)}
}

func (l *KeyedLock) acquire(key int64) *entry {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()
	return e
}

func (l *KeyedLock) release(key int64, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// Lock blocks until key is held by the caller.
func (l *KeyedLock) Lock(key int64) {
	e := l.acquire(key)
	e.mu.Lock()
}

// Unlock releases key. Unlocking a key that is not held is a no-op.
func (l *KeyedLock) Unlock(key int64) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Unlock()
	l.release(key, e)
}

// TryLock acquires key only if nobody holds it.
func (l *KeyedLock) TryLock(key int64) bool {
	e := l.acquire(key)
	if e.mu.TryLock() {
		return true
	}
	l.release(key, e)
	return false
}

// LockContext waits for key until ctx is done or timeout elapses.
// Polling keeps the waiter cancellable without leaking a goroutine that
// would otherwise grab the mutex after the caller gave up.
func (l *KeyedLock) LockContext(ctx context.Context, key int64, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()

	for {
		if l.TryLock(key) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrLockTimeout
		case <-tick.C:
		}
	}
}

// WithLock runs fn while holding key.
func (l *KeyedLock) WithLock(key int64, fn func() error) error {
	l.Lock(key)
	defer l.Unlock(key)
	return fn()
}

// WithLocks runs fn while holding every key, acquired in ascending order
// so two callers locking the same pair cannot deadlock.
func (l *KeyedLock) WithLocks(keys []int64, fn func() error) error {
	sorted := make([]int64, 0, len(keys))
	seen := make(map[int64]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			sorted = append(sorted, k)
		}
	}
	slices.Sort(sorted)

	for _, k := range sorted {
		l.Lock(k)
	}
	defer func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			l.Unlock(sorted[i])
		}
	}()
	return fn()
}

// Held reports how many keys currently have holders or waiters.
func (l *KeyedLock) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
