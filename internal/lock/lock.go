// Package lock serializes lifecycle transitions on one work plan.
package lock

import (
	"context"
	"sync"
	"time"
)

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

// Locker grants exclusive access to a key for at most ttl.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// MemoryLocker is an in-process Locker for single-instance deployments.
// ttl is ignored: a holder keeps the lock until it unlocks.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

func (l *MemoryLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *MemoryLocker) Lock(ctx context.Context, key string, _ time.Duration) (UnlockFunc, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-ch })
		return nil
	}, nil
}
