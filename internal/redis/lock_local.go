package redisclient

import (
	"context"
	"sync"
)

type localSlotLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalSlotLocker creates an in-process locker with the same fail-fast
// semantics as the Redis locker. It only serializes callers sharing the
// returned value, so it suits single-instance deployments and tests.
func NewLocalSlotLocker() Locker {
	return &localSlotLocker{held: make(map[string]struct{})}
}

func (l *localSlotLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if _, busy := l.held[key]; busy {
		l.mu.Unlock()
		return ErrLockNotAcquired
	}
	l.held[key] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	return fn(ctx)
}
