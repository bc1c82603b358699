package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

const (
	lockKeyPrefix  = "lock:"
	defaultLockTTL = 5 * time.Second
	releaseTimeout = time.Second
)

// Locker is used by the appointment service to guard the check-then-insert
// critical section per slot. Acquisition never waits: a held key fails fast
// with ErrLockNotAcquired.
type Locker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker creates a locker holding one Redis key per slot. The key
// expires after ttl, which also bounds how long fn may run.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &redisSlotLocker{client: client, ttl: ttl}
}

// heldLock is an acquired key together with the token proving ownership.
type heldLock struct {
	key   string
	token string
}

func (l *redisSlotLocker) acquire(ctx context.Context, key string) (*heldLock, error) {
	lock := &heldLock{key: lockKeyPrefix + key, token: uuid.NewString()}

	ok, err := l.client.SetNX(ctx, lock.key, lock.token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return lock, nil
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lock, err := l.acquire(ctx, key)
	if err != nil {
		return err
	}

	defer func() {
		// Release even when ctx was cancelled inside fn.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		_ = l.release(releaseCtx, lock)
	}()

	fnCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(fnCtx)
}

// unlockScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisSlotLocker) release(ctx context.Context, lock *heldLock) error {
	_, err := unlockScript.Run(ctx, l.client, []string{lock.key}, lock.token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
