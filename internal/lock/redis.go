package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// ErrLockLost is returned on unlock when the key expired and another holder
// took it over.
var ErrLockLost = errors.New("lock expired before release")

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisLocker implements Locker with SET NX PX, so several service instances
// can share one store.
type RedisLocker struct {
	client *backend.Client
	prefix string
	poll   time.Duration
}

func NewRedisLocker(client *backend.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, poll: 50 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := l.prefix + key
	token := uuid.New().String()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				n, err := l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Int64()
				if err != nil {
					return fmt.Errorf("releasing lock %s: %w", key, err)
				}
				if n == 0 {
					return ErrLockLost
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
