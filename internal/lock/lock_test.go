package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_Contention(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "plan-1", time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, "plan-1", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(ctx, "plan-2", time.Second)
	require.NoError(t, err, "different keys do not contend")
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx), "double unlock is harmless")

	again, err := l.Lock(ctx, "plan-1", time.Second)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedisLocker(client, "workorders:lock:")
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "plan-1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("workorders:lock:plan-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("workorders:lock:plan-1"))
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := newRedis(t)
	first := NewRedisLocker(client, "wo:")
	second := NewRedisLocker(client, "wo:")
	ctx := context.Background()

	unlock, err := first.Lock(ctx, "plan", 5*time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = second.Lock(short, "plan", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))
	unlock2, err := second.Lock(ctx, "plan", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_ExpiredLockIsReported(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedisLocker(client, "wo:")
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "plan", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	other, err := l.Lock(ctx, "plan", time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, unlock(ctx), ErrLockLost, "stale holder must not release the new holder's lock")
	assert.True(t, mr.Exists("wo:plan"))
	require.NoError(t, other(ctx))
}
