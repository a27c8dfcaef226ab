package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestTryLock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	l1 := NewCreditLock(client, "hong", "req1")
	ok, err := l1.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// 同一用户的第二把锁拿不到
	l2 := NewCreditLock(client, "hong", "req2")
	ok, err = l2.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// 不同用户互不影响
	l3 := NewCreditLock(client, "kim", "req3")
	ok, err = l3.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlockReleasesOwnLockOnly(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	l1 := NewCreditLock(client, "hong", "req1")
	ok, err := l1.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// 别人的 value 删不掉自己的锁
	impostor := NewCreditLock(client, "hong", "req-other")
	require.NoError(t, impostor.Unlock(ctx))

	ok, err = impostor.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "锁不应被持有者之外的请求释放")

	// 持有者自己能释放
	require.NoError(t, l1.Unlock(ctx))
	ok, err = impostor.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockRetriesThenFails(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	holder := NewCreditLock(client, "hong", "req1")
	ok, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	waiter := NewCreditLock(client, "hong", "req2")
	err = waiter.Lock(ctx, time.Millisecond, 3)
	assert.ErrorIs(t, err, ErrLockFailed)
}

func TestLockSucceedsAfterRelease(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	holder := NewCreditLock(client, "hong", "req1")
	ok, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(10 * time.Millisecond)
		holder.Unlock(context.Background())
	}()

	waiter := NewCreditLock(client, "hong", "req2")
	assert.NoError(t, waiter.Lock(ctx, 5*time.Millisecond, 50))
}
