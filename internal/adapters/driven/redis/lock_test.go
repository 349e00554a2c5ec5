package redis

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestLock_OwnerID_Unique(t *testing.T) {
	client, _ := setupTestRedis(t)

	lock1 := newTestLock(t, client)
	lock2 := newTestLock(t, client)

	assert.NotEmpty(t, lock1.OwnerID())
	assert.NotEqual(t, lock1.OwnerID(), lock2.OwnerID())
}

func TestLock_Acquire(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	lock1 := newTestLock(t, client)
	lock2 := newTestLock(t, client)

	acquired, err := lock1.Acquire(ctx, "maintenance", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Equal(t, lock1.OwnerID(), mustGet(t, mr, lockPrefix+"maintenance"))

	acquired, err = lock2.Acquire(ctx, "maintenance", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired, "held by another owner")

	acquired, err = lock1.Acquire(ctx, "maintenance", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired, "not reentrant")

	acquired, err = lock1.Acquire(ctx, "other", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired, "names are independent")
}

func TestLock_Acquire_AfterExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	lock1 := newTestLock(t, client)
	lock2 := newTestLock(t, client)

	acquired, err := lock1.Acquire(ctx, "maintenance", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(2 * time.Second)

	acquired, err = lock2.Acquire(ctx, "maintenance", time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestLock_Release(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	lock1 := newTestLock(t, client)
	lock2 := newTestLock(t, client)

	_, err := lock1.Acquire(ctx, "maintenance", 10*time.Second)
	require.NoError(t, err)

	// A different owner cannot release it.
	require.NoError(t, lock2.Release(ctx, "maintenance"))
	assert.True(t, mr.Exists(lockPrefix+"maintenance"))

	require.NoError(t, lock1.Release(ctx, "maintenance"))
	assert.False(t, mr.Exists(lockPrefix+"maintenance"))

	// Releasing twice is fine.
	require.NoError(t, lock1.Release(ctx, "maintenance"))
}

func TestLock_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	lock1 := newTestLock(t, client)
	lock2 := newTestLock(t, client)

	_, err := lock1.Acquire(ctx, "maintenance", 10*time.Second)
	require.NoError(t, err)

	require.NoError(t, lock1.Extend(ctx, "maintenance", time.Minute))
	assert.Greater(t, mr.TTL(lockPrefix+"maintenance"), 10*time.Second)

	assert.Error(t, lock2.Extend(ctx, "maintenance", time.Minute))
	assert.Error(t, lock1.Extend(ctx, "missing", time.Minute))
}

func TestLock_Ping(t *testing.T) {
	client, _ := setupTestRedis(t)
	assert.NoError(t, newTestLock(t, client).Ping(context.Background()))
}

func TestNewLock_EntropyFailure(t *testing.T) {
	client, _ := setupTestRedis(t)

	orig := ownerEntropy
	ownerEntropy = iotest.ErrReader(errors.New("entropy exhausted"))
	defer func() { ownerEntropy = orig }()

	lock, err := NewLock(client)
	require.Error(t, err)
	assert.Nil(t, lock)
	assert.Contains(t, err.Error(), "entropy exhausted")
}

func TestLock_OwnerID_Format(t *testing.T) {
	client, _ := setupTestRedis(t)
	parts := strings.Split(newTestLock(t, client).OwnerID(), "/")
	require.Len(t, parts, 3)
	assert.Equal(t, strconv.Itoa(os.Getpid()), parts[1])
}

func newTestLock(t *testing.T, client *redis.Client) *Lock {
	t.Helper()
	lock, err := NewLock(client)
	require.NoError(t, err)
	return lock
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
