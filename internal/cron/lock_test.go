package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRedisLockAcquireAndRelease(t *testing.T) {
	store := newMemoryRedis()
	lock, err := NewRedisLock(store, "storefront:lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	other, err := NewRedisLock(store, "storefront:lock:cron", time.Minute)
	require.NoError(t, err)
	ok, err = other.Acquire(context.Background())
	require.NoError(t, err)
	require.False(t, ok, "second replica must not acquire a held lock")

	require.NoError(t, other.Release(context.Background()))
	_, held := store.values["storefront:lock:cron"]
	require.True(t, held, "non-owner release must keep the lock")

	require.NoError(t, lock.Release(context.Background()))
	_, held = store.values["storefront:lock:cron"]
	require.False(t, held)
}

func TestRedisLockReleaseAfterTakeoverKeepsNewOwner(t *testing.T) {
	store := newMemoryRedis()
	lock, err := NewRedisLock(store, "storefront:lock:cron", time.Minute)
	require.NoError(t, err)
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	store.values["storefront:lock:cron"] = "replica-b"

	require.NoError(t, lock.Release(context.Background()))
	require.Equal(t, "replica-b", store.values["storefront:lock:cron"])
}

func TestRedisLockDefaults(t *testing.T) {
	lock, err := NewRedisLock(newMemoryRedis(), "key", 0)
	require.NoError(t, err)
	require.Equal(t, defaultLockTTL, lock.ttl)

	_, err = NewRedisLock(nil, "key", time.Minute)
	require.Error(t, err)
	_, err = NewRedisLock(newMemoryRedis(), "", time.Minute)
	require.Error(t, err)
}

type memoryRedis struct {
	values map[string]string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}}
}

func (m *memoryRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) ReleaseLock(ctx context.Context, key, owner string) (bool, error) {
	if m.values[key] != owner {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}
