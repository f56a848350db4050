package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set; skipping redis integration test")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedisLockerExclusive(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedisLocker(client, 5*time.Second)
	key := "test-" + t.Name()

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	again, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	again()
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedisLocker(client, 50*time.Millisecond)
	key := "test-" + t.Name()

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	// let the lock lapse and be taken by someone else
	time.Sleep(100 * time.Millisecond)
	other, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	unlock()
	exists, err := client.Exists(context.Background(), l.prefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
	other()
}
