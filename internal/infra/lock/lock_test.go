package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mrs, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mrs.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mrs, rdb
}

func TestNoop(t *testing.T) {
	unlock, err := Noop{}.Lock(context.Background(), "x")
	require.NoError(t, err)
	unlock()
}

func TestRedis_LockAndRelease(t *testing.T) {
	mrs, rdb := newTestRedis(t)
	l := NewRedis(rdb, time.Minute)

	unlock, err := l.Lock(context.Background(), "output/a.pdf")
	require.NoError(t, err)
	assert.True(t, mrs.Exists("certdispatch:lock:output/a.pdf"))

	ttl := mrs.TTL("certdispatch:lock:output/a.pdf")
	assert.Greater(t, ttl, 50*time.Second)

	unlock()
	assert.False(t, mrs.Exists("certdispatch:lock:output/a.pdf"))
}

func TestRedis_SecondHolderWaits(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRedis(rdb, time.Minute)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.True(t, errors.Is(err, ErrNotAcquired), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	unlock()
	unlock2, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock2()
}

func TestRedis_ReleaseDoesNotStealForeignLock(t *testing.T) {
	mrs, rdb := newTestRedis(t)
	l := NewRedis(rdb, time.Minute)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	// lock expired and somebody else took it
	require.NoError(t, mrs.Set("certdispatch:lock:k", "other"))
	unlock()

	v, err := mrs.Get("certdispatch:lock:k")
	require.NoError(t, err)
	assert.Equal(t, "other", v)
}

func TestRedis_ConnectionError(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()
	_, err := NewRedis(rdb, time.Second).Lock(context.Background(), "k")
	assert.Error(t, err)
}
