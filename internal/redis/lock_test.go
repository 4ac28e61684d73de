package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-appointment-scheduling/internal/lock"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker_RunsAndReleases(t *testing.T) {
	mr, client := newTestClient(t)
	l := NewRedisLocker(client, 5*time.Second)

	ran := false
	err := l.WithLock(context.Background(), "doc:2024-06-10", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:schedule:doc:2024-06-10"))
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:schedule:doc:2024-06-10"))
}

func TestRedisLocker_HeldKeyFailsFast(t *testing.T) {
	mr, client := newTestClient(t)
	l := NewRedisLocker(client, 5*time.Second)

	require.NoError(t, mr.Set("lock:schedule:doc:2024-06-10", "someone-else"))

	err := l.WithLock(context.Background(), "doc:2024-06-10", func(context.Context) error {
		t.Fatal("callback must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, lock.ErrLockNotAcquired)

	// a foreign token is never released by us
	got, _ := mr.Get("lock:schedule:doc:2024-06-10")
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_ReleasesOnCallbackError(t *testing.T) {
	mr, client := newTestClient(t)
	l := NewRedisLocker(client, 5*time.Second)
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), "k", func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:schedule:k"))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Connect(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	assert.NoError(t, Ping(rdb)(context.Background()))

	mr.Close()
	assert.Error(t, Ping(rdb)(context.Background()))
}

func TestConnectRejectsEmptyAddress(t *testing.T) {
	_, err := Connect(context.Background(), Options{})
	assert.Error(t, err)
}
