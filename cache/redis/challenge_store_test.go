package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pilab-dev/shadow-auth/cache"
	authredis "github.com/pilab-dev/shadow-auth/cache/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*authredis.ChallengeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return authredis.NewChallengeStore(client, "test"), mr
}

func TestChallengeStore_PutGetTake(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	expiresAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, "raw-token", cache.PendingSecondFactor{UserID: "u1", ExpiresAt: expiresAt}, 5*time.Minute))

	key := "test:checkpoint:" + cache.HashToken("raw-token")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 5*time.Minute, mr.TTL(key))

	got, err := store.Get(ctx, "raw-token")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, expiresAt.Equal(got.ExpiresAt))

	taken, err := store.Take(ctx, "raw-token")
	require.NoError(t, err)
	assert.Equal(t, "u1", taken.UserID)
	assert.False(t, mr.Exists(key))

	_, err = store.Take(ctx, "raw-token")
	assert.ErrorIs(t, err, cache.ErrChallengeNotFound)
}

func TestChallengeStore_Expiry(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "tok", cache.PendingSecondFactor{UserID: "u1"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "tok")
	assert.ErrorIs(t, err, cache.ErrChallengeNotFound)
}

func TestChallengeStore_ConcurrentTake(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "race", cache.PendingSecondFactor{UserID: "u1"}, time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, "race"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestChallengeStore_BackendError(t *testing.T) {
	store, mr := newStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrChallengeNotFound)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := authredis.Connect(context.Background(), "redis://"+mr.Addr()+"/0", authredis.ConnectOptions{RetryAttempts: 1})
	require.NoError(t, err)
	defer client.Close()

	_, err = authredis.Connect(context.Background(), "::not-a-url", authredis.ConnectOptions{})
	assert.ErrorIs(t, err, authredis.ErrFailedToParseRedisConnString)
}
