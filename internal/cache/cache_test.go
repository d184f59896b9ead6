package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID     string `json:"id"`
	Tokens int64  `json:"tokens"`
}

func setupTestRedis(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, nil), mr
}

func TestGetOrLoadCachesWithTTL(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()
	var loads int32
	load := func(context.Context) (profile, error) {
		atomic.AddInt32(&loads, 1)
		return profile{ID: "u1", Tokens: 250}, nil
	}

	first, err := GetOrLoad(ctx, c, UserKey("u1"), time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, c, UserKey("u1"), time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	assert.True(t, mr.Exists("user:u1"))

	mr.FastForward(2 * time.Minute)
	_, err = GetOrLoad(ctx, c, UserKey("u1"), time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loads), "expired entry must reload")
}

func TestInvalidateForcesReload(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()
	balance := int64(1000)
	load := func(context.Context) (profile, error) { return profile{ID: "u1", Tokens: balance}, nil }

	got, err := GetOrLoad(ctx, c, UserKey("u1"), time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Tokens)

	balance = 250
	require.NoError(t, c.InvalidateUser(ctx, "u1"))

	got, err = GetOrLoad(ctx, c, UserKey("u1"), time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.Tokens)
}

func TestLoaderErrorIsNotCached(t *testing.T) {
	c, mr := setupTestRedis(t)
	boom := errors.New("db down")

	_, err := GetOrLoad(context.Background(), c, "k", time.Minute, func(context.Context) (profile, error) {
		return profile{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	assert.False(t, mr.Exists("k"))
}

func TestRedisOutageFallsBackToLoader(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Close()

	got, err := GetOrLoad(context.Background(), c, "k", time.Minute, func(context.Context) (profile, error) {
		return profile{ID: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.ID)
}

func TestNilCacheCallsLoader(t *testing.T) {
	var c *Cache
	got, err := GetOrLoad(context.Background(), c, "k", time.Minute, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.NoError(t, c.Invalidate(context.Background(), "k"))
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	c, _ := setupTestRedis(t)
	var loads int32
	release := make(chan struct{})
	load := func(context.Context) (profile, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return profile{ID: "u1"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = GetOrLoad(context.Background(), c, "shared", time.Minute, load)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestQuestionsKey(t *testing.T) {
	assert.Equal(t, "questions:all", QuestionsKey(""))
	assert.Equal(t, "questions:Easy", QuestionsKey("Easy"))
}
