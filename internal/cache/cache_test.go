package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisStore(rdb)
}

func countingLoader(calls *atomic.Int32, value string) LoadFunc {
	return func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(value), nil
	}
}

func TestFetch_LoadsOnceThenServesLocal(t *testing.T) {
	c := New(8, time.Minute, nil)
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		v, err := c.Fetch(context.Background(), "subcategories", countingLoader(&calls, "[]"))
		require.NoError(t, err)
		assert.Equal(t, "[]", string(v))
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_CollapsesConcurrentMisses(t *testing.T) {
	c := New(8, time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})

	load := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Fetch(context.Background(), "k", load)
			assert.NoError(t, err)
			assert.Equal(t, "v", string(v))
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	c := New(8, time.Minute, nil)
	boom := errors.New("backend down")

	_, err := c.Fetch(context.Background(), "k", func(ctx context.Context) ([]byte, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	var calls atomic.Int32
	v, err := c.Fetch(context.Background(), "k", countingLoader(&calls, "ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(v))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_UsesRemoteTier(t *testing.T) {
	mr, store := newRedisStore(t)
	var calls atomic.Int32

	first := New(8, time.Minute, store)
	_, err := first.Fetch(context.Background(), "subcategories", countingLoader(&calls, "payload"))
	require.NoError(t, err)

	got, err := mr.Get("storefront:cache:subcategories")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
	assert.True(t, mr.TTL("storefront:cache:subcategories") > 0)

	// a second process shares the remote entry
	second := New(8, time.Minute, store)
	v, err := second.Fetch(context.Background(), "subcategories", countingLoader(&calls, "other"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(v))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_RemoteFailureFallsBackToLoad(t *testing.T) {
	mr, store := newRedisStore(t)
	mr.Close()

	c := New(8, time.Minute, store)
	var calls atomic.Int32
	v, err := c.Fetch(context.Background(), "k", countingLoader(&calls, "fresh"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(v))
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidate(t *testing.T) {
	mr, store := newRedisStore(t)
	c := New(8, time.Minute, store)
	var calls atomic.Int32

	_, err := c.Fetch(context.Background(), "k", countingLoader(&calls, "v1"))
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(context.Background(), "k"))
	assert.False(t, mr.Exists("storefront:cache:k"))

	v, err := c.Fetch(context.Background(), "k", countingLoader(&calls, "v2"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c := New(8, time.Minute, nil)
	started := make(chan struct{})
	release := make(chan struct{})

	load := func(ctx context.Context) ([]byte, error) {
		close(started)
		select {
		case <-release:
			return []byte("v"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctxA, "k", load)
		errA <- err
	}()
	<-started

	type result struct {
		v   []byte
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := c.Fetch(context.Background(), "k", load)
		resB <- result{v, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "v", string(b.v))

	// the shared load still populated the cache
	v, err := c.Fetch(context.Background(), "k", func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("should not load")
	})
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))
}

func TestInvalidate_DiscardsInFlightLoad(t *testing.T) {
	c := New(8, time.Minute, nil)
	started := make(chan struct{})
	release := make(chan struct{})

	stale := make(chan []byte, 1)
	go func() {
		v, _ := c.Fetch(context.Background(), "k", func(ctx context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte("old"), nil
		})
		stale <- v
	}()
	<-started

	require.NoError(t, c.Invalidate(context.Background(), "k"))

	v, err := c.Fetch(context.Background(), "k", func(ctx context.Context) ([]byte, error) {
		return []byte("new"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", string(v))

	close(release)
	assert.Equal(t, "old", string(<-stale))

	var calls atomic.Int32
	v, err = c.Fetch(context.Background(), "k", countingLoader(&calls, "unused"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(v))
	assert.Zero(t, calls.Load())
}

func TestRedisStore_Miss(t *testing.T) {
	_, store := newRedisStore(t)

	_, err := store.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrMiss)
}
