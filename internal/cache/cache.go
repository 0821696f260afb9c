// Package cache is the shared resource cache: one fetch per resource name,
// shared by every consumer of that resource.
//
// Lookups go through an in-process LRU first and an optional remote Store
// (Redis) second. Concurrent misses for the same key are collapsed into a
// single load.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrMiss is returned by a Store when the key is not present
var ErrMiss = errors.New("cache miss")

// Store is a remote tier of the cache
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// loadTimeout bounds a shared load, which outlives any single caller's context
const loadTimeout = 30 * time.Second

// LoadFunc produces the value of a resource on a miss
type LoadFunc func(ctx context.Context) ([]byte, error)

type Cache struct {
	local  *expirable.LRU[string, []byte]
	remote Store
	ttl    time.Duration
	group  singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

// New creates a Cache holding up to size entries locally for ttl.
// remote may be nil.
func New(size int, ttl time.Duration, remote Store) *Cache {
	if size <= 0 {
		size = 128
	}
	return &Cache{
		local:  expirable.NewLRU[string, []byte](size, nil, ttl),
		remote: remote,
		ttl:    ttl,

		generations: make(map[string]uint64),
	}
}

func (c *Cache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

// store adds v locally unless key was invalidated after gen was read
func (c *Cache) store(key string, gen uint64, v []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key] != gen {
		return false
	}
	c.local.Add(key, v)
	return true
}

// Fetch returns the value of key, loading it when neither tier has it.
// The load is shared by all concurrent callers and is not cancelled when one
// of them gives up; each caller only stops waiting on its own ctx.
func (c *Cache) Fetch(ctx context.Context, key string, load LoadFunc) ([]byte, error) {
	if v, ok := c.local.Get(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return c.loadShared(loadCtx, key, load)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to load %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", key, res.Err)
		}
		if res.Shared {
			log.Debugf("Shared in-flight load for %s", key)
		}
		return res.Val.([]byte), nil
	}
}

func (c *Cache) loadShared(ctx context.Context, key string, load LoadFunc) ([]byte, error) {
	if v, ok := c.local.Get(key); ok {
		return v, nil
	}
	gen := c.generation(key)

	if c.remote != nil {
		v, err := c.remote.Get(ctx, key)
		switch {
		case err == nil:
			c.store(key, gen, v)
			return v, nil
		case !errors.Is(err, ErrMiss):
			log.Warnf("⚠️ Remote cache read for %s failed: %v", key, err)
		}
	}

	v, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if !c.store(key, gen, v) {
		log.Debugf("Discarding load of %s, invalidated while in flight", key)
		return v, nil
	}
	if c.remote != nil {
		if err := c.remote.Set(ctx, key, v, c.ttl); err != nil {
			log.Warnf("⚠️ Remote cache write for %s failed: %v", key, err)
		}
	}
	return v, nil
}

// Invalidate drops key from both tiers
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	c.generations[key]++
	c.local.Remove(key)
	c.mu.Unlock()
	c.group.Forget(key)

	if c.remote != nil {
		if err := c.remote.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", key, err)
		}
	}
	return nil
}
