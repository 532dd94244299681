package verstats

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// CachedBackend is a read-through cache in front of another Backend.
// Concurrent misses for one key share a single backend read. Mutations go
// to the wrapped backend first and then invalidate the cached entry.
type CachedBackend struct {
	next  Backend
	cache *lru.LRU[string, []byte]
	group singleflight.Group

	// gen changes on every mutation so in-flight loads started before it
	// do not repopulate the cache with stale data.
	mu  sync.Mutex
	gen uint64
}

// NewCachedBackend caches up to size values of next for ttl (0 = no expiry).
func NewCachedBackend(next Backend, size int, ttl time.Duration) *CachedBackend {
	if size <= 0 {
		size = 128
	}
	return &CachedBackend{
		next:  next,
		cache: lru.NewLRU[string, []byte](size, nil, ttl),
	}
}

// Unwrap returns the wrapped backend.
func (c *CachedBackend) Unwrap() Backend { return c.next }

// Len returns the number of cached entries.
func (c *CachedBackend) Len() int { return c.cache.Len() }

func (c *CachedBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.cache.Get(key); ok {
		return clone(v), nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		gen := c.generation()
		data, err := c.next.Read(ctx, key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.cache.Add(key, clone(data))
		}
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]byte)), nil
}

func (c *CachedBackend) Write(ctx context.Context, key string, value []byte) error {
	defer c.invalidate(key)
	return c.next.Write(ctx, key, value)
}

func (c *CachedBackend) Delete(ctx context.Context, key string) error {
	defer c.invalidate(key)
	return c.next.Delete(ctx, key)
}

func (c *CachedBackend) DeletePrefix(ctx context.Context, prefix string) error {
	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.gen++
		for _, key := range c.cache.Keys() {
			if strings.HasPrefix(key, prefix) {
				c.cache.Remove(key)
			}
		}
	}()
	return c.next.DeletePrefix(ctx, prefix)
}

func (c *CachedBackend) LastVersion(ctx context.Context) (string, error) {
	return c.next.LastVersion(ctx)
}

func (c *CachedBackend) SetLastVersion(ctx context.Context, version string) error {
	return c.next.SetLastVersion(ctx, version)
}

// Update delegates to the wrapped backend's Updater, or performs a locked
// read-modify-write when it has none.
func (c *CachedBackend) Update(ctx context.Context, key string, fn UpdateFunc) error {
	defer c.invalidate(key)
	if u, ok := c.next.(Updater); ok {
		return u.Update(ctx, key, fn)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	old, err := c.next.Read(ctx, key)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	next, keep, err := fn(old, found)
	if err != nil {
		return err
	}
	if !keep {
		return c.next.Delete(ctx, key)
	}
	return c.next.Write(ctx, key, next)
}

func (c *CachedBackend) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *CachedBackend) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache.Remove(key)
}
