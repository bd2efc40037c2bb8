// Package query caches backend list responses by key until they go stale or
// are invalidated after a mutation.
package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key identifies a cached query, e.g. Key{"attendance", "2024-06-01", "2024-06-30"}.
// The first element is the query family used by Invalidate.
type Key []string

func (k Key) String() string {
	return strings.Join(k, "\x00")
}

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache holds query results for at most ttl. A zero ttl disables expiry, so
// entries only leave through Invalidate.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	// gen advances on every invalidation. A load that started under an
	// older generation does not store its result and is never joined.
	gen   uint64
	group singleflight.Group
	now   func() time.Time
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Fetch returns the cached value for key or runs fn to load it. Concurrent
// callers for the same key and generation share one fn call. The shared call
// keeps running if one caller goes away; each caller only waits on its own
// ctx. Errors are not cached.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	k := key.String()

	c.mu.RLock()
	e, ok := c.entries[k]
	gen := c.gen
	c.mu.RUnlock()
	if ok && c.fresh(e) {
		if v, ok := e.value.(T); ok {
			return v, nil
		}
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(k+"\x00"+strconv.FormatUint(gen, 10), func() (any, error) {
		v, err := fn(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if gen == c.gen {
			c.entries[k] = entry{value: v, fetchedAt: c.now()}
		}
		c.mu.Unlock()
		return v, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}
	out, ok := res.Val.(T)
	if !ok {
		return zero, fmt.Errorf("query %v: cached value has type %T", []string(key), res.Val)
	}
	return out, nil
}

func (c *Cache) fresh(e entry) bool {
	return c.ttl <= 0 || c.now().Sub(e.fetchedAt) < c.ttl
}

// Invalidate drops every entry whose key starts with prefix and starts a new
// generation, so the next Fetch goes to the source instead of joining a load
// that began before the call.
// Invalidate() with no prefix clears the cache.
func (c *Cache) Invalidate(prefix ...string) int {
	p := Key(prefix).String()
	match := func(k string) bool {
		return len(prefix) == 0 || k == p || strings.HasPrefix(k, p+"\x00")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	n := 0
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
