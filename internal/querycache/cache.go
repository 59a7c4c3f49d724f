// Package querycache is a keyed cache of query results shared by the list and
// dialog controllers.
//
// Entries become stale when they are older than the configured stale time or
// when they are invalidated. A stale entry is kept so callers can keep showing
// it while a refetch is pending or after a refetch failed. Concurrent fetches
// of the same key share one backend call.
package querycache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trash4cash/internal/resource/models"
)

// Entry is a cached query result. Version is the invalidation generation of
// its resource when the fetch that produced it started.
type Entry struct {
	Data      any
	FetchedAt time.Time
	Stale     bool
	Version   uint64
}

// Cache is safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	entries   map[Key]*Entry
	versions  map[models.Kind]uint64
	group     singleflight.Group
	staleTime time.Duration
	now       func() time.Time
	metrics   *Metrics
	logger    *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleTime sets how long a fetched entry counts as fresh. Default is 2 minutes.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.staleTime = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[Key]*Entry),
		versions:  make(map[models.Kind]uint64),
		staleTime: 2 * time.Minute,
		now:       time.Now,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Cache) freshLocked(e *Entry) bool {
	return !e.Stale && c.now().Sub(e.FetchedAt) < c.staleTime
}

// Get returns a fresh entry. Stale or absent entries are misses.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.freshLocked(e) {
		return Entry{}, false
	}
	return *e, true
}

// Peek returns the stored data regardless of staleness.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// Set stores data under key as a fresh entry.
func (c *Cache) Set(key Key, data any) {
	c.mu.Lock()
	_, existed := c.entries[key]
	c.entries[key] = &Entry{Data: data, FetchedAt: c.now(), Version: c.versions[key.Resource]}
	c.mu.Unlock()
	if !existed {
		c.metrics.entries(1)
	}
}

// Invalidate marks a single entry stale.
func (c *Cache) Invalidate(key Key) int {
	return c.InvalidateMatching(func(k Key) bool { return k == key }, key.Resource)
}

// InvalidateResource marks every entry of kind stale, lists and details alike.
func (c *Cache) InvalidateResource(kind models.Kind) int {
	return c.InvalidateMatching(func(k Key) bool { return k.Resource == kind }, kind)
}

// InvalidateMatching marks every entry matching pred stale and returns how
// many were fresh before. Invalidation is idempotent and never refetches.
// Fetches of the affected kinds that are still in flight will store their
// result as stale, and later callers start a new fetch instead of joining them.
func (c *Cache) InvalidateMatching(pred func(Key) bool, kinds ...models.Kind) int {
	c.mu.Lock()
	marked := make(map[models.Kind]int)
	touched := make(map[models.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		touched[k] = struct{}{}
	}
	for k, e := range c.entries {
		if !pred(k) {
			continue
		}
		touched[k.Resource] = struct{}{}
		if !e.Stale {
			e.Stale = true
			marked[k.Resource]++
		}
	}
	for kind := range touched {
		c.versions[kind]++
	}
	c.mu.Unlock()

	total := 0
	for kind, n := range marked {
		c.metrics.invalidated(kind.String(), n)
		total += n
	}
	if total > 0 {
		c.logger.Debug("cache entries invalidated", "count", total)
	}
	return total
}

// Remove drops an entry.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()
	if existed {
		c.metrics.entries(-1)
	}
}

// Patch replaces the data of an existing entry with update(data), keeping its
// freshness. It reports whether the key was present.
func (c *Cache) Patch(key Key, update func(any) any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	e.Data = update(e.Data)
	return true
}

// Range calls fn for every entry of kind until fn returns false. fn runs on a
// snapshot, so it may call back into the cache.
func (c *Cache) Range(kind models.Kind, fn func(Key, any) bool) {
	c.rangeEntries(kind, false, fn)
}

// RangeFresh is Range restricted to entries that are neither invalidated nor
// past the stale time.
func (c *Cache) RangeFresh(kind models.Kind, fn func(Key, any) bool) {
	c.rangeEntries(kind, true, fn)
}

func (c *Cache) rangeEntries(kind models.Kind, freshOnly bool, fn func(Key, any) bool) {
	type item struct {
		key  Key
		data any
	}
	c.mu.RLock()
	items := make([]item, 0, len(c.entries))
	for k, e := range c.entries {
		if k.Resource != kind || (freshOnly && !c.freshLocked(e)) {
			continue
		}
		items = append(items, item{k, e.Data})
	}
	c.mu.RUnlock()

	for _, it := range items {
		if !fn(it.key, it.data) {
			return
		}
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[Key]*Entry)
	for kind := range c.versions {
		c.versions[kind]++
	}
	c.mu.Unlock()
	c.metrics.entries(-n)
}

// Len returns the number of stored entries, stale included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fetch returns the fresh entry for key or runs fn to fill it. Concurrent
// callers for the same key share one call of fn. A failed fn leaves the
// stored entry untouched.
//
// fn runs detached from the caller's cancellation so that one caller giving
// up does not fail the others sharing the call; a caller whose ctx ends
// returns ctx.Err() immediately.
func (c *Cache) Fetch(ctx context.Context, key Key, fn func(context.Context) (any, error)) (any, error) {
	resource := key.Resource.String()
	if e, ok := c.Get(key); ok {
		c.metrics.hit(resource)
		return e.Data, nil
	}
	c.metrics.miss(resource)

	c.mu.RLock()
	version := c.versions[key.Resource]
	c.mu.RUnlock()
	flightKey := key.String() + "#" + strconv.FormatUint(version, 10)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		if e, ok := c.Get(key); ok {
			return e.Data, nil
		}
		start := c.now()
		data, err := fn(detached)
		c.metrics.observe(resource, c.now().Sub(start).Seconds())
		if err != nil {
			c.metrics.failed(resource)
			c.logger.Debug("cache fetch failed", "key", key.String(), "error", err)
			return nil, err
		}
		c.store(key, data, version)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.metrics.shared(resource)
		}
		return res.Val, res.Err
	}
}

// store writes a fetch result. If the resource was invalidated while the
// fetch was in flight the result is kept but stays stale. A result older than
// the stored entry is dropped; its callers still receive it.
func (c *Cache) store(key Key, data any, version uint64) {
	c.mu.Lock()
	prev, existed := c.entries[key]
	if existed && prev.Version > version {
		c.mu.Unlock()
		c.logger.Debug("dropping superseded fetch result", "key", key.String())
		return
	}
	stale := c.versions[key.Resource] != version
	c.entries[key] = &Entry{Data: data, FetchedAt: c.now(), Stale: stale, Version: version}
	c.mu.Unlock()
	if !existed {
		c.metrics.entries(1)
	}
}
