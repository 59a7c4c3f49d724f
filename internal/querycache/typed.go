package querycache

import (
	"context"
	"fmt"
)

// Fetch is the typed form of Cache.Fetch.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	data, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	v, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %s holds %T", key, data)
	}
	return v, nil
}

// PeekAs returns the stored data for key when it has type T, stale or not.
func PeekAs[T any](c *Cache, key Key) (T, bool) {
	var zero T
	data, ok := c.Peek(key)
	if !ok {
		return zero, false
	}
	v, ok := data.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Lookup returns the fresh data for key when it has type T.
func Lookup[T any](c *Cache, key Key) (T, bool) {
	var zero T
	e, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := e.Data.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Patch applies update to the entry for key when it holds a T.
func Patch[T any](c *Cache, key Key, update func(T) T) bool {
	applied := false
	c.Patch(key, func(data any) any {
		v, ok := data.(T)
		if !ok {
			return data
		}
		applied = true
		return update(v)
	})
	return applied
}
