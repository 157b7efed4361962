package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// LoaderFunc produces the value for a key on a cache miss.
type LoaderFunc[T any] func(ctx context.Context, key string) (T, error)

// Loading is a read-through cache: misses call the loader once per key even
// when many goroutines miss at the same time.
type Loading[T any] struct {
	*LRUCache[T]
	group  singleflight.Group
	loader LoaderFunc[T]
}

// NewLoading wraps an LRU cache with a loader.
func NewLoading[T any](lru *LRUCache[T], loader LoaderFunc[T]) *Loading[T] {
	return &Loading[T]{LRUCache: lru, loader: loader}
}

// Fetch returns the cached value or loads, stores and returns it. Loader
// errors are not cached.
func (l *Loading[T]) Fetch(ctx context.Context, key string) (T, error) {
	if v, ok := l.Get(key); ok {
		return v, nil
	}
	v, err, _ := l.group.Do(key, func() (any, error) {
		if v, ok := l.Get(key); ok {
			return v, nil
		}
		loaded, err := l.loader(ctx, key)
		if err != nil {
			return nil, err
		}
		l.Set(key, loaded)
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load %q: %w", key, err)
	}
	return v.(T), nil
}
