package cache

import (
	"context"
	"errors"
)

// ErrInvalidResultType is returned by GetOrFetch when the cached value does
// not have the requested type.
var ErrInvalidResultType = errors.New("cache: cached value has an unexpected type")

// ErrNilFetchFn is returned by GetOrFetch when no fetch function is given.
var ErrNilFetchFn = errors.New("cache: fetch function is required")

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn is the function signature CacheService expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService exposes the read-through operations used by cached listings
// and the evictions used by generation bumps.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrFetch is a type-safe wrapper function that provides generic support for CacheService.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T

	if fetchFn == nil {
		return zero, ErrNilFetchFn
	}

	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, ErrInvalidResultType
	}
	return typed, nil
}

// GenerationStore tracks a monotonically increasing generation per key.
// Cached values embed the generation they were computed under, so bumping
// a generation makes every dependent entry stale.
type GenerationStore interface {
	Generation(key string) int64
	Bump(ctx context.Context, key string) error
}
