package lookupcache

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-service-handlers/cache"
	"github.com/goliatone/go-service-handlers/row"
	"github.com/goliatone/go-service-handlers/services"
)

const methodLookup = "Lookup"

// Lister is the listing surface decorated by CachedLister. It is
// implemented by services.ListHandler.
type Lister[T any] interface {
	Type() *row.Type[T]
	Authorize(ctx context.Context) error
	Process(ctx context.Context, db bun.IDB, req *services.ListRequest) (*services.ListResponse[T], error)
	Query(ctx context.Context, db bun.IDB, req *services.ListRequest) (*services.ListResponse[T], error)
	ProcessEntities(ctx context.Context, req *services.ListRequest, resp *services.ListResponse[T]) *services.ListResponse[T]
}

var _ Lister[struct{}] = (*services.ListHandler[struct{}])(nil)

// CachedLister decorates a Lister with a generation scoped read-through cache
type CachedLister[T any] struct {
	base          Lister[T]
	cache         cache.CacheService
	generations   cache.GenerationStore
	keySerializer cache.KeySerializer
	logger        logrus.FieldLogger
}

// Option configures a CachedLister.
type Option[T any] func(*CachedLister[T])

// WithKeySerializer replaces the default key serializer.
func WithKeySerializer[T any](s cache.KeySerializer) Option[T] {
	return func(c *CachedLister[T]) {
		if s != nil {
			c.keySerializer = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger[T any](logger logrus.FieldLogger) Option[T] {
	return func(c *CachedLister[T]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New wraps base. Listings bypass the cache when either the cache service
// or the generation store is nil.
func New[T any](base Lister[T], cacheService cache.CacheService, generations cache.GenerationStore, opts ...Option[T]) *CachedLister[T] {
	c := &CachedLister[T]{
		base:          base,
		cache:         cacheService,
		generations:   generations,
		keySerializer: cache.NewDefaultKeySerializer(),
		logger:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithFields(logrus.Fields{
		"component": "lookupcache",
		"type":      base.Type().Name(),
	})
	return c
}

// Type returns the row type of the decorated lister.
func (c *CachedLister[T]) Type() *row.Type[T] {
	return c.base.Type()
}

// Authorize delegates to the decorated lister.
func (c *CachedLister[T]) Authorize(ctx context.Context) error {
	return c.base.Authorize(ctx)
}

// Process serves Lookup listings of two-level cached types from the cache.
// Every other listing, and any listing run against a transaction, goes to
// the decorated lister. The cache holds rows as queried; the entity
// processor runs on copies for each caller. Without a processor the cached
// entities are shared and callers must not mutate them.
func (c *CachedLister[T]) Process(ctx context.Context, db bun.IDB, req *services.ListRequest) (*services.ListResponse[T], error) {
	if !c.cacheable(db, req) {
		return c.base.Process(ctx, db, req)
	}

	// the cache must not answer callers the lister would reject
	if err := c.base.Authorize(ctx); err != nil {
		return nil, err
	}

	key := c.key(ctx, req)
	hit := true
	res, err := cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (*services.ListResponse[T], error) {
		hit = false
		return c.base.Query(ctx, db, req)
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"key": key,
		"hit": hit,
	}).Debug("lookup served")
	return c.base.ProcessEntities(ctx, req, res), nil
}

func (c *CachedLister[T]) cacheable(db bun.IDB, req *services.ListRequest) bool {
	if c.cache == nil || c.generations == nil || req == nil {
		return false
	}
	if req.ColumnSelection != services.ColumnsLookup {
		return false
	}
	if !c.base.Type().Policy().TwoLevelCached {
		return false
	}
	switch db.(type) {
	case bun.Tx, *bun.Tx:
		return false
	}
	return true
}

// key scopes the request to the type's current generation. Dependencies
// from the context contribute their generations to the hash.
func (c *CachedLister[T]) key(ctx context.Context, req *services.ListRequest) string {
	genKey := c.base.Type().GenerationKey()

	deps := dependenciesFromContext(ctx)
	depGens := make(map[string]int64, len(deps))
	for _, dep := range deps {
		depGens[dep] = c.generations.Generation(dep)
	}

	return cache.ScopedKey(c.keySerializer, genKey, c.generations.Generation(genKey), methodLookup, req, depGens)
}
