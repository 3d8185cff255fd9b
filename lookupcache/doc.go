// Package lookupcache adds a generation scoped read-through cache in front
// of listing handlers.
//
// # Overview
//
// CachedLister decorates a services.ListHandler. Lookup listings of row
// types declared with row.WithTwoLevelCache are served from a
// cache.CacheService; every other listing passes through untouched.
//
//	handler := services.NewListHandler(customerType)
//	lister := lookupcache.New(handler, cacheService, generations)
//
//	res, err := lister.Process(ctx, db, &services.ListRequest{
//		ColumnSelection: services.ColumnsLookup,
//	})
//
// # Keys and invalidation
//
// Entries are keyed by the row type's generation key, its current generation
// and a hash of the serialized request:
//
//	customers::4::9f3c2a10b7d4e811
//
// Restoring a row through services.UndeleteHandler registers a generation
// bump on the unit of work. Once the transaction commits the generation
// moves, old keys become unreachable and the entries under the previous
// prefix are evicted.
//
// Listings that read other tables can declare them with WithDependencies;
// the generation of each dependency is folded into the key hash.
//
// # Transactions
//
// Listings run against a transaction bypass the cache. They may observe
// uncommitted rows that must not leak to other callers.
package lookupcache
