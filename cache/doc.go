// Package cache provides the read-through cache interface, key serialization
// and the commit-scoped generation invalidation used by the service handlers.
//
// # Generations
//
// Cached listings are not deleted row by row. Every row type has a
// generation key (its table name unless configured otherwise) and every
// cached value is stored under a key embedding the generation it was
// computed for:
//
//	key := cache.ScopedKey(serializer, "customers", store.Generation("customers"), "Lookup", req)
//
// A mutation registers a bump with the Invalidator. The bump runs after the
// unit of work commits, so concurrent readers never repopulate the cache
// with data from an uncommitted transaction:
//
//	invalidator.InvalidateOnCommit(u, "customers", "customer_lookups")
//
// After the bump, readers compute keys for the new generation and the old
// entries are evicted by prefix.
//
// # Key Serialization
//
// The default KeySerializer walks values with reflection: maps are sorted,
// structs contribute their exported fields, pointers are dereferenced.
// Function values are rendered by address and are only stable within one
// process, which is fine for an in-memory cache but not for a shared one.
package cache
