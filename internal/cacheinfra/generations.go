package cacheinfra

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// PrefixEvictor removes cached entries sharing a key prefix.
type PrefixEvictor interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GenerationStore keeps one counter per generation key. Counters start at
// zero and only grow for the lifetime of the process.
type GenerationStore struct {
	counters *xsync.MapOf[string, *xsync.Counter]
	evictor  PrefixEvictor
	prefix   func(key string) string
}

// NewGenerationStore creates a store. When evictor is not nil, Bump also
// evicts every entry under prefix(key).
func NewGenerationStore(evictor PrefixEvictor, prefix func(key string) string) *GenerationStore {
	if prefix == nil {
		prefix = func(key string) string { return key }
	}
	return &GenerationStore{
		counters: xsync.NewMapOf[string, *xsync.Counter](),
		evictor:  evictor,
		prefix:   prefix,
	}
}

// Generation returns the current generation of key.
func (s *GenerationStore) Generation(key string) int64 {
	c, ok := s.counters.Load(key)
	if !ok {
		return 0
	}
	return c.Value()
}

// Bump advances the generation of key and evicts the entries computed
// under older generations.
func (s *GenerationStore) Bump(ctx context.Context, key string) error {
	c, _ := s.counters.LoadOrCompute(key, xsync.NewCounter)
	c.Inc()

	if s.evictor == nil {
		return nil
	}
	return s.evictor.DeleteByPrefix(ctx, s.prefix(key))
}

// Snapshot returns a copy of every known generation.
func (s *GenerationStore) Snapshot() map[string]int64 {
	out := make(map[string]int64, s.counters.Size())
	s.counters.Range(func(key string, c *xsync.Counter) bool {
		out[key] = c.Value()
		return true
	})
	return out
}
