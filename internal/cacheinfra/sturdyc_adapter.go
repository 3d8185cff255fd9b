package cacheinfra

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// ErrNilFetchFn is returned when GetOrFetch is called without a fetch function.
var ErrNilFetchFn = errors.New("cacheinfra: fetch function is required")

// Config holds the configuration for the sturdyc cache adapter.
type Config struct {
	// Capacity is the maximum number of entries the cache can store.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	NumShards int

	// TTL is the time-to-live for cached listings. Generation bumps evict
	// entries earlier, so this only bounds memory held by idle keys.
	TTL time.Duration

	// EvictionPercentage is the share of entries evicted once Capacity is reached (1-100).
	EvictionPercentage int

	// EarlyRefresh enables background refreshes of hot entries. Leave it nil
	// when fetch functions capture a transaction: a refresh would run after
	// the transaction is gone.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage makes the cache remember fetches that returned
	// sturdyc.ErrNotFound.
	MissingRecordStorage bool

	// EvictionInterval sets how often expired entries are swept. Zero keeps the sturdyc default.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig mirrors sturdyc.WithEarlyRefreshes.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// Validate implements validation.Validatable.
func (e EarlyRefreshConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.MinAsyncRefreshTime, validation.Min(time.Duration(0))),
		validation.Field(&e.MaxAsyncRefreshTime, validation.Min(e.MinAsyncRefreshTime)),
		validation.Field(&e.SyncRefreshTime, validation.Min(time.Duration(0))),
		validation.Field(&e.RetryBaseDelay, validation.Min(time.Duration(0))),
	)
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		TTL:                10 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EarlyRefresh),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
}

func (c Config) sturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}
	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// SturdycService is a read-through cache backed by a sturdyc client.
type SturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService validates cfg and builds the sturdyc client.
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.sturdycOptions()...,
	)

	return &SturdycService{client: client}, nil
}

// GetOrFetch returns the value stored under key, calling fetchFn on a miss.
// Concurrent misses for the same key share a single fetch.
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	if fetchFn == nil {
		return nil, ErrNilFetchFn
	}
	return s.client.GetOrFetch(ctx, key, fetchFn)
}

// Delete removes a single entry.
func (s *SturdycService) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (s *SturdycService) DeleteByPrefix(_ context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// Size returns the number of entries currently held.
func (s *SturdycService) Size() int {
	return s.client.Size()
}
