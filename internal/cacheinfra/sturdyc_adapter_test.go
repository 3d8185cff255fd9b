package cacheinfra

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 10000 {
		t.Errorf("expected Capacity to be 10000, got %d", cfg.Capacity)
	}
	if cfg.NumShards != 64 {
		t.Errorf("expected NumShards to be 64, got %d", cfg.NumShards)
	}
	if cfg.TTL != 10*time.Minute {
		t.Errorf("expected TTL to be 10 minutes, got %v", cfg.TTL)
	}
	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}
	if cfg.EarlyRefresh != nil {
		t.Error("expected early refresh to be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, true},
		{"negative shards", func(c *Config) { c.NumShards = -1 }, true},
		{"zero ttl", func(c *Config) { c.TTL = 0 }, true},
		{"eviction percentage too low", func(c *Config) { c.EvictionPercentage = 0 }, true},
		{"eviction percentage too high", func(c *Config) { c.EvictionPercentage = 101 }, true},
		{"negative eviction interval", func(c *Config) { c.EvictionInterval = -time.Second }, true},
		{
			name: "valid early refresh",
			mutate: func(c *Config) {
				c.EarlyRefresh = &EarlyRefreshConfig{
					MinAsyncRefreshTime: time.Second,
					MaxAsyncRefreshTime: 2 * time.Second,
					SyncRefreshTime:     5 * time.Second,
					RetryBaseDelay:      10 * time.Millisecond,
				}
			},
		},
		{
			name: "early refresh max below min",
			mutate: func(c *Config) {
				c.EarlyRefresh = &EarlyRefreshConfig{
					MinAsyncRefreshTime: 2 * time.Second,
					MaxAsyncRefreshTime: time.Second,
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewSturdycService_InvalidConfig(t *testing.T) {
	if _, err := NewSturdycService(Config{}); err == nil {
		t.Error("expected error for empty config")
	}
}

func newTestService(t *testing.T) *SturdycService {
	t.Helper()
	svc, err := NewSturdycService(DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func TestSturdycService_GetOrFetch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (any, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		got, err := svc.GetOrFetch(ctx, "key", fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "value" {
			t.Errorf("expected value, got %v", got)
		}
	}
	if calls != 1 {
		t.Errorf("expected a single fetch, got %d", calls)
	}
}

func TestSturdycService_GetOrFetchError(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	boom := errors.New("boom")

	if _, err := svc.GetOrFetch(ctx, "key", func(context.Context) (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	calls := 0
	if _, err := svc.GetOrFetch(ctx, "key", func(context.Context) (any, error) {
		calls++
		return 1, nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Error("expected failed fetch not to be cached")
	}
}

func TestSturdycService_NilFetch(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.GetOrFetch(context.Background(), "key", nil); !errors.Is(err, ErrNilFetchFn) {
		t.Errorf("expected ErrNilFetchFn, got %v", err)
	}
}

func TestSturdycService_ConcurrentMissesShareFetch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.GetOrFetch(ctx, "hot", fetch); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected concurrent misses to share one fetch, got %d", calls.Load())
	}
}

func TestSturdycService_Delete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	_, _ = svc.GetOrFetch(ctx, "key", fetch)
	if err := svc.Delete(ctx, "key"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got, _ := svc.GetOrFetch(ctx, "key", fetch)
	if got != 2 {
		t.Errorf("expected refetch after delete, got %v", got)
	}
}

func TestSturdycService_DeleteByPrefix(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	value := func(context.Context) (any, error) { return true, nil }

	for _, key := range []string{"customers::0::a", "customers::0::b", "categories::0::a"} {
		if _, err := svc.GetOrFetch(ctx, key, value); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	if err := svc.DeleteByPrefix(ctx, "customers::"); err != nil {
		t.Fatalf("delete by prefix failed: %v", err)
	}
	if svc.Size() != 1 {
		t.Errorf("expected only the categories entry to remain, got %d entries", svc.Size())
	}
}
