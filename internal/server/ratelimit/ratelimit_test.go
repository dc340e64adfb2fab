package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock returns a controllable clock starting at a fixed instant.
func fakeClock() (func() time.Time, func(time.Duration)) {
	var mu sync.Mutex
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}, func(d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
		}
}

func newTestLimiter(cfg *Config) (*Limiter, func(time.Duration)) {
	cfg.CleanupInterval = 0
	l := NewLimiter(cfg)
	clock, advance := fakeClock()
	l.now = clock
	return l, advance
}

func TestBucket_TakeAndRefill(t *testing.T) {
	clock, advance := fakeClock()
	b := newBucket(3, 1.0, clock())

	for i := 0; i < 3; i++ {
		if ok, _, _ := b.take(clock()); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _, _ := b.take(clock()); ok {
		t.Fatal("fourth request should be denied")
	}

	advance(time.Second)
	if ok, _, _ := b.take(clock()); !ok {
		t.Fatal("request after refill should be allowed")
	}
}

func TestBucket_ResetTime(t *testing.T) {
	clock, _ := fakeClock()
	b := newBucket(10, 1.0, clock())
	var remaining int
	var reset time.Time
	for i := 0; i < 5; i++ {
		_, remaining, reset = b.take(clock())
	}
	if remaining != 5 {
		t.Errorf("expected 5 remaining, got %d", remaining)
	}
	if want := clock().Add(5 * time.Second); !reset.Equal(want) {
		t.Errorf("expected reset %v, got %v", want, reset)
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/jobs", "GET")
		if !allowed {
			t.Errorf("expected request %d to be allowed", i+1)
		}
		if info.Limit != 10 {
			t.Errorf("expected limit 10, got %d", info.Limit)
		}
		if info.Remaining != 9-i {
			t.Errorf("expected remaining %d, got %d", 9-i, info.Remaining)
		}
	}

	allowed, info := limiter.Allow("127.0.0.1", "/jobs", "GET")
	if allowed {
		t.Error("expected 11th request to be denied")
	}
	if info.RetryAfter < 5900*time.Millisecond || info.RetryAfter > 6100*time.Millisecond {
		t.Errorf("expected retry after about 6s, got %v", info.RetryAfter)
	}
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})
	defer limiter.Stop()

	for i := 0; i < 50; i++ {
		if allowed, _ := limiter.Allow("10.0.0.1", "/jobs", "GET"); !allowed {
			t.Fatal("whitelisted client should always be allowed")
		}
	}
	if allowed, _ := limiter.Allow("10.0.0.2", "/jobs", "GET"); allowed {
		t.Error("blacklisted client should be denied")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: false})
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		if allowed, _ := limiter.Allow("127.0.0.1", "/letters/generate", "POST"); !allowed {
			t.Fatal("disabled limiter should allow everything")
		}
	}
}

func TestLimiter_GenerationHasTightBudget(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		if allowed, _ := limiter.Allow("c", "/letters/generate", "POST"); !allowed {
			t.Fatalf("burst request %d should be allowed", i+1)
		}
	}
	if allowed, _ := limiter.Allow("c", "/letters/generate", "POST"); allowed {
		t.Error("generation beyond burst should be denied")
	}
	if allowed, _ := limiter.Allow("c", "/jobs", "GET"); !allowed {
		t.Error("reads use the default budget")
	}
	if allowed, _ := limiter.Allow("other", "/letters/generate", "POST"); !allowed {
		t.Error("clients have separate budgets")
	}
}

func TestLimiter_PrefixRuleSharesBucket(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: []EndpointConfig{{Path: "/jobs/", Method: "DELETE", Limit: 2, Window: time.Minute}},
	})
	defer limiter.Stop()

	limiter.Allow("c", "/jobs/a", "DELETE")
	limiter.Allow("c", "/jobs/b", "DELETE")
	if allowed, _ := limiter.Allow("c", "/jobs/c", "DELETE"); allowed {
		t.Error("prefix-matched paths should share one bucket")
	}
}

func TestLimiter_HealthIsUnlimited(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 20; i++ {
		if allowed, _ := limiter.Allow("c", "/health", "GET"); !allowed {
			t.Fatal("health check should not be limited")
		}
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Minute})
	defer limiter.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if ok, _ := limiter.Allow("shared", "/jobs", "GET"); ok {
					mu.Lock()
					allowedCount++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowedCount != 100 {
		t.Errorf("expected exactly 100 allowed requests, got %d", allowedCount)
	}
}

func TestLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	limiter, advance := newTestLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute, IdleTTL: time.Hour})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("client-%d", i), "/jobs", "GET")
	}
	advance(30 * time.Minute)
	limiter.Allow("client-0", "/jobs", "GET")
	advance(31 * time.Minute)

	if n := limiter.cleanup(); n != 4 {
		t.Errorf("expected 4 idle buckets removed, got %d", n)
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewLimiter(nil)
	limiter.Stop()
	limiter.Stop()
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		path, method string
		wantLimit    int
		wantNil      bool
	}{
		{"/letters/generate", "POST", 20, false},
		{"/letters/generate/stream", "POST", 20, false},
		{"/jobs/123", "DELETE", 100, false},
		{"/jobs", "GET", 0, true},
		{"/health", "GET", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				if got != nil {
					t.Errorf("expected no rule, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a rule")
			}
			if got.Limit != tt.wantLimit {
				t.Errorf("expected limit %d, got %d", tt.wantLimit, got.Limit)
			}
		})
	}
}
