package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/court-case-fetcher/internal/config"
)

func TestTokenBucket_Take(t *testing.T) {
	bucket := newTokenBucket(3, 1.0)

	for i := 0; i < 3; i++ {
		allowed, remaining, _, _ := bucket.take()
		assert.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 2-i, remaining)
	}

	allowed, remaining, retryAfter, resetAt := bucket.take()
	assert.False(t, allowed)
	assert.Zero(t, remaining)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.True(t, resetAt.After(time.Now()))
}

func TestTokenBucket_Refill(t *testing.T) {
	bucket := newTokenBucket(1, 20.0) // one token every 50ms

	allowed, _, _, _ := bucket.take()
	require.True(t, allowed)
	allowed, _, _, _ = bucket.take()
	require.False(t, allowed)

	time.Sleep(80 * time.Millisecond)
	allowed, _, _, _ = bucket.take()
	assert.True(t, allowed, "token refilled")
}

func searchLimiter(t *testing.T, rate float64, burst int) *Limiter {
	t.Helper()
	l := NewLimiter(FromServerConfig(config.ServerConfig{SearchRate: rate, SearchBurst: burst}))
	t.Cleanup(l.Stop)
	return l
}

func TestLimiter_SearchBurst(t *testing.T) {
	l := searchLimiter(t, 0.2, 5)

	for i := 0; i < 5; i++ {
		allowed, info := l.Allow("10.0.0.1", "/api/search", "POST")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 5, info.Limit)
		assert.Equal(t, 4-i, info.Remaining)
	}

	allowed, info := l.Allow("10.0.0.1", "/api/search", "POST")
	assert.False(t, allowed)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, info.RetryAfter, 5*time.Second)
}

func TestLimiter_PerClient(t *testing.T) {
	l := searchLimiter(t, 0.2, 1)

	allowed, _ := l.Allow("10.0.0.1", "/api/search", "POST")
	assert.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/api/search", "POST")
	assert.False(t, allowed)

	allowed, _ = l.Allow("10.0.0.2", "/api/search", "POST")
	assert.True(t, allowed, "other clients have their own bucket")
}

func TestLimiter_ListingUsesDefault(t *testing.T) {
	l := searchLimiter(t, 0.2, 1)

	for i := 0; i < 50; i++ {
		allowed, info := l.Allow("10.0.0.1", "/api/cases", "GET")
		require.True(t, allowed)
		assert.Equal(t, 100, info.Limit)
	}
}

func TestLimiter_HealthUnlimited(t *testing.T) {
	l := NewLimiter(&Config{Enabled: true, DefaultRate: 0.001, DefaultBurst: 1})
	defer l.Stop()

	for i := 0; i < 20; i++ {
		allowed, info := l.Allow("10.0.0.1", "/health", "GET")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := searchLimiter(t, 0, 0)

	for i := 0; i < 20; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/api/search", "POST")
		require.True(t, allowed)
	}
}

func TestLimiter_Exempt(t *testing.T) {
	cfg := FromServerConfig(config.ServerConfig{SearchRate: 0.1, SearchBurst: 1})
	cfg.Exempt["127.0.0.1"] = true
	l := NewLimiter(cfg)
	defer l.Stop()

	for i := 0; i < 10; i++ {
		allowed, _ := l.Allow("127.0.0.1", "/api/search", "POST")
		require.True(t, allowed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := searchLimiter(t, 0.001, 100)

	var allowedCount atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("10.0.0.1", "/api/search", "POST"); ok {
				allowedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), allowedCount.Load())
}

func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter(&Config{Enabled: true, DefaultRate: 1, DefaultBurst: 1, IdleTTL: time.Minute})
	defer l.Stop()

	for i := 0; i < 5; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i), "/api/cases", "GET")
	}
	require.Equal(t, 5, l.Buckets())

	l.cleanup(time.Now())
	assert.Equal(t, 5, l.Buckets(), "recently used buckets survive")

	l.cleanup(time.Now().Add(2 * time.Minute))
	assert.Zero(t, l.Buckets())
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/api/search", Method: "POST", Rate: 1, Burst: 1},
		{Path: "/orders/", Method: "GET", Rate: 2, Burst: 2},
	}

	assert.Equal(t, &configs[0], MatchEndpoint("/api/search", "POST", configs))
	assert.Nil(t, MatchEndpoint("/api/search", "GET", configs))
	assert.Equal(t, &configs[1], MatchEndpoint("/orders/abc/pdf", "GET", configs))
	assert.Zero(t, MatchEndpoint("/health", "GET", configs).Burst)
	assert.Nil(t, MatchEndpoint("/api/cases", "GET", configs))
}

func TestNewLimiter_NilConfig(t *testing.T) {
	l := NewLimiter(nil)
	defer l.Stop()

	allowed, info := l.Allow("10.0.0.1", "/api/cases", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 100, info.Limit)
}
