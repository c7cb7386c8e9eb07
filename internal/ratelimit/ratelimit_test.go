package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounter is an in-memory Counter with optional error injection.
type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func testLimiter(counter Counter, opts ...Option) *TierLimiter {
	tiers := map[string]int{"free": 11}
	return New(counter, tiers, "free", slog.New(slog.DiscardHandler), opts...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCheckAndConsume_AdmitsUpToLimit(t *testing.T) {
	counter := newFakeCounter()
	limiter := testLimiter(counter)
	ctx := context.Background()

	for i := 1; i <= 11; i++ {
		allowed, info := limiter.CheckAndConsume(ctx, "user-a", "free")
		require.True(t, allowed, "request %d should be admitted", i)
		assert.Equal(t, 11, info.Limit)
		assert.Equal(t, i, info.Current)
		assert.Equal(t, 11-i, info.Remaining)
		assert.False(t, info.Degraded)
	}

	// Request limit+1 is denied with remaining=0
	allowed, info := limiter.CheckAndConsume(ctx, "user-a", "free")
	assert.False(t, allowed)
	assert.Equal(t, 11, info.Limit)
	assert.Equal(t, 11, info.Current)
	assert.Equal(t, 0, info.Remaining)
}

func TestCheckAndConsume_UnknownTierFallsBack(t *testing.T) {
	counter := newFakeCounter()
	limiter := testLimiter(counter)
	ctx := context.Background()

	allowed, info := limiter.CheckAndConsume(ctx, "user-b", "platinum")
	require.True(t, allowed)
	assert.Equal(t, 11, info.Limit)
}

func TestCheckAndConsume_UsersCountedIndependently(t *testing.T) {
	counter := newFakeCounter()
	limiter := testLimiter(counter)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		allowed, _ := limiter.CheckAndConsume(ctx, "user-a", "free")
		require.True(t, allowed)
	}

	allowed, _ := limiter.CheckAndConsume(ctx, "user-a", "free")
	assert.False(t, allowed)

	// user-b is untouched by user-a's quota
	allowed, info := limiter.CheckAndConsume(ctx, "user-b", "free")
	assert.True(t, allowed)
	assert.Equal(t, 1, info.Current)
}

func TestCheckAndConsume_ResetsAtUTCDayBoundary(t *testing.T) {
	counter := newFakeCounter()
	ctx := context.Background()

	beforeMidnight := time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC)
	afterMidnight := time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC)

	limiter := testLimiter(counter, WithClock(fixedClock(beforeMidnight)))
	for i := 0; i < 11; i++ {
		allowed, _ := limiter.CheckAndConsume(ctx, "user-a", "free")
		require.True(t, allowed)
	}
	allowed, _ := limiter.CheckAndConsume(ctx, "user-a", "free")
	require.False(t, allowed)

	// Two seconds later the day key changed and the quota starts fresh
	limiter = testLimiter(counter, WithClock(fixedClock(afterMidnight)))
	allowed, info := limiter.CheckAndConsume(ctx, "user-a", "free")
	assert.True(t, allowed)
	assert.Equal(t, 1, info.Current)
	assert.Equal(t, 10, info.Remaining)
}

func TestCheckAndConsume_ResetAtIsNextUTCMidnight(t *testing.T) {
	counter := newFakeCounter()
	at := time.Date(2026, 3, 14, 17, 30, 0, 0, time.UTC)
	limiter := testLimiter(counter, WithClock(fixedClock(at)))

	_, info := limiter.CheckAndConsume(context.Background(), "user-a", "free")
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), info.ResetAt)
}

func TestCheckAndConsume_FailsOpenOnCounterError(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("connection refused")
	limiter := testLimiter(counter)

	allowed, info := limiter.CheckAndConsume(context.Background(), "user-a", "free")
	assert.True(t, allowed)
	assert.True(t, info.Degraded)
	assert.Equal(t, 11, info.Limit)
}

func TestCheckAndConsume_ConcurrentRequestsNeverCorruptCount(t *testing.T) {
	counter := newFakeCounter()
	limiter := testLimiter(counter)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _ := limiter.CheckAndConsume(ctx, "user-a", "free")
			if allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// With an atomic counter exactly the quota is admitted
	assert.Equal(t, 11, admitted)
}
