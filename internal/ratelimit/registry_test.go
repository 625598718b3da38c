package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, clock *fakeClock, opts ...Option) *RateLimiter {
	t.Helper()
	limiter, err := New(append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return limiter
}

func TestNew_DefaultLimits(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	assert.Equal(t, 120, limiter.LimitFor(EndpointMOT))
	assert.Equal(t, 120, limiter.LimitFor(EndpointCompaniesHouse))
	assert.Equal(t, 500, limiter.LimitFor(EndpointTfL))
	assert.Equal(t, 60, limiter.LimitFor(DefaultEndpoint))
	assert.Equal(t, 60, limiter.LimitFor("police_api"))
}

func TestNew_WithLimits(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock(), WithLimits(map[string]int{
		EndpointTfL:     50,
		"postcodes_io":  300,
		DefaultEndpoint: 30,
	}))

	assert.Equal(t, 50, limiter.LimitFor(EndpointTfL))
	assert.Equal(t, 300, limiter.LimitFor("postcodes_io"))
	assert.Equal(t, 30, limiter.LimitFor("unknown"))
	assert.Equal(t, 120, limiter.LimitFor(EndpointMOT))
}

func TestNew_RejectsNonPositiveLimits(t *testing.T) {
	_, err := New(WithLimits(map[string]int{"tfl": 0}))
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = New(WithLimits(map[string]int{DefaultEndpoint: -1}))
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestRateLimiter_ZeroValueUsable(t *testing.T) {
	var limiter RateLimiter

	allowed, info := limiter.CheckLimit(EndpointTfL, 0, 1)
	assert.True(t, allowed)
	assert.Equal(t, 500, info.Limit)
	assert.Equal(t, 499, info.Remaining)
}

func TestRateLimiter_CheckLimit_FirstCall(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock)

	allowed, info := limiter.CheckLimit("test_endpoint", 60, 1)
	assert.True(t, allowed)
	assert.Equal(t, 60, info.Limit)
	assert.Equal(t, 59, info.Remaining)
	assert.Equal(t, 0, info.RetryAfter)
	assert.Equal(t, clock.Now().Add(time.Second), info.ResetAt)
}

func TestRateLimiter_CheckLimit_ExhaustsThenDenies(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock)

	for i := 0; i < 10; i++ {
		allowed, _ := limiter.CheckLimit("small", 10, 1)
		require.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, info := limiter.CheckLimit("small", 10, 1)
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, 10, info.Limit)
	// 10 rpm refills one token every 6s; retry includes one second of margin.
	assert.Equal(t, 7, info.RetryAfter)
	assert.WithinDuration(t, clock.Now().Add(6*time.Second), info.ResetAt, time.Millisecond)
}

func TestRateLimiter_CheckLimit_RetryAfterAtLeastOne(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock)

	limiter.CheckLimit("fast", 6000, 6000)
	allowed, info := limiter.CheckLimit("fast", 6000, 1)
	assert.False(t, allowed)
	assert.Equal(t, 1, info.RetryAfter)
}

func TestRateLimiter_CheckLimit_RecoversAfterRefill(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock)

	for i := 0; i < 60; i++ {
		limiter.CheckLimit("recover", 60, 1)
	}
	allowed, _ := limiter.CheckLimit("recover", 60, 1)
	require.False(t, allowed)

	clock.Advance(time.Second)
	allowed, info := limiter.CheckLimit("recover", 60, 1)
	assert.True(t, allowed)
	assert.Equal(t, 0, info.Remaining)
}

func TestRateLimiter_FirstWriterWins(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	_, info := limiter.CheckLimit("shared", 10, 1)
	assert.Equal(t, 10, info.Limit)

	_, info = limiter.CheckLimit("shared", 1000, 1)
	assert.Equal(t, 10, info.Limit)
	assert.Equal(t, 8, info.Remaining)
}

func TestRateLimiter_NonPositiveRateUsesTable(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	_, info := limiter.CheckLimit(EndpointCompaniesHouse, 0, 1)
	assert.Equal(t, 120, info.Limit)

	_, info = limiter.CheckLimit("other", -5, 1)
	assert.Equal(t, 60, info.Limit)
}

func TestRateLimiter_EndpointsAreIsolated(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	for i := 0; i < 5; i++ {
		limiter.CheckLimit("a", 5, 1)
	}
	allowed, _ := limiter.CheckLimit("a", 5, 1)
	assert.False(t, allowed)

	allowed, info := limiter.CheckLimit("b", 5, 1)
	assert.True(t, allowed)
	assert.Equal(t, 4, info.Remaining)
}

func TestRateLimiter_MixedEndpoints(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	for i := 0; i < 50; i++ {
		limiter.CheckLimit(EndpointCompaniesHouse, 0, 1)
	}
	for i := 0; i < 200; i++ {
		limiter.CheckLimit(EndpointTfL, 0, 1)
	}
	for i := 0; i < 80; i++ {
		limiter.CheckLimit(EndpointMOT, 0, 1)
	}

	assert.Equal(t, 70, limiter.Status(EndpointCompaniesHouse).Available)
	assert.Equal(t, 300, limiter.Status(EndpointTfL).Available)
	assert.Equal(t, 40, limiter.Status(EndpointMOT).Available)
}

func TestRateLimiter_Status_UnknownEndpoint(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock)

	status := limiter.Status("never_seen")
	assert.Equal(t, 60, status.Available)
	assert.Equal(t, 60, status.Limit)
	assert.Equal(t, clock.Now(), status.ResetAt)
	assert.Empty(t, limiter.Endpoints(), "status must not create a bucket")

	status = limiter.Status(EndpointTfL)
	assert.Equal(t, 500, status.Available)
}

func TestRateLimiter_Status_DoesNotConsume(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	limiter.CheckLimit("peek", 10, 3)
	for i := 0; i < 5; i++ {
		limiter.Status("peek")
	}

	status := limiter.Status("peek")
	assert.Equal(t, 7, status.Available)
	assert.Equal(t, 10, status.Limit)
}

func TestRateLimiter_Reset(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	for i := 0; i < 10; i++ {
		limiter.CheckLimit("one", 10, 1)
		limiter.CheckLimit("two", 10, 1)
	}

	limiter.Reset("one")
	limiter.Reset("missing")

	assert.Equal(t, 10, limiter.Status("one").Available)
	assert.Equal(t, 0, limiter.Status("two").Available)
	assert.Equal(t, []string{"one", "two"}, limiter.Endpoints())
}

func TestRateLimiter_ResetAll(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	for i := 0; i < 10; i++ {
		limiter.CheckLimit("one", 10, 1)
		limiter.CheckLimit("two", 20, 1)
	}

	limiter.ResetAll()

	assert.Equal(t, 10, limiter.Status("one").Available)
	assert.Equal(t, 20, limiter.Status("two").Available)
}

func TestRateLimiter_Limits_ReturnsCopy(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	limits := limiter.Limits()
	limits[EndpointTfL] = 1

	assert.Equal(t, 500, limiter.LimitFor(EndpointTfL))
}

func TestRateLimiter_ConcurrentSameEndpoint(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.CheckLimit("concurrent", 50, 1); allowed {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), granted.Load())
	assert.Len(t, limiter.Endpoints(), 1)
}

func TestRateLimiter_ConcurrentExactCapacity(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	var granted, denied atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.CheckLimit("exact", 100, 1); allowed {
				granted.Add(1)
			} else {
				denied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), granted.Load())
	assert.Zero(t, denied.Load())
	assert.Equal(t, 0, limiter.Status("exact").Available)
}

func TestRateLimiter_ConcurrentManyEndpoints(t *testing.T) {
	limiter := newTestLimiter(t, newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			endpoint := fmt.Sprintf("endpoint-%d", id%5)
			for j := 0; j < 20; j++ {
				limiter.CheckLimit(endpoint, 1000, 1)
				limiter.Status(endpoint)
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, limiter.Endpoints(), 5)
	for _, endpoint := range limiter.Endpoints() {
		assert.Equal(t, 800, limiter.Status(endpoint).Available)
	}
}

func TestDefault_IsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestConvenienceChecks(t *testing.T) {
	t.Cleanup(Default().ResetAll)

	allowed, info := CheckMOTLimit()
	assert.True(t, allowed)
	assert.Equal(t, 120, info.Limit)

	allowed, info = CheckCompaniesHouseLimit()
	assert.True(t, allowed)
	assert.Equal(t, 120, info.Limit)

	allowed, info = CheckTfLLimit()
	assert.True(t, allowed)
	assert.Equal(t, 500, info.Limit)

	allowed, info = CheckDefaultLimit("convenience_a")
	assert.True(t, allowed)
	assert.Equal(t, 60, info.Limit)
	assert.Equal(t, 59, info.Remaining)

	// Each named endpoint gets its own fallback bucket.
	allowed, info = CheckDefaultLimit("convenience_b")
	assert.True(t, allowed)
	assert.Equal(t, 59, info.Remaining)
	assert.Equal(t, 59, Default().Status("convenience_a").Available)

	assert.Subset(t, Default().Endpoints(), []string{EndpointMOT, EndpointCompaniesHouse, EndpointTfL, "convenience_a", "convenience_b"})
	assert.NotContains(t, Default().Endpoints(), DefaultEndpoint)
}
