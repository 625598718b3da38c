package ratelimit

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// RateLimiter is an in-memory Limiter holding one TokenBucket per endpoint.
// The first caller to touch an endpoint fixes its capacity and rate; later
// calls with a different requestsPerMinute share the existing bucket.
//
// The zero value is ready to use with DefaultLimits and the wall clock.
type RateLimiter struct {
	limits map[string]int
	clock  func() time.Time

	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

var _ Limiter = (*RateLimiter)(nil)

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithLimits merges overrides into the built-in limit table. An entry for
// DefaultEndpoint replaces the fallback limit.
func WithLimits(overrides map[string]int) Option {
	return func(l *RateLimiter) {
		maps.Copy(l.limits, overrides)
	}
}

// WithClock replaces the time source used by every bucket.
func WithClock(clock func() time.Time) Option {
	return func(l *RateLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New creates a RateLimiter. Every limit in the resulting table must be
// positive.
func New(opts ...Option) (*RateLimiter, error) {
	l := &RateLimiter{
		limits:  DefaultLimits(),
		clock:   time.Now,
		buckets: make(map[string]*TokenBucket),
	}
	for _, opt := range opts {
		opt(l)
	}

	for endpoint, rpm := range l.limits {
		if rpm <= 0 {
			return nil, fmt.Errorf("%w: endpoint %q has %d", ErrInvalidLimit, endpoint, rpm)
		}
	}

	return l, nil
}

var (
	defaultOnce    sync.Once
	defaultLimiter *RateLimiter
)

// Default returns the process-wide limiter shared by the convenience checks
// and by Wrap when no limiter is supplied.
func Default() *RateLimiter {
	defaultOnce.Do(func() {
		defaultLimiter = &RateLimiter{}
	})
	return defaultLimiter
}

// CheckLimit implements Limiter.
func (l *RateLimiter) CheckLimit(endpoint string, requestsPerMinute int, cost float64) (bool, Info) {
	bucket := l.Bucket(endpoint, requestsPerMinute)
	granted, remaining, resetAt := bucket.Consume(cost)

	info := Info{
		Limit:     int(bucket.Capacity()),
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}
	if !granted {
		info.RetryAfter = retryAfter(resetAt, l.now())
	}
	return granted, info
}

// Status implements Limiter. An endpoint that has never been checked reports
// its configured limit as fully available and does not create a bucket.
func (l *RateLimiter) Status(endpoint string) Status {
	l.mu.Lock()
	bucket, ok := l.buckets[endpoint]
	l.mu.Unlock()

	if !ok {
		limit := l.LimitFor(endpoint)
		return Status{Available: limit, Limit: limit, ResetAt: l.now()}
	}

	available, resetAt := bucket.Peek()
	return Status{
		Available: int(available),
		Limit:     int(bucket.Capacity()),
		ResetAt:   resetAt,
	}
}

// Reset implements Limiter.
func (l *RateLimiter) Reset(endpoint string) {
	l.mu.Lock()
	bucket, ok := l.buckets[endpoint]
	l.mu.Unlock()

	if ok {
		bucket.Fill()
	}
}

// ResetAll implements Limiter.
func (l *RateLimiter) ResetAll() {
	l.mu.Lock()
	buckets := slices.Collect(maps.Values(l.buckets))
	l.mu.Unlock()

	for _, bucket := range buckets {
		bucket.Fill()
	}
}

// Bucket returns the bucket for endpoint, creating it on first use. A
// requestsPerMinute <= 0 selects the configured limit for the endpoint.
func (l *RateLimiter) Bucket(endpoint string, requestsPerMinute int) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bucket, ok := l.buckets[endpoint]; ok {
		return bucket
	}

	if requestsPerMinute <= 0 {
		requestsPerMinute = l.LimitFor(endpoint)
	}
	rpm := float64(requestsPerMinute)
	bucket := newTokenBucket(rpm, rpm/60.0, l.clock)

	if l.buckets == nil {
		l.buckets = make(map[string]*TokenBucket)
	}
	l.buckets[endpoint] = bucket
	return bucket
}

// evictIdle removes buckets whose key starts with prefix and which are idle
// and full. Callers pass ClientKeyPrefix so upstream buckets are never
// removed.
func (l *RateLimiter) evictIdle(prefix string, idle time.Duration) int {
	if prefix == "" {
		return 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, bucket := range l.buckets {
		if strings.HasPrefix(key, prefix) && bucket.idleAndFull(now, idle) {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}

// LimitFor resolves the configured requests-per-minute for endpoint, falling
// back to the DefaultEndpoint entry and then FallbackRequestsPerMinute.
func (l *RateLimiter) LimitFor(endpoint string) int {
	limits := l.limits
	if limits == nil {
		limits = DefaultLimits()
	}
	if rpm, ok := limits[endpoint]; ok {
		return rpm
	}
	if rpm, ok := limits[DefaultEndpoint]; ok {
		return rpm
	}
	return FallbackRequestsPerMinute
}

// Limits returns a copy of the limit table.
func (l *RateLimiter) Limits() map[string]int {
	if l.limits == nil {
		return DefaultLimits()
	}
	return maps.Clone(l.limits)
}

// Endpoints returns the names of all buckets created so far, sorted.
func (l *RateLimiter) Endpoints() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Sorted(maps.Keys(l.buckets))
}

func (l *RateLimiter) now() time.Time {
	if l.clock == nil {
		return time.Now()
	}
	return l.clock()
}

// retryAfter rounds the wait up to whole seconds with one second of margin.
func retryAfter(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Seconds()) + 1
	if secs < 1 {
		return 1
	}
	return secs
}
