package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// TokenBucket is a continuously refilling token bucket. Tokens are fractional
// and refilled lazily whenever the bucket is observed, so an idle bucket costs
// nothing. A new bucket starts full.
type TokenBucket struct {
	capacity float64
	rate     float64 // tokens per second
	clock    func() time.Time

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket holding at most capacity tokens and
// refilling at rate tokens per second. A nil clock uses time.Now.
func NewTokenBucket(capacity, rate float64, clock func() time.Time) (*TokenBucket, error) {
	// Negated comparisons also reject NaN.
	if !(capacity > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCapacity, capacity)
	}
	if !(rate > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	return newTokenBucket(capacity, rate, clock), nil
}

func newTokenBucket(capacity, rate float64, clock func() time.Time) *TokenBucket {
	if clock == nil {
		clock = time.Now
	}
	return &TokenBucket{
		capacity:   capacity,
		rate:       rate,
		clock:      clock,
		tokens:     capacity,
		lastRefill: clock(),
	}
}

// Capacity returns the maximum number of tokens the bucket holds.
func (b *TokenBucket) Capacity() float64 { return b.capacity }

// Rate returns the refill rate in tokens per second.
func (b *TokenBucket) Rate() float64 { return b.rate }

// Consume attempts to take cost tokens. On success it returns the tokens left
// and the time at which the bucket will be full again. On failure the bucket
// is left unchanged and the returned time is when cost tokens will be
// available. A non-positive cost consumes a single token.
func (b *TokenBucket) Consume(cost float64) (granted bool, remaining float64, resetAt time.Time) {
	if !(cost > 0) {
		cost = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	b.refill(now)

	if b.tokens >= cost {
		b.tokens -= cost
		return true, b.tokens, now.Add(b.timeFor(b.capacity - b.tokens))
	}
	return false, b.tokens, now.Add(b.timeFor(cost - b.tokens))
}

// Peek refills the bucket and reports its level without consuming anything.
func (b *TokenBucket) Peek() (available float64, resetAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	b.refill(now)
	return b.tokens, now.Add(b.timeFor(b.capacity - b.tokens))
}

// Fill restores the bucket to capacity.
func (b *TokenBucket) Fill() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = b.capacity
	b.lastRefill = b.clock()
}

// idleAndFull reports whether the bucket has gone untouched for at least d and
// would be full at now. Dropping such a bucket loses no state.
func (b *TokenBucket) idleAndFull(now time.Time, d time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill)
	if elapsed < d {
		return false
	}
	return b.tokens+elapsed.Seconds()*b.rate >= b.capacity
}

// refill must be called with b.mu held. A clock that moves backwards adds no
// tokens.
func (b *TokenBucket) refill(now time.Time) {
	elapsed := math.Max(0, now.Sub(b.lastRefill).Seconds())
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.rate)
	b.lastRefill = now
}

func (b *TokenBucket) timeFor(tokens float64) time.Duration {
	if tokens <= 0 {
		return 0
	}
	return time.Duration(tokens / b.rate * float64(time.Second))
}
