package ratelimit

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often a ClientLimiter looks for idle clients.
const DefaultCleanupInterval = time.Minute

// ClientLimiter limits inbound clients. It is a RateLimiter whose client
// buckets are evicted once they have been idle for twice the cleanup interval
// and have refilled completely.
type ClientLimiter struct {
	*RateLimiter

	cleanupInterval time.Duration
	done            chan struct{}
	closeOnce       sync.Once
}

// NewClientLimiter creates a ClientLimiter and starts its background eviction.
// A non-positive cleanupInterval selects DefaultCleanupInterval. Call Close to
// stop it.
func NewClientLimiter(cleanupInterval time.Duration, opts ...Option) (*ClientLimiter, error) {
	limiter, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	c := &ClientLimiter{
		RateLimiter:     limiter,
		cleanupInterval: cleanupInterval,
		done:            make(chan struct{}),
	}
	go c.cleanup()
	return c, nil
}

// Close stops the background cleanup goroutine.
func (c *ClientLimiter) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *ClientLimiter) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictStale()
		}
	}
}

func (c *ClientLimiter) evictStale() int {
	return c.evictIdle(ClientKeyPrefix, 2*c.cleanupInterval)
}

// ParseTrustedProxies parses proxy addresses given as IPs or CIDR prefixes.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
