package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"govukmcp/internal/models"
)

// ClientKeyPrefix namespaces inbound client buckets so they never collide
// with upstream endpoint names.
const ClientKeyPrefix = "client:"

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	trustedProxies []netip.Prefix
}

// WithTrustedProxies lists the proxies whose X-Forwarded-For and X-Real-IP
// headers are believed. Without it the headers are ignored.
func WithTrustedProxies(proxies []netip.Prefix) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.trustedProxies = proxies
	}
}

// Middleware returns HTTP middleware that applies limiter to inbound requests,
// one bucket per client IP holding requestsPerMinute tokens. Standard rate
// limit headers are set on every response.
func Middleware(limiter Limiter, requestsPerMinute int, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	var cfg middlewareConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKeyPrefix + ClientIP(r, cfg.trustedProxies)

			allowed, info := limiter.CheckLimit(key, requestsPerMinute, 1)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(info.RetryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse("Rate limit exceeded", models.ErrorCodeRateLimited)
				json.NewEncoder(w).Encode(errorResp)

				slog.Warn("Client rate limit exceeded",
					"key", key,
					"limit", info.Limit,
					"retry_after", info.RetryAfter,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the address of the peer. Forwarding headers are consulted
// only when the peer is one of trusted. X-Forwarded-For is read right to left
// and the first hop that is not a trusted proxy is the client.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !isTrusted(peer, trusted) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !isTrusted(hop, trusted) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
