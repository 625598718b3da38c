package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"govukmcp/internal/models"
)

// Operation is a tool operation guarded by Wrap.
type Operation func(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error)

// ExceededError is returned by a wrapped Operation when the endpoint bucket
// has no token for the call. The operation itself is not invoked.
type ExceededError struct {
	Endpoint   string
	Limit      int
	RetryAfter int
	ResetAt    time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: retry after %ds", e.Endpoint, e.RetryAfter)
}

// Payload renders the denial in the shape tool callers receive.
func (e *ExceededError) Payload() models.ErrorPayload {
	resetAt := e.ResetAt
	return models.ErrorPayload{
		Error:      fmt.Sprintf("Rate limit exceeded for %s", e.Endpoint),
		ErrorType:  models.ErrorKindRateLimit,
		Message:    fmt.Sprintf("Please retry after %d seconds", e.RetryAfter),
		RetryAfter: e.RetryAfter,
		ResetTime:  &resetAt,
		Limit:      e.Limit,
	}
}

// AsExceeded reports whether err carries an ExceededError.
func AsExceeded(err error) (*ExceededError, bool) {
	var exceeded *ExceededError
	if errors.As(err, &exceeded) {
		return exceeded, true
	}
	return nil, false
}

// Acquire consumes one token from endpoint for an upstream call made outside
// a wrapped operation. A denial is returned as an *ExceededError. A nil
// limiter selects Default.
func Acquire(ctx context.Context, limiter Limiter, endpoint string, requestsPerMinute int) (Info, error) {
	if limiter == nil {
		limiter = Default()
	}
	allowed, info := limiter.CheckLimit(endpoint, requestsPerMinute, 1)
	if allowed {
		return info, nil
	}

	slog.WarnContext(ctx, "Rate limit exceeded",
		"endpoint", endpoint,
		"limit", info.Limit,
		"retry_after", info.RetryAfter,
	)
	return info, &ExceededError{
		Endpoint:   endpoint,
		Limit:      info.Limit,
		RetryAfter: info.RetryAfter,
		ResetAt:    info.ResetAt,
	}
}

type wrapConfig struct {
	limiter           Limiter
	requestsPerMinute int
}

// WrapOption configures Wrap.
type WrapOption func(*wrapConfig)

// WithLimiter selects the limiter consulted by the wrapped operation. The
// process-wide Default limiter is used otherwise.
func WithLimiter(limiter Limiter) WrapOption {
	return func(c *wrapConfig) {
		c.limiter = limiter
	}
}

// WithRequestsPerMinute sets the limit used if the wrapped operation is the
// first to touch its endpoint.
func WithRequestsPerMinute(rpm int) WrapOption {
	return func(c *wrapConfig) {
		c.requestsPerMinute = rpm
	}
}

// Wrap returns a decorator that consumes one token from endpoint before each
// call. Denied calls return an *ExceededError without running the operation.
// Successful results are annotated with the post-consumption bucket state.
func Wrap(endpoint string, opts ...WrapOption) func(Operation) Operation {
	cfg := wrapConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.limiter == nil {
		cfg.limiter = Default()
	}

	return func(next Operation) Operation {
		return func(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
			info, err := Acquire(ctx, cfg.limiter, endpoint, cfg.requestsPerMinute)
			if err != nil {
				return nil, err
			}

			result, err := next(ctx, args)
			if err == nil && result != nil {
				result.RateLimit = &models.RateLimitMeta{
					Remaining: info.Remaining,
					Limit:     info.Limit,
					ResetTime: info.ResetAt,
				}
			}
			return result, err
		}
	}
}
