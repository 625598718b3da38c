package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"govukmcp/internal/ratelimit"
)

// Outcome attribute values of the decision counter.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)

// allEndpoints labels a ResetAll in the reset counter.
const allEndpoints = "*"

// endpointLister is implemented by limiters that can enumerate their buckets.
type endpointLister interface {
	Endpoints() []string
}

// InstrumentedLimiter wraps a ratelimit.Limiter with decision and reset
// counters. If the inner limiter can list its endpoints, the available tokens
// of each bucket are also exported as a gauge.
type InstrumentedLimiter struct {
	inner     ratelimit.Limiter
	decisions metric.Int64Counter
	resets    metric.Int64Counter
	reg       metric.Registration
}

var _ ratelimit.Limiter = (*InstrumentedLimiter)(nil)

// NewInstrumentedLimiter creates the wrapper and registers its instruments.
func NewInstrumentedLimiter(inner ratelimit.Limiter, opts ...InstrumentOption) (*InstrumentedLimiter, error) {
	o := newInstrumentOptions(opts)
	meter := o.meterProvider.Meter(instrumentationName + "/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of rate limit checks by endpoint and outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	resets, err := meter.Int64Counter(
		"ratelimit.resets",
		metric.WithDescription("Number of administrative bucket resets"),
		metric.WithUnit("{reset}"),
	)
	if err != nil {
		return nil, err
	}

	l := &InstrumentedLimiter{
		inner:     inner,
		decisions: decisions,
		resets:    resets,
	}

	if lister, ok := inner.(endpointLister); ok {
		available, err := meter.Float64ObservableGauge(
			"ratelimit.tokens.available",
			metric.WithDescription("Tokens currently available per endpoint bucket"),
			metric.WithUnit("{token}"),
		)
		if err != nil {
			return nil, err
		}
		l.reg, err = meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
			for _, endpoint := range lister.Endpoints() {
				status := inner.Status(endpoint)
				obs.ObserveFloat64(available, float64(status.Available),
					metric.WithAttributes(attribute.String("endpoint", endpoint)))
			}
			return nil
		}, available)
		if err != nil {
			return nil, err
		}
	}

	return l, nil
}

// CheckLimit implements ratelimit.Limiter.
func (l *InstrumentedLimiter) CheckLimit(endpoint string, requestsPerMinute int, cost float64) (bool, ratelimit.Info) {
	allowed, info := l.inner.CheckLimit(endpoint, requestsPerMinute, cost)

	outcome := OutcomeAllowed
	if !allowed {
		outcome = OutcomeDenied
	}
	l.decisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	))
	return allowed, info
}

// Status implements ratelimit.Limiter.
func (l *InstrumentedLimiter) Status(endpoint string) ratelimit.Status {
	return l.inner.Status(endpoint)
}

// Reset implements ratelimit.Limiter.
func (l *InstrumentedLimiter) Reset(endpoint string) {
	l.inner.Reset(endpoint)
	l.resets.Add(context.Background(), 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// ResetAll implements ratelimit.Limiter.
func (l *InstrumentedLimiter) ResetAll() {
	l.inner.ResetAll()
	l.resets.Add(context.Background(), 1, metric.WithAttributes(attribute.String("endpoint", allEndpoints)))
}

// Endpoints lists the buckets of the inner limiter, or nil if it cannot.
func (l *InstrumentedLimiter) Endpoints() []string {
	if lister, ok := l.inner.(endpointLister); ok {
		return lister.Endpoints()
	}
	return nil
}

// Limits returns the configured limit table of the inner limiter, or nil if
// it has none.
func (l *InstrumentedLimiter) Limits() map[string]int {
	if table, ok := l.inner.(interface{ Limits() map[string]int }); ok {
		return table.Limits()
	}
	return nil
}

// Close unregisters the gauge callback.
func (l *InstrumentedLimiter) Close() error {
	if l.reg == nil {
		return nil
	}
	return l.reg.Unregister()
}
