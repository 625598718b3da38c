package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"govukmcp/internal/models"
	"govukmcp/internal/ratelimit"
)

// ToolMetrics records a span, a latency histogram and an error counter for
// every tool call.
type ToolMetrics struct {
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

func NewToolMetrics(opts ...InstrumentOption) (*ToolMetrics, error) {
	o := newInstrumentOptions(opts)
	meter := o.meterProvider.Meter(instrumentationName + "/tools")

	duration, err := meter.Float64Histogram(
		"tool.call.duration",
		metric.WithDescription("Duration of tool calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"tool.call.errors",
		metric.WithDescription("Number of failed tool calls by error type"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &ToolMetrics{
		tracer:   o.tracerProvider.Tracer(instrumentationName + "/tools"),
		duration: duration,
		errors:   errCounter,
	}, nil
}

// Wrap instruments one tool handler. Its signature matches tools.Middleware.
func (m *ToolMetrics) Wrap(name string, next ratelimit.Operation) ratelimit.Operation {
	return func(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
		ctx, span := m.tracer.Start(ctx, "tool."+name,
			trace.WithAttributes(attribute.String("tool.name", name)),
		)
		defer span.End()

		start := time.Now()
		result, err := next(ctx, args)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			errorType := models.PayloadFromError(err).ErrorType
			status = "error"
			m.errors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", name),
				attribute.String("error_type", errorType),
			))
			span.RecordError(err)
			span.SetAttributes(attribute.String("tool.error_type", errorType))
			span.SetStatus(codes.Error, errorType)
		} else {
			span.SetStatus(codes.Ok, "")
		}

		m.duration.Record(ctx, elapsed, metric.WithAttributes(
			attribute.String("tool", name),
			attribute.String("status", status),
		))
		return result, err
	}
}
