package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type instrumentOptions struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// InstrumentOption selects the providers used by the instrumented wrappers.
// The global providers installed by Setup are used otherwise.
type InstrumentOption func(*instrumentOptions)

func WithMeterProvider(mp metric.MeterProvider) InstrumentOption {
	return func(o *instrumentOptions) {
		o.meterProvider = mp
	}
}

func WithTracerProvider(tp trace.TracerProvider) InstrumentOption {
	return func(o *instrumentOptions) {
		o.tracerProvider = tp
	}
}

func newInstrumentOptions(opts []InstrumentOption) instrumentOptions {
	o := instrumentOptions{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
