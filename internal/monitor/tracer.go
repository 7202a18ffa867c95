package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "simsweep"

// Tracer wraps OpenTelemetry tracing for the campaign engine.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer using the global TracerProvider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartSpan creates a new span and returns the updated context.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("campaign.%s", name),
		trace.WithAttributes(attrs...),
	)
	return ctx, span
}

// SpanFromContext returns the current span from the context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// Common attribute keys for campaign tracing.
var (
	AttrRunID       = attribute.Key("campaign.run.id")
	AttrCombination = attribute.Key("campaign.run.combination")
	AttrSeed        = attribute.Key("campaign.run.seed")
	AttrExitCode    = attribute.Key("campaign.run.exit_code")
	AttrBatchTotal  = attribute.Key("campaign.batch.total")
)
