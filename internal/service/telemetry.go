package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rongwang/library-server/internal/service"

type telemetry struct {
	tracer  trace.Tracer
	decided metric.Int64Counter
}

func newTelemetry() *telemetry {
	decided, err := otel.Meter(instrumentationName).Int64Counter(
		"library.requests.decided",
		metric.WithDescription("Admin decisions applied to book requests"),
	)
	if err != nil {
		otel.Handle(err)
		decided = noop.Int64Counter{}
	}

	return &telemetry{
		tracer:  otel.Tracer(instrumentationName),
		decided: decided,
	}
}

func (t *telemetry) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// end closes span and marks it failed when err is set
func (t *telemetry) end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *telemetry) recordDecision(ctx context.Context, d *Decision) {
	t.decided.Add(ctx, 1, metric.WithAttributes(
		attribute.String("request_type", string(d.RequestType)),
		attribute.String("status", string(d.Status)),
	))
}
