// Package tracing provides OpenTelemetry tracing for command execution
// and saga event handling.
//
// Basic usage:
//
//	tp, shutdown, err := tracing.NewStdoutProvider("orderflow")
//	otel.SetTracerProvider(tp)
//	defer shutdown(context.Background())
//
//	tracer := tracing.NewTracer(tracing.WithServiceName("orderflow"))
//	bus.Use(tracing.CommandMiddleware(tracer))
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	orderflow "github.com/orderflow-io/orderflow"
)

const (
	// TracerName identifies spans created by this package.
	TracerName = "github.com/orderflow-io/orderflow"

	// DefaultServiceName is the default service name for spans.
	DefaultServiceName = "orderflow"
)

// Tracer wraps an OpenTelemetry tracer.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithTracerProvider sets a custom TracerProvider.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(t *Tracer) {
		t.tracer = tp.Tracer(TracerName)
	}
}

// WithServiceName sets the service name for spans.
func WithServiceName(name string) TracerOption {
	return func(t *Tracer) {
		t.serviceName = name
	}
}

// NewTracer creates a Tracer using the global TracerProvider.
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		tracer:      otel.Tracer(TracerName),
		serviceName: DefaultServiceName,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// NewStdoutProvider creates a TracerProvider exporting pretty-printed
// spans to stdout, along with a shutdown function. Intended for local
// development.
func NewStdoutProvider(serviceName string) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: failed to create stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	return tp, tp.Shutdown, nil
}

// CommandMiddleware creates middleware that traces command execution.
func CommandMiddleware(tracer *Tracer) orderflow.Middleware {
	return func(next orderflow.MiddlewareFunc) orderflow.MiddlewareFunc {
		return func(ctx context.Context, cmd orderflow.Command) (orderflow.CommandResult, error) {
			spanName := fmt.Sprintf("command.%s", cmd.CommandType())

			ctx, span := tracer.StartSpan(ctx, spanName,
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			attrs := []attribute.KeyValue{
				attribute.String("orderflow.service", tracer.serviceName),
				attribute.String("orderflow.command.type", cmd.CommandType()),
			}
			if aggCmd, ok := cmd.(orderflow.AggregateCommand); ok {
				attrs = append(attrs, attribute.String("orderflow.command.aggregate_id", aggCmd.AggregateID()))
			}
			span.SetAttributes(attrs...)

			if correlationID := orderflow.CorrelationIDFromContext(ctx); correlationID != "" {
				span.SetAttributes(attribute.String("orderflow.correlation_id", correlationID))
			}

			result, err := next(ctx, cmd)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else if result.IsError() {
				span.RecordError(result.Error)
				span.SetStatus(codes.Error, result.Error.Error())
			} else {
				span.SetStatus(codes.Ok, "")
				span.SetAttributes(
					attribute.String("orderflow.result.aggregate_id", result.AggregateID),
					attribute.Int64("orderflow.result.version", result.Version),
				)
			}

			return result, err
		}
	}
}

// EventHandler is the relay handler contract this package can wrap.
type EventHandler interface {
	HandleEvent(ctx context.Context, event interface{}) error
}

// HandlerMiddleware wraps an event handler so each handled event gets
// its own span.
type HandlerMiddleware struct {
	handler EventHandler
	tracer  *Tracer
}

// WrapHandler wraps an event handler with tracing.
func WrapHandler(handler EventHandler, tracer *Tracer) *HandlerMiddleware {
	return &HandlerMiddleware{
		handler: handler,
		tracer:  tracer,
	}
}

// HandleEvent handles an event inside a span.
func (m *HandlerMiddleware) HandleEvent(ctx context.Context, event interface{}) error {
	eventType := orderflow.GetEventType(event)

	ctx, span := m.tracer.StartSpan(ctx, fmt.Sprintf("saga.handle.%s", eventType),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("orderflow.service", m.tracer.serviceName),
		attribute.String("orderflow.event.type", eventType),
	)

	err := m.handler.HandleEvent(ctx, event)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SetError records an error on the current span.
func SetError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
