// Package otel turns executor and transport events into OpenTelemetry spans.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/events"
)

const instrumentationName = "github.com/hanpama/gqlexec"

// Setup exports spans for the events published on bus to an OTLP/gRPC
// collector at endpoint. With an empty endpoint it does nothing. The
// returned function flushes and stops the exporter.
func Setup(ctx context.Context, bus *eventbus.Bus, endpoint, service string, opts ...Option) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	detach := Attach(bus, tp.Tracer(instrumentationName), opts...)
	return func(ctx context.Context) error {
		detach()
		return tp.Shutdown(ctx)
	}, nil
}

type options struct {
	fieldSpans bool
}

type Option func(*options)

// WithFieldSpans records a span per resolved field. Off by default.
func WithFieldSpans() Option { return func(o *options) { o.fieldSpans = true } }

// Attach subscribes span-producing handlers to bus and returns a function
// that unsubscribes them. Execution spans are the parents of field and gRPC
// client spans of the same execution.
func Attach(bus *eventbus.Bus, tracer trace.Tracer, opts ...Option) (detach func()) {
	o := &options{}
	for _, f := range opts {
		f(o)
	}
	s := &subscriber{tracer: tracer}
	unsubs := []func(){
		eventbus.Subscribe(bus, s.executionStart),
		eventbus.Subscribe(bus, s.executionFinish),
		eventbus.Subscribe(bus, s.grpcStart),
		eventbus.Subscribe(bus, s.grpcFinish),
	}
	if o.fieldSpans {
		unsubs = append(unsubs,
			eventbus.Subscribe(bus, s.fieldStart),
			eventbus.Subscribe(bus, s.fieldFinish),
		)
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

type subscriber struct {
	tracer     trace.Tracer
	execSpans  sync.Map // execution id -> trace.Span
	fieldSpans sync.Map // execution id + path -> trace.Span
	grpcSpans  sync.Map // call context -> trace.Span
}

// parent returns ctx carrying the span of execution id, if one is open.
func (s *subscriber) parent(ctx context.Context, id string) context.Context {
	if v, ok := s.execSpans.Load(id); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func (s *subscriber) executionStart(ctx context.Context, e events.ExecutionStart) {
	name := "graphql." + e.OperationType
	if e.OperationName != "" {
		name += " " + e.OperationName
	}
	_, span := s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("graphql.operation.name", e.OperationName),
		attribute.String("graphql.operation.type", e.OperationType),
		attribute.String("graphql.execution.id", e.ExecutionID),
	))
	s.execSpans.Store(e.ExecutionID, span)
}

func (s *subscriber) executionFinish(_ context.Context, e events.ExecutionFinish) {
	v, ok := s.execSpans.LoadAndDelete(e.ExecutionID)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(
		attribute.Int("graphql.error_count", len(e.Errors)),
		attribute.Bool("graphql.data_is_null", e.DataIsNull),
	)
	for _, err := range e.Errors {
		span.RecordError(err)
	}
	if e.DataIsNull && len(e.Errors) > 0 {
		span.SetStatus(codes.Error, e.Errors[0].Error())
	}
	span.End()
}

func (s *subscriber) fieldStart(ctx context.Context, e events.FieldFetchStart) {
	_, span := s.tracer.Start(s.parent(ctx, e.ExecutionID), "graphql.field "+e.ParentType+"."+e.Field,
		trace.WithAttributes(
			attribute.String("graphql.field.path", e.Path),
			attribute.String("graphql.field.parent_type", e.ParentType),
			attribute.String("graphql.field.name", e.Field),
		))
	s.fieldSpans.Store(e.ExecutionID+e.Path, span)
}

func (s *subscriber) fieldFinish(_ context.Context, e events.FieldFetchFinish) {
	v, ok := s.fieldSpans.LoadAndDelete(e.ExecutionID + e.Path)
	if !ok {
		return
	}
	span := v.(trace.Span)
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	}
	span.End()
}

func (s *subscriber) grpcStart(ctx context.Context, e events.GRPCClientStart) {
	_, span := s.tracer.Start(s.parent(ctx, e.ExecutionID), "grpc.client "+e.Service+"/"+e.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.RPCSystemGRPC,
			semconv.RPCServiceKey.String(e.Service),
			semconv.RPCMethodKey.String(e.Method),
			attribute.String("net.peer.name", e.Target),
		))
	s.grpcSpans.Store(ctx, span)
}

func (s *subscriber) grpcFinish(ctx context.Context, e events.GRPCClientFinish) {
	v, ok := s.grpcSpans.LoadAndDelete(ctx)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(semconv.RPCGRPCStatusCodeKey.Int(int(e.Code)))
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Code.String())
	}
	span.End()
}
