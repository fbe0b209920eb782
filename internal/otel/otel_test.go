package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc/codes"

	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/events"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, tp
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestAttach_ExecutionAndRPCSpans(t *testing.T) {
	sr, tp := newRecorder(t)
	bus := eventbus.New()
	detach := Attach(bus, tp.Tracer("test"), WithFieldSpans())

	ctx := context.Background()
	eventbus.Publish(ctx, bus, events.ExecutionStart{ExecutionID: "e1", OperationName: "Books", OperationType: "query"})
	eventbus.Publish(ctx, bus, events.FieldFetchStart{ExecutionID: "e1", Path: "/books", ParentType: "Query", Field: "books"})

	callCtx := context.WithValue(ctx, struct{}{}, "call")
	eventbus.Publish(callCtx, bus, events.GRPCClientStart{ExecutionID: "e1", Service: "catalog.v1.Books", Method: "List", Target: "127.0.0.1:1"})
	eventbus.Publish(callCtx, bus, events.GRPCClientFinish{ExecutionID: "e1", Service: "catalog.v1.Books", Method: "List", Code: codes.Unavailable, Err: errors.New("down")})

	eventbus.Publish(ctx, bus, events.FieldFetchFinish{ExecutionID: "e1", Path: "/books", ParentType: "Query", Field: "books", Err: errors.New("down")})
	eventbus.Publish(ctx, bus, events.ExecutionFinish{ExecutionID: "e1", OperationName: "Books", OperationType: "query", Errors: []error{errors.New("down")}})

	ended := sr.Ended()
	require.Len(t, ended, 3)
	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range ended {
		byName[s.Name()] = s
	}

	exec := byName["graphql.query Books"]
	require.NotNil(t, exec)
	require.Equal(t, int64(1), attrs(exec)["graphql.error_count"].AsInt64())
	require.False(t, exec.Parent().IsValid())

	field := byName["graphql.field Query.books"]
	require.NotNil(t, field)
	require.Equal(t, exec.SpanContext().SpanID(), field.Parent().SpanID())
	require.Equal(t, "/books", attrs(field)["graphql.field.path"].AsString())
	require.Equal(t, otelcodes.Error, field.Status().Code)

	rpc := byName["grpc.client catalog.v1.Books/List"]
	require.NotNil(t, rpc)
	require.Equal(t, exec.SpanContext().SpanID(), rpc.Parent().SpanID())
	require.Equal(t, int64(codes.Unavailable), attrs(rpc)["rpc.grpc.status_code"].AsInt64())
	require.Equal(t, otelcodes.Error, rpc.Status().Code)

	detach()
	eventbus.Publish(ctx, bus, events.ExecutionStart{ExecutionID: "e2", OperationType: "query"})
	eventbus.Publish(ctx, bus, events.ExecutionFinish{ExecutionID: "e2", OperationType: "query"})
	require.Len(t, sr.Ended(), 3)
}

func TestAttach_FieldSpansOptIn(t *testing.T) {
	sr, tp := newRecorder(t)
	bus := eventbus.New()
	defer Attach(bus, tp.Tracer("test"))()

	ctx := context.Background()
	eventbus.Publish(ctx, bus, events.ExecutionStart{ExecutionID: "e1", OperationType: "mutation"})
	eventbus.Publish(ctx, bus, events.FieldFetchStart{ExecutionID: "e1", Path: "/x", ParentType: "Mutation", Field: "x"})
	eventbus.Publish(ctx, bus, events.FieldFetchFinish{ExecutionID: "e1", Path: "/x", ParentType: "Mutation", Field: "x"})
	eventbus.Publish(ctx, bus, events.ExecutionFinish{ExecutionID: "e1", OperationType: "mutation"})

	ended := sr.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "graphql.mutation", ended[0].Name())
	require.False(t, eventbus.HasSubscribers[events.FieldFetchStart](bus))
}

func TestSetup_NoEndpoint(t *testing.T) {
	bus := eventbus.New()
	shutdown, err := Setup(context.Background(), bus, "", "svc")
	require.NoError(t, err)
	require.False(t, eventbus.HasSubscribers[events.ExecutionStart](bus))
	require.NoError(t, shutdown(context.Background()))
}
