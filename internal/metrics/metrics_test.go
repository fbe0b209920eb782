package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/events"
)

func TestRegister(t *testing.T) {
	bus := eventbus.New()
	reg := prometheus.NewRegistry()
	c, detach, err := Register(bus, reg)
	require.NoError(t, err)

	ctx := context.Background()
	boom := errors.New("boom")
	eventbus.Publish(ctx, bus, events.ExecutionFinish{OperationType: "query", Duration: time.Millisecond})
	eventbus.Publish(ctx, bus, events.ExecutionFinish{OperationType: "query", Errors: []error{boom}})
	eventbus.Publish(ctx, bus, events.ExecutionFinish{OperationType: "mutation", Errors: []error{boom}, DataIsNull: true})
	eventbus.Publish(ctx, bus, events.FieldFetchFinish{ParentType: "Query", Field: "book", Err: boom})
	eventbus.Publish(ctx, bus, events.FieldFetchFinish{ParentType: "Query", Field: "book"})
	eventbus.Publish(ctx, bus, events.GRPCClientFinish{Service: "catalog.v1.Books", Method: "Get", Code: codes.OK})
	eventbus.Publish(ctx, bus, events.GRPCClientFinish{Service: "catalog.v1.Books", Method: "Get", Code: codes.NotFound})

	require.Equal(t, 1.0, testutil.ToFloat64(c.Executions.WithLabelValues("query", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Executions.WithLabelValues("query", "partial")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Executions.WithLabelValues("mutation", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.FieldErrors.WithLabelValues("Query", "book")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.GRPCCalls.WithLabelValues("catalog.v1.Books", "Get", "NotFound")))
	require.Equal(t, 2, testutil.CollectAndCount(c.ExecutionDuration))
	require.Equal(t, 1, testutil.CollectAndCount(c.FieldDuration))

	detach()
	eventbus.Publish(ctx, bus, events.ExecutionFinish{OperationType: "query"})
	require.Equal(t, 1.0, testutil.ToFloat64(c.Executions.WithLabelValues("query", "ok")))
}

func TestRegister_Duplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, _, err := Register(eventbus.New(), reg)
	require.NoError(t, err)
	_, _, err = Register(eventbus.New(), reg)
	require.Error(t, err)
}
