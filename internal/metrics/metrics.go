// Package metrics exports Prometheus metrics for executions, field fetches
// and gRPC client calls observed on an event bus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/events"
)

const namespace = "gqlexec"

// Collector holds the metric vectors. Outcomes are "ok", "partial" (data
// with errors) and "error" (no data).
type Collector struct {
	Executions        *prometheus.CounterVec   // operation_type, outcome
	ExecutionDuration *prometheus.HistogramVec // operation_type
	FieldErrors       *prometheus.CounterVec   // parent_type, field
	FieldDuration     *prometheus.HistogramVec // parent_type, field
	GRPCCalls         *prometheus.CounterVec   // service, method, code
	GRPCDuration      *prometheus.HistogramVec // service, method
}

func newCollector() *Collector {
	return &Collector{
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "GraphQL operations executed.",
		}, []string{"operation_type", "outcome"}),
		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Time to execute a GraphQL operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation_type"}),
		FieldErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_errors_total",
			Help:      "Field resolvers that returned an error.",
		}, []string{"parent_type", "field"}),
		FieldDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "field_fetch_duration_seconds",
			Help:      "Time spent in field resolvers.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"parent_type", "field"}),
		GRPCCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_client_calls_total",
			Help:      "gRPC calls made by RPC-backed resolvers.",
		}, []string{"service", "method", "code"}),
		GRPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_client_duration_seconds",
			Help:      "Latency of gRPC calls made by RPC-backed resolvers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method"}),
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.Executions, c.ExecutionDuration,
		c.FieldErrors, c.FieldDuration,
		c.GRPCCalls, c.GRPCDuration,
	}
}

// Register creates the metrics, registers them with reg and subscribes them
// to bus. detach unsubscribes from bus; the metrics stay registered.
func Register(bus *eventbus.Bus, reg prometheus.Registerer) (c *Collector, detach func(), err error) {
	c = newCollector()
	for _, col := range c.collectors() {
		err = multierr.Append(err, reg.Register(col))
	}
	if err != nil {
		return nil, nil, err
	}
	unsubs := []func(){
		eventbus.Subscribe(bus, c.onExecutionFinish),
		eventbus.Subscribe(bus, c.onFieldFetchFinish),
		eventbus.Subscribe(bus, c.onGRPCClientFinish),
	}
	return c, func() {
		for _, u := range unsubs {
			u()
		}
	}, nil
}

func outcome(e events.ExecutionFinish) string {
	switch {
	case len(e.Errors) == 0:
		return "ok"
	case e.DataIsNull:
		return "error"
	}
	return "partial"
}

func (c *Collector) onExecutionFinish(_ context.Context, e events.ExecutionFinish) {
	c.Executions.WithLabelValues(e.OperationType, outcome(e)).Inc()
	c.ExecutionDuration.WithLabelValues(e.OperationType).Observe(e.Duration.Seconds())
}

func (c *Collector) onFieldFetchFinish(_ context.Context, e events.FieldFetchFinish) {
	c.FieldDuration.WithLabelValues(e.ParentType, e.Field).Observe(e.Duration.Seconds())
	if e.Err != nil {
		c.FieldErrors.WithLabelValues(e.ParentType, e.Field).Inc()
	}
}

func (c *Collector) onGRPCClientFinish(_ context.Context, e events.GRPCClientFinish) {
	c.GRPCCalls.WithLabelValues(e.Service, e.Method, e.Code.String()).Inc()
	c.GRPCDuration.WithLabelValues(e.Service, e.Method).Observe(e.Duration.Seconds())
}
