package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/hanpama/gqlexec/internal/engine"
	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/executor"
	"github.com/hanpama/gqlexec/internal/grpctp"
	"github.com/hanpama/gqlexec/internal/introspection"
	"github.com/hanpama/gqlexec/internal/metrics"
	"github.com/hanpama/gqlexec/internal/otel"
	"github.com/hanpama/gqlexec/internal/schema"
	"github.com/hanpama/gqlexec/internal/wiring"
)

type backendFlag struct {
	m map[string][]string
}

func (b *backendFlag) String() string { return "" }

func (b *backendFlag) Set(v string) error {
	svc, ep, ok := strings.Cut(v, "=")
	svc, ep = strings.TrimSpace(svc), strings.TrimSpace(ep)
	if !ok || svc == "" || ep == "" {
		return fmt.Errorf("invalid backend %q", v)
	}
	if b.m == nil {
		b.m = map[string][]string{}
	}
	b.m[svc] = append(b.m[svc], ep)
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// commonFlags are shared by run and serve.
type commonFlags struct {
	schemaFiles    stringListFlag
	dataFile       string
	introspection  bool
	maxConcurrency int64
	descriptors    string
	rpcs           stringListFlag
	backends       backendFlag
	maxConns       int
	rpcTimeout     time.Duration
	otelEndpoint   string
	otelService    string
	logDev         bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	c.introspection = true
	c.maxConns = 2
	c.rpcTimeout = 3 * time.Second
	c.otelService = "gqlexec"

	fs.Var(&c.schemaFiles, "schema", "GraphQL SDL file")
	fs.StringVar(&c.dataFile, "data", "", "YAML or JSON fixture used as the root value")
	fs.BoolVar(&c.introspection, "introspection", c.introspection, "Serve __schema and __type")
	fs.Int64Var(&c.maxConcurrency, "max-concurrency", 0, "Max resolvers running at once per operation")
	fs.StringVar(&c.descriptors, "descriptors", "", "Binary FileDescriptorSet")
	fs.Var(&c.rpcs, "rpc", "Resolve a field with a unary gRPC call")
	fs.Var(&c.backends, "transport.backend", "Map gRPC service to endpoint")
	fs.IntVar(&c.maxConns, "transport.max-conns-per-endpoint", c.maxConns, "Max conns per endpoint")
	fs.DurationVar(&c.rpcTimeout, "transport.rpc-timeout", c.rpcTimeout, "RPC timeout")
	fs.StringVar(&c.otelEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
	fs.StringVar(&c.otelService, "otel.service", c.otelService, "OpenTelemetry service name")
	fs.BoolVar(&c.logDev, "log.dev", false, "Human-readable debug logging")
}

// app is everything built from the common flags.
type app struct {
	engine  *engine.Engine
	schema  *schema.Schema
	root    any
	bus     *eventbus.Bus
	metrics *prometheus.Registry // nil unless requested
	logger  *zap.Logger
	closers []func(context.Context) error
}

func (a *app) Close(ctx context.Context) error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i](ctx))
	}
	return err
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}

func setup(ctx context.Context, c *commonFlags, withMetrics bool) (_ *app, err error) {
	logger, err := newLogger(c.logDev)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{bus: eventbus.New(), logger: logger}
	a.closers = append(a.closers, func(context.Context) error { _ = logger.Sync(); return nil })
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	sch, err := loadSchema(c.schemaFiles)
	if err != nil {
		return nil, err
	}
	if c.dataFile != "" {
		if a.root, err = loadYAML(c.dataFile); err != nil {
			return nil, fmt.Errorf("load data: %w", err)
		}
	}

	reg := wiring.New()
	bindFixtureSubscriptions(reg, sch)
	if len(c.rpcs) > 0 {
		tp, err := c.newTransport(a)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return tp.Close() })
		if err := bindRPCs(reg, c.descriptors, c.rpcs, tp); err != nil {
			return nil, err
		}
	}
	if err := reg.Apply(sch); err != nil {
		return nil, fmt.Errorf("wiring: %w", err)
	}
	logger.Debug("fields served by the default resolver", zap.Strings("fields", reg.Unresolved(sch)))

	var rt executor.Runtime = reg
	if c.introspection {
		w := introspection.Wrap(rt, sch)
		rt, sch = w.Runtime, w.Schema
	}
	a.schema = sch

	shutdown, err := otel.Setup(ctx, a.bus, c.otelEndpoint, c.otelService)
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	if withMetrics {
		a.metrics = prometheus.NewRegistry()
		if _, _, err := metrics.Register(a.bus, a.metrics); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	a.engine, err = engine.New(sch, rt,
		engine.WithLogger(logger),
		engine.WithExecutorOptions(
			executor.WithEventBus(a.bus),
			executor.WithMaxConcurrentFetches(c.maxConcurrency),
		),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (c *commonFlags) newTransport(a *app) (*grpctp.Transport, error) {
	if len(c.backends.m) == 0 {
		return nil, fmt.Errorf("-rpc requires at least one -transport.backend")
	}
	opts := []grpctp.Option{
		grpctp.WithProvider(grpctp.NewStaticEndpoints(c.backends.m)),
		grpctp.WithMaxConnsPerEndpoint(c.maxConns),
		grpctp.WithEventBus(a.bus),
		grpctp.WithLogger(a.logger),
	}
	if c.rpcTimeout > 0 {
		opts = append(opts, grpctp.WithRPCTimeout(c.rpcTimeout))
	}
	return grpctp.New(opts...), nil
}

func loadSchema(files []string) (*schema.Schema, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("-schema is required")
	}
	sources := make([]*ast.Source, 0, len(files))
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		sources = append(sources, &ast.Source{Name: f, Input: string(b)})
	}
	src, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return schema.BuildFromAST(src)
}

// loadYAML reads a YAML or JSON document into plain Go values.
func loadYAML(path string) (any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// bindFixtureSubscriptions serves every subscription field from a list in
// the root value: each element becomes one event.
func bindFixtureSubscriptions(reg *wiring.Registry, sch *schema.Schema) {
	sub := sch.GetSubscriptionType()
	if sub == nil {
		return
	}
	for _, f := range sub.Fields {
		reg.FieldFunc(sub.Name, f.Name, func(_ context.Context, env *executor.Environment) (any, error) {
			v, err := executor.Property(env.Source, env.FieldDefinition.Name)
			if err != nil {
				return nil, err
			}
			items, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("fixture for subscription field %s must be a list, got %T", env.FieldDefinition.Name, v)
			}
			ch := make(chan any, len(items))
			for _, item := range items {
				ch <- item
			}
			close(ch)
			return ch, nil
		})
	}
}
