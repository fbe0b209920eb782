package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	"github.com/hanpama/gqlexec/internal/engine"
	"github.com/hanpama/gqlexec/internal/executor"
	"github.com/hanpama/gqlexec/internal/introspection"
	"github.com/hanpama/gqlexec/internal/schema"
	"github.com/hanpama/gqlexec/internal/server"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func cmdRun(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		c           commonFlags
		queryFile   string
		inline      string
		varsFile    string
		operation   string
		pretty      bool
		withMetrics bool
	)
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	c.register(fs)
	fs.StringVar(&queryFile, "query", "", "File with the GraphQL document")
	fs.StringVar(&inline, "e", "", "GraphQL document text")
	fs.StringVar(&varsFile, "variables", "", "YAML or JSON variables")
	fs.StringVar(&operation, "operation", "", "Operation to execute")
	fs.BoolVar(&pretty, "pretty", false, "Indent JSON output")
	fs.BoolVar(&withMetrics, "metrics", false, "Print Prometheus metrics to stderr")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, runUsage)
		return err
	}

	query, err := readQuery(queryFile, inline)
	if err != nil {
		fmt.Fprint(stderr, runUsage)
		return err
	}
	var variables map[string]any
	if varsFile != "" {
		v, err := loadYAML(varsFile)
		if err != nil {
			return fmt.Errorf("load variables: %w", err)
		}
		var ok bool
		if variables, ok = v.(map[string]any); !ok && v != nil {
			return fmt.Errorf("load variables: %s must hold an object", varsFile)
		}
	}

	a, err := setup(ctx, &c, withMetrics)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	req := engine.Request{Query: query, OperationName: operation, Variables: variables, Root: a.root}
	enc := json.NewEncoder(stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if isSubscription(a.engine, query, operation) {
		err = runSubscription(ctx, a.engine, req, enc)
	} else {
		err = runOperation(ctx, a.engine, req, enc)
	}
	if err != nil {
		return err
	}
	if a.metrics != nil {
		return writeMetrics(a, stderr)
	}
	return nil
}

func readQuery(file, inline string) (string, error) {
	switch {
	case file != "" && inline != "":
		return "", fmt.Errorf("-query and -e are mutually exclusive")
	case inline != "":
		return inline, nil
	case file != "":
		b, err := os.ReadFile(file)
		return string(b), err
	}
	return "", fmt.Errorf("-query or -e is required")
}

func isSubscription(e *engine.Engine, query, operation string) bool {
	doc, errs := e.Prepare(query)
	if len(errs) > 0 {
		return false
	}
	var op *ast.OperationDefinition
	if operation == "" && len(doc.Operations) == 1 {
		op = doc.Operations[0]
	} else {
		op = doc.Operations.ForName(operation)
	}
	return op != nil && op.Operation == ast.Subscription
}

// runOperation prints the result followed by one line per deferred payload.
func runOperation(ctx context.Context, e *engine.Engine, req engine.Request, enc *jsoniter.Encoder) error {
	res := e.Execute(ctx, req)
	if err := enc.Encode(res); err != nil {
		return err
	}
	for p := range res.Deferred(ctx) {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

// runSubscription prints one result per event until the source ends.
func runSubscription(ctx context.Context, e *engine.Engine, req engine.Request, enc *jsoniter.Encoder) error {
	events, err := e.Subscribe(ctx, req)
	if err != nil {
		var list gqlerror.List
		if errors.As(err, &list) {
			return enc.Encode(&executor.ExecutionResult{Errors: list})
		}
		return err
	}
	for res := range events {
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return nil
}

func writeMetrics(a *app, w io.Writer) error {
	families, err := a.metrics.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func cmdServe(ctx context.Context, args []string, stderr io.Writer) error {
	var (
		c               commonFlags
		addr            = ":8080"
		pretty          bool
		timeout         = 10 * time.Second
		metadataHeaders stringListFlag
		corsOrigins     stringListFlag
		withMetrics     bool
	)
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	c.register(fs)
	fs.StringVar(&addr, "addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "pretty", false, "Indent JSON responses")
	fs.DurationVar(&timeout, "timeout", timeout, "Per-request timeout")
	fs.Var(&metadataHeaders, "metadata-header", "Forward HTTP header to gRPC metadata")
	fs.Var(&corsOrigins, "cors", "Allowed CORS origin")
	fs.BoolVar(&withMetrics, "metrics", false, "Expose Prometheus metrics on /metrics")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}

	a, err := setup(ctx, &c, withMetrics)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	opts := []server.Option{server.WithTimeout(timeout)}
	if pretty {
		opts = append(opts, server.WithPretty())
	}
	if len(metadataHeaders) > 0 {
		opts = append(opts, server.WithMetadataHeaders(metadataHeaders...))
	}
	if len(corsOrigins) > 0 {
		opts = append(opts, server.WithCORS(corsOrigins...))
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newServeMux(a, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	a.logger.Info("GraphQL server listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func newServeMux(a *app, opts ...server.Option) *http.ServeMux {
	mux := http.NewServeMux()
	opts = append([]server.Option{server.WithLogger(a.logger)}, opts...)
	mux.Handle("/graphql", server.New(a.engine, opts...))
	if a.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	}
	return mux
}

func cmdPrintSchema(args []string, stdout, stderr io.Writer) error {
	var (
		files         stringListFlag
		introspective bool
	)
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.Var(&files, "schema", "GraphQL SDL file")
	fs.BoolVar(&introspective, "introspection", false, "Include the introspection types")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, printSchemaUsage)
		return err
	}
	sch, err := loadSchema(files)
	if err != nil {
		fmt.Fprint(stderr, printSchemaUsage)
		return err
	}
	if introspective {
		sch = introspection.Wrap(nil, sch).Schema
	}
	_, err = fmt.Fprint(stdout, schema.Render(sch))
	return err
}
