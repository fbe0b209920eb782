package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
)

const rootUsage = `gqlexec - concurrent GraphQL execution engine

USAGE:
  gqlexec <command> [flags]

COMMANDS:
  run            Execute one operation against a schema and fixture data
  serve          Serve the schema over HTTP
  print-schema   Print the normalized SDL of a schema
  help           Show help for any command
`

const commonUsage = `  -schema <file>                      GraphQL SDL file. Repeatable; at least one required
  -data <file>                        YAML or JSON fixture used as the root value
  -introspection <bool>               Serve __schema and __type (default: true)
  -max-concurrency N                  Max resolvers running at once per operation (default: unbounded)
  -descriptors <file>                 Binary FileDescriptorSet with the services used by -rpc
  -rpc <Type.field=pkg.Svc/Method[?dst=src&skipNull&response=name]>
                                      Resolve a field with a unary gRPC call. Repeatable
  -transport.backend <Svc=host:port>  Map gRPC service to endpoint. Repeatable; use * for a default
  -transport.max-conns-per-endpoint N Max conns per endpoint (default: 2)
  -transport.rpc-timeout <duration>   RPC timeout, e.g. 3s (default: 3s)
  -otel.endpoint <addr>               OTLP/gRPC collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: gqlexec)
  -log.dev                            Human-readable debug logging
`

const runUsage = `run FLAGS:
  -query <file>                       File with the GraphQL document
  -e <document>                       GraphQL document text (instead of -query)
  -variables <file>                   YAML or JSON variables
  -operation <name>                   Operation to execute
  -pretty                             Indent JSON output
  -metrics                            Print Prometheus metrics to stderr afterwards
` + commonUsage

const serveUsage = `serve FLAGS:
  -addr <addr>                        HTTP listen address (default: :8080)
  -pretty                             Indent JSON responses
  -timeout <duration>                 Per-request timeout (default: 10s)
  -metadata-header <name>             Forward HTTP header to gRPC metadata. Repeatable
  -cors <origin>                      Allowed CORS origin. Repeatable
  -metrics                            Expose Prometheus metrics on /metrics
` + commonUsage

const printSchemaUsage = `print-schema FLAGS:
  -schema <file>                      GraphQL SDL file. Repeatable; at least one required
  -introspection                      Include the introspection types
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("gqlexec", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer))
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd, cmdArgs := remaining[0], remaining[1:]
	switch cmd {
	case "run":
		return cmdRun(ctx, cmdArgs, stdout, stderr)
	case "serve":
		return cmdServe(ctx, cmdArgs, stderr)
	case "print-schema":
		return cmdPrintSchema(cmdArgs, stdout, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "run":
		fmt.Fprint(stdout, runUsage)
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "print-schema":
		fmt.Fprint(stdout, printSchemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}
