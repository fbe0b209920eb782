package grpctp

import (
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/hanpama/gqlexec/internal/eventbus"
)

// Options configures the gRPC transport behavior.
//
// Defaults:
//   - MaxConnsPerEndpoint: 2
//   - RPCTimeout:          3s (used only if the incoming context has no deadline)
//   - DialOptions:         insecure credentials, default backoff
//
// Provider must be set; calls fail without one.
type Options struct {
	Provider EndpointProvider

	MaxConnsPerEndpoint int
	RPCTimeout          time.Duration

	DialOptions []grpc.DialOption

	// Bus receives GRPCClientStart/GRPCClientFinish events. Nil disables them.
	Bus    *eventbus.Bus
	Logger *zap.Logger
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		MaxConnsPerEndpoint: 2,
		RPCTimeout:          3 * time.Second,
		Logger:              zap.NewNop(),
	}
}

func WithProvider(p EndpointProvider) Option { return func(o *Options) { o.Provider = p } }
func WithMaxConnsPerEndpoint(n int) Option   { return func(o *Options) { o.MaxConnsPerEndpoint = n } }
func WithRPCTimeout(d time.Duration) Option  { return func(o *Options) { o.RPCTimeout = d } }
func WithEventBus(b *eventbus.Bus) Option    { return func(o *Options) { o.Bus = b } }
func WithLogger(l *zap.Logger) Option        { return func(o *Options) { o.Logger = l } }
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = opts }
}
