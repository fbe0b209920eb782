package executor

import (
	"go.uber.org/zap"

	"github.com/hanpama/gqlexec/internal/eventbus"
)

// Option configures an Executor.
type Option func(*options)

type options struct {
	logger               *zap.Logger
	bus                  *eventbus.Bus
	exceptionHandler     ExceptionHandler
	defaultResolver      FieldResolver
	queryStrategy        ExecutionStrategy
	mutationStrategy     ExecutionStrategy
	subscriptionStrategy ExecutionStrategy
	maxConcurrentFetches int64
}

func defaultOptions() options {
	return options{
		logger:               zap.NewNop(),
		defaultResolver:      PropertyResolver{},
		queryStrategy:        ConcurrentStrategy{},
		mutationStrategy:     SerialStrategy{},
		subscriptionStrategy: ConcurrentStrategy{},
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEventBus publishes execution and field events on b.
func WithEventBus(b *eventbus.Bus) Option { return func(o *options) { o.bus = b } }

// WithExceptionHandler replaces the SimpleExceptionHandler.
func WithExceptionHandler(h ExceptionHandler) Option {
	return func(o *options) { o.exceptionHandler = h }
}

// WithDefaultFieldResolver replaces PropertyResolver for fields the runtime
// has no resolver for.
func WithDefaultFieldResolver(r FieldResolver) Option {
	return func(o *options) {
		if r != nil {
			o.defaultResolver = r
		}
	}
}

// WithQueryStrategy sets the strategy for query operations and for every
// selection set below the root.
func WithQueryStrategy(s ExecutionStrategy) Option {
	return func(o *options) { o.queryStrategy = s }
}

// WithMutationStrategy sets the strategy for the root fields of mutations.
func WithMutationStrategy(s ExecutionStrategy) Option {
	return func(o *options) { o.mutationStrategy = s }
}

// WithSubscriptionStrategy sets the strategy for subscription events.
func WithSubscriptionStrategy(s ExecutionStrategy) Option {
	return func(o *options) { o.subscriptionStrategy = s }
}

// WithMaxConcurrentFetches bounds the number of resolvers running at once
// within one execution. Zero or less means unbounded.
func WithMaxConcurrentFetches(n int64) Option {
	return func(o *options) { o.maxConcurrentFetches = n }
}
