package engine

import (
	"go.uber.org/zap"

	executor "github.com/hanpama/gqlexec/internal/executor"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	cacheSize       int
	validate        bool
	logger          *zap.Logger
	executorOptions []executor.Option
}

func defaultOptions() options {
	return options{
		cacheSize: 1024,
		validate:  true,
		logger:    zap.NewNop(),
	}
}

// WithCacheSize bounds the number of prepared documents kept. Zero disables
// the cache.
func WithCacheSize(n int) Option { return func(o *options) { o.cacheSize = n } }

// WithValidation toggles validation of documents against the schema. It has
// no effect for schemas built without an AST.
func WithValidation(enabled bool) Option { return func(o *options) { o.validate = enabled } }

// WithLogger sets the logger of the engine and its executor.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithExecutorOptions passes options to the executor. They are applied after
// the engine's own, so an executor.WithLogger here wins.
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(o *options) { o.executorOptions = append(o.executorOptions, opts...) }
}
