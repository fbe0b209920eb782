package executor

import (
	"context"
	"errors"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	async "github.com/hanpama/gqlexec/internal/async"
)

// ExceptionParams describes a failed field fetch.
type ExceptionParams struct {
	Err         error
	Path        *ResultPath
	Field       *MergedField
	StepInfo    *ExecutionStepInfo
	Environment *Environment
}

// ExceptionHandler turns a failed fetch into reportable errors. The field
// itself becomes null.
type ExceptionHandler interface {
	HandleException(ctx context.Context, p *ExceptionParams) []*gqlerror.Error
}

// ExceptionHandlerFunc adapts a function to ExceptionHandler.
type ExceptionHandlerFunc func(ctx context.Context, p *ExceptionParams) []*gqlerror.Error

func (f ExceptionHandlerFunc) HandleException(ctx context.Context, p *ExceptionParams) []*gqlerror.Error {
	return f(ctx, p)
}

// SimpleExceptionHandler reports
// "Exception while fetching data (<path>) : <message>" for ordinary errors
// and passes *gqlerror.Error values through with their path filled in.
// Errors carrying a gRPC status get extensions.code.
type SimpleExceptionHandler struct {
	Logger *zap.Logger
}

func (h SimpleExceptionHandler) HandleException(_ context.Context, p *ExceptionParams) []*gqlerror.Error {
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var panicErr *async.PanicError
	if errors.As(p.Err, &panicErr) {
		logger.Warn("resolver panicked",
			zap.Stringer("path", p.Path),
			zap.Any("panic", panicErr.Value),
			zap.ByteString("stack", panicErr.Stack),
		)
	} else {
		logger.Debug("resolver failed", zap.Stringer("path", p.Path), zap.Error(p.Err))
	}

	var locations []gqlerror.Location
	if p.Field != nil {
		locations = locationsOf(p.Field)
	}

	var g *gqlerror.Error
	if errors.As(p.Err, &g) {
		return []*gqlerror.Error{toGraphQLError(g, p.Path, p.Field)}
	}

	out := (&ExceptionWhileDataFetchingError{Path: p.Path, Err: p.Err, Locations: locations}).GraphQLError()
	if st, ok := status.FromError(p.Err); ok {
		out.Extensions["code"] = st.Code().String()
	}
	return []*gqlerror.Error{out}
}
