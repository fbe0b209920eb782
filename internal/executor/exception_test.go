package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestSimpleExceptionHandler(t *testing.T) {
	path := RootPath().Segment("user").Segment("name")
	h := SimpleExceptionHandler{}

	t.Run("plain error", func(t *testing.T) {
		got := h.HandleException(context.Background(), &ExceptionParams{Err: errors.New("boom"), Path: path})
		require.Len(t, got, 1)
		require.Equal(t, "Exception while fetching data (/user/name) : boom", got[0].Message)
		require.Equal(t, "/user/name", pathString(got[0].Path))
		require.Equal(t, ClassDataFetching, got[0].Extensions["classification"])
		require.NotContains(t, got[0].Extensions, "code")
	})

	t.Run("grpc status", func(t *testing.T) {
		err := status.Error(codes.NotFound, "no such user")
		got := h.HandleException(context.Background(), &ExceptionParams{Err: err, Path: path})
		require.Len(t, got, 1)
		require.Equal(t, "NotFound", got[0].Extensions["code"])
		require.ErrorIs(t, got[0], err)
	})

	t.Run("graphql error passes through", func(t *testing.T) {
		err := &gqlerror.Error{Message: "custom", Extensions: map[string]any{"code": "FORBIDDEN"}}
		got := h.HandleException(context.Background(), &ExceptionParams{Err: err, Path: path})
		require.Len(t, got, 1)
		require.Equal(t, "custom", got[0].Message)
		require.Equal(t, "/user/name", pathString(got[0].Path))
		require.Equal(t, "FORBIDDEN", got[0].Extensions["code"])
	})
}

func TestExecute_CustomExceptionHandler(t *testing.T) {
	handler := ExceptionHandlerFunc(func(_ context.Context, p *ExceptionParams) []*gqlerror.Error {
		return []*gqlerror.Error{
			{Message: "first: " + p.Err.Error(), Path: p.Path.AST()},
			{Message: "second", Path: p.Path.AST()},
		}
	})
	rt := NewMockRuntime(map[string]MockResolver{"Query.a": NewMockErrorResolver(errors.New("boom"))})
	res := execute(t, rt, `type Query { a: String }`, `{ a }`, nil, WithExceptionHandler(handler))
	requireResult(t, res, map[string]any{"a": nil}, []resultError{
		{Message: "first: boom", Path: "/a"},
		{Message: "second", Path: "/a"},
	})
}
