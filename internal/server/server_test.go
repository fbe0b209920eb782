package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	engine "github.com/hanpama/gqlexec/internal/engine"
	executor "github.com/hanpama/gqlexec/internal/executor"
	reqid "github.com/hanpama/gqlexec/internal/reqid"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

func newTestHandler(t *testing.T, rt executor.Runtime, opts ...Option) *Handler {
	t.Helper()
	sch, err := schema.BuildFromSDL(`type Query { hello(name: String): String, slow: String }`)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	e, err := engine.New(sch, rt)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return New(e, opts...)
}

func postJSON(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestForwardedHeaders(t *testing.T) {
	rt := executor.NewMockRuntime(nil)
	var captured metadata.MD
	rt.SetResolver("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		captured, _ = metadata.FromOutgoingContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt, WithMetadataHeaders("X-Test"))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test", "abc")
	req.Header.Set("X-Other", "nope")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"abc"}, captured.Get("x-test"))
	require.Empty(t, captured.Get("x-other"))
}

func TestForwardedHeadersDefaultEmpty(t *testing.T) {
	rt := executor.NewMockRuntime(nil)
	var captured metadata.MD
	rt.SetResolver("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		captured, _ = metadata.FromOutgoingContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt)

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("X-Test", "abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, captured)
}

func TestCORSAndPreflight(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
	h := newTestHandler(t, rt, WithCORS("*"))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	require.Equal(t, http.StatusNoContent, pw.Code)
	require.Equal(t, "*", pw.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "X-Test", pw.Header().Get("Access-Control-Allow-Headers"))

	only := newTestHandler(t, rt, WithCORS("http://a.test"))
	req = httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Origin", "http://b.test")
	w = httptest.NewRecorder()
	only.ServeHTTP(w, req)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestErrors(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
	h := newTestHandler(t, rt, WithMaxBodyBytes(32))

	tests := []struct {
		name   string
		method string
		ct     string
		body   string
		status int
		want   string
	}{
		{"too large", "POST", "application/json", `{"query":"{ hello hello hello hello }"}`, http.StatusRequestEntityTooLarge, `{"data":null,"errors":[{"message":"body too large"}]}`},
		{"bad json", "POST", "application/json", `{"query":`, http.StatusBadRequest, `{"data":null,"errors":[{"message":"invalid JSON"}]}`},
		{"empty batch", "POST", "application/json", `[]`, http.StatusBadRequest, `{"data":null,"errors":[{"message":"empty batch"}]}`},
		{"missing query", "POST", "application/json", `{}`, http.StatusBadRequest, `{"data":null,"errors":[{"message":"missing 'query'"}]}`},
		{"content type", "POST", "text/plain", `{ hello }`, http.StatusUnsupportedMediaType, `{"data":null,"errors":[{"message":"unsupported Content-Type"}]}`},
		{"method", "PUT", "", ``, http.StatusMethodNotAllowed, `{"data":null,"errors":[{"message":"method not allowed"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", bytes.NewBufferString(tt.body))
			if tt.ct != "" {
				req.Header.Set("Content-Type", tt.ct)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			require.Equal(t, tt.status, w.Code)
			require.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestGetAndBatch(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": func(_ context.Context, _ any, args map[string]any) (any, error) {
			if n, ok := args["name"].(string); ok {
				return "hello " + n, nil
			}
			return "hello", nil
		},
	})
	h := newTestHandler(t, rt)

	q := url.Values{}
	q.Set("query", `query($n: String) { hello(name: $n) }`)
	q.Set("variables", `{"n":"get"}`)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"data":{"hello":"hello get"}}`, w.Body.String())

	w = postJSON(h, `[{"query":"{ hello }"},{"query":"{ a: hello(name: \"b\") }"},{"query":"{ nope }"}]`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[
		{"data":{"hello":"hello"}},
		{"data":{"a":"hello b"}},
		{"data":null,"errors":[{"message":"Cannot query field \"nope\" on type \"Query\".","locations":[{"line":1,"column":3}],"extensions":{"classification":"ValidationError"}}]}
	]`, w.Body.String())
}

func TestExecutionIDInContext(t *testing.T) {
	rt := executor.NewMockRuntime(nil)
	var id string
	rt.SetResolver("Query", "hello", func(ctx context.Context, _ any, _ map[string]any) (any, error) {
		id, _ = reqid.FromContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt)
	w := postJSON(h, `{"query":"{ hello }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, id)
}

func TestDeferredPayloadsInlined(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
		"Query.slow":  executor.NewMockValueResolver("later"),
	})
	sch, err := schema.BuildFromSDL(`type Query { hello(name: String): String, slow: String }`)
	require.NoError(t, err)
	// Field-level @defer is not in the validator's directive locations.
	e, err := engine.New(sch, rt, engine.WithValidation(false))
	require.NoError(t, err)
	h := New(e)

	w := postJSON(h, `{"query":"{ hello slow @defer(label: \"s\") }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{
		"data":{"hello":"world","slow":null},
		"incremental":[{"label":"s","path":["slow"],"data":"later"}]
	}`, w.Body.String())
}
