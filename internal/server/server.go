// Package server exposes an engine.Engine over HTTP using the common
// GraphQL-over-HTTP conventions: GET with query parameters, POST with a JSON
// body or a JSON array of requests.
package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"

	engine "github.com/hanpama/gqlexec/internal/engine"
	executor "github.com/hanpama/gqlexec/internal/executor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler is an http.Handler that serves a GraphQL endpoint.
type Handler struct {
	engine *engine.Engine
	opt    Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses.
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers forwarded as outgoing gRPC metadata
	// to RPC-backed resolvers. Header names are case-insensitive.
	MetadataHeaders []string

	Logger *zap.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.Logger = l } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

func New(e *engine.Engine, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, Logger: zap.NewNop()}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{engine: e, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet, http.MethodPost:
	default:
		h.writeJSON(w, http.StatusMethodNotAllowed, requestError("method not allowed"))
		return
	}

	if md := h.forwardedMetadata(r.Header); md.Len() > 0 {
		ctx = metadata.NewOutgoingContext(ctx, md)
	}

	single, batch, status, msg := parseRequest(r, h.opt.MaxBodyBytes)
	if msg != "" {
		h.writeJSON(w, status, requestError(msg))
		return
	}
	if batch != nil {
		out := make([]*response, len(batch))
		for i := range batch {
			out[i] = h.executeOne(ctx, batch[i])
		}
		h.writeJSON(w, http.StatusOK, out)
		return
	}
	h.writeJSON(w, http.StatusOK, h.executeOne(ctx, single))
}

func (h *Handler) forwardedMetadata(header http.Header) metadata.MD {
	md := metadata.MD{}
	for _, name := range h.opt.MetadataHeaders {
		if v := header.Values(name); len(v) > 0 {
			md.Append(strings.ToLower(name), v...)
		}
	}
	return md
}

// response is an execution result with deferred payloads inlined after
// the initial data.
type response struct {
	Data        any                         `json:"data"`
	Errors      gqlerror.List               `json:"errors,omitempty"`
	Extensions  map[string]any              `json:"extensions,omitempty"`
	Incremental []*executor.DeferredPayload `json:"incremental,omitempty"`
}

func (h *Handler) executeOne(ctx context.Context, req engine.Request) *response {
	res := h.engine.Execute(ctx, req)
	out := &response{Data: res.Data, Errors: res.Errors, Extensions: res.Extensions}
	if res.HasDeferred() {
		for p := range res.Deferred(ctx) {
			out.Incremental = append(out.Incremental, p)
		}
	}
	if len(out.Errors) > 0 {
		h.opt.Logger.Debug("request finished with errors",
			zap.String("operation", req.OperationName),
			zap.Int("errors", len(out.Errors)),
		)
	}
	return out
}

func requestError(msg string) *response {
	return &response{Errors: gqlerror.List{{Message: msg}}}
}

const errBodyTooLargeMessage = "body too large"

// parseRequest returns either one request or a batch. A non-empty message
// reports a malformed request with its HTTP status.
func parseRequest(r *http.Request, maxBody int64) (engine.Request, []engine.Request, int, string) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req := engine.Request{Query: q.Get("query"), OperationName: q.Get("operationName")}
		if req.Query == "" {
			return req, nil, http.StatusBadRequest, "missing 'query'"
		}
		if v := q.Get("variables"); v != "" {
			if err := json.UnmarshalFromString(v, &req.Variables); err != nil {
				return req, nil, http.StatusBadRequest, "invalid 'variables' JSON"
			}
		}
		return req, nil, 0, ""
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return engine.Request{}, nil, http.StatusUnsupportedMediaType, "unsupported Content-Type"
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	defer r.Body.Close()
	if err != nil {
		return engine.Request{}, nil, http.StatusBadRequest, "failed to read body"
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return engine.Request{}, nil, http.StatusRequestEntityTooLarge, errBodyTooLargeMessage
	}

	if len(body) > 0 && body[0] == '[' {
		var batch []engine.Request
		if err := json.Unmarshal(body, &batch); err != nil {
			return engine.Request{}, nil, http.StatusBadRequest, "invalid JSON"
		}
		if len(batch) == 0 {
			return engine.Request{}, nil, http.StatusBadRequest, "empty batch"
		}
		return engine.Request{}, batch, 0, ""
	}
	var req engine.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return req, nil, http.StatusBadRequest, "invalid JSON"
	}
	if req.Query == "" {
		return req, nil, http.StatusBadRequest, "missing 'query'"
	}
	return req, nil, 0, ""
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		h.opt.Logger.Warn("write response", zap.Error(err))
	}
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard := false
	allowed := false
	for _, o := range opts.AllowedOrigins {
		wildcard = wildcard || o == "*"
		allowed = allowed || o == "*" || o == origin
	}
	if !allowed {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}
