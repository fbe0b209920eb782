package executor

import (
	"bytes"
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"golang.org/x/sync/errgroup"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ExecutionResult is the outcome of one operation. Data is nil when a
// non-null violation reached the root or execution never started; otherwise
// it holds a *ResultMap.
type ExecutionResult struct {
	Data       any            `json:"data"`
	Errors     gqlerror.List  `json:"errors,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`

	deferred []*DeferredCall
}

// ResultMap is a response object whose keys keep selection order.
type ResultMap struct {
	keys   []string
	values map[string]any
}

func NewResultMap(capacity int) *ResultMap {
	return &ResultMap{keys: make([]string, 0, capacity), values: make(map[string]any, capacity)}
}

// Set stores v under key, appending key on first use.
func (m *ResultMap) Set(key string, v any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *ResultMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *ResultMap) Keys() []string { return m.keys }

func (m *ResultMap) Len() int { return len(m.keys) }

// MarshalJSON encodes the map with keys in selection order.
func (m *ResultMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := jsonAPI.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := jsonAPI.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Plain converts a result tree into plain maps and slices, which is the
// shape tests and map-based consumers expect.
func Plain(v any) any {
	switch x := v.(type) {
	case *ResultMap:
		if x == nil {
			return nil
		}
		out := make(map[string]any, len(x.keys))
		for _, k := range x.keys {
			out[k] = Plain(x.values[k])
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Plain(item)
		}
		return out
	}
	return v
}

// ToSpecification renders the result as the plain {data, errors} map.
func (r *ExecutionResult) ToSpecification() map[string]any {
	out := map[string]any{"data": Plain(r.Data)}
	if len(r.Errors) > 0 {
		out["errors"] = r.Errors
	}
	if len(r.Extensions) > 0 {
		out["extensions"] = r.Extensions
	}
	return out
}

// HasDeferred reports whether fields were deferred out of this result.
func (r *ExecutionResult) HasDeferred() bool { return len(r.deferred) > 0 }

// DeferredPayload is the delivery of one deferred field.
type DeferredPayload struct {
	Label  string        `json:"label,omitempty"`
	Path   []any         `json:"path"`
	Data   any           `json:"data"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// Deferred executes the deferred fields concurrently and delivers each
// payload as it completes. The channel is closed after the last payload or
// when ctx ends.
func (r *ExecutionResult) Deferred(ctx context.Context) <-chan *DeferredPayload {
	out := make(chan *DeferredPayload)
	var g errgroup.Group
	for _, call := range r.deferred {
		g.Go(func() error {
			p := call.run(ctx)
			select {
			case out <- p:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	go func() {
		_ = g.Wait()
		close(out)
	}()
	return out
}
