package wiring

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	executor "github.com/hanpama/gqlexec/internal/executor"
)

// Transport invokes a unary gRPC method with a dynamic request message.
// Implementations must be safe for concurrent use; grpctp.Transport is the
// production implementation.
type Transport interface {
	Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error)
}

// RPCOption configures an RPC resolver.
type RPCOption func(*rpcResolver)

// FromSource fills request field dst (by JSON name) from field src of the
// parent source value when no argument of that name was given.
func FromSource(dst, src string) RPCOption {
	return func(r *rpcResolver) { r.fromSource[dst] = src }
}

// ResponseField selects the response field returned as the field value.
// The default is "data"; with an empty name the whole response message is
// returned.
func ResponseField(name string) RPCOption {
	return func(r *rpcResolver) { r.responseField = protoreflect.Name(name) }
}

// SkipOnNullInput makes the resolver return null without calling the method
// when any request field would be filled from a null argument or source value.
func SkipOnNullInput() RPCOption {
	return func(r *rpcResolver) { r.skipOnNull = true }
}

// RPC returns a field resolver that calls method through t. Field arguments
// are copied into the request message by JSON name.
func RPC(t Transport, method protoreflect.MethodDescriptor, opts ...RPCOption) executor.FieldResolver {
	r := &rpcResolver{
		transport:     t,
		method:        method,
		fromSource:    make(map[string]string),
		responseField: "data",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type rpcResolver struct {
	transport     Transport
	method        protoreflect.MethodDescriptor
	fromSource    map[string]string
	responseField protoreflect.Name
	skipOnNull    bool
}

func (r *rpcResolver) Resolve(ctx context.Context, env *executor.Environment) (any, error) {
	input := r.requestInput(env)
	if r.skipOnNull && hasNullInput(r.method.Input(), input) {
		return nil, nil
	}
	req := dynamicpb.NewMessage(r.method.Input())
	if err := setMessageFields(req, input); err != nil {
		return nil, fmt.Errorf("%s: %w", r.method.FullName(), err)
	}
	resp, err := r.transport.Call(ctx, r.method, req)
	if err != nil {
		return nil, err
	}
	return r.responseValue(resp)
}

// requestInput merges the field arguments with the mapped source fields.
// Arguments win.
func (r *rpcResolver) requestInput(env *executor.Environment) map[string]any {
	if len(r.fromSource) == 0 {
		return env.Arguments
	}
	out := make(map[string]any, len(env.Arguments)+len(r.fromSource))
	for k, v := range env.Arguments {
		out[k] = v
	}
	for dst, src := range r.fromSource {
		if _, ok := out[dst]; ok {
			continue
		}
		v, err := executor.Property(env.Source, src)
		if err == nil {
			out[dst] = v
		}
	}
	return out
}

func (r *rpcResolver) responseValue(resp protoreflect.Message) (any, error) {
	if r.responseField == "" {
		return resp.Interface(), nil
	}
	fd := resp.Descriptor().Fields().ByName(r.responseField)
	if fd == nil {
		return nil, fmt.Errorf("%s: response %s has no field %q", r.method.FullName(), resp.Descriptor().FullName(), r.responseField)
	}
	return executor.Property(resp.Interface(), string(fd.Name()))
}

// hasNullInput reports whether a request field would be set from a nil value.
func hasNullInput(desc protoreflect.MessageDescriptor, input map[string]any) bool {
	fields := desc.Fields()
	for i := 0; i < fields.Len(); i++ {
		if v, ok := input[fields.Get(i).JSONName()]; ok && v == nil {
			return true
		}
	}
	return false
}

// setMessageFields sets the fields of msg from data keyed by JSON name.
// Unknown keys and nil values are skipped.
func setMessageFields(msg protoreflect.Message, data map[string]any) error {
	fields := msg.Descriptor().Fields()
	for k, v := range data {
		fd := fields.ByJSONName(k)
		if fd == nil || v == nil {
			continue
		}
		if fd.IsMap() {
			if err := setMapField(msg, fd, v); err != nil {
				return err
			}
			continue
		}
		if fd.IsList() {
			items, ok := v.([]any)
			if !ok {
				return fmt.Errorf("field %s: expected a list, got %T", k, v)
			}
			list := msg.Mutable(fd).List()
			for _, item := range items {
				pv, err := toProtoValue(fd, item)
				if err != nil {
					return err
				}
				list.Append(pv)
			}
			continue
		}
		pv, err := toProtoValue(fd, v)
		if err != nil {
			return err
		}
		msg.Set(fd, pv)
	}
	return nil
}

// setMapField fills a map field from an input object. Keys are converted to
// the map's key kind.
func setMapField(msg protoreflect.Message, fd protoreflect.FieldDescriptor, v any) error {
	entries, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("field %s: expected an object, got %T", fd.JSONName(), v)
	}
	m := msg.Mutable(fd).Map()
	for k, item := range entries {
		key, err := mapKey(fd.MapKey(), k)
		if err != nil {
			return fmt.Errorf("field %s: %w", fd.JSONName(), err)
		}
		if item == nil {
			continue
		}
		pv, err := toProtoValue(fd.MapValue(), item)
		if err != nil {
			return fmt.Errorf("field %s[%s]: %w", fd.JSONName(), k, err)
		}
		m.Set(key, pv)
	}
	return nil
}

func mapKey(kd protoreflect.FieldDescriptor, k string) (protoreflect.MapKey, error) {
	var raw any = k
	switch kd.Kind() {
	case protoreflect.BoolKind:
		b, err := strconv.ParseBool(k)
		if err != nil {
			return protoreflect.MapKey{}, fmt.Errorf("invalid bool key %q", k)
		}
		raw = b
	case protoreflect.StringKind:
	default:
		n, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return protoreflect.MapKey{}, fmt.Errorf("invalid integer key %q", k)
		}
		raw = n
	}
	pv, err := toProtoValue(kd, raw)
	if err != nil {
		return protoreflect.MapKey{}, err
	}
	return pv.MapKey(), nil
}

// toProtoValue converts a coerced GraphQL input value to a protobuf value of
// the field's kind.
func toProtoValue(fd protoreflect.FieldDescriptor, v any) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		if b, ok := v.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if n, ok := toInt64(v); ok {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return protoreflect.Value{}, fmt.Errorf("field %s: %d overflows %s", fd.JSONName(), n, fd.Kind())
			}
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if n, ok := toInt64(v); ok {
			return protoreflect.ValueOfInt64(n), nil
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if n, ok := toInt64(v); ok {
			if n < 0 || n > math.MaxUint32 {
				return protoreflect.Value{}, fmt.Errorf("field %s: %d overflows %s", fd.JSONName(), n, fd.Kind())
			}
			return protoreflect.ValueOfUint32(uint32(n)), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if n, ok := toInt64(v); ok {
			if n < 0 {
				return protoreflect.Value{}, fmt.Errorf("field %s: %d overflows %s", fd.JSONName(), n, fd.Kind())
			}
			return protoreflect.ValueOfUint64(uint64(n)), nil
		}
	case protoreflect.FloatKind:
		if f, ok := toFloat64(v); ok {
			return protoreflect.ValueOfFloat32(float32(f)), nil
		}
	case protoreflect.DoubleKind:
		if f, ok := toFloat64(v); ok {
			return protoreflect.ValueOfFloat64(f), nil
		}
	case protoreflect.StringKind:
		if s, ok := v.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}
	case protoreflect.BytesKind:
		switch b := v.(type) {
		case []byte:
			return protoreflect.ValueOfBytes(b), nil
		case string:
			return protoreflect.ValueOfBytes([]byte(b)), nil
		}
	case protoreflect.EnumKind:
		if s, ok := v.(string); ok {
			if ev := fd.Enum().Values().ByName(protoreflect.Name(s)); ev != nil {
				return protoreflect.ValueOfEnum(ev.Number()), nil
			}
		}
	case protoreflect.MessageKind:
		switch m := v.(type) {
		case map[string]any:
			msg := dynamicpb.NewMessage(fd.Message())
			if err := setMessageFields(msg, m); err != nil {
				return protoreflect.Value{}, err
			}
			return protoreflect.ValueOfMessage(msg), nil
		case proto.Message:
			return protoreflect.ValueOfMessage(m.ProtoReflect()), nil
		}
	}
	return protoreflect.Value{}, fmt.Errorf("field %s: cannot use %T as %s", fd.JSONName(), v, fd.Kind())
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
