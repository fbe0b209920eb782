package executor

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// PropertyResolver is the default field resolver. It reads the field named
// like the schema field from the source value:
//   - map[string]any and other string-keyed maps by key;
//   - json.RawMessage and []byte JSON by gjson path;
//   - proto.Message fields by name, JSON name or text name;
//   - structs by a zero-argument method (Name or GetName), then a field
//     tagged `graphql:"name"`, then `json:"name"`, then a case-insensitive
//     field name.
//
// A value of type func() any or func() (any, error) is called.
type PropertyResolver struct{}

func (PropertyResolver) Resolve(_ context.Context, env *Environment) (any, error) {
	return property(env.Source, env.FieldDefinition.Name)
}

// Property reads name from source the way PropertyResolver does.
func Property(source any, name string) (any, error) { return property(source, name) }

func property(source any, name string) (any, error) {
	var v any
	switch src := source.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		v = src[name]
	case json.RawMessage:
		v = jsonProperty(src, name)
	case []byte:
		v = jsonProperty(src, name)
	case proto.Message:
		v = protoProperty(src.ProtoReflect(), name)
	case protoreflect.Message:
		v = protoProperty(src, name)
	default:
		v = reflectProperty(reflect.ValueOf(source), name)
	}
	return callThunk(v)
}

func callThunk(v any) (any, error) {
	switch fn := v.(type) {
	case func() any:
		return fn(), nil
	case func() (any, error):
		return fn()
	}
	return v, nil
}

func jsonProperty(raw json.RawMessage, name string) any {
	r := gjson.GetBytes(raw, gjson.Escape(name))
	return jsonValue(r)
}

// jsonValue keeps objects as raw JSON so nested fields are read lazily.
func jsonValue(r gjson.Result) any {
	switch {
	case !r.Exists():
		return nil
	case r.IsObject():
		return json.RawMessage(r.Raw)
	case r.IsArray():
		items := r.Array()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = jsonValue(item)
		}
		return out
	}
	return r.Value()
}

func protoProperty(msg protoreflect.Message, name string) any {
	if msg == nil || !msg.IsValid() {
		return nil
	}
	fields := msg.Descriptor().Fields()
	fd := fields.ByName(protoreflect.Name(name))
	if fd == nil {
		fd = fields.ByJSONName(name)
	}
	if fd == nil {
		fd = fields.ByTextName(name)
	}
	if fd == nil {
		return nil
	}
	if fd.HasPresence() && !msg.Has(fd) {
		return nil
	}
	v := msg.Get(fd)
	if fd.IsList() {
		lst := v.List()
		out := make([]any, lst.Len())
		for i := range out {
			out[i] = protoValue(fd, lst.Get(i))
		}
		return out
	}
	if fd.IsMap() {
		out := make(map[string]any, v.Map().Len())
		v.Map().Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
			out[k.String()] = protoValue(fd.MapValue(), mv)
			return true
		})
		return out
	}
	return protoValue(fd, v)
}

// protoValue converts a protobuf field value to a Go value for completion.
func protoValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return int32(v.Int())
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return uint32(v.Uint())
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return v.Uint()
	case protoreflect.FloatKind:
		return float32(v.Float())
	case protoreflect.DoubleKind:
		return v.Float()
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BytesKind:
		return v.Bytes()
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int32(v.Enum())
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return v.Message().Interface()
	}
	return nil
}

var structFieldCache sync.Map // map[reflect.Type]map[string][]int

func reflectProperty(rv reflect.Value, name string) any {
	if !rv.IsValid() {
		return nil
	}
	if m := methodByName(rv, name); m.IsValid() {
		return callMethod(m)
	}
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		mv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil
		}
		return mv.Interface()
	case reflect.Struct:
		idx, ok := structFields(rv.Type())[name]
		if !ok {
			idx, ok = structFields(rv.Type())[strings.ToLower(name)]
		}
		if !ok {
			return nil
		}
		fv, err := rv.FieldByIndexErr(idx)
		if err != nil {
			return nil
		}
		return fv.Interface()
	}
	return nil
}

// methodByName finds a zero-argument getter: Name or GetName.
func methodByName(rv reflect.Value, name string) reflect.Value {
	if name == "" {
		return reflect.Value{}
	}
	exported := strings.ToUpper(name[:1]) + name[1:]
	for _, n := range []string{exported, "Get" + exported} {
		m := rv.MethodByName(n)
		if !m.IsValid() {
			continue
		}
		t := m.Type()
		if t.NumIn() != 0 || t.NumOut() == 0 || t.NumOut() > 2 {
			continue
		}
		return m
	}
	return reflect.Value{}
}

func callMethod(m reflect.Value) any {
	out := m.Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return func() (any, error) { return nil, out[1].Interface().(error) }
	}
	return out[0].Interface()
}

// structFields indexes exported fields by graphql tag, json tag, exact name
// and lowercased name, in that order of precedence.
func structFields(t reflect.Type) map[string][]int {
	if cached, ok := structFieldCache.Load(t); ok {
		return cached.(map[string][]int)
	}
	byTag := make(map[string][]int)
	byJSON := make(map[string][]int)
	byName := make(map[string][]int)
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if tag := tagName(f.Tag.Get("graphql")); tag != "" && tag != "-" {
			byTag[tag] = f.Index
		}
		if tag := tagName(f.Tag.Get("json")); tag != "" && tag != "-" {
			byJSON[tag] = f.Index
		}
		byName[f.Name] = f.Index
	}
	out := make(map[string][]int, len(byName)*2)
	for n, idx := range byName {
		out[strings.ToLower(n)] = idx
	}
	for n, idx := range byName {
		out[n] = idx
	}
	for n, idx := range byJSON {
		out[n] = idx
	}
	for n, idx := range byTag {
		out[n] = idx
	}
	actual, _ := structFieldCache.LoadOrStore(t, out)
	return actual.(map[string][]int)
}

func tagName(tag string) string {
	if i := strings.IndexByte(tag, ','); i >= 0 {
		return tag[:i]
	}
	return tag
}

// unbox unwraps optional-like wrappers around a fetched value: protobuf
// well-known wrapper messages, driver.Valuer implementations and pointers to
// scalars. A failing Valuer is reported as the error.
func unbox(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case proto.Message:
		return unboxWrapper(x), nil
	case driver.Valuer:
		if isNullish(x) {
			return nil, nil
		}
		return x.Value()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		switch rv.Elem().Kind() {
		case reflect.Bool, reflect.String,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return rv.Elem().Interface(), nil
		}
	}
	return v, nil
}

func unboxWrapper(m proto.Message) any {
	msg := m.ProtoReflect()
	if !msg.IsValid() {
		return nil
	}
	desc := msg.Descriptor()
	if desc.ParentFile().Package() != "google.protobuf" || !strings.HasSuffix(string(desc.Name()), "Value") {
		return m
	}
	fd := desc.Fields().ByName("value")
	if fd == nil || desc.Fields().Len() != 1 {
		return m
	}
	return protoValue(fd, msg.Get(fd))
}
