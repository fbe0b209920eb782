package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/hanpama/gqlexec/internal/wiring"
)

func loadDescriptors(path string) (*protoregistry.Files, error) {
	if path == "" {
		return nil, fmt.Errorf("-rpc requires -descriptors")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(b, set); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return files, nil
}

// rpcBinding is one parsed -rpc flag.
type rpcBinding struct {
	typeName, field string
	method          protoreflect.FullName // pkg.Service.Method
	opts            []wiring.RPCOption
}

// parseRPCBinding parses Type.field=pkg.Service/Method[?query]. Query keys
// are request fields filled from the parent value, except "skipNull" and
// "response".
func parseRPCBinding(v string) (rpcBinding, error) {
	var b rpcBinding
	coord, target, ok := strings.Cut(v, "=")
	if !ok {
		return b, fmt.Errorf("invalid -rpc %q: missing '='", v)
	}
	if b.typeName, b.field, ok = strings.Cut(coord, "."); !ok || b.typeName == "" || b.field == "" {
		return b, fmt.Errorf("invalid -rpc %q: expected Type.field", v)
	}
	target, rawQuery, _ := strings.Cut(target, "?")
	svc, method, ok := strings.Cut(target, "/")
	if !ok || svc == "" || method == "" {
		return b, fmt.Errorf("invalid -rpc %q: expected pkg.Service/Method", v)
	}
	b.method = protoreflect.FullName(svc + "." + method)

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return b, fmt.Errorf("invalid -rpc %q: %w", v, err)
	}
	for key, values := range query {
		switch key {
		case "skipNull":
			b.opts = append(b.opts, wiring.SkipOnNullInput())
		case "response":
			b.opts = append(b.opts, wiring.ResponseField(values[0]))
		default:
			b.opts = append(b.opts, wiring.FromSource(key, values[0]))
		}
	}
	return b, nil
}

func bindRPCs(reg *wiring.Registry, descriptors string, specs []string, t wiring.Transport) error {
	files, err := loadDescriptors(descriptors)
	if err != nil {
		return err
	}
	for _, s := range specs {
		b, err := parseRPCBinding(s)
		if err != nil {
			return err
		}
		d, err := files.FindDescriptorByName(b.method)
		if err != nil {
			return fmt.Errorf("-rpc %s: %w", s, err)
		}
		md, ok := d.(protoreflect.MethodDescriptor)
		if !ok {
			return fmt.Errorf("-rpc %s: %s is not a method", s, b.method)
		}
		if md.IsStreamingClient() || md.IsStreamingServer() {
			return fmt.Errorf("-rpc %s: streaming methods are not supported", s)
		}
		reg.Field(b.typeName, b.field, wiring.RPC(t, md, b.opts...))
	}
	return nil
}
