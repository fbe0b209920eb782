package grpctp

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/events"
	"github.com/hanpama/gqlexec/internal/reqid"
)

// greeterMethod builds:
//
//	package greet.v1;
//	message GreetRequest { string name = 1; }
//	message GreetResponse { string message = 1; }
//	service Greeter { rpc Greet(GreetRequest) returns (GreetResponse); }
func greeterMethod(t *testing.T) protoreflect.MethodDescriptor {
	t.Helper()
	stringField := func(name string) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			JsonName: proto.String(name),
			Number:   proto.Int32(1),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
		}
	}
	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("greet/v1/greet.proto"),
		Package: proto.String("greet.v1"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("GreetRequest"), Field: []*descriptorpb.FieldDescriptorProto{stringField("name")}},
			{Name: proto.String("GreetResponse"), Field: []*descriptorpb.FieldDescriptorProto{stringField("message")}},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Greeter"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:       proto.String("Greet"),
				InputType:  proto.String(".greet.v1.GreetRequest"),
				OutputType: proto.String(".greet.v1.GreetResponse"),
			}},
		}},
		Syntax: proto.String("proto3"),
	}
	fd, err := protodesc.NewFile(file, nil)
	require.NoError(t, err)
	return fd.Services().ByName("Greeter").Methods().ByName("Greet")
}

type greeterServer struct {
	addr string

	mu  sync.Mutex
	ids []string
}

// startGreeter serves Greet on a loopback port through the unknown service
// handler. The name "fail" is answered with NotFound.
func startGreeter(t *testing.T, method protoreflect.MethodDescriptor) *greeterServer {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := &greeterServer{addr: lis.Addr().String()}
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		full, _ := grpc.MethodFromServerStream(stream)
		if full != "/greet.v1.Greeter/Greet" {
			return status.Errorf(codes.Unimplemented, "unknown method %s", full)
		}
		if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
			gs.mu.Lock()
			gs.ids = append(gs.ids, md.Get(ExecutionIDHeader)...)
			gs.mu.Unlock()
		}
		req := dynamicpb.NewMessage(method.Input())
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		name := req.Get(method.Input().Fields().ByName("name")).String()
		if name == "fail" {
			return status.Error(codes.NotFound, "no greeting")
		}
		resp := dynamicpb.NewMessage(method.Output())
		resp.Set(method.Output().Fields().ByName("message"), protoreflect.ValueOfString("hello "+name))
		return stream.SendMsg(resp)
	}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return gs
}

func (gs *greeterServer) executionIDs() []string {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return append([]string(nil), gs.ids...)
}

func greetRequest(method protoreflect.MethodDescriptor, name string) protoreflect.Message {
	req := dynamicpb.NewMessage(method.Input())
	req.Set(method.Input().Fields().ByName("name"), protoreflect.ValueOfString(name))
	return req
}

func TestTransport_Call(t *testing.T) {
	method := greeterMethod(t)
	gs := startGreeter(t, method)

	bus := eventbus.New()
	var (
		mu       sync.Mutex
		starts   []events.GRPCClientStart
		finishes []events.GRPCClientFinish
	)
	eventbus.Subscribe(bus, func(_ context.Context, e events.GRPCClientStart) {
		mu.Lock()
		starts = append(starts, e)
		mu.Unlock()
	})
	eventbus.Subscribe(bus, func(_ context.Context, e events.GRPCClientFinish) {
		mu.Lock()
		finishes = append(finishes, e)
		mu.Unlock()
	})

	tp := New(
		WithProvider(NewStaticEndpoints(map[string][]string{"greet.v1.Greeter": {gs.addr}})),
		WithEventBus(bus),
	)
	defer tp.Close()

	ctx := reqid.WithID(context.Background(), "exec-1")
	resp, err := tp.Call(ctx, method, greetRequest(method, "gopher"))
	require.NoError(t, err)
	require.Equal(t, "hello gopher", resp.Get(method.Output().Fields().ByName("message")).String())

	_, err = tp.Call(ctx, method, greetRequest(method, "fail"))
	require.Equal(t, codes.NotFound, status.Code(err))

	require.Equal(t, []string{"exec-1", "exec-1"}, gs.executionIDs())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 2)
	require.Equal(t, events.GRPCClientStart{
		ExecutionID: "exec-1", Service: "greet.v1.Greeter", Method: "Greet", Target: gs.addr,
	}, starts[0])
	require.Len(t, finishes, 2)
	require.Equal(t, codes.OK, finishes[0].Code)
	require.NoError(t, finishes[0].Err)
	require.Equal(t, codes.NotFound, finishes[1].Code)
	require.Error(t, finishes[1].Err)
}

func TestTransport_Errors(t *testing.T) {
	method := greeterMethod(t)

	_, err := New().Call(context.Background(), method, greetRequest(method, "x"))
	require.EqualError(t, err, "grpctp: provider not configured")

	tp := New(WithProvider(NewStaticEndpoints(nil)))
	_, err = tp.Call(context.Background(), method, greetRequest(method, "x"))
	require.True(t, errors.Is(err, ErrNoEndpoints))

	require.NoError(t, tp.Close())
	require.NoError(t, tp.Close())
	_, err = tp.Call(context.Background(), method, greetRequest(method, "x"))
	require.EqualError(t, err, "grpctp: closed")
}

func TestStaticEndpoints(t *testing.T) {
	src := map[string][]string{
		"a.v1.A": {"a:1", "a:2"},
		"*":      {"fallback:1"},
	}
	p := NewStaticEndpoints(src)
	src["a.v1.A"][0] = "changed"

	got, err := p.Endpoints(context.Background(), "a.v1.A")
	require.NoError(t, err)
	require.Equal(t, []string{"a:1", "a:2"}, got)

	got, err = p.Endpoints(context.Background(), "b.v1.B")
	require.NoError(t, err)
	require.Equal(t, []string{"fallback:1"}, got)

	_, err = NewStaticEndpoints(map[string][]string{}).Endpoints(context.Background(), "a.v1.A")
	require.ErrorIs(t, err, ErrNoEndpoints)
}
