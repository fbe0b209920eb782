// Package grpctp is the gRPC transport behind RPC-backed field resolvers:
// endpoint discovery, per-endpoint connection pools, default deadlines and
// client events.
package grpctp

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/events"
	"github.com/hanpama/gqlexec/internal/reqid"
	"github.com/hanpama/gqlexec/internal/wiring"
)

// ExecutionIDHeader carries the execution id to the called service.
const ExecutionIDHeader = "x-gqlexec-execution-id"

// Transport is a gRPC client with connection pooling and deadline
// propagation. It is safe for concurrent use.
type Transport struct {
	opts *Options

	mu     sync.RWMutex
	pools  map[string]*connPool // key: endpoint
	closed atomic.Bool
}

var _ wiring.Transport = (*Transport)(nil)

func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	return &Transport{
		opts:  o,
		pools: make(map[string]*connPool),
	}
}

func (t *Transport) Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("grpctp: closed")
	}
	if t.opts.Provider == nil {
		return nil, fmt.Errorf("grpctp: provider not configured")
	}
	service := string(method.Parent().FullName())
	fullMethod := fmt.Sprintf("/%s/%s", service, method.Name())

	if _, ok := ctx.Deadline(); !ok && t.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RPCTimeout)
		defer cancel()
	}
	id, _ := reqid.FromContext(ctx)
	if id != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, ExecutionIDHeader, id)
	}

	endpoints, err := t.opts.Provider.Endpoints(ctx, service)
	if err != nil {
		return nil, err
	}
	endpoint := endpoints[rand.IntN(len(endpoints))]

	cc, err := t.getConn(endpoint)
	if err != nil {
		return nil, err
	}
	defer t.returnConn(endpoint, cc)

	start := time.Now()
	eventbus.Publish(ctx, t.opts.Bus, events.GRPCClientStart{
		ExecutionID: id,
		Service:     service,
		Method:      string(method.Name()),
		Target:      endpoint,
	})
	resp := dynamicpb.NewMessage(method.Output())
	err = cc.Invoke(ctx, fullMethod, request.Interface(), resp)
	eventbus.Publish(ctx, t.opts.Bus, events.GRPCClientFinish{
		ExecutionID: id,
		Service:     service,
		Method:      string(method.Name()),
		Target:      endpoint,
		Code:        status.Code(err),
		Err:         err,
		Duration:    time.Since(start),
	})
	if err != nil {
		t.opts.Logger.Debug("grpc call failed",
			zap.String("method", fullMethod),
			zap.String("target", endpoint),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pools {
		p.close()
	}
	t.pools = map[string]*connPool{}
	return nil
}

type connPool struct {
	endpoint string
	opts     *Options

	mu     sync.Mutex
	conns  []*grpc.ClientConn // idle
	max    int
	closed bool
}

func newConnPool(endpoint string, opts *Options) *connPool {
	n := opts.MaxConnsPerEndpoint
	if n <= 0 {
		n = 2
	}
	return &connPool{endpoint: endpoint, opts: opts, max: n}
}

func (p *connPool) get() (*grpc.ClientConn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("grpctp: pool closed")
	}
	if n := len(p.conns); n > 0 {
		cc := p.conns[n-1]
		p.conns = p.conns[:n-1]
		p.mu.Unlock()
		return cc, nil
	}
	p.mu.Unlock()
	return grpc.NewClient(p.endpoint, p.opts.DialOptions...)
}

// put keeps cc for reuse, or closes it when the pool is full or closed.
func (p *connPool) put(cc *grpc.ClientConn) {
	p.mu.Lock()
	if !p.closed && len(p.conns) < p.max {
		p.conns = append(p.conns, cc)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	_ = cc.Close()
}

func (p *connPool) close() {
	p.mu.Lock()
	conns := p.conns
	p.conns, p.closed = nil, true
	p.mu.Unlock()
	for _, cc := range conns {
		_ = cc.Close()
	}
}

func (t *Transport) getConn(endpoint string) (*grpc.ClientConn, error) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool == nil {
		t.mu.Lock()
		pool = t.pools[endpoint]
		if pool == nil {
			pool = newConnPool(endpoint, t.opts)
			t.pools[endpoint] = pool
		}
		t.mu.Unlock()
	}
	return pool.get()
}

func (t *Transport) returnConn(endpoint string, cc *grpc.ClientConn) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool != nil {
		pool.put(cc)
		return
	}
	_ = cc.Close()
}
