package grpctp

import (
	"context"
	"errors"
	"sync"
)

// ErrNoEndpoints indicates the provider returned no endpoints for a service.
var ErrNoEndpoints = errors.New("grpctp: no endpoints available")

// EndpointProvider lists reachable endpoints (host:port) for a fully
// qualified gRPC service name such as "catalog.v1.BookService".
// Implementations must be safe for concurrent use.
type EndpointProvider interface {
	Endpoints(ctx context.Context, service string) ([]string, error)
}

// StaticEndpoints is a provider backed by an in-memory map from service name
// to endpoints. A "*" entry serves services without their own entry.
type StaticEndpoints struct {
	mu   sync.RWMutex
	data map[string][]string
}

func NewStaticEndpoints(m map[string][]string) *StaticEndpoints {
	cp := make(map[string][]string, len(m))
	for k, v := range m {
		cp[k] = append([]string(nil), v...)
	}
	return &StaticEndpoints{data: cp}
}

func (s *StaticEndpoints) Endpoints(_ context.Context, service string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.data[service]
	if len(arr) == 0 {
		arr = s.data["*"]
	}
	if len(arr) == 0 {
		return nil, ErrNoEndpoints
	}
	return append([]string(nil), arr...), nil
}
