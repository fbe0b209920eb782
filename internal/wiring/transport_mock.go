package wiring

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// CallRecord captures one MockTransport.Call.
type CallRecord struct {
	FullMethod string
	Request    proto.Message // deep copy of the request
}

// MockTransport answers calls with a handler function and records them.
type MockTransport struct {
	Handler func(method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error)

	mu    sync.Mutex
	calls []CallRecord
}

func (m *MockTransport) Call(_ context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, CallRecord{
		FullMethod: fmt.Sprintf("/%s/%s", method.Parent().FullName(), method.Name()),
		Request:    proto.Clone(request.Interface()),
	})
	m.mu.Unlock()
	if m.Handler == nil {
		return nil, fmt.Errorf("mock transport: no handler")
	}
	return m.Handler(method, request)
}

// Calls returns a snapshot of the recorded calls.
func (m *MockTransport) Calls() []CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CallRecord(nil), m.calls...)
}
