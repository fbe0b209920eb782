// Package events defines the lifecycle events the executor publishes on an
// eventbus.Bus. Subscribers (tracing, metrics) observe execution without the
// executor knowing about them.
package events

import "time"

// ExecutionStart is emitted before executing a GraphQL operation.
type ExecutionStart struct {
	ExecutionID   string
	OperationName string
	OperationType string
}

// ExecutionFinish is emitted after executing a GraphQL operation.
type ExecutionFinish struct {
	ExecutionID   string
	OperationName string
	OperationType string
	Errors        []error
	DataIsNull    bool
	Duration      time.Duration
}

// FieldFetchStart is emitted before a field resolver is invoked.
type FieldFetchStart struct {
	ExecutionID string
	Path        string
	ParentType  string
	Field       string
}

// FieldFetchFinish is emitted once the resolver result (including any
// awaited future) is available.
type FieldFetchFinish struct {
	ExecutionID string
	Path        string
	ParentType  string
	Field       string
	Err         error
	Duration    time.Duration
}

// FieldComplete is emitted when the shape of a completed field value is
// known. The value itself may still be pending.
type FieldComplete struct {
	ExecutionID string
	Path        string
	Kind        string
	Elements    int
}
