package events

import (
	"time"

	"google.golang.org/grpc/codes"
)

// GRPCClientStart is emitted before a gRPC call made on behalf of a field.
type GRPCClientStart struct {
	ExecutionID string
	Service     string
	Method      string
	Target      string
}

// GRPCClientFinish is emitted after a gRPC call completes.
type GRPCClientFinish struct {
	ExecutionID string
	Service     string
	Method      string
	Target      string
	Code        codes.Code
	Err         error
	Duration    time.Duration
}
