package domain

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// callPool runs one PoolService call for a tool invocation: it bounds the
// call, attaches correlation and actor metadata, and reads back the echoed
// request id.
func callPool[Req, Resp any](ctx context.Context, getContext func() Context, name string, call func(context.Context, *Req, ...grpc.CallOption) (*Resp, error), in *Req) (*Resp, ToolCallMetadata, error) {
	invocationID, err := NewInvocationID()
	if err != nil {
		return nil, ToolCallMetadata{}, fmt.Errorf("generate invocation id: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
	defer cancel()

	var actorID string
	if getContext != nil {
		actorID = getContext().ActorID
	}
	callCtx, callMeta, err := NewOutgoingContext(runCtx, invocationID, actorID)
	if err != nil {
		return nil, ToolCallMetadata{}, fmt.Errorf("create request metadata: %w", err)
	}

	var header metadata.MD
	response, err := call(callCtx, in, grpc.Header(&header))
	if err != nil {
		return nil, ToolCallMetadata{}, fmt.Errorf("%s failed: %w", name, err)
	}
	if response == nil {
		return nil, ToolCallMetadata{}, fmt.Errorf("%s response is missing", name)
	}
	return response, MergeResponseMetadata(callMeta, header), nil
}
