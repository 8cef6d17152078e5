package domain

import (
	"context"
	"strings"
	"time"

	"github.com/louisbranch/cellarpool/internal/platform/id"
	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc/metadata"
)

// InvocationIDMeta names the tool-call correlation key in result metadata.
const InvocationIDMeta = "x-cellarpool-invocation-id"

// grpcCallTimeout caps the time for a single gRPC call from an MCP handler.
const grpcCallTimeout = 5 * time.Second

// ToolCallMetadata carries correlation identifiers for MCP tool calls.
type ToolCallMetadata struct {
	RequestID    string
	InvocationID string
}

// ResourceUpdateNotifier notifies MCP clients about resource updates.
type ResourceUpdateNotifier func(ctx context.Context, uri string)

// NewInvocationID generates an invocation identifier for a tool call.
func NewInvocationID() (string, error) {
	return id.NewID()
}

// NewOutgoingContext attaches a fresh request id and the acting address to
// an outgoing call.
func NewOutgoingContext(ctx context.Context, invocationID, actorID string) (context.Context, ToolCallMetadata, error) {
	requestID, err := id.NewID()
	if err != nil {
		return nil, ToolCallMetadata{}, err
	}
	callCtx := poolgrpc.WithRequestID(ctx, requestID)
	if actorID = strings.TrimSpace(actorID); actorID != "" {
		callCtx = poolgrpc.WithActor(callCtx, actorID)
	}
	return callCtx, ToolCallMetadata{RequestID: requestID, InvocationID: invocationID}, nil
}

// MergeResponseMetadata prefers the request id echoed by the server.
func MergeResponseMetadata(sent ToolCallMetadata, header metadata.MD) ToolCallMetadata {
	if values := header.Get(poolgrpc.RequestIDHeader); len(values) > 0 && strings.TrimSpace(values[0]) != "" {
		sent.RequestID = strings.TrimSpace(values[0])
	}
	return sent
}

// CallToolResultWithMetadata builds a tool result with correlation metadata.
func CallToolResultWithMetadata(meta ToolCallMetadata) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Meta: map[string]any{
			poolgrpc.RequestIDHeader: meta.RequestID,
		},
	}
	if meta.InvocationID != "" {
		result.Meta[InvocationIDMeta] = meta.InvocationID
	}
	return result
}

// NotifyResourceUpdates sends resource update notifications for each URI.
func NotifyResourceUpdates(ctx context.Context, notify ResourceUpdateNotifier, uris ...string) {
	if notify == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for _, uri := range uris {
		if strings.TrimSpace(uri) == "" {
			continue
		}
		notify(ctx, uri)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
