package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Context is the per-server MCP state applied to every tool call.
type Context struct {
	// ActorID is sent as the calling actor; pool calls default issuer,
	// contributor and caller fields to it.
	ActorID string
}

// SetActorInput represents the MCP tool input for switching the actor.
type SetActorInput struct {
	ActorID string `json:"actor_id" jsonschema:"address subsequent calls act as"`
}

// SetActorResult represents the MCP tool output for switching the actor.
type SetActorResult struct {
	ActorID string `json:"actor_id" jsonschema:"current actor address"`
}

// SetActorTool defines the MCP tool schema for switching the actor.
func SetActorTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_actor",
		Description: "Sets the address that subsequent pool calls act as (issuer, contributor or caller)",
	}
}

// SetActorHandler stores the actor in the server context.
func SetActorHandler(setContext func(Context), getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[SetActorInput, SetActorResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetActorInput) (*mcp.CallToolResult, SetActorResult, error) {
		actorID := strings.ToLower(strings.TrimSpace(input.ActorID))
		if actorID == "" {
			return nil, SetActorResult{}, fmt.Errorf("actor_id is required")
		}
		setContext(Context{ActorID: actorID})
		NotifyResourceUpdates(ctx, notify, ContextResource().URI)
		return &mcp.CallToolResult{}, SetActorResult{ActorID: getContext().ActorID}, nil
	}
}

// ContextResourcePayload represents the readable current context.
type ContextResourcePayload struct {
	ActorID *string `json:"actor_id"`
}

// ContextResource defines the MCP resource for the current context.
func ContextResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "context_current",
		Title:       "Current Context",
		Description: "Readable current MCP context (actor_id)",
		MIMEType:    "application/json",
		URI:         "context://current",
	}
}

// ContextResourceHandler renders the current context.
func ContextResourceHandler(getContext func() Context) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := ContextResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		payload := ContextResourcePayload{}
		if getContext != nil {
			if actorID := getContext().ActorID; actorID != "" {
				payload.ActorID = &actorID
			}
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal context: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(data)}},
		}, nil
	}
}
