package domain

import (
	"context"
	"strings"

	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PoolGetResult represents the MCP tool output for reading a pool.
type PoolGetResult struct {
	Pool         PoolResult `json:"pool" jsonschema:"pool state"`
	VaultBalance uint64     `json:"vault_balance" jsonschema:"amount held by the escrow vault"`
}

// PoolGetTool defines the MCP tool schema for reading a pool.
func PoolGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_get",
		Description: "Returns a pool and its escrow vault balance",
	}
}

// PoolGetHandler reads a pool and its vault balance.
func PoolGetHandler(client poolgrpc.PoolServiceClient, getContext func() Context) mcp.ToolHandlerFor[PoolIDInput, PoolGetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PoolIDInput) (*mcp.CallToolResult, PoolGetResult, error) {
		request := &poolgrpc.GetPoolRequest{PoolID: input.PoolID}
		response, _, err := callPool(ctx, getContext, "pool get", client.GetPool, request)
		if err != nil {
			return nil, PoolGetResult{}, err
		}
		balance, meta, err := callPool(ctx, getContext, "pool balance", client.BalanceOf, request)
		if err != nil {
			return nil, PoolGetResult{}, err
		}
		result := PoolGetResult{Pool: poolResult(response.Pool), VaultBalance: balance.Balance}
		return CallToolResultWithMetadata(meta), result, nil
	}
}

// PoolSharesInput represents the MCP tool input for share lookups.
type PoolSharesInput struct {
	PoolID uint64 `json:"pool_id" jsonschema:"pool identifier"`
	Holder string `json:"holder,omitempty" jsonschema:"holder address (defaults to the actor)"`
}

// PoolSharesResult represents the MCP tool output for share lookups.
type PoolSharesResult struct {
	PoolID uint64 `json:"pool_id" jsonschema:"pool identifier"`
	Holder string `json:"holder" jsonschema:"holder address"`
	Shares uint64 `json:"shares" jsonschema:"shares held"`
}

// PoolSharesTool defines the MCP tool schema for share lookups.
func PoolSharesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_shares",
		Description: "Returns the shares a holder owns in a pool",
	}
}

// PoolSharesHandler reads a holder's shares.
func PoolSharesHandler(client poolgrpc.PoolServiceClient, getContext func() Context) mcp.ToolHandlerFor[PoolSharesInput, PoolSharesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PoolSharesInput) (*mcp.CallToolResult, PoolSharesResult, error) {
		holder := strings.TrimSpace(input.Holder)
		if holder == "" && getContext != nil {
			holder = getContext().ActorID
		}
		response, meta, err := callPool(ctx, getContext, "pool shares", client.SharesOf, &poolgrpc.SharesOfRequest{
			PoolID: input.PoolID,
			Holder: holder,
		})
		if err != nil {
			return nil, PoolSharesResult{}, err
		}
		result := PoolSharesResult{PoolID: response.PoolID, Holder: response.Holder, Shares: response.Shares}
		return CallToolResultWithMetadata(meta), result, nil
	}
}

// PoolListInput represents the MCP tool input for listing pools.
type PoolListInput struct {
	Issuer    string `json:"issuer,omitempty" jsonschema:"only pools of this issuer"`
	Status    string `json:"status,omitempty" jsonschema:"only pools in this status"`
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over issuer, status, target, total_raised, deadline, created_at"`
	PageSize  int32  `json:"page_size,omitempty" jsonschema:"maximum pools to return"`
	PageToken uint64 `json:"page_token,omitempty" jsonschema:"next_page_token of a previous call"`
}

// PoolListResult represents the MCP tool output for listing pools.
type PoolListResult struct {
	Pools         []PoolResult `json:"pools" jsonschema:"pools in id order"`
	NextPageToken uint64       `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
}

// PoolListTool defines the MCP tool schema for listing pools.
func PoolListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_list",
		Description: "Lists pools in id order, optionally filtered by issuer, status or an AIP-160 expression",
	}
}

// PoolListHandler lists pools.
func PoolListHandler(client poolgrpc.PoolServiceClient, getContext func() Context) mcp.ToolHandlerFor[PoolListInput, PoolListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PoolListInput) (*mcp.CallToolResult, PoolListResult, error) {
		response, meta, err := callPool(ctx, getContext, "pool list", client.ListPools, &poolgrpc.ListPoolsRequest{
			Issuer:    input.Issuer,
			Status:    input.Status,
			Filter:    input.Filter,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, PoolListResult{}, err
		}
		result := PoolListResult{Pools: make([]PoolResult, 0, len(response.Pools)), NextPageToken: response.NextPageToken}
		for _, p := range response.Pools {
			result.Pools = append(result.Pools, poolResult(p))
		}
		return CallToolResultWithMetadata(meta), result, nil
	}
}

// PoolEventsInput represents the MCP tool input for listing journal events.
type PoolEventsInput struct {
	PoolID   uint64 `json:"pool_id" jsonschema:"pool identifier"`
	AfterSeq uint64 `json:"after_seq,omitempty" jsonschema:"only events after this sequence"`
	Filter   string `json:"filter,omitempty" jsonschema:"AIP-160 filter over type, actor, request_id, seq, ts"`
	PageSize int32  `json:"page_size,omitempty" jsonschema:"maximum events to return"`
}

// PoolEventsResult represents the MCP tool output for listing journal events.
type PoolEventsResult struct {
	Events        []EventResult `json:"events" jsonschema:"events in sequence order"`
	NextPageToken uint64        `json:"next_page_token,omitempty" jsonschema:"after_seq for the next page"`
}

// PoolEventsTool defines the MCP tool schema for listing journal events.
func PoolEventsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_events",
		Description: "Lists the journal events of a pool in sequence order",
	}
}

// PoolEventsHandler lists journal events.
func PoolEventsHandler(client poolgrpc.PoolServiceClient, getContext func() Context) mcp.ToolHandlerFor[PoolEventsInput, PoolEventsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PoolEventsInput) (*mcp.CallToolResult, PoolEventsResult, error) {
		response, meta, err := callPool(ctx, getContext, "pool events", client.ListEvents, &poolgrpc.ListEventsRequest{
			PoolID:   input.PoolID,
			AfterSeq: input.AfterSeq,
			Filter:   input.Filter,
			PageSize: input.PageSize,
		})
		if err != nil {
			return nil, PoolEventsResult{}, err
		}
		result := PoolEventsResult{Events: make([]EventResult, 0, len(response.Events)), NextPageToken: response.NextPageToken}
		for _, e := range response.Events {
			result.Events = append(result.Events, eventResult(e))
		}
		return CallToolResultWithMetadata(meta), result, nil
	}
}

// PoolVerifyJournalResult represents the MCP tool output for journal checks.
type PoolVerifyJournalResult struct {
	PoolID uint64 `json:"pool_id" jsonschema:"pool identifier"`
	Events int    `json:"events" jsonschema:"number of verified events"`
	Valid  bool   `json:"valid" jsonschema:"whether the hash chain and signatures verified"`
}

// PoolVerifyJournalTool defines the MCP tool schema for journal checks.
func PoolVerifyJournalTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_verify_journal",
		Description: "Recomputes and verifies the hash chain and signatures of a pool journal",
	}
}

// PoolVerifyJournalHandler verifies a pool journal.
func PoolVerifyJournalHandler(client poolgrpc.PoolServiceClient, getContext func() Context) mcp.ToolHandlerFor[PoolIDInput, PoolVerifyJournalResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PoolIDInput) (*mcp.CallToolResult, PoolVerifyJournalResult, error) {
		response, meta, err := callPool(ctx, getContext, "journal verification", client.VerifyJournal, &poolgrpc.GetPoolRequest{PoolID: input.PoolID})
		if err != nil {
			return nil, PoolVerifyJournalResult{}, err
		}
		result := PoolVerifyJournalResult{PoolID: response.PoolID, Events: response.Events, Valid: true}
		return CallToolResultWithMetadata(meta), result, nil
	}
}
