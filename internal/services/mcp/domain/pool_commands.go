package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
)

// PoolCreateInput represents the MCP tool input for creating a pool.
type PoolCreateInput struct {
	Issuer          string `json:"issuer,omitempty" jsonschema:"issuer address (defaults to the actor, must match it when set)"`
	Treasury        string `json:"treasury" jsonschema:"address receiving distribution remainders"`
	Distributor     string `json:"distributor,omitempty" jsonschema:"optional address allowed to trigger distribution"`
	Target          uint64 `json:"target" jsonschema:"funding target"`
	MinContribution uint64 `json:"min_contribution" jsonschema:"minimum single contribution"`
	MaxContribution uint64 `json:"max_contribution" jsonschema:"maximum single contribution"`
	HardCap         uint64 `json:"hard_cap,omitempty" jsonschema:"optional cap on active raised funds"`
	Deadline        string `json:"deadline" jsonschema:"RFC3339 funding deadline"`
}

// PoolCreateTool defines the MCP tool schema for creating a pool.
func PoolCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_create",
		Description: "Creates an OPEN pool with a funding target, contribution bounds and a deadline",
	}
}

// PoolCreateHandler executes a pool creation request.
func PoolCreateHandler(client poolgrpc.PoolServiceClient, getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[PoolCreateInput, PoolResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PoolCreateInput) (*mcp.CallToolResult, PoolResult, error) {
		deadline, err := time.Parse(time.RFC3339, strings.TrimSpace(input.Deadline))
		if err != nil {
			return nil, PoolResult{}, fmt.Errorf("deadline must be RFC3339: %w", err)
		}
		response, meta, err := callPool(ctx, getContext, "pool create", client.CreatePool, &poolgrpc.CreatePoolRequest{
			Issuer:          input.Issuer,
			Treasury:        input.Treasury,
			Distributor:     input.Distributor,
			Target:          input.Target,
			MinContribution: input.MinContribution,
			MaxContribution: input.MaxContribution,
			HardCap:         input.HardCap,
			Deadline:        deadline,
		})
		if err != nil {
			return nil, PoolResult{}, err
		}
		result := poolResult(response.Pool)
		NotifyResourceUpdates(ctx, notify, PoolListResource().URI, poolURI(result.ID))
		return CallToolResultWithMetadata(meta), result, nil
	}
}

// PoolContributeInput represents the MCP tool input for contributing.
type PoolContributeInput struct {
	PoolID      uint64 `json:"pool_id" jsonschema:"pool identifier"`
	Contributor string `json:"contributor,omitempty" jsonschema:"contributor address (defaults to the actor, must match it when set)"`
	Amount      uint64 `json:"amount" jsonschema:"amount to contribute"`
}

// PoolContributeResult represents the MCP tool output for contributing.
type PoolContributeResult struct {
	Pool         PoolResult         `json:"pool" jsonschema:"pool after the contribution"`
	Contribution ContributionResult `json:"contribution" jsonschema:"recorded contribution"`
}

// PoolContributeTool defines the MCP tool schema for contributing.
func PoolContributeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_contribute",
		Description: "Contributes funds to an OPEN or FUNDING pool and mints shares one to one",
	}
}

// PoolContributeHandler executes a contribution.
func PoolContributeHandler(client poolgrpc.PoolServiceClient, getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[PoolContributeInput, PoolContributeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PoolContributeInput) (*mcp.CallToolResult, PoolContributeResult, error) {
		response, meta, err := callPool(ctx, getContext, "pool contribute", client.Contribute, &poolgrpc.ContributeRequest{
			PoolID:      input.PoolID,
			Contributor: input.Contributor,
			Amount:      input.Amount,
		})
		if err != nil {
			return nil, PoolContributeResult{}, err
		}
		result := PoolContributeResult{
			Pool:         poolResult(response.Pool),
			Contribution: contributionResult(response.Contribution),
		}
		NotifyResourceUpdates(ctx, notify, poolURI(input.PoolID), poolEventsURI(input.PoolID))
		return CallToolResultWithMetadata(meta), result, nil
	}
}

// PoolActionInput addresses a pool on behalf of a caller.
type PoolActionInput struct {
	PoolID uint64 `json:"pool_id" jsonschema:"pool identifier"`
	Caller string `json:"caller,omitempty" jsonschema:"caller address (defaults to the actor, must match it when set)"`
}

// PoolLockTool defines the MCP tool schema for locking a pool.
func PoolLockTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_lock",
		Description: "Locks a FUNDING pool before its deadline; only the issuer may lock",
	}
}

// PoolLockHandler executes a lock request.
func PoolLockHandler(client poolgrpc.PoolServiceClient, getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[PoolActionInput, PoolResult] {
	return poolActionHandler("pool lock", client.LockPool, getContext, notify)
}

// PoolCancelTool defines the MCP tool schema for cancelling a pool.
func PoolCancelTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_cancel",
		Description: "Cancels an OPEN or FUNDING pool so contributors can claim refunds; only the issuer may cancel",
	}
}

// PoolCancelHandler executes a cancel request.
func PoolCancelHandler(client poolgrpc.PoolServiceClient, getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[PoolActionInput, PoolResult] {
	return poolActionHandler("pool cancel", client.CancelPool, getContext, notify)
}

func poolActionHandler(
	name string,
	call func(context.Context, *poolgrpc.PoolActionRequest, ...grpc.CallOption) (*poolgrpc.PoolResponse, error),
	getContext func() Context,
	notify ResourceUpdateNotifier,
) mcp.ToolHandlerFor[PoolActionInput, PoolResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PoolActionInput) (*mcp.CallToolResult, PoolResult, error) {
		response, meta, err := callPool(ctx, getContext, name, call, &poolgrpc.PoolActionRequest{
			PoolID: input.PoolID,
			Caller: input.Caller,
		})
		if err != nil {
			return nil, PoolResult{}, err
		}
		NotifyResourceUpdates(ctx, notify, poolURI(input.PoolID), poolEventsURI(input.PoolID))
		return CallToolResultWithMetadata(meta), poolResult(response.Pool), nil
	}
}

// PoolDistributeInput represents the MCP tool input for a distribution.
type PoolDistributeInput struct {
	PoolID   uint64 `json:"pool_id" jsonschema:"pool identifier"`
	Caller   string `json:"caller,omitempty" jsonschema:"caller address (defaults to the actor, must match it when set)"`
	Proceeds uint64 `json:"proceeds" jsonschema:"sale proceeds to distribute"`
}

// PoolDistributeTool defines the MCP tool schema for triggering distribution.
func PoolDistributeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_distribute",
		Description: "Deposits proceeds into a LOCKED pool, pays holders pro rata, sends the remainder to the treasury and closes the pool",
	}
}

// PoolDistributeHandler executes a distribution.
func PoolDistributeHandler(client poolgrpc.PoolServiceClient, getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[PoolDistributeInput, DistributionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PoolDistributeInput) (*mcp.CallToolResult, DistributionResult, error) {
		response, meta, err := callPool(ctx, getContext, "pool distribute", client.TriggerDistribution, &poolgrpc.TriggerDistributionRequest{
			PoolID:   input.PoolID,
			Caller:   input.Caller,
			Proceeds: input.Proceeds,
		})
		if err != nil {
			return nil, DistributionResult{}, err
		}
		NotifyResourceUpdates(ctx, notify, poolURI(input.PoolID), poolEventsURI(input.PoolID))
		return CallToolResultWithMetadata(meta), distributionResult(response.Distribution), nil
	}
}

// PoolRefundInput represents the MCP tool input for claiming a refund.
type PoolRefundInput struct {
	PoolID      uint64 `json:"pool_id" jsonschema:"pool identifier"`
	Contributor string `json:"contributor,omitempty" jsonschema:"contributor address (defaults to the actor, must match it when set)"`
}

// PoolRefundResult represents the MCP tool output for claiming a refund.
type PoolRefundResult struct {
	Pool         PoolResult     `json:"pool" jsonschema:"pool after the refund"`
	Amount       uint64         `json:"amount" jsonschema:"refunded amount"`
	SharesBurned uint64         `json:"shares_burned" jsonschema:"shares burned by the refund"`
	Transfer     TransferResult `json:"transfer" jsonschema:"refund transfer"`
}

// PoolRefundTool defines the MCP tool schema for claiming a refund.
func PoolRefundTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_refund",
		Description: "Claims the refund of every active contribution of a contributor in a CANCELLED pool",
	}
}

// PoolRefundHandler executes a refund claim.
func PoolRefundHandler(client poolgrpc.PoolServiceClient, getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[PoolRefundInput, PoolRefundResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PoolRefundInput) (*mcp.CallToolResult, PoolRefundResult, error) {
		response, meta, err := callPool(ctx, getContext, "pool refund", client.ClaimRefund, &poolgrpc.ClaimRefundRequest{
			PoolID:      input.PoolID,
			Contributor: input.Contributor,
		})
		if err != nil {
			return nil, PoolRefundResult{}, err
		}
		result := PoolRefundResult{
			Pool:         poolResult(response.Pool),
			Amount:       response.Amount,
			SharesBurned: response.SharesBurned,
			Transfer:     transferResult(response.Transfer),
		}
		NotifyResourceUpdates(ctx, notify, poolURI(input.PoolID), poolEventsURI(input.PoolID))
		return CallToolResultWithMetadata(meta), result, nil
	}
}

// PoolIDInput addresses a pool.
type PoolIDInput struct {
	PoolID uint64 `json:"pool_id" jsonschema:"pool identifier"`
}

// PoolCheckExpiryTool defines the MCP tool schema for expiry checks.
func PoolCheckExpiryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "pool_check_expiry",
		Description: "Cancels an OPEN or FUNDING pool whose deadline has passed; anyone may call it",
	}
}

// PoolCheckExpiryHandler executes an expiry check.
func PoolCheckExpiryHandler(client poolgrpc.PoolServiceClient, getContext func() Context, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[PoolIDInput, PoolResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PoolIDInput) (*mcp.CallToolResult, PoolResult, error) {
		response, meta, err := callPool(ctx, getContext, "pool expiry check", client.CheckExpiry, &poolgrpc.GetPoolRequest{PoolID: input.PoolID})
		if err != nil {
			return nil, PoolResult{}, err
		}
		NotifyResourceUpdates(ctx, notify, poolURI(input.PoolID))
		return CallToolResultWithMetadata(meta), poolResult(response.Pool), nil
	}
}
