package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const poolURIScheme = "pool://"

func poolURI(poolID uint64) string {
	return fmt.Sprintf("%s%d", poolURIScheme, poolID)
}

func poolEventsURI(poolID uint64) string {
	return fmt.Sprintf("%s%d/events", poolURIScheme, poolID)
}

// parsePoolURI extracts the pool id from pool://{id} or pool://{id}/{suffix}.
func parsePoolURI(uri, suffix string) (uint64, error) {
	rest, ok := strings.CutPrefix(uri, poolURIScheme)
	if !ok {
		return 0, fmt.Errorf("uri %q must start with %s", uri, poolURIScheme)
	}
	if suffix != "" {
		rest, ok = strings.CutSuffix(rest, "/"+suffix)
		if !ok {
			return 0, fmt.Errorf("uri %q must end with /%s", uri, suffix)
		}
	}
	poolID, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || poolID == 0 {
		return 0, fmt.Errorf("uri %q does not name a pool id", uri)
	}
	return poolID, nil
}

// PoolListResource defines the readable pool listing.
func PoolListResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "pool_list",
		Title:       "Pools",
		Description: "Readable listing of the first page of pools",
		MIMEType:    "application/json",
		URI:         "pool://list",
	}
}

// PoolListResourceHandler renders the first page of pools.
func PoolListResourceHandler(client poolgrpc.PoolServiceClient, getContext func() Context) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("pool client is not configured")
		}
		uri := PoolListResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		response, _, err := callPool(ctx, getContext, "pool list", client.ListPools, &poolgrpc.ListPoolsRequest{PageSize: 50})
		if err != nil {
			return nil, err
		}
		payload := PoolListResult{Pools: make([]PoolResult, 0, len(response.Pools)), NextPageToken: response.NextPageToken}
		for _, p := range response.Pools {
			payload.Pools = append(payload.Pools, poolResult(p))
		}
		return jsonResource(uri, payload)
	}
}

// PoolResourcePayload is the readable pool detail.
type PoolResourcePayload struct {
	Pool         PoolResult         `json:"pool"`
	VaultBalance uint64             `json:"vault_balance"`
	Holders      []PoolSharesResult `json:"holders"`
}

// PoolResourceTemplate defines the readable pool detail.
func PoolResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "pool",
		Title:       "Pool",
		Description: "Readable pool state, vault balance and share holders. URI format: pool://{pool_id}",
		MIMEType:    "application/json",
		URITemplate: "pool://{pool_id}",
	}
}

// PoolResourceHandler renders one pool with its holders.
func PoolResourceHandler(client poolgrpc.PoolServiceClient, getContext func() Context) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("pool client is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("pool ID is required; use URI format pool://{pool_id}")
		}
		uri := req.Params.URI
		poolID, err := parsePoolURI(uri, "")
		if err != nil {
			return nil, fmt.Errorf("parse pool ID from URI: %w", err)
		}

		request := &poolgrpc.GetPoolRequest{PoolID: poolID}
		pool, _, err := callPool(ctx, getContext, "pool get", client.GetPool, request)
		if err != nil {
			return nil, err
		}
		balance, _, err := callPool(ctx, getContext, "pool balance", client.BalanceOf, request)
		if err != nil {
			return nil, err
		}
		holders, _, err := callPool(ctx, getContext, "pool holders", client.ListHolders, request)
		if err != nil {
			return nil, err
		}

		payload := PoolResourcePayload{
			Pool:         poolResult(pool.Pool),
			VaultBalance: balance.Balance,
			Holders:      make([]PoolSharesResult, 0, len(holders.Holders)),
		}
		for _, h := range holders.Holders {
			payload.Holders = append(payload.Holders, PoolSharesResult{PoolID: poolID, Holder: h.Holder, Shares: h.Shares})
		}
		return jsonResource(uri, payload)
	}
}

// PoolEventsResourceTemplate defines the readable pool journal.
func PoolEventsResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "pool_events",
		Title:       "Pool Events",
		Description: "Readable journal of a pool. URI format: pool://{pool_id}/events",
		MIMEType:    "application/json",
		URITemplate: "pool://{pool_id}/events",
	}
}

// PoolEventsResourceHandler renders the first page of a pool journal.
func PoolEventsResourceHandler(client poolgrpc.PoolServiceClient, getContext func() Context) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if client == nil {
			return nil, fmt.Errorf("pool client is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("pool ID is required; use URI format pool://{pool_id}/events")
		}
		uri := req.Params.URI
		poolID, err := parsePoolURI(uri, "events")
		if err != nil {
			return nil, fmt.Errorf("parse pool ID from URI: %w", err)
		}
		response, _, err := callPool(ctx, getContext, "pool events", client.ListEvents, &poolgrpc.ListEventsRequest{PoolID: poolID})
		if err != nil {
			return nil, err
		}
		payload := PoolEventsResult{Events: make([]EventResult, 0, len(response.Events)), NextPageToken: response.NextPageToken}
		for _, e := range response.Events {
			payload.Events = append(payload.Events, eventResult(e))
		}
		return jsonResource(uri, payload)
	}
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(data)}},
	}, nil
}
