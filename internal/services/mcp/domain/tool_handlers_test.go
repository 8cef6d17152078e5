package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// fakePoolClient records requests and returns configured responses. Methods
// not overridden panic through the nil embedded interface.
type fakePoolClient struct {
	poolgrpc.PoolServiceClient

	poolResp         *poolgrpc.PoolResponse
	contributeResp   *poolgrpc.ContributeResponse
	distributionResp *poolgrpc.DistributionResponse
	refundResp       *poolgrpc.ClaimRefundResponse
	balanceResp      *poolgrpc.BalanceResponse
	sharesResp       *poolgrpc.SharesOfResponse
	holdersResp      *poolgrpc.ListHoldersResponse
	listResp         *poolgrpc.ListPoolsResponse
	eventsResp       *poolgrpc.ListEventsResponse
	verifyResp       *poolgrpc.VerifyJournalResponse
	err              error

	lastCreate     *poolgrpc.CreatePoolRequest
	lastContribute *poolgrpc.ContributeRequest
	lastAction     *poolgrpc.PoolActionRequest
	lastShares     *poolgrpc.SharesOfRequest
	lastList       *poolgrpc.ListPoolsRequest
	lastActor      string
	lastRequestID  string
	methods        []string
}

func (f *fakePoolClient) record(ctx context.Context, method string) {
	f.methods = append(f.methods, method)
	md, _ := metadata.FromOutgoingContext(ctx)
	if values := md.Get(poolgrpc.ActorIDHeader); len(values) > 0 {
		f.lastActor = values[0]
	}
	if values := md.Get(poolgrpc.RequestIDHeader); len(values) > 0 {
		f.lastRequestID = values[0]
	}
}

func (f *fakePoolClient) CreatePool(ctx context.Context, in *poolgrpc.CreatePoolRequest, _ ...grpc.CallOption) (*poolgrpc.PoolResponse, error) {
	f.record(ctx, "CreatePool")
	f.lastCreate = in
	return f.poolResp, f.err
}

func (f *fakePoolClient) Contribute(ctx context.Context, in *poolgrpc.ContributeRequest, _ ...grpc.CallOption) (*poolgrpc.ContributeResponse, error) {
	f.record(ctx, "Contribute")
	f.lastContribute = in
	return f.contributeResp, f.err
}

func (f *fakePoolClient) LockPool(ctx context.Context, in *poolgrpc.PoolActionRequest, _ ...grpc.CallOption) (*poolgrpc.PoolResponse, error) {
	f.record(ctx, "LockPool")
	f.lastAction = in
	return f.poolResp, f.err
}

func (f *fakePoolClient) CancelPool(ctx context.Context, in *poolgrpc.PoolActionRequest, _ ...grpc.CallOption) (*poolgrpc.PoolResponse, error) {
	f.record(ctx, "CancelPool")
	f.lastAction = in
	return f.poolResp, f.err
}

func (f *fakePoolClient) TriggerDistribution(ctx context.Context, _ *poolgrpc.TriggerDistributionRequest, _ ...grpc.CallOption) (*poolgrpc.DistributionResponse, error) {
	f.record(ctx, "TriggerDistribution")
	return f.distributionResp, f.err
}

func (f *fakePoolClient) ClaimRefund(ctx context.Context, _ *poolgrpc.ClaimRefundRequest, _ ...grpc.CallOption) (*poolgrpc.ClaimRefundResponse, error) {
	f.record(ctx, "ClaimRefund")
	return f.refundResp, f.err
}

func (f *fakePoolClient) CheckExpiry(ctx context.Context, _ *poolgrpc.GetPoolRequest, _ ...grpc.CallOption) (*poolgrpc.PoolResponse, error) {
	f.record(ctx, "CheckExpiry")
	return f.poolResp, f.err
}

func (f *fakePoolClient) GetPool(ctx context.Context, _ *poolgrpc.GetPoolRequest, _ ...grpc.CallOption) (*poolgrpc.PoolResponse, error) {
	f.record(ctx, "GetPool")
	return f.poolResp, f.err
}

func (f *fakePoolClient) BalanceOf(ctx context.Context, _ *poolgrpc.GetPoolRequest, _ ...grpc.CallOption) (*poolgrpc.BalanceResponse, error) {
	f.record(ctx, "BalanceOf")
	return f.balanceResp, f.err
}

func (f *fakePoolClient) SharesOf(ctx context.Context, in *poolgrpc.SharesOfRequest, _ ...grpc.CallOption) (*poolgrpc.SharesOfResponse, error) {
	f.record(ctx, "SharesOf")
	f.lastShares = in
	return f.sharesResp, f.err
}

func (f *fakePoolClient) ListHolders(ctx context.Context, _ *poolgrpc.GetPoolRequest, _ ...grpc.CallOption) (*poolgrpc.ListHoldersResponse, error) {
	f.record(ctx, "ListHolders")
	return f.holdersResp, f.err
}

func (f *fakePoolClient) ListPools(ctx context.Context, in *poolgrpc.ListPoolsRequest, _ ...grpc.CallOption) (*poolgrpc.ListPoolsResponse, error) {
	f.record(ctx, "ListPools")
	f.lastList = in
	return f.listResp, f.err
}

func (f *fakePoolClient) ListEvents(ctx context.Context, _ *poolgrpc.ListEventsRequest, _ ...grpc.CallOption) (*poolgrpc.ListEventsResponse, error) {
	f.record(ctx, "ListEvents")
	return f.eventsResp, f.err
}

func (f *fakePoolClient) VerifyJournal(ctx context.Context, _ *poolgrpc.GetPoolRequest, _ ...grpc.CallOption) (*poolgrpc.VerifyJournalResponse, error) {
	f.record(ctx, "VerifyJournal")
	return f.verifyResp, f.err
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testPool(id uint64, status string) poolgrpc.Pool {
	return poolgrpc.Pool{
		ID:              id,
		Issuer:          "issuer",
		Treasury:        "treasury",
		Target:          1000,
		MinContribution: 10,
		MaxContribution: 800,
		Deadline:        testTime.Add(72 * time.Hour),
		Status:          status,
		CreatedAt:       testTime,
		UpdatedAt:       testTime,
	}
}

func actorContext(actorID string) func() Context {
	return func() Context { return Context{ActorID: actorID} }
}

func TestPoolCreateHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := &fakePoolClient{poolResp: &poolgrpc.PoolResponse{Pool: testPool(1, "OPEN")}}
		var notified []string
		notify := func(_ context.Context, uri string) { notified = append(notified, uri) }
		handler := PoolCreateHandler(client, actorContext("issuer"), notify)

		toolResult, result, err := handler(context.Background(), nil, PoolCreateInput{
			Treasury:        "treasury",
			Target:          1000,
			MinContribution: 10,
			MaxContribution: 800,
			Deadline:        "2026-03-04T12:00:00Z",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.ID != 1 || result.Status != "OPEN" {
			t.Fatalf("expected pool 1 OPEN, got %+v", result)
		}
		if result.Deadline != "2026-03-04T12:00:00Z" {
			t.Fatalf("expected RFC3339 deadline, got %q", result.Deadline)
		}
		if !client.lastCreate.Deadline.Equal(testTime.Add(72 * time.Hour)) {
			t.Fatalf("expected parsed deadline, got %s", client.lastCreate.Deadline)
		}
		if client.lastActor != "issuer" {
			t.Fatalf("expected actor issuer, got %q", client.lastActor)
		}
		if toolResult == nil || toolResult.Meta[poolgrpc.RequestIDHeader] != client.lastRequestID {
			t.Fatalf("expected request id %q in result metadata, got %+v", client.lastRequestID, toolResult)
		}
		if toolResult.Meta[InvocationIDMeta] == "" {
			t.Fatal("expected invocation id in result metadata")
		}
		if len(notified) != 2 || notified[0] != "pool://list" || notified[1] != "pool://1" {
			t.Fatalf("expected list and pool notifications, got %v", notified)
		}
	})

	t.Run("bad deadline", func(t *testing.T) {
		client := &fakePoolClient{}
		handler := PoolCreateHandler(client, nil, nil)
		_, _, err := handler(context.Background(), nil, PoolCreateInput{Deadline: "tomorrow"})
		if err == nil {
			t.Fatal("expected error for non RFC3339 deadline")
		}
		if len(client.methods) != 0 {
			t.Fatalf("expected no gRPC call, got %v", client.methods)
		}
	})

	t.Run("gRPC error", func(t *testing.T) {
		client := &fakePoolClient{err: errors.New("connection refused")}
		handler := PoolCreateHandler(client, nil, nil)
		_, _, err := handler(context.Background(), nil, PoolCreateInput{Deadline: "2026-03-04T12:00:00Z"})
		if err == nil || !strings.Contains(err.Error(), "pool create failed") {
			t.Fatalf("expected wrapped create error, got %v", err)
		}
	})

	t.Run("nil response", func(t *testing.T) {
		client := &fakePoolClient{}
		handler := PoolCreateHandler(client, nil, nil)
		_, _, err := handler(context.Background(), nil, PoolCreateInput{Deadline: "2026-03-04T12:00:00Z"})
		if err == nil {
			t.Fatal("expected error for missing response")
		}
	})
}

func TestPoolContributeHandler(t *testing.T) {
	pool := testPool(1, "FUNDING")
	pool.TotalRaised = 1100
	client := &fakePoolClient{contributeResp: &poolgrpc.ContributeResponse{
		Pool: pool,
		Contribution: poolgrpc.Contribution{
			PoolID: 1, Index: 2, Contributor: "bob", Amount: 700, Shares: 700, CreatedAt: testTime,
		},
	}}
	handler := PoolContributeHandler(client, actorContext("bob"), nil)

	_, result, err := handler(context.Background(), nil, PoolContributeInput{PoolID: 1, Amount: 700})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Pool.Status != "FUNDING" || result.Pool.TotalRaised != 1100 {
		t.Fatalf("expected FUNDING pool with 1100 raised, got %+v", result.Pool)
	}
	if result.Contribution.Shares != 700 || result.Contribution.Contributor != "bob" {
		t.Fatalf("expected 700 shares for bob, got %+v", result.Contribution)
	}
	if client.lastContribute.Contributor != "" {
		t.Fatalf("expected contributor left to the actor header, got %q", client.lastContribute.Contributor)
	}
	if client.lastActor != "bob" {
		t.Fatalf("expected actor bob, got %q", client.lastActor)
	}
}

func TestPoolActionHandlers(t *testing.T) {
	tests := []struct {
		name    string
		handler func(poolgrpc.PoolServiceClient) mcp.ToolHandlerFor[PoolActionInput, PoolResult]
		method  string
	}{
		{
			name: "lock",
			handler: func(c poolgrpc.PoolServiceClient) mcp.ToolHandlerFor[PoolActionInput, PoolResult] {
				return PoolLockHandler(c, actorContext("issuer"), nil)
			},
			method: "LockPool",
		},
		{
			name: "cancel",
			handler: func(c poolgrpc.PoolServiceClient) mcp.ToolHandlerFor[PoolActionInput, PoolResult] {
				return PoolCancelHandler(c, actorContext("issuer"), nil)
			},
			method: "CancelPool",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakePoolClient{poolResp: &poolgrpc.PoolResponse{Pool: testPool(3, "LOCKED")}}
			_, result, err := tc.handler(client)(context.Background(), nil, PoolActionInput{PoolID: 3, Caller: "other"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.ID != 3 {
				t.Fatalf("expected pool 3, got %d", result.ID)
			}
			if len(client.methods) != 1 || client.methods[0] != tc.method {
				t.Fatalf("expected %s, got %v", tc.method, client.methods)
			}
			if client.lastAction.PoolID != 3 || client.lastAction.Caller != "other" {
				t.Fatalf("expected explicit caller forwarded, got %+v", client.lastAction)
			}
		})
	}
}

func TestPoolDistributeHandler(t *testing.T) {
	client := &fakePoolClient{distributionResp: &poolgrpc.DistributionResponse{Distribution: poolgrpc.Distribution{
		PoolID:      1,
		Proceeds:    1200,
		PayoutRate:  1,
		TotalShares: 1100,
		Remainder:   100,
		Payouts: []poolgrpc.Payout{
			{Holder: "alice", Shares: 400, Amount: 400},
			{Holder: "bob", Shares: 700, Amount: 700},
		},
		ExecutedAt: testTime,
	}}}
	handler := PoolDistributeHandler(client, actorContext("issuer"), nil)

	_, result, err := handler(context.Background(), nil, PoolDistributeInput{PoolID: 1, Proceeds: 1200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Remainder != 100 || len(result.Payouts) != 2 || result.Payouts[1].Amount != 700 {
		t.Fatalf("expected remainder 100 and two payouts, got %+v", result)
	}
}

func TestPoolRefundHandler(t *testing.T) {
	client := &fakePoolClient{refundResp: &poolgrpc.ClaimRefundResponse{
		Pool:         testPool(1, "CANCELLED"),
		Amount:       100,
		SharesBurned: 100,
		Transfer:     poolgrpc.Transfer{PoolID: 1, Seq: 1, Recipient: "alice", Amount: 100, Kind: "refund"},
	}}
	handler := PoolRefundHandler(client, actorContext("alice"), nil)

	_, result, err := handler(context.Background(), nil, PoolRefundInput{PoolID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Amount != 100 || result.Transfer.Kind != "refund" || result.Pool.Status != "CANCELLED" {
		t.Fatalf("expected refund of 100, got %+v", result)
	}
}

func TestPoolCheckExpiryHandler(t *testing.T) {
	pool := testPool(1, "CANCELLED")
	pool.CancelReason = "deadline"
	client := &fakePoolClient{poolResp: &poolgrpc.PoolResponse{Pool: pool}}
	handler := PoolCheckExpiryHandler(client, nil, nil)

	_, result, err := handler(context.Background(), nil, PoolIDInput{PoolID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CancelReason != "deadline" {
		t.Fatalf("expected deadline cancel reason, got %q", result.CancelReason)
	}
	if client.lastActor != "" {
		t.Fatalf("expected no actor header without context, got %q", client.lastActor)
	}
}

func TestPoolGetHandler(t *testing.T) {
	client := &fakePoolClient{
		poolResp:    &poolgrpc.PoolResponse{Pool: testPool(1, "FUNDING")},
		balanceResp: &poolgrpc.BalanceResponse{PoolID: 1, Balance: 1100},
	}
	handler := PoolGetHandler(client, nil)

	_, result, err := handler(context.Background(), nil, PoolIDInput{PoolID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.VaultBalance != 1100 || result.Pool.Status != "FUNDING" {
		t.Fatalf("expected FUNDING pool with balance 1100, got %+v", result)
	}
	if len(client.methods) != 2 || client.methods[0] != "GetPool" || client.methods[1] != "BalanceOf" {
		t.Fatalf("expected GetPool then BalanceOf, got %v", client.methods)
	}
}

func TestPoolSharesHandlerDefaultsHolderToActor(t *testing.T) {
	client := &fakePoolClient{sharesResp: &poolgrpc.SharesOfResponse{PoolID: 1, Holder: "alice", Shares: 400}}
	handler := PoolSharesHandler(client, actorContext("alice"))

	_, result, err := handler(context.Background(), nil, PoolSharesInput{PoolID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.lastShares.Holder != "alice" {
		t.Fatalf("expected holder alice, got %q", client.lastShares.Holder)
	}
	if result.Shares != 400 {
		t.Fatalf("expected 400 shares, got %d", result.Shares)
	}
}

func TestPoolListHandler(t *testing.T) {
	client := &fakePoolClient{listResp: &poolgrpc.ListPoolsResponse{
		Pools:         []poolgrpc.Pool{testPool(1, "OPEN"), testPool(2, "OPEN")},
		NextPageToken: 2,
	}}
	handler := PoolListHandler(client, nil)

	_, result, err := handler(context.Background(), nil, PoolListInput{Status: "OPEN", Filter: `target > 100`, PageSize: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Pools) != 2 || result.NextPageToken != 2 {
		t.Fatalf("expected two pools and next token 2, got %+v", result)
	}
	if client.lastList.Status != "OPEN" || client.lastList.PageSize != 2 || client.lastList.Filter != `target > 100` {
		t.Fatalf("expected filter forwarded, got %+v", client.lastList)
	}
}

func TestPoolEventsAndVerifyHandlers(t *testing.T) {
	client := &fakePoolClient{
		eventsResp: &poolgrpc.ListEventsResponse{Events: []poolgrpc.Event{
			{PoolID: 1, Seq: 1, Type: "pool.created", Timestamp: testTime, Height: 1, PayloadJSON: `{"pool_id":1}`},
		}},
		verifyResp: &poolgrpc.VerifyJournalResponse{PoolID: 1, Events: 1},
	}

	_, events, err := PoolEventsHandler(client, nil)(context.Background(), nil, PoolEventsInput{PoolID: 1})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events.Events) != 1 || events.Events[0].Type != "pool.created" || events.Events[0].Payload != `{"pool_id":1}` {
		t.Fatalf("expected created event, got %+v", events.Events)
	}

	_, verified, err := PoolVerifyJournalHandler(client, nil)(context.Background(), nil, PoolIDInput{PoolID: 1})
	if err != nil {
		t.Fatalf("verify journal: %v", err)
	}
	if !verified.Valid || verified.Events != 1 {
		t.Fatalf("expected valid journal of one event, got %+v", verified)
	}
}

func TestSetActorHandler(t *testing.T) {
	var current Context
	var notified []string
	handler := SetActorHandler(
		func(c Context) { current = c },
		func() Context { return current },
		func(_ context.Context, uri string) { notified = append(notified, uri) },
	)

	_, result, err := handler(context.Background(), nil, SetActorInput{ActorID: "  Alice "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ActorID != "alice" || current.ActorID != "alice" {
		t.Fatalf("expected normalized actor alice, got %q", result.ActorID)
	}
	if len(notified) != 1 || notified[0] != "context://current" {
		t.Fatalf("expected context notification, got %v", notified)
	}

	if _, _, err := handler(context.Background(), nil, SetActorInput{}); err == nil {
		t.Fatal("expected error for blank actor")
	}
}

func TestPoolResourceHandler(t *testing.T) {
	client := &fakePoolClient{
		poolResp:    &poolgrpc.PoolResponse{Pool: testPool(7, "LOCKED")},
		balanceResp: &poolgrpc.BalanceResponse{PoolID: 7, Balance: 500},
		holdersResp: &poolgrpc.ListHoldersResponse{Holders: []poolgrpc.Holder{{Holder: "alice", Shares: 500, Contributed: 500}}},
	}
	handler := PoolResourceHandler(client, nil)

	result, err := handler(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "pool://7"}})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	var payload PoolResourcePayload
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Pool.ID != 7 || payload.VaultBalance != 500 || len(payload.Holders) != 1 {
		t.Fatalf("expected pool 7 with one holder, got %+v", payload)
	}
}

func TestParsePoolURI(t *testing.T) {
	tests := []struct {
		uri     string
		suffix  string
		want    uint64
		wantErr bool
	}{
		{uri: "pool://12", want: 12},
		{uri: "pool://12/events", suffix: "events", want: 12},
		{uri: "pool://12", suffix: "events", wantErr: true},
		{uri: "pool://0", wantErr: true},
		{uri: "pool://abc", wantErr: true},
		{uri: "campaign://12", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parsePoolURI(tc.uri, tc.suffix)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.uri)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("expected %d for %q, got %d, %v", tc.want, tc.uri, got, err)
		}
	}
}

func TestMergeResponseMetadataPrefersServerRequestID(t *testing.T) {
	sent := ToolCallMetadata{RequestID: "sent", InvocationID: "inv"}
	got := MergeResponseMetadata(sent, metadata.Pairs(poolgrpc.RequestIDHeader, "echoed"))
	if got.RequestID != "echoed" || got.InvocationID != "inv" {
		t.Fatalf("expected echoed request id, got %+v", got)
	}
	if got := MergeResponseMetadata(sent, nil); got.RequestID != "sent" {
		t.Fatalf("expected sent request id without header, got %+v", got)
	}
}
