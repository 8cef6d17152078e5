package pool_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/engine"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	ctx    context.Context
	now    *time.Time
	client *poolgrpc.Client
	conn   *grpc.ClientConn
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil, nil)
}

// newTestEnvWith serves the pool service with interceptor options and dials
// it with extra client options.
func newTestEnvWith(t *testing.T, serverOpts []poolgrpc.InterceptorOption, dialOpts []grpc.DialOption) *testEnv {
	t.Helper()
	now := start
	eng, err := engine.New(engine.Config{Ledger: memory.New(), Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	service, err := poolgrpc.NewService(eng)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(poolgrpc.UnaryServerInterceptor(func() (string, error) {
		return "generated-id", nil
	}, serverOpts...)))
	poolgrpc.RegisterPoolServiceServer(server, service)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	opts := append([]grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, dialOpts...)
	conn, err := grpc.NewClient("passthrough:///bufnet", opts...)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{ctx: context.Background(), now: &now, client: poolgrpc.NewClient(conn), conn: conn}
}

func (e *testEnv) as(actor string) context.Context {
	return poolgrpc.WithActor(e.ctx, actor)
}

func (e *testEnv) createPool(t *testing.T) poolgrpc.Pool {
	t.Helper()
	resp, err := e.client.CreatePool(e.as("issuer"), &poolgrpc.CreatePoolRequest{
		Treasury:        "treasury",
		Target:          1000,
		MinContribution: 10,
		MaxContribution: 800,
		Deadline:        start.Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return resp.Pool
}

func TestLifecycleOverGRPC(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPool(t)
	if p.ID != 1 || p.Issuer != "issuer" || p.Status != "OPEN" {
		t.Fatalf("unexpected pool %+v", p)
	}

	if _, err := env.client.Contribute(env.as("alice"), &poolgrpc.ContributeRequest{PoolID: p.ID, Amount: 400}); err != nil {
		t.Fatalf("contribute alice: %v", err)
	}
	contributed, err := env.client.Contribute(env.ctx, &poolgrpc.ContributeRequest{PoolID: p.ID, Contributor: "bob", Amount: 700})
	if err != nil {
		t.Fatalf("contribute bob: %v", err)
	}
	if contributed.Pool.Status != "FUNDING" || contributed.Contribution.Index != 2 {
		t.Fatalf("expected funding after second contribution, got %+v", contributed)
	}

	if _, err := env.client.LockPool(env.as("issuer"), &poolgrpc.PoolActionRequest{PoolID: p.ID}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	dist, err := env.client.TriggerDistribution(env.as("issuer"), &poolgrpc.TriggerDistributionRequest{PoolID: p.ID, Proceeds: 1200})
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if dist.Distribution.PayoutRate != 1 || dist.Distribution.Remainder != 100 || len(dist.Distribution.Payouts) != 2 {
		t.Fatalf("unexpected distribution %+v", dist.Distribution)
	}

	balance, err := env.client.BalanceOf(env.ctx, &poolgrpc.GetPoolRequest{PoolID: p.ID})
	if err != nil || balance.Balance != 0 {
		t.Fatalf("expected empty vault, got %+v, %v", balance, err)
	}
	shares, err := env.client.SharesOf(env.as("alice"), &poolgrpc.SharesOfRequest{PoolID: p.ID})
	if err != nil || shares.Shares != 400 || shares.Holder != "alice" {
		t.Fatalf("expected alice to hold 400, got %+v, %v", shares, err)
	}
	transfers, err := env.client.ListTransfers(env.ctx, &poolgrpc.GetPoolRequest{PoolID: p.ID})
	if err != nil || len(transfers.Transfers) != 4 {
		t.Fatalf("expected capital, two payouts and remainder, got %+v, %v", transfers, err)
	}
	verified, err := env.client.VerifyJournal(env.ctx, &poolgrpc.GetPoolRequest{PoolID: p.ID})
	if err != nil || verified.Events == 0 {
		t.Fatalf("verify journal: %+v, %v", verified, err)
	}
	stats, err := env.client.GetStats(env.ctx, &poolgrpc.GetStatsRequest{})
	if err != nil || stats.Pools != 1 || stats.ByStatus["CLOSED"] != 1 || stats.TotalDistributed != 1200 {
		t.Fatalf("unexpected stats %+v, %v", stats, err)
	}
}

func TestDomainErrorsCrossTheWire(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPool(t)

	tests := []struct {
		name string
		call func() error
		want error
		code codes.Code
	}{
		{
			name: "unknown pool",
			call: func() error {
				_, err := env.client.GetPool(env.ctx, &poolgrpc.GetPoolRequest{PoolID: 99})
				return err
			},
			want: ledger.ErrPoolNotFound,
			code: codes.NotFound,
		},
		{
			name: "out of bounds",
			call: func() error {
				_, err := env.client.Contribute(env.as("alice"), &poolgrpc.ContributeRequest{PoolID: p.ID, Amount: 5})
				return err
			},
			want: ledger.ErrOutOfBounds,
			code: codes.OutOfRange,
		},
		{
			name: "not issuer",
			call: func() error {
				_, err := env.client.CancelPool(env.as("mallory"), &poolgrpc.PoolActionRequest{PoolID: p.ID})
				return err
			},
			want: ledger.ErrUnauthorized,
			code: codes.PermissionDenied,
		},
		{
			name: "lock below target",
			call: func() error {
				_, err := env.client.LockPool(env.as("issuer"), &poolgrpc.PoolActionRequest{PoolID: p.ID})
				return err
			},
			want: ledger.ErrInvalidState,
			code: codes.FailedPrecondition,
		},
		{
			name: "missing pool id",
			call: func() error {
				_, err := env.client.BalanceOf(env.ctx, &poolgrpc.GetPoolRequest{})
				return err
			},
			want: ledger.ErrInvalidArgument,
			code: codes.InvalidArgument,
		},
		{
			name: "malformed filter",
			call: func() error {
				_, err := env.client.ListEvents(env.ctx, &poolgrpc.ListEventsRequest{PoolID: p.ID, Filter: `owner = "x"`})
				return err
			},
			want: ledger.ErrInvalidArgument,
			code: codes.InvalidArgument,
		},
		{
			name: "unknown status filter",
			call: func() error {
				_, err := env.client.ListPools(env.ctx, &poolgrpc.ListPoolsRequest{Status: "paused"})
				return err
			},
			want: ledger.ErrInvalidArgument,
			code: codes.InvalidArgument,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := apperrors.GetCode(err).GRPCCode(); got != tc.code {
				t.Fatalf("expected gRPC code %s, got %s", tc.code, got)
			}
			var domainErr *apperrors.Error
			if !errors.As(err, &domainErr) {
				t.Fatalf("expected domain error, got %T", err)
			}
			if st, ok := status.FromError(domainErr.Cause); !ok || st.Code() != tc.code {
				t.Fatalf("expected wire status %s, got %v", tc.code, domainErr.Cause)
			}
		})
	}
}

func TestRequestIDReachesJournal(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPool(t)

	var header metadata.MD
	ctx := poolgrpc.WithRequestID(env.as("alice"), "req-42")
	if _, err := env.client.Contribute(ctx, &poolgrpc.ContributeRequest{PoolID: p.ID, Amount: 100}, grpc.Header(&header)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if got := header.Get(poolgrpc.RequestIDHeader); len(got) != 1 || got[0] != "req-42" {
		t.Fatalf("expected echoed request id, got %v", got)
	}

	events, err := env.client.ListEvents(env.ctx, &poolgrpc.ListEventsRequest{PoolID: p.ID})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events.Events) != 2 {
		t.Fatalf("expected creation and contribution, got %d", len(events.Events))
	}
	if events.Events[0].RequestID != "generated-id" || events.Events[1].RequestID != "req-42" {
		t.Fatalf("expected generated then explicit request ids, got %q and %q",
			events.Events[0].RequestID, events.Events[1].RequestID)
	}
	if events.Events[1].ActorID != "alice" {
		t.Fatalf("expected alice as actor, got %q", events.Events[1].ActorID)
	}
}

func TestListPoolsPaging(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.createPool(t)
	}
	first, err := env.client.ListPools(env.ctx, &poolgrpc.ListPoolsRequest{PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Pools) != 2 || first.NextPageToken != 2 {
		t.Fatalf("expected two pools and token 2, got %d and %d", len(first.Pools), first.NextPageToken)
	}
	second, err := env.client.ListPools(env.ctx, &poolgrpc.ListPoolsRequest{PageSize: 2, PageToken: first.NextPageToken})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(second.Pools) != 1 || second.Pools[0].ID != 3 || second.NextPageToken != 0 {
		t.Fatalf("expected final page with pool 3, got %+v", second)
	}
	open, err := env.client.ListPools(env.ctx, &poolgrpc.ListPoolsRequest{Status: "open", Issuer: "issuer"})
	if err != nil || len(open.Pools) != 3 {
		t.Fatalf("expected 3 open pools, got %+v, %v", open, err)
	}
	if _, err := env.client.CancelPool(env.as("issuer"), &poolgrpc.PoolActionRequest{PoolID: 2}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	filtered, err := env.client.ListPools(env.ctx, &poolgrpc.ListPoolsRequest{Filter: `status = "open" AND issuer = "issuer"`, PageSize: 1})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered.Pools) != 1 || filtered.Pools[0].ID != 1 || filtered.NextPageToken != 1 {
		t.Fatalf("expected pool 1 with token 1, got %+v", filtered)
	}
	rest, err := env.client.ListPools(env.ctx, &poolgrpc.ListPoolsRequest{Filter: `status = "open"`, PageToken: filtered.NextPageToken})
	if err != nil || len(rest.Pools) != 1 || rest.Pools[0].ID != 3 {
		t.Fatalf("expected the filtered page after 1 to skip cancelled pool 2, got %+v, %v", rest, err)
	}

	events, err := env.client.ListEvents(env.ctx, &poolgrpc.ListEventsRequest{PoolID: 2, Filter: `type = "pool.cancelled"`})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events.Events) != 1 || events.Events[0].ActorID != "issuer" {
		t.Fatalf("expected one cancellation by issuer, got %+v", events.Events)
	}
}

func TestExpiryOverGRPC(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPool(t)
	if _, err := env.client.Contribute(env.as("alice"), &poolgrpc.ContributeRequest{PoolID: p.ID, Amount: 100}); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	*env.now = start.Add(73 * time.Hour)

	_, err := env.client.Contribute(env.as("bob"), &poolgrpc.ContributeRequest{PoolID: p.ID, Amount: 100})
	if !errors.Is(err, ledger.ErrDeadlineExpired) {
		t.Fatalf("expected deadline expired, got %v", err)
	}
	refund, err := env.client.ClaimRefund(env.as("alice"), &poolgrpc.ClaimRefundRequest{PoolID: p.ID})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.Amount != 100 || refund.Pool.Status != "CANCELLED" || refund.Transfer.Kind != "refund" {
		t.Fatalf("unexpected refund %+v", refund)
	}
}

func TestRequestIdentityMustMatchActor(t *testing.T) {
	tests := []struct {
		name       string
		call       func(env *testEnv, poolID uint64) error
		wantDenied bool
	}{
		{
			name: "cancel naming the issuer",
			call: func(env *testEnv, poolID uint64) error {
				_, err := env.client.CancelPool(env.as("mallory"), &poolgrpc.PoolActionRequest{PoolID: poolID, Caller: "issuer"})
				return err
			},
			wantDenied: true,
		},
		{
			name: "lock naming the issuer",
			call: func(env *testEnv, poolID uint64) error {
				_, err := env.client.LockPool(env.as("mallory"), &poolgrpc.PoolActionRequest{PoolID: poolID, Caller: "issuer"})
				return err
			},
			wantDenied: true,
		},
		{
			name: "distribute naming the issuer",
			call: func(env *testEnv, poolID uint64) error {
				_, err := env.client.TriggerDistribution(env.as("mallory"), &poolgrpc.TriggerDistributionRequest{PoolID: poolID, Caller: "issuer", Proceeds: 1})
				return err
			},
			wantDenied: true,
		},
		{
			name: "contribute for someone else",
			call: func(env *testEnv, poolID uint64) error {
				_, err := env.client.Contribute(env.as("mallory"), &poolgrpc.ContributeRequest{PoolID: poolID, Contributor: "alice", Amount: 100})
				return err
			},
			wantDenied: true,
		},
		{
			name: "refund for someone else",
			call: func(env *testEnv, poolID uint64) error {
				_, err := env.client.ClaimRefund(env.as("mallory"), &poolgrpc.ClaimRefundRequest{PoolID: poolID, Contributor: "alice"})
				return err
			},
			wantDenied: true,
		},
		{
			name: "create as another issuer",
			call: func(env *testEnv, _ uint64) error {
				_, err := env.client.CreatePool(env.as("mallory"), &poolgrpc.CreatePoolRequest{
					Issuer:          "issuer",
					Treasury:        "treasury",
					Target:          1000,
					MinContribution: 10,
					MaxContribution: 800,
					Deadline:        start.Add(time.Hour),
				})
				return err
			},
			wantDenied: true,
		},
		{
			name: "cancel restating the caller",
			call: func(env *testEnv, poolID uint64) error {
				_, err := env.client.CancelPool(env.as("issuer"), &poolgrpc.PoolActionRequest{PoolID: poolID, Caller: " Issuer "})
				return err
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			p := env.createPool(t)
			err := tc.call(env, p.ID)
			if !tc.wantDenied {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, ledger.ErrUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
			if got := apperrors.GetCode(err).GRPCCode(); got != codes.PermissionDenied {
				t.Fatalf("expected gRPC code %s, got %s", codes.PermissionDenied, got)
			}
			got, err := env.client.GetPool(env.ctx, &poolgrpc.GetPoolRequest{PoolID: p.ID})
			if err != nil {
				t.Fatalf("get pool: %v", err)
			}
			if got.Pool.Status != "OPEN" || got.Pool.TotalRaised != 0 {
				t.Fatalf("expected untouched open pool, got %+v", got.Pool)
			}
			list, err := env.client.ListPools(env.ctx, &poolgrpc.ListPoolsRequest{})
			if err != nil || len(list.Pools) != 1 {
				t.Fatalf("expected only the seeded pool, got %+v, %v", list, err)
			}
		})
	}
}

func TestActorTokens(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	tokens, err := poolgrpc.NewActorTokens(secret, time.Minute, func() time.Time { return start })
	if err != nil {
		t.Fatalf("new actor tokens: %v", err)
	}
	forged, err := poolgrpc.NewActorTokens("ffffffffffffffffffffffffffffffff", time.Minute, func() time.Time { return start })
	if err != nil {
		t.Fatalf("new forged tokens: %v", err)
	}
	forgedToken, err := forged.Sign("issuer")
	if err != nil {
		t.Fatalf("sign forged: %v", err)
	}

	env := newTestEnvWith(t,
		[]poolgrpc.InterceptorOption{poolgrpc.WithActorTokens(tokens)},
		[]grpc.DialOption{grpc.WithChainUnaryInterceptor(poolgrpc.ActorTokenClientInterceptor(tokens))},
	)
	p := env.createPool(t)
	if p.Issuer != "issuer" {
		t.Fatalf("expected issuer from signed token, got %q", p.Issuer)
	}

	tests := []struct {
		name string
		ctx  context.Context
		code codes.Code
	}{
		{
			name: "no token",
			ctx:  env.ctx,
			code: codes.Unauthenticated,
		},
		{
			name: "garbage token",
			ctx:  metadata.AppendToOutgoingContext(env.ctx, poolgrpc.AuthorizationHeader, "Bearer not-a-token"),
			code: codes.Unauthenticated,
		},
		{
			name: "foreign signature",
			ctx:  metadata.AppendToOutgoingContext(env.ctx, poolgrpc.AuthorizationHeader, "Bearer "+forgedToken),
			code: codes.Unauthenticated,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.client.CancelPool(tc.ctx, &poolgrpc.PoolActionRequest{PoolID: p.ID, Caller: "issuer"})
			if st, _ := status.FromError(err); st.Code() != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}

	if _, err := env.client.CancelPool(env.as("mallory"), &poolgrpc.PoolActionRequest{PoolID: p.ID, Caller: "issuer"}); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected signed mallory to be refused, got %v", err)
	}
	cancelled, err := env.client.CancelPool(env.as("issuer"), &poolgrpc.PoolActionRequest{PoolID: p.ID})
	if err != nil || cancelled.Pool.Status != "CANCELLED" {
		t.Fatalf("expected signed issuer to cancel, got %+v, %v", cancelled, err)
	}
}

func TestActorTokensVerify(t *testing.T) {
	now := start
	tokens, err := poolgrpc.NewActorTokens("0123456789abcdef0123456789abcdef", time.Minute, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new actor tokens: %v", err)
	}
	token, err := tokens.Sign(" Alice ")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	actor, err := tokens.Verify(token)
	if err != nil || actor != "alice" {
		t.Fatalf("expected alice, got %q, %v", actor, err)
	}
	now = start.Add(2 * time.Minute)
	if _, err := tokens.Verify(token); !errors.Is(err, poolgrpc.ErrActorTokenExpired) {
		t.Fatalf("expected expired token, got %v", err)
	}
	if _, err := poolgrpc.NewActorTokens("short", 0, nil); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}
