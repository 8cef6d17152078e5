package pool

import (
	"context"

	"google.golang.org/grpc"
)

// PoolServiceClient is the client API of PoolService.
type PoolServiceClient interface {
	CreatePool(ctx context.Context, in *CreatePoolRequest, opts ...grpc.CallOption) (*PoolResponse, error)
	Contribute(ctx context.Context, in *ContributeRequest, opts ...grpc.CallOption) (*ContributeResponse, error)
	LockPool(ctx context.Context, in *PoolActionRequest, opts ...grpc.CallOption) (*PoolResponse, error)
	CancelPool(ctx context.Context, in *PoolActionRequest, opts ...grpc.CallOption) (*PoolResponse, error)
	TriggerDistribution(ctx context.Context, in *TriggerDistributionRequest, opts ...grpc.CallOption) (*DistributionResponse, error)
	ClaimRefund(ctx context.Context, in *ClaimRefundRequest, opts ...grpc.CallOption) (*ClaimRefundResponse, error)
	CheckExpiry(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*PoolResponse, error)
	GetPool(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*PoolResponse, error)
	BalanceOf(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*BalanceResponse, error)
	SharesOf(ctx context.Context, in *SharesOfRequest, opts ...grpc.CallOption) (*SharesOfResponse, error)
	ListHolders(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*ListHoldersResponse, error)
	ListPools(ctx context.Context, in *ListPoolsRequest, opts ...grpc.CallOption) (*ListPoolsResponse, error)
	GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*StatsResponse, error)
	ListContributions(ctx context.Context, in *ListContributionsRequest, opts ...grpc.CallOption) (*ListContributionsResponse, error)
	GetDistribution(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*DistributionResponse, error)
	ListEvents(ctx context.Context, in *ListEventsRequest, opts ...grpc.CallOption) (*ListEventsResponse, error)
	ListTransfers(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*ListTransfersResponse, error)
	VerifyJournal(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*VerifyJournalResponse, error)
}

// Client calls PoolService over a connection. Domain errors come back as
// *apperrors.Error values.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

var _ PoolServiceClient = (*Client)(nil)

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, clientError(err)
	}
	return out, nil
}

func (c *Client) CreatePool(ctx context.Context, in *CreatePoolRequest, opts ...grpc.CallOption) (*PoolResponse, error) {
	return invoke[PoolResponse](ctx, c.cc, "CreatePool", in, opts)
}

func (c *Client) Contribute(ctx context.Context, in *ContributeRequest, opts ...grpc.CallOption) (*ContributeResponse, error) {
	return invoke[ContributeResponse](ctx, c.cc, "Contribute", in, opts)
}

func (c *Client) LockPool(ctx context.Context, in *PoolActionRequest, opts ...grpc.CallOption) (*PoolResponse, error) {
	return invoke[PoolResponse](ctx, c.cc, "LockPool", in, opts)
}

func (c *Client) CancelPool(ctx context.Context, in *PoolActionRequest, opts ...grpc.CallOption) (*PoolResponse, error) {
	return invoke[PoolResponse](ctx, c.cc, "CancelPool", in, opts)
}

func (c *Client) TriggerDistribution(ctx context.Context, in *TriggerDistributionRequest, opts ...grpc.CallOption) (*DistributionResponse, error) {
	return invoke[DistributionResponse](ctx, c.cc, "TriggerDistribution", in, opts)
}

func (c *Client) ClaimRefund(ctx context.Context, in *ClaimRefundRequest, opts ...grpc.CallOption) (*ClaimRefundResponse, error) {
	return invoke[ClaimRefundResponse](ctx, c.cc, "ClaimRefund", in, opts)
}

func (c *Client) CheckExpiry(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*PoolResponse, error) {
	return invoke[PoolResponse](ctx, c.cc, "CheckExpiry", in, opts)
}

func (c *Client) GetPool(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*PoolResponse, error) {
	return invoke[PoolResponse](ctx, c.cc, "GetPool", in, opts)
}

func (c *Client) BalanceOf(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	return invoke[BalanceResponse](ctx, c.cc, "BalanceOf", in, opts)
}

func (c *Client) SharesOf(ctx context.Context, in *SharesOfRequest, opts ...grpc.CallOption) (*SharesOfResponse, error) {
	return invoke[SharesOfResponse](ctx, c.cc, "SharesOf", in, opts)
}

func (c *Client) ListHolders(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*ListHoldersResponse, error) {
	return invoke[ListHoldersResponse](ctx, c.cc, "ListHolders", in, opts)
}

func (c *Client) ListPools(ctx context.Context, in *ListPoolsRequest, opts ...grpc.CallOption) (*ListPoolsResponse, error) {
	return invoke[ListPoolsResponse](ctx, c.cc, "ListPools", in, opts)
}

func (c *Client) GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	return invoke[StatsResponse](ctx, c.cc, "GetStats", in, opts)
}

func (c *Client) ListContributions(ctx context.Context, in *ListContributionsRequest, opts ...grpc.CallOption) (*ListContributionsResponse, error) {
	return invoke[ListContributionsResponse](ctx, c.cc, "ListContributions", in, opts)
}

func (c *Client) GetDistribution(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*DistributionResponse, error) {
	return invoke[DistributionResponse](ctx, c.cc, "GetDistribution", in, opts)
}

func (c *Client) ListEvents(ctx context.Context, in *ListEventsRequest, opts ...grpc.CallOption) (*ListEventsResponse, error) {
	return invoke[ListEventsResponse](ctx, c.cc, "ListEvents", in, opts)
}

func (c *Client) ListTransfers(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*ListTransfersResponse, error) {
	return invoke[ListTransfersResponse](ctx, c.cc, "ListTransfers", in, opts)
}

func (c *Client) VerifyJournal(ctx context.Context, in *GetPoolRequest, opts ...grpc.CallOption) (*VerifyJournalResponse, error) {
	return invoke[VerifyJournalResponse](ctx, c.cc, "VerifyJournal", in, opts)
}
