package pool

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cellarpool.pool.v1.PoolService"

// PoolServiceServer is the server API of PoolService.
type PoolServiceServer interface {
	CreatePool(context.Context, *CreatePoolRequest) (*PoolResponse, error)
	Contribute(context.Context, *ContributeRequest) (*ContributeResponse, error)
	LockPool(context.Context, *PoolActionRequest) (*PoolResponse, error)
	CancelPool(context.Context, *PoolActionRequest) (*PoolResponse, error)
	TriggerDistribution(context.Context, *TriggerDistributionRequest) (*DistributionResponse, error)
	ClaimRefund(context.Context, *ClaimRefundRequest) (*ClaimRefundResponse, error)
	CheckExpiry(context.Context, *GetPoolRequest) (*PoolResponse, error)
	GetPool(context.Context, *GetPoolRequest) (*PoolResponse, error)
	BalanceOf(context.Context, *GetPoolRequest) (*BalanceResponse, error)
	SharesOf(context.Context, *SharesOfRequest) (*SharesOfResponse, error)
	ListHolders(context.Context, *GetPoolRequest) (*ListHoldersResponse, error)
	ListPools(context.Context, *ListPoolsRequest) (*ListPoolsResponse, error)
	GetStats(context.Context, *GetStatsRequest) (*StatsResponse, error)
	ListContributions(context.Context, *ListContributionsRequest) (*ListContributionsResponse, error)
	GetDistribution(context.Context, *GetPoolRequest) (*DistributionResponse, error)
	ListEvents(context.Context, *ListEventsRequest) (*ListEventsResponse, error)
	ListTransfers(context.Context, *GetPoolRequest) (*ListTransfersResponse, error)
	VerifyJournal(context.Context, *GetPoolRequest) (*VerifyJournalResponse, error)
}

// RegisterPoolServiceServer registers srv on s.
func RegisterPoolServiceServer(s grpc.ServiceRegistrar, srv PoolServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes PoolService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PoolServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreatePool", PoolServiceServer.CreatePool),
		unary("Contribute", PoolServiceServer.Contribute),
		unary("LockPool", PoolServiceServer.LockPool),
		unary("CancelPool", PoolServiceServer.CancelPool),
		unary("TriggerDistribution", PoolServiceServer.TriggerDistribution),
		unary("ClaimRefund", PoolServiceServer.ClaimRefund),
		unary("CheckExpiry", PoolServiceServer.CheckExpiry),
		unary("GetPool", PoolServiceServer.GetPool),
		unary("BalanceOf", PoolServiceServer.BalanceOf),
		unary("SharesOf", PoolServiceServer.SharesOf),
		unary("ListHolders", PoolServiceServer.ListHolders),
		unary("ListPools", PoolServiceServer.ListPools),
		unary("GetStats", PoolServiceServer.GetStats),
		unary("ListContributions", PoolServiceServer.ListContributions),
		unary("GetDistribution", PoolServiceServer.GetDistribution),
		unary("ListEvents", PoolServiceServer.ListEvents),
		unary("ListTransfers", PoolServiceServer.ListTransfers),
		unary("VerifyJournal", PoolServiceServer.VerifyJournal),
	},
	Metadata: "cellarpool/pool/v1/pool.json",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the method descriptor dispatching to call.
func unary[Req, Resp any](method string, call func(PoolServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(PoolServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			})
		},
	}
}
