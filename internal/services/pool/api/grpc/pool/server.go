package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/platform/grpc/pagination"
	"github.com/louisbranch/cellarpool/internal/platform/requestctx"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/distribution"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/engine"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	poolfilter "github.com/louisbranch/cellarpool/internal/services/pool/domain/filter"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	poolstate "github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/registry"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultListPoolsPageSize  = 50
	maxListPoolsPageSize      = 200
	defaultListEventsPageSize = 100
	maxListEventsPageSize     = 500
)

// Engine is the pool engine surface the service depends on.
type Engine interface {
	CreatePool(ctx context.Context, params poolstate.Params) (poolstate.Pool, error)
	Contribute(ctx context.Context, poolID ledger.PoolID, contributor ledger.Address, amount uint64) (poolstate.ContributeResult, error)
	LockPool(ctx context.Context, poolID ledger.PoolID, caller ledger.Address) (poolstate.Pool, error)
	CancelPool(ctx context.Context, poolID ledger.PoolID, caller ledger.Address) (poolstate.Pool, error)
	TriggerDistribution(ctx context.Context, poolID ledger.PoolID, caller ledger.Address, proceeds uint64) (distribution.Record, error)
	ClaimRefund(ctx context.Context, poolID ledger.PoolID, contributor ledger.Address) (poolstate.RefundResult, error)
	CheckExpiry(ctx context.Context, poolID ledger.PoolID) (poolstate.Pool, error)
	GetPool(ctx context.Context, poolID ledger.PoolID) (poolstate.Pool, error)
	BalanceOf(ctx context.Context, poolID ledger.PoolID) (uint64, error)
	SharesOf(ctx context.Context, poolID ledger.PoolID, holder ledger.Address) (uint64, error)
	Holders(ctx context.Context, poolID ledger.PoolID) ([]engine.ShareRecord, error)
	ListPools(ctx context.Context, filter registry.Filter) ([]poolstate.Pool, error)
	Stats(ctx context.Context) (registry.Stats, error)
	ListContributions(ctx context.Context, poolID ledger.PoolID, filter poolstate.ContributionFilter) ([]poolstate.Contribution, error)
	GetDistribution(ctx context.Context, poolID ledger.PoolID) (distribution.Record, error)
	QueryEvents(ctx context.Context, poolID ledger.PoolID, q event.Query) ([]event.Event, error)
	ListTransfers(ctx context.Context, poolID ledger.PoolID) ([]escrow.Transfer, error)
	VerifyJournal(ctx context.Context, poolID ledger.PoolID) error
}

// Service implements PoolServiceServer over the engine.
type Service struct {
	engine Engine
}

// NewService builds the service.
func NewService(e Engine) (*Service, error) {
	if e == nil {
		return nil, errors.New("pool engine is required")
	}
	return &Service{engine: e}, nil
}

var _ PoolServiceServer = (*Service)(nil)

// actorOr returns value, or the calling actor when value is blank. Queries
// use it; a holder other than the caller may be looked up.
func actorOr(ctx context.Context, value string) ledger.Address {
	if strings.TrimSpace(value) != "" {
		return ledger.Address(value).Normalize()
	}
	return ledger.Address(requestctx.ActorIDFromContext(ctx)).Normalize()
}

// callerFrom resolves the address a mutating call acts as. A request field
// may restate the calling actor but never name someone else.
func callerFrom(ctx context.Context, field, value string) (ledger.Address, error) {
	actor := ledger.Address(requestctx.ActorIDFromContext(ctx)).Normalize()
	named := ledger.Address(value).Normalize()
	if actor == "" && actorRequired(ctx) {
		return "", status.Error(codes.Unauthenticated, "actor token is required")
	}
	if actor == "" {
		return named, nil
	}
	if named != "" && named != actor {
		return "", apperrors.New(apperrors.CodePoolUnauthorized,
			fmt.Sprintf("%s %s does not match caller %s", field, named, actor)).ToGRPCStatus()
	}
	return actor, nil
}

func requirePoolID(id uint64) error {
	if id == 0 {
		return invalidArgument("pool_id is required")
	}
	return nil
}

// CreatePool registers a new pool.
func (s *Service) CreatePool(ctx context.Context, in *CreatePoolRequest) (*PoolResponse, error) {
	if in == nil {
		return nil, invalidArgument("create pool request is required")
	}
	issuer, err := callerFrom(ctx, "issuer", in.Issuer)
	if err != nil {
		return nil, err
	}
	p, err := s.engine.CreatePool(ctx, poolstate.Params{
		Issuer:          issuer,
		Treasury:        ledger.Address(in.Treasury),
		Distributor:     ledger.Address(in.Distributor),
		Target:          in.Target,
		MinContribution: in.MinContribution,
		MaxContribution: in.MaxContribution,
		HardCap:         in.HardCap,
		Deadline:        in.Deadline,
	})
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &PoolResponse{Pool: ToPool(p)}, nil
}

// Contribute deposits into a pool.
func (s *Service) Contribute(ctx context.Context, in *ContributeRequest) (*ContributeResponse, error) {
	if in == nil {
		return nil, invalidArgument("contribute request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	contributor, err := callerFrom(ctx, "contributor", in.Contributor)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.Contribute(ctx, ledger.PoolID(in.PoolID), contributor, in.Amount)
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &ContributeResponse{Pool: ToPool(res.Pool), Contribution: ToContribution(res.Contribution)}, nil
}

// LockPool locks a funded pool.
func (s *Service) LockPool(ctx context.Context, in *PoolActionRequest) (*PoolResponse, error) {
	if in == nil {
		return nil, invalidArgument("lock pool request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	caller, err := callerFrom(ctx, "caller", in.Caller)
	if err != nil {
		return nil, err
	}
	p, err := s.engine.LockPool(ctx, ledger.PoolID(in.PoolID), caller)
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &PoolResponse{Pool: ToPool(p)}, nil
}

// CancelPool cancels an open or funding pool.
func (s *Service) CancelPool(ctx context.Context, in *PoolActionRequest) (*PoolResponse, error) {
	if in == nil {
		return nil, invalidArgument("cancel pool request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	caller, err := callerFrom(ctx, "caller", in.Caller)
	if err != nil {
		return nil, err
	}
	p, err := s.engine.CancelPool(ctx, ledger.PoolID(in.PoolID), caller)
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &PoolResponse{Pool: ToPool(p)}, nil
}

// TriggerDistribution distributes proceeds of a locked pool.
func (s *Service) TriggerDistribution(ctx context.Context, in *TriggerDistributionRequest) (*DistributionResponse, error) {
	if in == nil {
		return nil, invalidArgument("trigger distribution request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	caller, err := callerFrom(ctx, "caller", in.Caller)
	if err != nil {
		return nil, err
	}
	record, err := s.engine.TriggerDistribution(ctx, ledger.PoolID(in.PoolID), caller, in.Proceeds)
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &DistributionResponse{Distribution: ToDistribution(record)}, nil
}

// ClaimRefund refunds a contributor of a cancelled pool.
func (s *Service) ClaimRefund(ctx context.Context, in *ClaimRefundRequest) (*ClaimRefundResponse, error) {
	if in == nil {
		return nil, invalidArgument("claim refund request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	contributor, err := callerFrom(ctx, "contributor", in.Contributor)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ClaimRefund(ctx, ledger.PoolID(in.PoolID), contributor)
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &ClaimRefundResponse{
		Pool:          ToPool(res.Pool),
		Amount:        res.Amount,
		SharesBurned:  res.SharesBurned,
		Contributions: res.Contributions,
		Transfer:      ToTransfer(res.Transfer),
	}, nil
}

// CheckExpiry applies the deadline transition when it is due.
func (s *Service) CheckExpiry(ctx context.Context, in *GetPoolRequest) (*PoolResponse, error) {
	if in == nil {
		return nil, invalidArgument("check expiry request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	p, err := s.engine.CheckExpiry(ctx, ledger.PoolID(in.PoolID))
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &PoolResponse{Pool: ToPool(p)}, nil
}

// GetPool returns a pool.
func (s *Service) GetPool(ctx context.Context, in *GetPoolRequest) (*PoolResponse, error) {
	if in == nil {
		return nil, invalidArgument("get pool request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	p, err := s.engine.GetPool(ctx, ledger.PoolID(in.PoolID))
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &PoolResponse{Pool: ToPool(p)}, nil
}

// BalanceOf returns the pool's vault balance.
func (s *Service) BalanceOf(ctx context.Context, in *GetPoolRequest) (*BalanceResponse, error) {
	if in == nil {
		return nil, invalidArgument("balance request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	balance, err := s.engine.BalanceOf(ctx, ledger.PoolID(in.PoolID))
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &BalanceResponse{PoolID: in.PoolID, Balance: balance}, nil
}

// SharesOf returns a holder's shares.
func (s *Service) SharesOf(ctx context.Context, in *SharesOfRequest) (*SharesOfResponse, error) {
	if in == nil {
		return nil, invalidArgument("shares request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	holder := actorOr(ctx, in.Holder)
	count, err := s.engine.SharesOf(ctx, ledger.PoolID(in.PoolID), holder)
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &SharesOfResponse{PoolID: in.PoolID, Holder: holder.String(), Shares: count}, nil
}

// ListHolders returns the pool's positive share positions.
func (s *Service) ListHolders(ctx context.Context, in *GetPoolRequest) (*ListHoldersResponse, error) {
	if in == nil {
		return nil, invalidArgument("list holders request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	records, err := s.engine.Holders(ctx, ledger.PoolID(in.PoolID))
	if err != nil {
		return nil, handleDomainError(err)
	}
	holders := make([]Holder, 0, len(records))
	for _, r := range records {
		holders = append(holders, ToHolder(r))
	}
	return &ListHoldersResponse{Holders: holders}, nil
}

// ListPools pages through pools by id. The filter field takes an AIP-160
// expression over issuer, treasury, distributor, status, target,
// total_raised, deadline and created_at.
func (s *Service) ListPools(ctx context.Context, in *ListPoolsRequest) (*ListPoolsResponse, error) {
	if in == nil {
		in = &ListPoolsRequest{}
	}
	filter := registry.Filter{
		Issuer:  ledger.Address(in.Issuer),
		AfterID: ledger.PoolID(in.PageToken),
		Limit: pagination.ClampPageSize(in.PageSize, pagination.PageSizeConfig{
			Default: defaultListPoolsPageSize,
			Max:     maxListPoolsPageSize,
		}),
	}
	if strings.TrimSpace(in.Status) != "" {
		parsed, err := ledger.ParseStatus(in.Status)
		if err != nil {
			return nil, invalidArgument(err.Error())
		}
		filter.Status = parsed
	}
	expr, err := poolfilter.Parse(in.Filter, poolfilter.PoolFields)
	if err != nil {
		return nil, invalidArgument("invalid filter: " + err.Error())
	}
	filter.Expr = expr
	pools, err := s.engine.ListPools(ctx, filter)
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &ListPoolsResponse{
		Pools: ToPools(pools),
		NextPageToken: pagination.NextCursor(pools, filter.Limit, func(p poolstate.Pool) uint64 {
			return uint64(p.ID)
		}),
	}, nil
}

// GetStats aggregates every pool.
func (s *Service) GetStats(ctx context.Context, _ *GetStatsRequest) (*StatsResponse, error) {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return nil, handleDomainError(err)
	}
	resp := ToStats(stats)
	return &resp, nil
}

// ListContributions lists a pool's contributions by index.
func (s *Service) ListContributions(ctx context.Context, in *ListContributionsRequest) (*ListContributionsResponse, error) {
	if in == nil {
		return nil, invalidArgument("list contributions request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	contributions, err := s.engine.ListContributions(ctx, ledger.PoolID(in.PoolID), poolstate.ContributionFilter{
		Contributor: ledger.Address(in.Contributor),
		ActiveOnly:  in.ActiveOnly,
	})
	if err != nil {
		return nil, handleDomainError(err)
	}
	out := make([]Contribution, 0, len(contributions))
	for _, c := range contributions {
		out = append(out, ToContribution(c))
	}
	return &ListContributionsResponse{Contributions: out}, nil
}

// GetDistribution returns the distribution record of a closed pool.
func (s *Service) GetDistribution(ctx context.Context, in *GetPoolRequest) (*DistributionResponse, error) {
	if in == nil {
		return nil, invalidArgument("get distribution request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	record, err := s.engine.GetDistribution(ctx, ledger.PoolID(in.PoolID))
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &DistributionResponse{Distribution: ToDistribution(record)}, nil
}

// ListEvents pages through a pool's journal by sequence. The filter field
// takes an AIP-160 expression over type, actor, request_id, seq and ts.
func (s *Service) ListEvents(ctx context.Context, in *ListEventsRequest) (*ListEventsResponse, error) {
	if in == nil {
		return nil, invalidArgument("list events request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	pageSize := pagination.ClampPageSize(in.PageSize, pagination.PageSizeConfig{
		Default: defaultListEventsPageSize,
		Max:     maxListEventsPageSize,
	})
	expr, err := poolfilter.Parse(in.Filter, poolfilter.EventFields)
	if err != nil {
		return nil, invalidArgument("invalid filter: " + err.Error())
	}
	events, err := s.engine.QueryEvents(ctx, ledger.PoolID(in.PoolID), event.Query{
		AfterSeq: in.AfterSeq,
		Limit:    pageSize,
		Filter:   expr,
	})
	if err != nil {
		return nil, handleDomainError(err)
	}
	out := make([]Event, 0, len(events))
	for _, evt := range events {
		out = append(out, ToEvent(evt))
	}
	return &ListEventsResponse{
		Events:        out,
		NextPageToken: pagination.NextCursor(events, pageSize, func(e event.Event) uint64 { return e.Seq }),
	}, nil
}

// ListTransfers returns the pool's recorded transfers.
func (s *Service) ListTransfers(ctx context.Context, in *GetPoolRequest) (*ListTransfersResponse, error) {
	if in == nil {
		return nil, invalidArgument("list transfers request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	transfers, err := s.engine.ListTransfers(ctx, ledger.PoolID(in.PoolID))
	if err != nil {
		return nil, handleDomainError(err)
	}
	out := make([]Transfer, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, ToTransfer(t))
	}
	return &ListTransfersResponse{Transfers: out}, nil
}

// VerifyJournal checks the pool's hash chain and signatures.
func (s *Service) VerifyJournal(ctx context.Context, in *GetPoolRequest) (*VerifyJournalResponse, error) {
	if in == nil {
		return nil, invalidArgument("verify journal request is required")
	}
	if err := requirePoolID(in.PoolID); err != nil {
		return nil, err
	}
	poolID := ledger.PoolID(in.PoolID)
	if err := s.engine.VerifyJournal(ctx, poolID); err != nil {
		return nil, handleDomainError(err)
	}
	events, err := s.engine.QueryEvents(ctx, poolID, event.Query{})
	if err != nil {
		return nil, handleDomainError(err)
	}
	return &VerifyJournalResponse{PoolID: in.PoolID, Events: len(events)}, nil
}
