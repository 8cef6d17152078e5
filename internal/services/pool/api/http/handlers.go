package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/platform/grpc/pagination"
	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	poolfilter "github.com/louisbranch/cellarpool/internal/services/pool/domain/filter"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/registry"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reader.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolgrpc.ToStats(stats))
}

func (h *Handler) listPools(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize, err := pageSizeParam(query.Get("page_size"))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(apperrors.CodeInvalidArgument), "page_size must be an integer")
		return
	}
	afterID, err := uintParam(query.Get("page_token"))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(apperrors.CodeInvalidArgument), "page_token must be a pool id")
		return
	}
	filter := registry.Filter{
		Issuer:  ledger.Address(query.Get("issuer")),
		AfterID: ledger.PoolID(afterID),
		Limit:   pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{Default: defaultPageSize, Max: maxPageSize}),
	}
	if filter.Expr, err = poolfilter.Parse(query.Get("filter"), poolfilter.PoolFields); err != nil {
		writeError(w, http.StatusBadRequest, string(apperrors.CodeInvalidArgument), "invalid filter: "+err.Error())
		return
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := ledger.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(apperrors.CodeInvalidArgument), err.Error())
			return
		}
		filter.Status = status
	}
	pools, err := h.reader.ListPools(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolgrpc.ListPoolsResponse{
		Pools:         poolgrpc.ToPools(pools),
		NextPageToken: pagination.NextCursor(pools, filter.Limit, func(p pool.Pool) uint64 { return uint64(p.ID) }),
	})
}

func (h *Handler) getPool(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	p, err := h.reader.GetPool(r.Context(), poolID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolgrpc.ToPool(p))
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	balance, err := h.reader.BalanceOf(r.Context(), poolID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolgrpc.BalanceResponse{PoolID: uint64(poolID), Balance: balance})
}

func (h *Handler) holders(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	records, err := h.reader.Holders(r.Context(), poolID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	holders := make([]poolgrpc.Holder, 0, len(records))
	for _, record := range records {
		holders = append(holders, poolgrpc.ToHolder(record))
	}
	writeJSON(w, http.StatusOK, poolgrpc.ListHoldersResponse{Holders: holders})
}

func (h *Handler) sharesOf(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	holder := ledger.Address(chi.URLParam(r, "holder")).Normalize()
	count, err := h.reader.SharesOf(r.Context(), poolID, holder)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolgrpc.SharesOfResponse{PoolID: uint64(poolID), Holder: holder.String(), Shares: count})
}

func (h *Handler) contributions(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	contributions, err := h.reader.ListContributions(r.Context(), poolID, pool.ContributionFilter{
		Contributor: ledger.Address(query.Get("contributor")),
		ActiveOnly:  query.Get("active_only") == "true",
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]poolgrpc.Contribution, 0, len(contributions))
	for _, c := range contributions {
		out = append(out, poolgrpc.ToContribution(c))
	}
	writeJSON(w, http.StatusOK, poolgrpc.ListContributionsResponse{Contributions: out})
}

func (h *Handler) distribution(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	record, err := h.reader.GetDistribution(r.Context(), poolID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolgrpc.ToDistribution(record))
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	afterSeq, err := uintParam(query.Get("after_seq"))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(apperrors.CodeInvalidArgument), "after_seq must be a sequence number")
		return
	}
	rawLimit, err := pageSizeParam(query.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(apperrors.CodeInvalidArgument), "limit must be an integer")
		return
	}
	expr, err := poolfilter.Parse(query.Get("filter"), poolfilter.EventFields)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(apperrors.CodeInvalidArgument), "invalid filter: "+err.Error())
		return
	}
	limit := pagination.ClampPageSize(rawLimit, pagination.PageSizeConfig{Default: defaultPageSize, Max: maxPageSize})
	events, err := h.reader.QueryEvents(r.Context(), poolID, event.Query{AfterSeq: afterSeq, Limit: limit, Filter: expr})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]poolgrpc.Event, 0, len(events))
	for _, evt := range events {
		out = append(out, poolgrpc.ToEvent(evt))
	}
	writeJSON(w, http.StatusOK, poolgrpc.ListEventsResponse{
		Events:        out,
		NextPageToken: pagination.NextCursor(events, limit, func(e event.Event) uint64 { return e.Seq }),
	})
}

func (h *Handler) transfers(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	transfers, err := h.reader.ListTransfers(r.Context(), poolID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]poolgrpc.Transfer, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, poolgrpc.ToTransfer(t))
	}
	writeJSON(w, http.StatusOK, poolgrpc.ListTransfersResponse{Transfers: out})
}

func poolIDParam(w http.ResponseWriter, r *http.Request) (ledger.PoolID, bool) {
	raw := chi.URLParam(r, "poolID")
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		writeError(w, http.StatusBadRequest, string(apperrors.CodeInvalidArgument), "pool id must be a positive integer")
		return 0, false
	}
	return ledger.PoolID(value), true
}

func uintParam(raw string) (uint64, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

// pageSizeParam parses a page size; values outside int32 are an error.
func pageSizeParam(raw string) (int32, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 32)
	return int32(value), err
}
