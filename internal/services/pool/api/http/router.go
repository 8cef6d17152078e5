// Package http serves a read-only JSON view of the pool ledger for
// dashboards. Writes go through the gRPC API only.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/louisbranch/cellarpool/internal/platform/logging"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/distribution"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/engine"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/registry"
)

// Reader is the read surface of the pool engine.
type Reader interface {
	GetPool(ctx context.Context, poolID ledger.PoolID) (pool.Pool, error)
	BalanceOf(ctx context.Context, poolID ledger.PoolID) (uint64, error)
	SharesOf(ctx context.Context, poolID ledger.PoolID, holder ledger.Address) (uint64, error)
	Holders(ctx context.Context, poolID ledger.PoolID) ([]engine.ShareRecord, error)
	ListPools(ctx context.Context, filter registry.Filter) ([]pool.Pool, error)
	Stats(ctx context.Context) (registry.Stats, error)
	ListContributions(ctx context.Context, poolID ledger.PoolID, filter pool.ContributionFilter) ([]pool.Contribution, error)
	GetDistribution(ctx context.Context, poolID ledger.PoolID) (distribution.Record, error)
	QueryEvents(ctx context.Context, poolID ledger.PoolID, q event.Query) ([]event.Event, error)
	ListTransfers(ctx context.Context, poolID ledger.PoolID) ([]escrow.Transfer, error)
}

// Handler serves the read API.
type Handler struct {
	reader Reader
	logger *logging.Logger
}

// NewHandler builds a handler. A nil logger discards output.
func NewHandler(reader Reader, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{reader: reader, logger: logger}
}

// NewRouter registers the read routes.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(handler.recoverMiddleware)
	r.Use(handler.loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", handler.stats)
		r.Get("/pools", handler.listPools)
		r.Route("/pools/{poolID}", func(r chi.Router) {
			r.Get("/", handler.getPool)
			r.Get("/balance", handler.balance)
			r.Get("/shares", handler.holders)
			r.Get("/shares/{holder}", handler.sharesOf)
			r.Get("/contributions", handler.contributions)
			r.Get("/distribution", handler.distribution)
			r.Get("/events", handler.events)
			r.Get("/transfers", handler.transfers)
		})
	})
	return r
}
