// Package registry creates pools and answers lookups across them.
package registry

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/filter"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
)

// Filter narrows ListPools. Zero fields match everything.
type Filter struct {
	Issuer  ledger.Address
	Status  ledger.PoolStatus
	AfterID ledger.PoolID
	// Limit caps the result size; zero means no limit.
	Limit int
	// Expr is an AIP-160 expression over filter.PoolFields, combined with
	// the fields above.
	Expr *filter.Expr
}

// Store persists pools and the id counter.
type Store interface {
	pool.Store
	// NextPoolID reserves and returns the next sequential pool id.
	NextPoolID(ctx context.Context) (ledger.PoolID, error)
	// ListPools returns pools matching filter ordered by id.
	ListPools(ctx context.Context, filter Filter) ([]pool.Pool, error)
}

// Stats summarizes every pool in the registry.
type Stats struct {
	Pools            int
	ByStatus         map[ledger.PoolStatus]int
	ActiveRaised     uint64
	TotalDistributed uint64
}

// Registry creates and finds pools.
type Registry struct {
	store Store
	now   func() time.Time
}

// New builds a registry over store.
func New(store Store, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, now: now}
}

// Create validates params, assigns the next id and stores an Open pool.
func (r *Registry) Create(ctx context.Context, params pool.Params) (pool.Pool, []event.Event, error) {
	now := r.now().UTC()
	params = params.Normalize()
	if err := params.Validate(now); err != nil {
		return pool.Pool{}, nil, err
	}
	id, err := r.store.NextPoolID(ctx)
	if err != nil {
		return pool.Pool{}, nil, fmt.Errorf("reserve pool id: %w", err)
	}
	p := pool.New(id, params, now)
	created, err := event.New(id, event.TypePoolCreated, p.Issuer, now, event.PoolCreatedPayload{
		Issuer:          p.Issuer,
		Treasury:        p.Treasury,
		Distributor:     p.Distributor,
		Target:          p.Target,
		MinContribution: p.MinContribution,
		MaxContribution: p.MaxContribution,
		HardCap:         p.HardCap,
		Deadline:        p.Deadline,
	})
	if err != nil {
		return pool.Pool{}, nil, err
	}
	if err := r.store.PutPool(ctx, p); err != nil {
		return pool.Pool{}, nil, fmt.Errorf("store pool: %w", err)
	}
	return p, []event.Event{created}, nil
}

// Get returns the pool or ErrPoolNotFound.
func (r *Registry) Get(ctx context.Context, id ledger.PoolID) (pool.Pool, error) {
	if id == 0 {
		return pool.Pool{}, ledger.NotFound(id)
	}
	return r.store.GetPool(ctx, id)
}

// List returns pools matching filter.
func (r *Registry) List(ctx context.Context, filter Filter) ([]pool.Pool, error) {
	if filter.Limit < 0 {
		return nil, ledger.InvalidArgument("limit", "limit must not be negative")
	}
	pools, err := r.store.ListPools(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	return pools, nil
}

// Stats aggregates every pool.
func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	pools, err := r.store.ListPools(ctx, Filter{})
	if err != nil {
		return Stats{}, fmt.Errorf("list pools: %w", err)
	}
	stats := Stats{ByStatus: make(map[ledger.PoolStatus]int)}
	for _, p := range pools {
		stats.Pools++
		stats.ByStatus[p.Status]++
		if !p.Status.Terminal() {
			if stats.ActiveRaised, err = ledger.Add(stats.ActiveRaised, p.ActiveRaised()); err != nil {
				return Stats{}, apperrors.Wrap(apperrors.CodePoolArithmeticOverflow, "active raised overflows", err)
			}
		}
		if stats.TotalDistributed, err = ledger.Add(stats.TotalDistributed, p.TotalDistributed); err != nil {
			return Stats{}, apperrors.Wrap(apperrors.CodePoolArithmeticOverflow, "distributed total overflows", err)
		}
	}
	return stats, nil
}
