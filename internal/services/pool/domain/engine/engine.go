package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/platform/id"
	"github.com/louisbranch/cellarpool/internal/platform/logging"
	"github.com/louisbranch/cellarpool/internal/platform/requestctx"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/distribution"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/registry"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/shares"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/cellarpool/internal/services/pool/domain/engine"

// TransferSink settles committed vault transfers with the outside world.
type TransferSink interface {
	Deliver(ctx context.Context, transfers []escrow.Transfer) error
}

// TransferSinkFunc adapts a function to TransferSink.
type TransferSinkFunc func(ctx context.Context, transfers []escrow.Transfer) error

// Deliver calls f.
func (f TransferSinkFunc) Deliver(ctx context.Context, transfers []escrow.Transfer) error {
	return f(ctx, transfers)
}

// Config wires an Engine.
type Config struct {
	Ledger storage.Ledger
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *logging.Logger
	// Governance lists addresses allowed to trigger any distribution.
	Governance []ledger.Address
	Sink       TransferSink
	Tracer     trace.Tracer
	// Keyring verifies journal signatures in VerifyJournal when set.
	Keyring *integrity.Keyring
}

// Engine exposes the pool ledger operations.
type Engine struct {
	ledger     storage.Ledger
	now        func() time.Time
	logger     *logging.Logger
	governance []ledger.Address
	sink       TransferSink
	tracer     trace.Tracer
	keyring    *integrity.Keyring
}

// New builds an engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	return &Engine{
		ledger:     cfg.Ledger,
		now:        cfg.Now,
		logger:     cfg.Logger,
		governance: append([]ledger.Address(nil), cfg.Governance...),
		sink:       cfg.Sink,
		tracer:     cfg.Tracer,
		keyring:    cfg.Keyring,
	}, nil
}

// unit binds the domain components to one unit of work.
type unit struct {
	tx          storage.Tx
	registry    *registry.Registry
	machine     *pool.Machine
	distributor *distribution.Engine
	vault       *escrow.Vault
	shares      *shares.Ledger
}

func (e *Engine) bind(tx storage.Tx) unit {
	vault := escrow.NewVault(tx, e.now)
	shareLedger := shares.NewLedger(tx, e.now)
	return unit{
		tx:          tx,
		registry:    registry.New(tx, e.now),
		machine:     pool.NewMachine(tx, vault, shareLedger, e.now),
		distributor: distribution.NewEngine(tx, tx, vault, shareLedger, e.governance, e.now),
		vault:       vault,
		shares:      shareLedger,
	}
}

// outcome is what an operation reports back to the unit runner.
type outcome struct {
	poolID ledger.PoolID
	events []event.Event
}

// committed describes a successful unit.
type committed struct {
	poolID    ledger.PoolID
	height    uint64
	events    []event.Event
	transfers []escrow.Transfer
}

// update runs op as one unit. poolID may be zero when op creates the pool; the
// outcome then names it.
func (e *Engine) update(ctx context.Context, op string, poolID ledger.PoolID, fn func(u unit, height uint64) (outcome, error)) (committed, error) {
	requestID := requestctx.RequestIDFromContext(ctx)
	if requestID == "" {
		generated, err := id.NewID()
		if err != nil {
			return committed{}, fmt.Errorf("generate request id: %w", err)
		}
		requestID = generated
	}

	var result committed
	err := e.ledger.Update(ctx, func(tx storage.Tx) error {
		u := e.bind(tx)
		height, err := tx.Height(ctx)
		if err != nil {
			return fmt.Errorf("load height: %w", err)
		}
		var transfersBefore int
		if poolID != 0 {
			before, err := tx.ListTransfers(ctx, poolID)
			if err != nil {
				return fmt.Errorf("list transfers: %w", err)
			}
			transfersBefore = len(before)
		}

		out, err := fn(u, height)
		if err != nil {
			return err
		}
		if out.poolID == 0 {
			out.poolID = poolID
		}

		stamped := event.Stamp(out.events, requestID, height)
		appended := make([]event.Event, 0, len(stamped))
		for _, evt := range stamped {
			stored, err := tx.AppendEvent(ctx, evt)
			if err != nil {
				return fmt.Errorf("append %s event: %w", evt.Type, err)
			}
			appended = append(appended, stored)
		}
		if out.poolID != 0 {
			if err := e.checkPool(ctx, u, out.poolID); err != nil {
				return err
			}
			after, err := tx.ListTransfers(ctx, out.poolID)
			if err != nil {
				return fmt.Errorf("list transfers: %w", err)
			}
			if len(after) > transfersBefore {
				result.transfers = after[transfersBefore:]
			}
		}
		result.poolID = out.poolID
		result.height = height
		result.events = appended
		return nil
	})
	if err != nil {
		e.logger.Debug("pool call rejected", "op", op, "pool_id", uint64(poolID), "request_id", requestID,
			"code", string(apperrors.GetCode(err)), "error", err)
		return committed{}, err
	}

	types := make([]string, 0, len(result.events))
	for _, evt := range result.events {
		types = append(types, string(evt.Type))
	}
	e.logger.Info("pool call committed", "op", op, "pool_id", uint64(result.poolID), "request_id", requestID,
		"events", types, "height", result.height)

	if len(result.transfers) > 0 && e.sink != nil {
		if err := e.sink.Deliver(ctx, result.transfers); err != nil {
			// The ledger already committed; settlement is retried out of band
			// from the transfer log.
			e.logger.Error("transfer delivery failed", "op", op, "pool_id", uint64(result.poolID), "count", len(result.transfers), "error", err)
		}
	}
	return result, nil
}

// checkPool verifies the pool's accounting inside the unit before commit.
func (e *Engine) checkPool(ctx context.Context, u unit, poolID ledger.PoolID) error {
	p, err := u.tx.GetPool(ctx, poolID)
	if err != nil {
		return err
	}
	balance, err := u.vault.BalanceOf(ctx, poolID)
	if err != nil {
		return err
	}
	supply, err := u.shares.TotalShares(ctx, poolID)
	if err != nil {
		return err
	}
	if err := pool.CheckConservation(p, balance, supply); err != nil {
		return err
	}
	if err := u.shares.Verify(ctx, poolID); err != nil {
		return err
	}
	contributions, err := u.tx.ListContributions(ctx, poolID, pool.ContributionFilter{})
	if err != nil {
		return fmt.Errorf("list contributions: %w", err)
	}
	return pool.CheckContributions(p, contributions)
}

// expire applies a pending deadline transition as its own unit and reports
// whether it did. A pool that needs nothing costs only a read.
func (e *Engine) expire(ctx context.Context, poolID ledger.PoolID) (bool, error) {
	needed := false
	err := e.ledger.View(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPool(ctx, poolID)
		if err != nil {
			return err
		}
		needed = pool.NeedsExpiry(p, e.now().UTC())
		return nil
	})
	if err != nil || !needed {
		return false, err
	}

	expired := false
	_, err = e.update(ctx, "expire", poolID, func(u unit, _ uint64) (outcome, error) {
		_, events, err := u.machine.Expire(ctx, poolID)
		expired = len(events) > 0
		return outcome{events: events}, err
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}

func (e *Engine) startSpan(ctx context.Context, op string, poolID ledger.PoolID) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("pool.operation", op)}
	if poolID != 0 {
		attrs = append(attrs, attribute.Int64("pool.id", int64(poolID)))
	}
	return e.tracer.Start(ctx, "pool."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(apperrors.GetCode(err)))
	}
	span.End()
}

func deadlinePassed(poolID ledger.PoolID, op pool.Operation) error {
	return ledger.PoolError(apperrors.CodePoolDeadlineExpired, poolID,
		fmt.Sprintf("pool %s deadline has passed", poolID), "operation", op)
}
