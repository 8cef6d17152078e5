// Package storagetest holds the behavioral suite every pool ledger backend
// must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/distribution"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/filter"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/registry"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/shares"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
)

// Backend is a ledger that also exposes its outbox.
type Backend interface {
	storage.Ledger
	storage.Outbox
}

// Opener returns a fresh, empty backend for one test.
type Opener func(t *testing.T) Backend

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var errAbort = errors.New("abort")

// Run executes the suite against open.
func Run(t *testing.T, open Opener) {
	t.Run("pools round trip", func(t *testing.T) { testPools(t, open(t)) })
	t.Run("failed update rolls back", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("height advances per update", func(t *testing.T) { testHeight(t, open(t)) })
	t.Run("contributions and shares", func(t *testing.T) { testContributions(t, open(t)) })
	t.Run("vault and transfers", func(t *testing.T) { testVault(t, open(t)) })
	t.Run("distribution is written once", func(t *testing.T) { testDistribution(t, open(t)) })
	t.Run("journal chains events", func(t *testing.T) { testJournal(t, open(t)) })
	t.Run("filter expressions", func(t *testing.T) { testFilters(t, open(t)) })
	t.Run("outbox tracks publication", func(t *testing.T) { testOutbox(t, open(t)) })
	t.Run("view rejects writes", func(t *testing.T) { testViewReadOnly(t, open(t)) })
}

func samplePool(id ledger.PoolID, issuer ledger.Address, status ledger.PoolStatus) pool.Pool {
	p := pool.New(id, pool.Params{
		Issuer:          issuer,
		Treasury:        issuer,
		Target:          1000,
		MinContribution: 100,
		MaxContribution: 800,
		Deadline:        baseTime.Add(72 * time.Hour),
	}, baseTime)
	p.Status = status
	return p
}

func createPool(t *testing.T, ctx context.Context, l storage.Ledger, issuer ledger.Address, status ledger.PoolStatus) ledger.PoolID {
	t.Helper()
	var id ledger.PoolID
	err := l.Update(ctx, func(tx storage.Tx) error {
		next, err := tx.NextPoolID(ctx)
		if err != nil {
			return err
		}
		id = next
		return tx.PutPool(ctx, samplePool(next, issuer, status))
	})
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return id
}

func testPools(t *testing.T, l Backend) {
	ctx := context.Background()
	first := createPool(t, ctx, l, "issuer-a", ledger.StatusOpen)
	second := createPool(t, ctx, l, "issuer-b", ledger.StatusFunding)
	third := createPool(t, ctx, l, "issuer-a", ledger.StatusCancelled)
	if first != 1 || second != 2 || third != 3 {
		t.Fatalf("expected sequential ids 1,2,3, got %d,%d,%d", first, second, third)
	}

	err := l.View(ctx, func(tx storage.Tx) error {
		got, err := tx.GetPool(ctx, second)
		if err != nil {
			return err
		}
		want := samplePool(second, "issuer-b", ledger.StatusFunding)
		if got.Issuer != want.Issuer || got.Status != want.Status || got.Target != want.Target {
			t.Fatalf("expected %+v, got %+v", want, got)
		}
		if !got.Deadline.Equal(want.Deadline) || !got.CreatedAt.Equal(want.CreatedAt) {
			t.Fatalf("expected timestamps to round trip, got %+v", got)
		}

		if _, err := tx.GetPool(ctx, 99); !errors.Is(err, ledger.ErrPoolNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}

		byIssuer, err := tx.ListPools(ctx, registry.Filter{Issuer: "issuer-a"})
		if err != nil {
			return err
		}
		if len(byIssuer) != 2 || byIssuer[0].ID != first || byIssuer[1].ID != third {
			t.Fatalf("expected pools 1 and 3 for issuer-a, got %+v", byIssuer)
		}
		byStatus, err := tx.ListPools(ctx, registry.Filter{Status: ledger.StatusFunding})
		if err != nil {
			return err
		}
		if len(byStatus) != 1 || byStatus[0].ID != second {
			t.Fatalf("expected pool 2 funding, got %+v", byStatus)
		}
		page, err := tx.ListPools(ctx, registry.Filter{AfterID: first, Limit: 1})
		if err != nil {
			return err
		}
		if len(page) != 1 || page[0].ID != second {
			t.Fatalf("expected page with pool 2, got %+v", page)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testRollback(t *testing.T, l Backend) {
	ctx := context.Background()
	id := createPool(t, ctx, l, "issuer", ledger.StatusOpen)

	err := l.Update(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPool(ctx, id)
		if err != nil {
			return err
		}
		p.Status = ledger.StatusCancelled
		if err := tx.PutPool(ctx, p); err != nil {
			return err
		}
		if err := tx.PutVaultBalance(ctx, id, 500); err != nil {
			return err
		}
		if _, err := tx.NextPoolID(ctx); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	err = l.View(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPool(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != ledger.StatusOpen {
			t.Fatalf("expected rolled back status OPEN, got %s", p.Status)
		}
		balance, err := tx.VaultBalance(ctx, id)
		if err != nil {
			return err
		}
		if balance != 0 {
			t.Fatalf("expected rolled back balance 0, got %d", balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if next := createPool(t, ctx, l, "issuer", ledger.StatusOpen); next != id+1 {
		t.Fatalf("expected id counter rolled back to %d, got %d", id+1, next)
	}
}

func currentHeight(t *testing.T, ctx context.Context, l storage.Ledger) uint64 {
	t.Helper()
	var height uint64
	if err := l.View(ctx, func(tx storage.Tx) error {
		var err error
		height, err = tx.Height(ctx)
		return err
	}); err != nil {
		t.Fatalf("height: %v", err)
	}
	return height
}

func testHeight(t *testing.T, l Backend) {
	ctx := context.Background()
	if h := currentHeight(t, ctx, l); h != 0 {
		t.Fatalf("expected initial height 0, got %d", h)
	}
	var inside uint64
	if err := l.Update(ctx, func(tx storage.Tx) error {
		var err error
		inside, err = tx.Height(ctx)
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if inside != 1 {
		t.Fatalf("expected update to run at height 1, got %d", inside)
	}
	_ = l.Update(ctx, func(storage.Tx) error { return errAbort })
	if h := currentHeight(t, ctx, l); h != 1 {
		t.Fatalf("expected failed update to keep height 1, got %d", h)
	}
}

func testContributions(t *testing.T, l Backend) {
	ctx := context.Background()
	id := createPool(t, ctx, l, "issuer", ledger.StatusOpen)
	refundedAt := baseTime.Add(time.Hour)

	err := l.Update(ctx, func(tx storage.Tx) error {
		for i, c := range []pool.Contribution{
			{PoolID: id, Index: 2, Contributor: "bob", Amount: 300, Shares: 300, CreatedAt: baseTime},
			{PoolID: id, Index: 1, Contributor: "alice", Amount: 200, Shares: 200, CreatedAt: baseTime},
			{PoolID: id, Index: 3, Contributor: "alice", Amount: 150, Shares: 150, CreatedAt: baseTime},
		} {
			if err := tx.PutContribution(ctx, c); err != nil {
				t.Fatalf("put contribution %d: %v", i, err)
			}
		}
		// Marking a contribution refunded overwrites it in place.
		if err := tx.PutContribution(ctx, pool.Contribution{
			PoolID: id, Index: 3, Contributor: "alice", Amount: 150, Shares: 150,
			CreatedAt: baseTime, Refunded: true, RefundedAt: &refundedAt,
		}); err != nil {
			return err
		}
		if err := tx.PutShareRecord(ctx, shares.Record{PoolID: id, Holder: "bob", Shares: 300, Contributed: 300, UpdatedAt: baseTime}); err != nil {
			return err
		}
		if err := tx.PutShareRecord(ctx, shares.Record{PoolID: id, Holder: "alice", Shares: 200, Contributed: 200, UpdatedAt: baseTime}); err != nil {
			return err
		}
		return tx.PutShareSupply(ctx, id, 500)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = l.View(ctx, func(tx storage.Tx) error {
		all, err := tx.ListContributions(ctx, id, pool.ContributionFilter{})
		if err != nil {
			return err
		}
		if len(all) != 3 || all[0].Index != 1 || all[2].Index != 3 {
			t.Fatalf("expected 3 contributions ordered by index, got %+v", all)
		}
		if !all[2].Refunded || all[2].RefundedAt == nil || !all[2].RefundedAt.Equal(refundedAt) {
			t.Fatalf("expected refunded contribution, got %+v", all[2])
		}
		active, err := tx.ListContributions(ctx, id, pool.ContributionFilter{Contributor: "alice", ActiveOnly: true})
		if err != nil {
			return err
		}
		if len(active) != 1 || active[0].Index != 1 {
			t.Fatalf("expected alice's active contribution 1, got %+v", active)
		}

		records, err := tx.ListShareRecords(ctx, id)
		if err != nil {
			return err
		}
		if len(records) != 2 || records[0].Holder != "alice" || records[1].Holder != "bob" {
			t.Fatalf("expected records ordered by holder, got %+v", records)
		}
		missing, err := tx.ShareRecord(ctx, id, "carol")
		if err != nil {
			return err
		}
		if missing.Shares != 0 {
			t.Fatalf("expected empty record for unknown holder, got %+v", missing)
		}
		supply, err := tx.ShareSupply(ctx, id)
		if err != nil {
			return err
		}
		if supply != 500 {
			t.Fatalf("expected supply 500, got %d", supply)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testVault(t *testing.T, l Backend) {
	ctx := context.Background()
	id := createPool(t, ctx, l, "issuer", ledger.StatusCancelled)

	err := l.Update(ctx, func(tx storage.Tx) error {
		vault := escrow.NewVault(tx, func() time.Time { return baseTime })
		if _, err := vault.Deposit(ctx, id, 900); err != nil {
			return err
		}
		if _, err := vault.Withdraw(ctx, id, "alice", 400, escrow.TransferRefund); err != nil {
			return err
		}
		_, err := vault.Withdraw(ctx, id, "bob", 500, escrow.TransferRefund)
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = l.View(ctx, func(tx storage.Tx) error {
		balance, err := tx.VaultBalance(ctx, id)
		if err != nil {
			return err
		}
		if balance != 0 {
			t.Fatalf("expected empty vault, got %d", balance)
		}
		transfers, err := tx.ListTransfers(ctx, id)
		if err != nil {
			return err
		}
		if len(transfers) != 2 {
			t.Fatalf("expected 2 transfers, got %+v", transfers)
		}
		if transfers[0].Seq != 1 || transfers[0].Recipient != "alice" || transfers[0].Amount != 400 || transfers[0].Kind != escrow.TransferRefund {
			t.Fatalf("unexpected first transfer %+v", transfers[0])
		}
		if transfers[1].Seq != 2 || !transfers[1].CreatedAt.Equal(baseTime) {
			t.Fatalf("unexpected second transfer %+v", transfers[1])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testDistribution(t *testing.T, l Backend) {
	ctx := context.Background()
	id := createPool(t, ctx, l, "issuer", ledger.StatusClosed)
	record := distribution.Record{
		PoolID:          id,
		Proceeds:        1200,
		PayoutRate:      1,
		TotalShares:     1100,
		Remainder:       100,
		Treasury:        "issuer",
		CapitalReleased: 1100,
		Issuer:          "issuer",
		TotalPaid:       1100,
		Payouts: []distribution.Payout{
			{Holder: "alice", Shares: 400, Amount: 400},
			{Holder: "bob", Shares: 700, Amount: 700},
		},
		Height:     4,
		ExecutedBy: "issuer",
		ExecutedAt: baseTime,
	}

	if err := l.Update(ctx, func(tx storage.Tx) error {
		return tx.PutDistribution(ctx, record)
	}); err != nil {
		t.Fatalf("put distribution: %v", err)
	}
	if err := l.Update(ctx, func(tx storage.Tx) error {
		return tx.PutDistribution(ctx, record)
	}); err == nil {
		t.Fatal("expected second distribution write to fail")
	}

	err := l.View(ctx, func(tx storage.Tx) error {
		got, ok, err := tx.Distribution(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("expected distribution to exist")
		}
		if got.Proceeds != 1200 || got.Remainder != 100 || len(got.Payouts) != 2 || got.Payouts[1].Holder != "bob" {
			t.Fatalf("unexpected distribution %+v", got)
		}
		if !got.ExecutedAt.Equal(baseTime) || got.Height != 4 {
			t.Fatalf("unexpected distribution metadata %+v", got)
		}
		if _, ok, err := tx.Distribution(ctx, id+1); err != nil || ok {
			t.Fatalf("expected no distribution for another pool, got ok=%v err=%v", ok, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func appendEvents(t *testing.T, ctx context.Context, l storage.Ledger, id ledger.PoolID, n int) {
	t.Helper()
	err := l.Update(ctx, func(tx storage.Tx) error {
		for i := 0; i < n; i++ {
			evt, err := event.New(id, event.TypeContributionReceived, "alice", baseTime,
				event.ContributionReceivedPayload{Contributor: "alice", Index: uint32(i + 1), Amount: 100, Shares: 100})
			if err != nil {
				return err
			}
			if _, err := tx.AppendEvent(ctx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append events: %v", err)
	}
}

func testJournal(t *testing.T, l Backend) {
	ctx := context.Background()
	first := createPool(t, ctx, l, "issuer", ledger.StatusOpen)
	second := createPool(t, ctx, l, "issuer", ledger.StatusOpen)
	appendEvents(t, ctx, l, first, 2)
	appendEvents(t, ctx, l, second, 1)
	appendEvents(t, ctx, l, first, 1)

	err := l.View(ctx, func(tx storage.Tx) error {
		events, err := tx.ListEvents(ctx, first, event.Query{})
		if err != nil {
			return err
		}
		if len(events) != 3 {
			t.Fatalf("expected 3 events, got %d", len(events))
		}
		for i, evt := range events {
			if evt.Seq != uint64(i+1) {
				t.Fatalf("expected seq %d, got %d", i+1, evt.Seq)
			}
			if evt.Hash == "" || evt.ChainHash == "" {
				t.Fatalf("expected hashes on event %d", evt.Seq)
			}
		}
		if events[0].Height != 3 || events[2].Height != 5 {
			t.Fatalf("expected heights 3 and 5, got %d and %d", events[0].Height, events[2].Height)
		}
		if err := integrity.VerifyChain(first, events, nil); err != nil {
			t.Fatalf("verify chain: %v", err)
		}

		tail, err := tx.ListEvents(ctx, first, event.Query{AfterSeq: 1, Limit: 1})
		if err != nil {
			return err
		}
		if len(tail) != 1 || tail[0].Seq != 2 {
			t.Fatalf("expected event 2 after seq 1, got %+v", tail)
		}
		other, err := tx.ListEvents(ctx, second, event.Query{})
		if err != nil {
			return err
		}
		if len(other) != 1 || other[0].Seq != 1 || other[0].PrevHash != "" {
			t.Fatalf("expected an independent chain for pool 2, got %+v", other)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	err = l.Update(ctx, func(tx storage.Tx) error {
		_, err := tx.AppendEvent(ctx, event.Event{PoolID: first, Type: "bogus", Timestamp: baseTime, PayloadJSON: []byte(`{}`)})
		return err
	})
	if err == nil {
		t.Fatal("expected invalid event to be rejected")
	}
}

func testOutbox(t *testing.T, l Backend) {
	ctx := context.Background()
	first := createPool(t, ctx, l, "issuer", ledger.StatusOpen)
	second := createPool(t, ctx, l, "issuer", ledger.StatusOpen)
	appendEvents(t, ctx, l, first, 2)
	appendEvents(t, ctx, l, second, 1)

	pending, err := l.ListUnpublished(ctx, 0)
	if err != nil {
		t.Fatalf("list unpublished: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending events, got %d", len(pending))
	}
	if pending[0].PoolID != first || pending[2].PoolID != second {
		t.Fatalf("expected commit order, got %+v", pending)
	}

	limited, err := l.ListUnpublished(ctx, 2)
	if err != nil {
		t.Fatalf("list unpublished: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit 2, got %d", len(limited))
	}

	keys := []storage.EventKey{{PoolID: first, Seq: 1}, {PoolID: first, Seq: 2}}
	if err := l.MarkPublished(ctx, keys, baseTime); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	pending, err = l.ListUnpublished(ctx, 0)
	if err != nil {
		t.Fatalf("list unpublished: %v", err)
	}
	if len(pending) != 1 || pending[0].PoolID != second {
		t.Fatalf("expected only pool 2's event pending, got %+v", pending)
	}
}

func testViewReadOnly(t *testing.T, l Backend) {
	ctx := context.Background()
	id := createPool(t, ctx, l, "issuer", ledger.StatusOpen)
	err := l.View(ctx, func(tx storage.Tx) error {
		return tx.PutVaultBalance(ctx, id, 10)
	})
	if err == nil {
		t.Fatal("expected write inside view to fail")
	}
}

func mustParse(t *testing.T, expr string, fields filter.Fields) *filter.Expr {
	t.Helper()
	parsed, err := filter.Parse(expr, fields)
	if err != nil {
		t.Fatalf("parse %q: %v", expr, err)
	}
	return parsed
}

func testFilters(t *testing.T, l Backend) {
	ctx := context.Background()
	first := createPool(t, ctx, l, "issuer-a", ledger.StatusOpen)
	createPool(t, ctx, l, "issuer-b", ledger.StatusFunding)
	third := createPool(t, ctx, l, "issuer-a", ledger.StatusCancelled)

	err := l.Update(ctx, func(tx storage.Tx) error {
		for i, actor := range []ledger.Address{"alice", "bob", "alice"} {
			evt, err := event.New(first, event.TypeContributionReceived, actor, baseTime.Add(time.Duration(i)*time.Hour),
				event.ContributionReceivedPayload{Contributor: actor, Index: uint32(i + 1), Amount: 100, Shares: 100})
			if err != nil {
				return err
			}
			if _, err := tx.AppendEvent(ctx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append events: %v", err)
	}

	poolTests := []struct {
		expr string
		want []ledger.PoolID
	}{
		{expr: `issuer = "Issuer-A"`, want: []ledger.PoolID{first, third}},
		{expr: `issuer = "issuer-a" AND status != "cancelled"`, want: []ledger.PoolID{first}},
		{expr: `status = "open" OR status = "cancelled"`, want: []ledger.PoolID{first, third}},
		{expr: `target > 1000`, want: nil},
		{expr: `deadline > timestamp("2026-03-02T00:00:00Z")`, want: []ledger.PoolID{first, 2, third}},
	}
	eventTests := []struct {
		expr string
		want []uint64
	}{
		{expr: `actor = "alice"`, want: []uint64{1, 3}},
		{expr: `actor = "bob" OR seq = 3`, want: []uint64{2, 3}},
		{expr: `ts >= timestamp("2026-03-01T13:00:00Z")`, want: []uint64{2, 3}},
		{expr: `type = "nope"`, want: nil},
	}

	err = l.View(ctx, func(tx storage.Tx) error {
		for _, tc := range poolTests {
			pools, err := tx.ListPools(ctx, registry.Filter{Expr: mustParse(t, tc.expr, filter.PoolFields)})
			if err != nil {
				return err
			}
			if len(pools) != len(tc.want) {
				t.Fatalf("%s: expected pools %v, got %d pools", tc.expr, tc.want, len(pools))
			}
			for i := range tc.want {
				if pools[i].ID != tc.want[i] {
					t.Fatalf("%s: expected pools %v, got pool %d at %d", tc.expr, tc.want, pools[i].ID, i)
				}
			}
		}
		for _, tc := range eventTests {
			events, err := tx.ListEvents(ctx, first, event.Query{Filter: mustParse(t, tc.expr, filter.EventFields)})
			if err != nil {
				return err
			}
			if len(events) != len(tc.want) {
				t.Fatalf("%s: expected seqs %v, got %d events", tc.expr, tc.want, len(events))
			}
			for i := range tc.want {
				if events[i].Seq != tc.want[i] {
					t.Fatalf("%s: expected seqs %v, got seq %d at %d", tc.expr, tc.want, events[i].Seq, i)
				}
			}
		}

		limited, err := tx.ListEvents(ctx, first, event.Query{Limit: 1, Filter: mustParse(t, `actor = "alice"`, filter.EventFields)})
		if err != nil {
			return err
		}
		if len(limited) != 1 || limited[0].Seq != 1 {
			t.Fatalf("expected the limit to apply after filtering, got %+v", limited)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
