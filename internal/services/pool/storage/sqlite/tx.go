package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/distribution"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/registry"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/shares"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
)

var errReadOnly = errors.New("write attempted in a read-only unit")

type tx struct {
	sqlTx    *sql.Tx
	height   uint64
	keyring  *integrity.Keyring
	writable bool
}

var _ storage.Tx = (*tx)(nil)

// i64 stores a uint64 amount bit-for-bit in a signed column.
func i64(v uint64) int64 { return int64(v) }

func u64(v int64) uint64 { return uint64(v) }

func (t *tx) guardWrite() error {
	if !t.writable {
		return errReadOnly
	}
	return nil
}

func (t *tx) Height(context.Context) (uint64, error) {
	return t.height, nil
}

func (t *tx) NextPoolID(ctx context.Context) (ledger.PoolID, error) {
	if err := t.guardWrite(); err != nil {
		return 0, err
	}
	var last int64
	if err := t.sqlTx.QueryRowContext(ctx, `SELECT last_pool_id FROM ledger_meta WHERE id = 1`).Scan(&last); err != nil {
		return 0, fmt.Errorf("load pool counter: %w", err)
	}
	last++
	if _, err := t.sqlTx.ExecContext(ctx, `UPDATE ledger_meta SET last_pool_id = ? WHERE id = 1`, last); err != nil {
		return 0, fmt.Errorf("advance pool counter: %w", err)
	}
	return ledger.PoolID(last), nil
}

const poolColumns = `id, issuer, treasury, distributor, target, min_contribution, max_contribution,
	hard_cap, deadline, status, total_raised, total_refunded, total_shares, capital_released,
	proceeds_deposited, total_distributed, contribution_count, created_at, updated_at,
	funded_at, locked_at, cancelled_at, closed_at, cancel_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPool(row rowScanner) (pool.Pool, error) {
	var (
		id, target, minContribution, maxContribution, hardCap, deadline              int64
		totalRaised, totalRefunded, totalShares, capitalReleased                     int64
		proceedsDeposited, totalDistributed, contributionCount, createdAt, updatedAt int64
		issuer, treasury, distributor, status, cancelReason                          string
		fundedAt, lockedAt, cancelledAt, closedAt                                    sql.NullInt64
	)
	if err := row.Scan(
		&id, &issuer, &treasury, &distributor, &target, &minContribution, &maxContribution,
		&hardCap, &deadline, &status, &totalRaised, &totalRefunded, &totalShares, &capitalReleased,
		&proceedsDeposited, &totalDistributed, &contributionCount, &createdAt, &updatedAt,
		&fundedAt, &lockedAt, &cancelledAt, &closedAt, &cancelReason,
	); err != nil {
		return pool.Pool{}, err
	}
	parsed, err := ledger.ParseStatus(status)
	if err != nil {
		return pool.Pool{}, fmt.Errorf("pool %d: %w", id, err)
	}
	return pool.Pool{
		ID:                ledger.PoolID(id),
		Issuer:            ledger.Address(issuer),
		Treasury:          ledger.Address(treasury),
		Distributor:       ledger.Address(distributor),
		Target:            u64(target),
		MinContribution:   u64(minContribution),
		MaxContribution:   u64(maxContribution),
		HardCap:           u64(hardCap),
		Deadline:          fromMillis(deadline),
		Status:            parsed,
		TotalRaised:       u64(totalRaised),
		TotalRefunded:     u64(totalRefunded),
		TotalShares:       u64(totalShares),
		CapitalReleased:   u64(capitalReleased),
		ProceedsDeposited: u64(proceedsDeposited),
		TotalDistributed:  u64(totalDistributed),
		ContributionCount: uint32(contributionCount),
		CreatedAt:         fromMillis(createdAt),
		UpdatedAt:         fromMillis(updatedAt),
		FundedAt:          fromNullMillis(fundedAt),
		LockedAt:          fromNullMillis(lockedAt),
		CancelledAt:       fromNullMillis(cancelledAt),
		ClosedAt:          fromNullMillis(closedAt),
		CancelReason:      cancelReason,
	}, nil
}

func (t *tx) GetPool(ctx context.Context, id ledger.PoolID) (pool.Pool, error) {
	row := t.sqlTx.QueryRowContext(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = ?`, int64(id))
	p, err := scanPool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pool.Pool{}, ledger.NotFound(id)
	}
	if err != nil {
		return pool.Pool{}, fmt.Errorf("get pool: %w", err)
	}
	return p, nil
}

func (t *tx) PutPool(ctx context.Context, p pool.Pool) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	if p.ID == 0 {
		return fmt.Errorf("pool id is required")
	}
	_, err := t.sqlTx.ExecContext(ctx, `
INSERT INTO pools (`+poolColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    issuer = excluded.issuer,
    treasury = excluded.treasury,
    distributor = excluded.distributor,
    target = excluded.target,
    min_contribution = excluded.min_contribution,
    max_contribution = excluded.max_contribution,
    hard_cap = excluded.hard_cap,
    deadline = excluded.deadline,
    status = excluded.status,
    total_raised = excluded.total_raised,
    total_refunded = excluded.total_refunded,
    total_shares = excluded.total_shares,
    capital_released = excluded.capital_released,
    proceeds_deposited = excluded.proceeds_deposited,
    total_distributed = excluded.total_distributed,
    contribution_count = excluded.contribution_count,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at,
    funded_at = excluded.funded_at,
    locked_at = excluded.locked_at,
    cancelled_at = excluded.cancelled_at,
    closed_at = excluded.closed_at,
    cancel_reason = excluded.cancel_reason`,
		int64(p.ID), string(p.Issuer), string(p.Treasury), string(p.Distributor),
		i64(p.Target), i64(p.MinContribution), i64(p.MaxContribution), i64(p.HardCap),
		toMillis(p.Deadline), p.Status.String(),
		i64(p.TotalRaised), i64(p.TotalRefunded), i64(p.TotalShares), i64(p.CapitalReleased),
		i64(p.ProceedsDeposited), i64(p.TotalDistributed), int64(p.ContributionCount),
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
		toNullMillis(p.FundedAt), toNullMillis(p.LockedAt), toNullMillis(p.CancelledAt), toNullMillis(p.ClosedAt),
		p.CancelReason,
	)
	if err != nil {
		return fmt.Errorf("put pool: %w", err)
	}
	return nil
}

func (t *tx) ListPools(ctx context.Context, filter registry.Filter) ([]pool.Pool, error) {
	var (
		clauses = []string{"id > ?"}
		args    = []any{int64(filter.AfterID)}
	)
	if filter.Issuer != "" {
		clauses = append(clauses, "issuer = ?")
		args = append(args, string(filter.Issuer))
	}
	if filter.Status != ledger.StatusUnspecified {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status.String())
	}
	cond, err := filterClause(filter.Expr, poolFilterColumns)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	if cond.Clause != "" {
		clauses = append(clauses, cond.Clause)
		args = append(args, cond.Params...)
	}
	query := `SELECT ` + poolColumns + ` FROM pools WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := t.sqlTx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	var out []pool.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *tx) PutContribution(ctx context.Context, c pool.Contribution) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	if c.PoolID == 0 || c.Index == 0 {
		return fmt.Errorf("contribution pool id and index are required")
	}
	refunded := 0
	if c.Refunded {
		refunded = 1
	}
	_, err := t.sqlTx.ExecContext(ctx, `
INSERT INTO contributions (pool_id, idx, contributor, amount, shares, created_at, refunded, refunded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(pool_id, idx) DO UPDATE SET
    contributor = excluded.contributor,
    amount = excluded.amount,
    shares = excluded.shares,
    created_at = excluded.created_at,
    refunded = excluded.refunded,
    refunded_at = excluded.refunded_at`,
		int64(c.PoolID), int64(c.Index), string(c.Contributor), i64(c.Amount), i64(c.Shares),
		toMillis(c.CreatedAt), refunded, toNullMillis(c.RefundedAt),
	)
	if err != nil {
		return fmt.Errorf("put contribution: %w", err)
	}
	return nil
}

func (t *tx) ListContributions(ctx context.Context, poolID ledger.PoolID, filter pool.ContributionFilter) ([]pool.Contribution, error) {
	query := `SELECT idx, contributor, amount, shares, created_at, refunded, refunded_at
FROM contributions WHERE pool_id = ?`
	args := []any{int64(poolID)}
	if filter.Contributor != "" {
		query += ` AND contributor = ?`
		args = append(args, string(filter.Contributor))
	}
	if filter.ActiveOnly {
		query += ` AND refunded = 0`
	}
	query += ` ORDER BY idx`

	rows, err := t.sqlTx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	var out []pool.Contribution
	for rows.Next() {
		var (
			idx, amount, count, createdAt int64
			contributor                   string
			refunded                      int
			refundedAt                    sql.NullInt64
		)
		if err := rows.Scan(&idx, &contributor, &amount, &count, &createdAt, &refunded, &refundedAt); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		out = append(out, pool.Contribution{
			PoolID:      poolID,
			Index:       uint32(idx),
			Contributor: ledger.Address(contributor),
			Amount:      u64(amount),
			Shares:      u64(count),
			CreatedAt:   fromMillis(createdAt),
			Refunded:    refunded != 0,
			RefundedAt:  fromNullMillis(refundedAt),
		})
	}
	return out, rows.Err()
}

func (t *tx) ShareRecord(ctx context.Context, poolID ledger.PoolID, holder ledger.Address) (shares.Record, error) {
	var count, contributed, updatedAt int64
	err := t.sqlTx.QueryRowContext(ctx,
		`SELECT shares, contributed, updated_at FROM share_records WHERE pool_id = ? AND holder = ?`,
		int64(poolID), string(holder),
	).Scan(&count, &contributed, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return shares.Record{PoolID: poolID, Holder: holder}, nil
	}
	if err != nil {
		return shares.Record{}, fmt.Errorf("get share record: %w", err)
	}
	return shares.Record{
		PoolID:      poolID,
		Holder:      holder,
		Shares:      u64(count),
		Contributed: u64(contributed),
		UpdatedAt:   fromMillis(updatedAt),
	}, nil
}

func (t *tx) PutShareRecord(ctx context.Context, record shares.Record) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	_, err := t.sqlTx.ExecContext(ctx, `
INSERT INTO share_records (pool_id, holder, shares, contributed, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(pool_id, holder) DO UPDATE SET
    shares = excluded.shares,
    contributed = excluded.contributed,
    updated_at = excluded.updated_at`,
		int64(record.PoolID), string(record.Holder), i64(record.Shares), i64(record.Contributed), toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put share record: %w", err)
	}
	return nil
}

func (t *tx) ListShareRecords(ctx context.Context, poolID ledger.PoolID) ([]shares.Record, error) {
	rows, err := t.sqlTx.QueryContext(ctx,
		`SELECT holder, shares, contributed, updated_at FROM share_records WHERE pool_id = ? ORDER BY holder`,
		int64(poolID),
	)
	if err != nil {
		return nil, fmt.Errorf("list share records: %w", err)
	}
	defer rows.Close()

	var out []shares.Record
	for rows.Next() {
		var (
			holder                        string
			count, contributed, updatedAt int64
		)
		if err := rows.Scan(&holder, &count, &contributed, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan share record: %w", err)
		}
		out = append(out, shares.Record{
			PoolID:      poolID,
			Holder:      ledger.Address(holder),
			Shares:      u64(count),
			Contributed: u64(contributed),
			UpdatedAt:   fromMillis(updatedAt),
		})
	}
	return out, rows.Err()
}

func (t *tx) ShareSupply(ctx context.Context, poolID ledger.PoolID) (uint64, error) {
	return t.scalar(ctx, `SELECT supply FROM share_supply WHERE pool_id = ?`, poolID)
}

func (t *tx) PutShareSupply(ctx context.Context, poolID ledger.PoolID, supply uint64) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	_, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO share_supply (pool_id, supply) VALUES (?, ?)
ON CONFLICT(pool_id) DO UPDATE SET supply = excluded.supply`,
		int64(poolID), i64(supply),
	)
	if err != nil {
		return fmt.Errorf("put share supply: %w", err)
	}
	return nil
}

func (t *tx) VaultBalance(ctx context.Context, poolID ledger.PoolID) (uint64, error) {
	return t.scalar(ctx, `SELECT balance FROM vault_balances WHERE pool_id = ?`, poolID)
}

func (t *tx) PutVaultBalance(ctx context.Context, poolID ledger.PoolID, balance uint64) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	_, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO vault_balances (pool_id, balance) VALUES (?, ?)
ON CONFLICT(pool_id) DO UPDATE SET balance = excluded.balance`,
		int64(poolID), i64(balance),
	)
	if err != nil {
		return fmt.Errorf("put vault balance: %w", err)
	}
	return nil
}

// scalar reads one amount column keyed by pool id, zero when absent.
func (t *tx) scalar(ctx context.Context, query string, poolID ledger.PoolID) (uint64, error) {
	var value int64
	err := t.sqlTx.QueryRowContext(ctx, query, int64(poolID)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return u64(value), nil
}

func (t *tx) RecordTransfer(ctx context.Context, transfer escrow.Transfer) (escrow.Transfer, error) {
	if err := t.guardWrite(); err != nil {
		return escrow.Transfer{}, err
	}
	var last int64
	if err := t.sqlTx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM transfers WHERE pool_id = ?`, int64(transfer.PoolID),
	).Scan(&last); err != nil {
		return escrow.Transfer{}, fmt.Errorf("load transfer seq: %w", err)
	}
	transfer.Seq = uint64(last) + 1
	_, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO transfers (pool_id, seq, recipient, amount, kind, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		int64(transfer.PoolID), int64(transfer.Seq), string(transfer.Recipient), i64(transfer.Amount),
		string(transfer.Kind), toMillis(transfer.CreatedAt),
	)
	if err != nil {
		return escrow.Transfer{}, fmt.Errorf("record transfer: %w", err)
	}
	transfer.CreatedAt = fromMillis(toMillis(transfer.CreatedAt))
	return transfer, nil
}

func (t *tx) ListTransfers(ctx context.Context, poolID ledger.PoolID) ([]escrow.Transfer, error) {
	rows, err := t.sqlTx.QueryContext(ctx,
		`SELECT seq, recipient, amount, kind, created_at FROM transfers WHERE pool_id = ? ORDER BY seq`,
		int64(poolID),
	)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []escrow.Transfer
	for rows.Next() {
		var (
			seq, amount, createdAt int64
			recipient, kind        string
		)
		if err := rows.Scan(&seq, &recipient, &amount, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, escrow.Transfer{
			PoolID:    poolID,
			Seq:       uint64(seq),
			Recipient: ledger.Address(recipient),
			Amount:    u64(amount),
			Kind:      escrow.TransferKind(kind),
			CreatedAt: fromMillis(createdAt),
		})
	}
	return out, rows.Err()
}

func (t *tx) Distribution(ctx context.Context, poolID ledger.PoolID) (distribution.Record, bool, error) {
	var (
		proceeds, rate, totalShares, remainder, capital, totalPaid, height, executedAt int64
		treasury, issuer, executedBy                                                   string
		payoutsJSON                                                                    []byte
	)
	err := t.sqlTx.QueryRowContext(ctx, `
SELECT proceeds, payout_rate, total_shares, remainder, treasury, capital_released, issuer,
       total_paid, payouts_json, height, executed_by, executed_at
FROM distributions WHERE pool_id = ?`, int64(poolID),
	).Scan(&proceeds, &rate, &totalShares, &remainder, &treasury, &capital, &issuer,
		&totalPaid, &payoutsJSON, &height, &executedBy, &executedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return distribution.Record{}, false, nil
	}
	if err != nil {
		return distribution.Record{}, false, fmt.Errorf("get distribution: %w", err)
	}
	var payouts []distribution.Payout
	if err := json.Unmarshal(payoutsJSON, &payouts); err != nil {
		return distribution.Record{}, false, fmt.Errorf("decode payouts: %w", err)
	}
	return distribution.Record{
		PoolID:          poolID,
		Proceeds:        u64(proceeds),
		PayoutRate:      u64(rate),
		TotalShares:     u64(totalShares),
		Remainder:       u64(remainder),
		Treasury:        ledger.Address(treasury),
		CapitalReleased: u64(capital),
		Issuer:          ledger.Address(issuer),
		TotalPaid:       u64(totalPaid),
		Payouts:         payouts,
		Height:          uint64(height),
		ExecutedBy:      ledger.Address(executedBy),
		ExecutedAt:      fromMillis(executedAt),
	}, true, nil
}

func (t *tx) PutDistribution(ctx context.Context, record distribution.Record) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	payoutsJSON, err := json.Marshal(record.Payouts)
	if err != nil {
		return fmt.Errorf("encode payouts: %w", err)
	}
	_, err = t.sqlTx.ExecContext(ctx, `
INSERT INTO distributions (
    pool_id, proceeds, payout_rate, total_shares, remainder, treasury, capital_released,
    issuer, total_paid, payouts_json, height, executed_by, executed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(record.PoolID), i64(record.Proceeds), i64(record.PayoutRate), i64(record.TotalShares),
		i64(record.Remainder), string(record.Treasury), i64(record.CapitalReleased), string(record.Issuer),
		i64(record.TotalPaid), payoutsJSON, int64(record.Height), string(record.ExecutedBy), toMillis(record.ExecutedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("pool %s already has a distribution: %w", record.PoolID, err)
		}
		return fmt.Errorf("put distribution: %w", err)
	}
	return nil
}
