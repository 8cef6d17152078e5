package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
)

const eventColumns = `pool_id, seq, event_type, timestamp, actor_id, request_id, height, payload_json,
	event_hash, prev_event_hash, chain_hash, signature_key_id, event_signature`

// AppendEvent sequences, seals and stores evt within the unit of work.
func (t *tx) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := t.guardWrite(); err != nil {
		return event.Event{}, err
	}
	if err := evt.Validate(); err != nil {
		return event.Event{}, err
	}

	var (
		lastSeq   int64
		prevChain string
	)
	err := t.sqlTx.QueryRowContext(ctx,
		`SELECT seq, chain_hash FROM events WHERE pool_id = ? ORDER BY seq DESC LIMIT 1`,
		int64(evt.PoolID),
	).Scan(&lastSeq, &prevChain)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, fmt.Errorf("load previous event: %w", err)
	}

	evt.Seq = uint64(lastSeq) + 1
	if evt.Height == 0 {
		evt.Height = t.height
	}
	sealed, err := integrity.Seal(evt, prevChain, t.keyring)
	if err != nil {
		return event.Event{}, err
	}

	if _, err := t.sqlTx.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(sealed.PoolID), int64(sealed.Seq), string(sealed.Type), toMillis(sealed.Timestamp),
		string(sealed.ActorID), sealed.RequestID, int64(sealed.Height), sealed.PayloadJSON,
		sealed.Hash, sealed.PrevHash, sealed.ChainHash, sealed.SignatureKeyID, sealed.Signature,
	); err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	return sealed, nil
}

// ListEvents returns events of poolID after q.AfterSeq ordered by seq.
func (t *tx) ListEvents(ctx context.Context, poolID ledger.PoolID, q event.Query) ([]event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE pool_id = ? AND seq > ?`
	args := []any{int64(poolID), int64(q.AfterSeq)}
	cond, err := filterClause(q.Filter, eventFilterColumns)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if cond.Clause != "" {
		query += ` AND ` + cond.Clause
		args = append(args, cond.Params...)
	}
	query += ` ORDER BY seq`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	rows, err := t.sqlTx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	var out []event.Event
	for rows.Next() {
		var (
			poolID, seq, timestamp, height                       int64
			eventType, actorID, requestID                        string
			payload                                              []byte
			hash, prevHash, chainHash, signatureKeyID, signature string
		)
		if err := rows.Scan(&poolID, &seq, &eventType, &timestamp, &actorID, &requestID, &height, &payload,
			&hash, &prevHash, &chainHash, &signatureKeyID, &signature); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, event.Event{
			PoolID:         ledger.PoolID(poolID),
			Seq:            uint64(seq),
			Type:           event.Type(eventType),
			Timestamp:      fromMillis(timestamp),
			ActorID:        ledger.Address(actorID),
			RequestID:      requestID,
			Height:         uint64(height),
			PayloadJSON:    payload,
			Hash:           hash,
			PrevHash:       prevHash,
			ChainHash:      chainHash,
			Signature:      signature,
			SignatureKeyID: signatureKeyID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
