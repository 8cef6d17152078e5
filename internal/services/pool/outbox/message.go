// Package outbox relays committed journal events to an external publisher.
//
// The relay reads unpublished events from the ledger in commit order,
// publishes them one by one and marks the published prefix. A failing
// publisher stalls only the relay; ledger calls never wait on it.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
)

// Message is the wire envelope of a relayed event.
type Message struct {
	PoolID    uint64          `json:"pool_id"`
	Seq       uint64          `json:"seq"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	ActorID   string          `json:"actor_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Height    uint64          `json:"height"`
	ChainHash string          `json:"chain_hash"`
	Payload   json.RawMessage `json:"payload"`
}

// MessageFromEvent builds the envelope of evt.
func MessageFromEvent(evt event.Event) Message {
	payload := json.RawMessage(evt.PayloadJSON)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return Message{
		PoolID:    uint64(evt.PoolID),
		Seq:       evt.Seq,
		Type:      string(evt.Type),
		Timestamp: evt.Timestamp.UTC(),
		ActorID:   evt.ActorID.String(),
		RequestID: evt.RequestID,
		Height:    evt.Height,
		ChainHash: evt.ChainHash,
		Payload:   payload,
	}
}
