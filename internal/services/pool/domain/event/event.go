package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

// Type names an event kind.
type Type string

const (
	TypePoolCreated          Type = "pool.created"
	TypeContributionReceived Type = "pool.contribution_received"
	TypePoolFunded           Type = "pool.funded"
	TypePoolLocked           Type = "pool.locked"
	TypePoolCancelled        Type = "pool.cancelled"
	TypeDistributionExecuted Type = "pool.distribution_executed"
	TypeRefundClaimed        Type = "pool.refund_claimed"
)

var knownTypes = map[Type]struct{}{
	TypePoolCreated:          {},
	TypeContributionReceived: {},
	TypePoolFunded:           {},
	TypePoolLocked:           {},
	TypePoolCancelled:        {},
	TypeDistributionExecuted: {},
	TypeRefundClaimed:        {},
}

// Known reports whether t is a registered event type.
func (t Type) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

// Event is a journal entry. Seq, Height and the integrity fields are assigned
// by the journal on append.
type Event struct {
	PoolID      ledger.PoolID
	Seq         uint64
	Type        Type
	Timestamp   time.Time
	ActorID     ledger.Address
	RequestID   string
	Height      uint64
	PayloadJSON []byte

	Hash           string
	PrevHash       string
	ChainHash      string
	Signature      string
	SignatureKeyID string
}

// New builds an unsequenced event with payload encoded as JSON.
func New(poolID ledger.PoolID, typ Type, actor ledger.Address, at time.Time, payload any) (Event, error) {
	if poolID == 0 {
		return Event{}, fmt.Errorf("event pool id is required")
	}
	if !typ.Known() {
		return Event{}, fmt.Errorf("unknown event type %q", typ)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return Event{
		PoolID:      poolID,
		Type:        typ,
		Timestamp:   at.UTC().Truncate(time.Millisecond),
		ActorID:     actor,
		PayloadJSON: data,
	}, nil
}

// Validate checks the fields required before an event may be appended.
func (e Event) Validate() error {
	if e.PoolID == 0 {
		return fmt.Errorf("event pool id is required")
	}
	if !e.Type.Known() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp is required")
	}
	if len(e.PayloadJSON) == 0 || !json.Valid(e.PayloadJSON) {
		return fmt.Errorf("event payload must be valid json")
	}
	return nil
}

// Decode unmarshals the event payload into T.
func Decode[T any](e Event) (T, error) {
	var payload T
	if err := json.Unmarshal(e.PayloadJSON, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return payload, nil
}

// Stamp fills request-scoped envelope fields on every event.
func Stamp(events []Event, requestID string, height uint64) []Event {
	requestID = strings.TrimSpace(requestID)
	for i := range events {
		events[i].RequestID = requestID
		events[i].Height = height
	}
	return events
}
