package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashEnvelope fixes the field order hashed for an event. The integrity fields
// themselves are excluded.
type hashEnvelope struct {
	PoolID    uint64          `json:"pool_id"`
	Seq       uint64          `json:"seq"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"ts"`
	ActorID   string          `json:"actor_id"`
	RequestID string          `json:"request_id"`
	Height    uint64          `json:"height"`
	Payload   json.RawMessage `json:"payload"`
}

type chainEnvelope struct {
	PrevHash  string `json:"prev_hash"`
	EventHash string `json:"event_hash"`
}

// EventHash computes the content hash of a sequenced event.
func EventHash(e Event) (string, error) {
	if e.Seq == 0 {
		return "", fmt.Errorf("event seq is required for hashing")
	}
	payload := json.RawMessage(e.PayloadJSON)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return sha256JSON(hashEnvelope{
		PoolID:    uint64(e.PoolID),
		Seq:       e.Seq,
		Type:      string(e.Type),
		Timestamp: e.Timestamp.UTC().UnixMilli(),
		ActorID:   string(e.ActorID),
		RequestID: e.RequestID,
		Height:    e.Height,
		Payload:   payload,
	})
}

// ChainHash links an event hash to the chain hash of its predecessor. The
// first event of a pool has an empty prevHash.
func ChainHash(e Event, prevHash string) (string, error) {
	hash := e.Hash
	if hash == "" {
		computed, err := EventHash(e)
		if err != nil {
			return "", err
		}
		hash = computed
	}
	return sha256JSON(chainEnvelope{PrevHash: prevHash, EventHash: hash})
}

func sha256JSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode hash envelope: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
