package event

import (
	"testing"
	"time"
)

func TestNewEncodesPayload(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.FixedZone("x", 3600))
	evt, err := New(4, TypeContributionReceived, "alice", at, ContributionReceivedPayload{
		Contributor: "alice",
		Amount:      400,
		Shares:      400,
		TotalRaised: 400,
		TotalShares: 400,
	})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if evt.Timestamp.Location() != time.UTC {
		t.Fatal("expected UTC timestamp")
	}
	if evt.Timestamp.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("expected millisecond truncation, got %v", evt.Timestamp)
	}
	if err := evt.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	payload, err := Decode[ContributionReceivedPayload](evt)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Contributor != "alice" || payload.Amount != 400 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestNewRejectsUnknownTypeAndPool(t *testing.T) {
	if _, err := New(1, Type("pool.exploded"), "", time.Now(), struct{}{}); err == nil {
		t.Fatal("expected unknown type error")
	}
	if _, err := New(0, TypePoolCreated, "", time.Now(), struct{}{}); err == nil {
		t.Fatal("expected missing pool id error")
	}
}

func TestValidate(t *testing.T) {
	valid := Event{PoolID: 1, Type: TypePoolLocked, Timestamp: time.Now(), PayloadJSON: []byte(`{}`)}
	if err := valid.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	tests := map[string]Event{
		"pool":      {Type: TypePoolLocked, Timestamp: time.Now(), PayloadJSON: []byte(`{}`)},
		"type":      {PoolID: 1, Type: "nope", Timestamp: time.Now(), PayloadJSON: []byte(`{}`)},
		"timestamp": {PoolID: 1, Type: TypePoolLocked, PayloadJSON: []byte(`{}`)},
		"payload":   {PoolID: 1, Type: TypePoolLocked, Timestamp: time.Now(), PayloadJSON: []byte(`{`)},
	}
	for name, evt := range tests {
		if err := evt.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestStampSetsRequestAndHeight(t *testing.T) {
	events := Stamp([]Event{{PoolID: 1}, {PoolID: 1}}, " req-1 ", 9)
	for _, evt := range events {
		if evt.RequestID != "req-1" || evt.Height != 9 {
			t.Fatalf("unexpected stamp %+v", evt)
		}
	}
}

func TestEventHashIsDeterministic(t *testing.T) {
	evt := sequencedEvent(t, 1)
	first, err := EventHash(evt)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := EventHash(evt)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first != second || len(first) != 64 {
		t.Fatalf("expected stable 64-char hash, got %q and %q", first, second)
	}

	evt.Height++
	changed, err := EventHash(evt)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if changed == first {
		t.Fatal("expected envelope change to alter hash")
	}
}

func TestEventHashRequiresSeq(t *testing.T) {
	evt := sequencedEvent(t, 1)
	evt.Seq = 0
	if _, err := EventHash(evt); err == nil {
		t.Fatal("expected seq requirement")
	}
}

func TestChainHashLinksPredecessor(t *testing.T) {
	first := sequencedEvent(t, 1)
	firstChain, err := ChainHash(first, "")
	if err != nil {
		t.Fatalf("chain: %v", err)
	}

	second := sequencedEvent(t, 2)
	linked, err := ChainHash(second, firstChain)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	unlinked, err := ChainHash(second, "")
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if linked == unlinked {
		t.Fatal("expected chain hash to depend on predecessor")
	}
}

func sequencedEvent(t *testing.T, seq uint64) Event {
	t.Helper()
	evt, err := New(1, TypePoolLocked, "issuer", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), PoolLockedPayload{
		Reason:      LockReasonIssuer,
		TotalRaised: 1100,
		TotalShares: 1100,
	})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	evt.Seq = seq
	evt.Height = seq
	return evt
}
