package integrity

import (
	"testing"
	"time"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

func buildChain(t *testing.T, ring *Keyring, n int) []event.Event {
	t.Helper()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var chain []event.Event
	prev := ""
	for i := 0; i < n; i++ {
		evt, err := event.New(3, event.TypeContributionReceived, "alice", at.Add(time.Duration(i)*time.Minute),
			event.ContributionReceivedPayload{Contributor: "alice", Index: uint32(i + 1), Amount: 100, Shares: 100})
		if err != nil {
			t.Fatalf("new event: %v", err)
		}
		evt.Seq = uint64(i + 1)
		evt.Height = uint64(i + 1)
		sealed, err := Seal(evt, prev, ring)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		prev = sealed.ChainHash
		chain = append(chain, sealed)
	}
	return chain
}

func testKeyring(t *testing.T) *Keyring {
	t.Helper()
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	return ring
}

func TestSealLinksChain(t *testing.T) {
	ring := testKeyring(t)
	chain := buildChain(t, ring, 3)

	if chain[0].PrevHash != "" {
		t.Fatalf("expected empty prev hash on first event, got %q", chain[0].PrevHash)
	}
	if chain[1].PrevHash != chain[0].ChainHash {
		t.Fatal("expected second event to link to the first")
	}
	if chain[2].Signature == "" || chain[2].SignatureKeyID != "v1" {
		t.Fatalf("expected signed event, got %+v", chain[2])
	}
	if err := VerifyChain(3, chain, ring); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
}

func TestSealWithoutKeyringLeavesEventUnsigned(t *testing.T) {
	chain := buildChain(t, nil, 2)
	if chain[1].Signature != "" {
		t.Fatal("expected unsigned event")
	}
	if err := VerifyChain(3, chain, nil); err != nil {
		t.Fatalf("verify unsigned chain: %v", err)
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	ring := testKeyring(t)
	tests := []struct {
		name   string
		mutate func([]event.Event) []event.Event
	}{
		{
			name: "payload edited",
			mutate: func(chain []event.Event) []event.Event {
				chain[1].PayloadJSON = []byte(`{"amount":999}`)
				return chain
			},
		},
		{
			name: "event removed",
			mutate: func(chain []event.Event) []event.Event {
				return append(chain[:1], chain[2:]...)
			},
		},
		{
			name: "events reordered",
			mutate: func(chain []event.Event) []event.Event {
				chain[1], chain[2] = chain[2], chain[1]
				return chain
			},
		},
		{
			name: "signature forged",
			mutate: func(chain []event.Event) []event.Event {
				chain[2].Signature = "00"
				return chain
			},
		},
		{
			name: "foreign pool",
			mutate: func(chain []event.Event) []event.Event {
				chain[0].PoolID = ledger.PoolID(4)
				return chain
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chain := tc.mutate(buildChain(t, ring, 3))
			err := VerifyChain(3, chain, ring)
			if err == nil {
				t.Fatal("expected tampering to be detected")
			}
			if apperrors.GetCode(err) != apperrors.CodeJournalTampered {
				t.Fatalf("expected journal tampered code, got %v", err)
			}
		})
	}
}
