package integrity

import (
	"fmt"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

// Seal fills the integrity fields of a sequenced event linked to
// prevChainHash. A nil keyring leaves the event unsigned.
func Seal(evt event.Event, prevChainHash string, keyring *Keyring) (event.Event, error) {
	hash, err := event.EventHash(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute event hash: %w", err)
	}
	evt.Hash = hash
	chainHash, err := event.ChainHash(evt, prevChainHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute chain hash: %w", err)
	}
	evt.PrevHash = prevChainHash
	evt.ChainHash = chainHash
	evt.Signature = ""
	evt.SignatureKeyID = ""
	if keyring != nil {
		signature, keyID, err := keyring.SignChainHash(evt.PoolID, chainHash)
		if err != nil {
			return event.Event{}, fmt.Errorf("sign chain hash: %w", err)
		}
		evt.Signature = signature
		evt.SignatureKeyID = keyID
	}
	return evt, nil
}

// VerifyChain checks a pool's complete journal in order: contiguous Seq from
// 1, matching hashes, intact links and valid signatures. Signatures are only
// checked when keyring is non-nil.
func VerifyChain(poolID ledger.PoolID, events []event.Event, keyring *Keyring) error {
	prev := ""
	for i, evt := range events {
		if evt.PoolID != poolID {
			return tampered(poolID, evt.Seq, "event belongs to another pool")
		}
		if evt.Seq != uint64(i+1) {
			return tampered(poolID, evt.Seq, fmt.Sprintf("expected seq %d", i+1))
		}
		hash, err := event.EventHash(evt)
		if err != nil {
			return err
		}
		if hash != evt.Hash {
			return tampered(poolID, evt.Seq, "event hash mismatch")
		}
		if evt.PrevHash != prev {
			return tampered(poolID, evt.Seq, "chain link mismatch")
		}
		chainHash, err := event.ChainHash(evt, prev)
		if err != nil {
			return err
		}
		if chainHash != evt.ChainHash {
			return tampered(poolID, evt.Seq, "chain hash mismatch")
		}
		if keyring != nil {
			if err := keyring.VerifyChainHash(poolID, evt.ChainHash, evt.Signature, evt.SignatureKeyID); err != nil {
				return tampered(poolID, evt.Seq, err.Error())
			}
		}
		prev = evt.ChainHash
	}
	return nil
}

func tampered(poolID ledger.PoolID, seq uint64, reason string) error {
	return ledger.PoolError(apperrors.CodeJournalTampered, poolID,
		fmt.Sprintf("journal of pool %s broken at seq %d: %s", poolID, seq, reason),
		"seq", seq, "reason", reason)
}
