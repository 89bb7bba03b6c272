package integrity

import (
	"fmt"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// VerifyChain walks a committed log in order and verifies content hashes,
// predecessor links, chain hashes, and signatures. The input must be the
// full committed history of the instance starting at sequence 1.
//
// When keyring is nil signatures are ignored. When a keyring is provided,
// every transaction must carry a signature that verifies against a known
// key; a stripped signature is treated as corruption.
func VerifyChain(instanceID string, txs []transaction.Transaction, keyring *Keyring) error {
	prevChain := ""
	prevHash := ""
	for i, tx := range txs {
		want := uint64(i) + 1
		if tx.Status != transaction.StatusCommitted {
			return corrupted(tx, fmt.Sprintf("transaction %s is %s, not committed", tx.ID, tx.Status))
		}
		if tx.Seq != want {
			return corrupted(tx, fmt.Sprintf("sequence gap: expected %d got %d", want, tx.Seq))
		}
		contentHash, err := transaction.ContentHash(tx)
		if err != nil {
			return corrupted(tx, fmt.Sprintf("rehash transaction %s: %v", tx.ID, err))
		}
		if contentHash != tx.Hash {
			return corrupted(tx, fmt.Sprintf("content hash mismatch at seq %d", tx.Seq))
		}
		if tx.PrevHash != prevHash {
			return corrupted(tx, fmt.Sprintf("predecessor link broken at seq %d", tx.Seq))
		}
		chainHash, err := transaction.ChainHash(tx, prevChain)
		if err != nil {
			return corrupted(tx, fmt.Sprintf("rechain transaction %s: %v", tx.ID, err))
		}
		if chainHash != tx.ChainHash {
			return corrupted(tx, fmt.Sprintf("chain hash mismatch at seq %d", tx.Seq))
		}
		if keyring != nil {
			if tx.Signature == "" {
				return corrupted(tx, fmt.Sprintf("unsigned transaction at seq %d", tx.Seq))
			}
			if err := keyring.VerifyChainHash(instanceID, tx.ChainHash, tx.Signature, tx.SignatureKeyID); err != nil {
				return corrupted(tx, fmt.Sprintf("signature invalid at seq %d: %v", tx.Seq, err))
			}
		}
		prevChain = tx.ChainHash
		prevHash = tx.Hash
	}
	return nil
}

func corrupted(tx transaction.Transaction, message string) error {
	return apperrors.WithMetadata(apperrors.CodeLogCorrupted, message, map[string]string{
		"transaction_id": tx.ID,
		"seq":            fmt.Sprintf("%d", tx.Seq),
	})
}
