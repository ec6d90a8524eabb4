package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-dao-lab/internal/domain"
)

// ComputeBundleID computes a deterministic identifier for a committed bundle.
// Formula: SHA256(slot|nonce|signer1,signer2,...|program1:data1_hex,...)
// Returns hex-encoded hash (64 characters).
func ComputeBundleID(slot, nonce uint64, signers []domain.Pubkey, instructions []*domain.Instruction) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|", slot, nonce)
	for i, s := range signers {
		if i > 0 {
			h.Write([]byte(","))
		}
		h.Write([]byte(s.String()))
	}
	h.Write([]byte("|"))
	for i, ix := range instructions {
		if i > 0 {
			h.Write([]byte(","))
		}
		fmt.Fprintf(h, "%s:%s", ix.ProgramID.String(), hex.EncodeToString(ix.Data))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeEventID computes a deterministic event_id.
// Formula: SHA256(bundle_id|seq|kind|address)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(bundleID string, seq int, kind domain.EventKind, address domain.Pubkey) string {
	data := fmt.Sprintf("%s|%d|%s|%s", bundleID, seq, string(kind), address.String())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
