// Package pda derives program addresses: deterministic account addresses computed from
// seed bytes and a program id that are guaranteed to have no private key.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"solana-dao-lab/internal/domain"
)

const (
	// MaxSeeds is the maximum number of seeds, including the bump.
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed.
	MaxSeedLen = 32

	marker = "ProgramDerivedAddress"
)

var (
	// ErrMaxSeedLengthExceeded is returned when a seed is longer than MaxSeedLen
	// or too many seeds are supplied.
	ErrMaxSeedLengthExceeded = errors.New("pda: max seed length exceeded")

	// ErrInvalidSeeds is returned when the seeds hash to a point on the ed25519 curve.
	ErrInvalidSeeds = errors.New("pda: seeds produce an on-curve address")

	// ErrNoViableBump is returned when no bump in [1, 255] yields an off-curve address.
	ErrNoViableBump = errors.New("pda: unable to find a viable bump")
)

// CreateProgramAddress computes sha256(seeds... || programID || "ProgramDerivedAddress")
// and fails if the result is a valid ed25519 public key.
func CreateProgramAddress(seeds [][]byte, programID domain.Pubkey) (domain.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return domain.Pubkey{}, fmt.Errorf("%w: %d seeds", ErrMaxSeedLengthExceeded, len(seeds))
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return domain.Pubkey{}, fmt.Errorf("%w: seed of %d bytes", ErrMaxSeedLengthExceeded, len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(marker))

	var out domain.Pubkey
	copy(out[:], h.Sum(nil))

	if IsOnCurve(out[:]) {
		return domain.Pubkey{}, ErrInvalidSeeds
	}
	return out, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first off-curve
// address together with its canonical bump.
func FindProgramAddress(seeds [][]byte, programID domain.Pubkey) (domain.Pubkey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return domain.Pubkey{}, 0, fmt.Errorf("%w: %d seeds plus bump", ErrMaxSeedLengthExceeded, len(seeds))
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return domain.Pubkey{}, 0, err
		}
	}

	return domain.Pubkey{}, 0, ErrNoViableBump
}

// MustFind is FindProgramAddress for fixed, known-good seed sets. It panics on error.
func MustFind(seeds [][]byte, programID domain.Pubkey) (domain.Pubkey, uint8) {
	addr, bump, err := FindProgramAddress(seeds, programID)
	if err != nil {
		panic(err)
	}
	return addr, bump
}

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
