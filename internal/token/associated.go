package token

import (
	"fmt"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/pda"
)

const (
	tagAssociatedCreate           uint8 = 0
	tagAssociatedCreateIdempotent uint8 = 1
)

// AssociatedAddress returns the canonical token account of wallet for mint:
// PDA([wallet, token program, mint]) under the associated token program.
func AssociatedAddress(wallet, mint domain.Pubkey) (domain.Pubkey, uint8) {
	return pda.MustFind(associatedSeeds(wallet, mint), AssociatedProgramID)
}

func associatedSeeds(wallet, mint domain.Pubkey) [][]byte {
	return [][]byte{wallet[:], ProgramID[:], mint[:]}
}

// AssociatedProgram creates associated token accounts.
type AssociatedProgram struct{}

var _ ledger.Program = AssociatedProgram{}

func (AssociatedProgram) ID() domain.Pubkey { return AssociatedProgramID }
func (AssociatedProgram) Name() string      { return "associated-token" }

// Process handles Create and CreateIdempotent: accounts [associated account (writable), wallet, mint].
func (AssociatedProgram) Process(tx *ledger.Tx, ix *domain.Instruction) error {
	idempotent := false
	switch {
	case len(ix.Data) == 0 || ix.Data[0] == tagAssociatedCreate:
	case ix.Data[0] == tagAssociatedCreateIdempotent:
		idempotent = true
	default:
		return fmt.Errorf("%w: associated token instruction %d", ledger.ErrInvalidInstructionData, ix.Data[0])
	}

	keys, err := ledger.Keys(ix, 3)
	if err != nil {
		return err
	}
	address, wallet, mint := keys[0], keys[1], keys[2]

	expected, bump := AssociatedAddress(wallet, mint)
	if expected != address {
		return fmt.Errorf("%w: got %s, want %s", ErrInvalidAssociatedAddress, address, expected)
	}

	exists, err := tx.Exists(address)
	if err != nil {
		return err
	}
	if exists {
		if !idempotent {
			return fmt.Errorf("%w: %s", ErrAlreadyInUse, address)
		}
		a, err := LoadAccount(tx, address)
		if err != nil {
			return err
		}
		if a.Owner != wallet {
			return ErrOwnerMismatch
		}
		if a.Mint != mint {
			return ErrMintMismatch
		}
		return nil
	}

	seeds := append(associatedSeeds(wallet, mint), []byte{bump})
	if err := tx.InvokeSigned(ledger.CreateAccount(address, AccountSize, ProgramID), seeds); err != nil {
		return err
	}
	return tx.Invoke(InitializeAccount(address, mint, wallet))
}
