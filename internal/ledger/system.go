package ledger

import (
	"fmt"

	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
)

// SystemProgramID owns unallocated addresses and creates accounts.
var SystemProgramID = domain.SystemProgramID

const systemCreateAccount uint32 = 0

// SystemProgram allocates accounts. Balances are not modeled.
type SystemProgram struct{}

func (SystemProgram) ID() domain.Pubkey { return SystemProgramID }
func (SystemProgram) Name() string      { return "system" }

// Process handles CreateAccount: accounts [new account (signer, writable)].
func (SystemProgram) Process(tx *Tx, ix *domain.Instruction) error {
	r := codec.NewReader(ix.Data)
	tag := r.U32()
	if r.Err() != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstructionData, r.Err())
	}

	switch tag {
	case systemCreateAccount:
		space := r.U64()
		owner := r.Pubkey()
		if r.Err() != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstructionData, r.Err())
		}
		keys, err := Keys(ix, 1)
		if err != nil {
			return err
		}
		if space > MaxAccountSize {
			return fmt.Errorf("%w: %d bytes", ErrInvalidAccountSize, space)
		}
		return tx.Create(keys[0], owner, int(space))
	default:
		return fmt.Errorf("%w: system instruction %d", ErrInvalidInstructionData, tag)
	}
}

// CreateAccount builds a system instruction allocating space bytes at
// newAccount, owned by owner. newAccount must sign.
func CreateAccount(newAccount domain.Pubkey, space uint64, owner domain.Pubkey) *domain.Instruction {
	w := codec.NewWriter()
	w.U32(systemCreateAccount)
	w.U64(space)
	w.Pubkey(owner)
	return &domain.Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []domain.AccountMeta{domain.SignerMeta(newAccount, true)},
		Data:      w.Bytes(),
	}
}
