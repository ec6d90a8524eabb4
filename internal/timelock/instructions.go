package timelock

import (
	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
)

// CreateTimelockParams configures a new timelock.
type CreateTimelockParams struct {
	ID           uint64
	// RandomID makes Client.CreateTimelock draw ID with NewTimelockID.
	RandomID     bool
	Admin        domain.Pubkey
	Enqueuers    []domain.Pubkey
	DelayInSlots uint64
	MaxEnqueuers uint16
}

// CreateTimelock builds a create_timelock instruction paid for by payer.
func CreateTimelock(payer domain.Pubkey, p CreateTimelockParams) *domain.Instruction {
	address, _ := Address(p.ID)
	w := codec.NewWriter()
	w.Discriminator(createTimelockDiscriminator)
	w.U64(p.ID)
	w.Pubkey(p.Admin)
	w.U64(p.DelayInSlots)
	w.U16(p.MaxEnqueuers)
	w.Pubkeys(p.Enqueuers)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(address),
			domain.SignerMeta(payer, true),
		},
		Data: w.Bytes(),
	}
}

// SetDelayInSlots builds an admin instruction changing the delay.
func SetDelayInSlots(timelock, admin domain.Pubkey, delay uint64) *domain.Instruction {
	w := adminWriter(setDelayDiscriminator)
	w.U64(delay)
	return adminInstruction(timelock, admin, w)
}

// SetAdmin builds an admin instruction handing the timelock to newAdmin.
func SetAdmin(timelock, admin, newAdmin domain.Pubkey) *domain.Instruction {
	w := adminWriter(setAdminDiscriminator)
	w.Pubkey(newAdmin)
	return adminInstruction(timelock, admin, w)
}

// AddEnqueuer builds an admin instruction adding an enqueuer.
func AddEnqueuer(timelock, admin, enqueuer domain.Pubkey) *domain.Instruction {
	w := adminWriter(addEnqueuerDiscriminator)
	w.Pubkey(enqueuer)
	return adminInstruction(timelock, admin, w)
}

// RemoveEnqueuer builds an admin instruction removing an enqueuer.
func RemoveEnqueuer(timelock, admin, enqueuer domain.Pubkey) *domain.Instruction {
	w := adminWriter(removeEnqueuerDiscriminator)
	w.Pubkey(enqueuer)
	return adminInstruction(timelock, admin, w)
}

func adminWriter(d [codec.DiscriminatorSize]byte) *codec.Writer {
	w := codec.NewWriter()
	w.Discriminator(d)
	return w
}

func adminInstruction(timelock, admin domain.Pubkey, w *codec.Writer) *domain.Instruction {
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(timelock),
			domain.SignerMeta(admin, false),
		},
		Data: w.Bytes(),
	}
}

// CreateTransactionBatch builds a create_transaction_batch instruction. batch
// and creator must sign; a nil authority makes the creator the batch authority.
func CreateTransactionBatch(batch, timelock, creator domain.Pubkey, authority *domain.Pubkey, capacity uint32) *domain.Instruction {
	w := codec.NewWriter()
	w.Discriminator(createBatchDiscriminator)
	w.OptionPubkey(authority)
	w.U32(capacity)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.SignerMeta(batch, true),
			domain.Meta(timelock),
			domain.SignerMeta(creator, false),
		},
		Data: w.Bytes(),
	}
}

// AddTransaction builds an add_transaction instruction appending ix to batch.
func AddTransaction(batch, authority domain.Pubkey, ix *domain.Instruction) *domain.Instruction {
	w := codec.NewWriter()
	w.Discriminator(addTransactionDiscriminator)
	w.Pubkey(ix.ProgramID)
	w.AccountMetas(ix.Accounts)
	w.Bytes32Len(ix.Data)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(batch),
			domain.SignerMeta(authority, false),
		},
		Data: w.Bytes(),
	}
}

// EnqueueTransactionBatch builds an instruction sealing batch. enqueuer must be
// an enqueuer or the admin of timelock.
func EnqueueTransactionBatch(batch, timelock, enqueuer domain.Pubkey) *domain.Instruction {
	w := codec.NewWriter()
	w.Discriminator(enqueueBatchDiscriminator)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(batch),
			domain.Meta(timelock),
			domain.SignerMeta(enqueuer, false),
		},
		Data: w.Bytes(),
	}
}

// ExecuteTransactionBatch builds an execute instruction. Anyone may submit it.
func ExecuteTransactionBatch(batch, timelock domain.Pubkey) *domain.Instruction {
	signer, _ := SignerAddress(timelock)
	w := codec.NewWriter()
	w.Discriminator(executeBatchDiscriminator)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(batch),
			domain.Meta(timelock),
			domain.Meta(signer),
		},
		Data: w.Bytes(),
	}
}
