package timelock

import (
	"fmt"

	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
)

const (
	timelockFixedSize = codec.DiscriminatorSize + 8 + 1 + 1 + 32 + 8 + 2 + 4

	// MinBatchSize is the space reserved for a batch header: every slot
	// present and an empty transaction list.
	MinBatchSize = codec.DiscriminatorSize + 32 + 32 + 1 + 9 + 9 + 9 + 4

	accountMetaSize = domain.PubkeySize + 2
)

var (
	timelockDiscriminator = codec.Discriminator("account", "Timelock")
	batchDiscriminator    = codec.Discriminator("account", "TransactionBatch")
)

// TimelockSize returns the account size of a timelock holding up to maxEnqueuers.
func TimelockSize(maxEnqueuers uint16) int {
	return timelockFixedSize + int(maxEnqueuers)*domain.PubkeySize
}

// TransactionSize returns the bytes ix occupies inside a batch.
func TransactionSize(ix *domain.Instruction) int {
	return domain.PubkeySize + 4 + len(ix.Accounts)*accountMetaSize + 4 + len(ix.Data)
}

// RequiredCapacity returns the smallest batch capacity that holds ixs.
func RequiredCapacity(ixs ...*domain.Instruction) int {
	n := MinBatchSize
	for _, ix := range ixs {
		n += TransactionSize(ix)
	}
	return n
}

func batchUsage(b *domain.TransactionBatch) int {
	n := MinBatchSize
	for _, t := range b.Transactions {
		n += domain.PubkeySize + 4 + len(t.Accounts)*accountMetaSize + 4 + len(t.Data)
	}
	return n
}

// EncodeTimelock serializes a timelock account.
func EncodeTimelock(t *domain.Timelock) []byte {
	w := codec.NewWriter()
	w.Discriminator(timelockDiscriminator)
	w.U64(t.ID)
	w.U8(t.PdaBump)
	w.U8(t.SignerBump)
	w.Pubkey(t.Admin)
	w.U64(t.DelayInSlots)
	w.U16(t.MaxEnqueuers)
	w.Pubkeys(t.Enqueuers)
	return w.Bytes()
}

// DecodeTimelock parses a timelock account.
func DecodeTimelock(address domain.Pubkey, data []byte) (*domain.Timelock, error) {
	r := codec.NewReader(data)
	if !r.ExpectDiscriminator(timelockDiscriminator) {
		return nil, fmt.Errorf("%w: %s is not a timelock", ledger.ErrInvalidAccountData, address)
	}
	t := &domain.Timelock{Address: address}
	t.ID = r.U64()
	t.PdaBump = r.U8()
	t.SignerBump = r.U8()
	t.Admin = r.Pubkey()
	t.DelayInSlots = r.U64()
	t.MaxEnqueuers = r.U16()
	t.Enqueuers = r.Pubkeys()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: timelock %s: %v", ledger.ErrInvalidAccountData, address, err)
	}
	return t, nil
}

// EncodeBatch serializes a transaction batch.
func EncodeBatch(b *domain.TransactionBatch) []byte {
	w := codec.NewWriter()
	w.Discriminator(batchDiscriminator)
	w.Pubkey(b.Timelock)
	w.Pubkey(b.TransactionBatchAuthority)
	w.U8(uint8(b.Status))
	w.OptionU64(b.EnqueuedSlot)
	w.OptionU64(b.ReadySlot)
	w.OptionU64(b.ExecutedSlot)
	w.U32(uint32(len(b.Transactions)))
	for _, t := range b.Transactions {
		w.Pubkey(t.ProgramID)
		w.AccountMetas(t.Accounts)
		w.Bytes32Len(t.Data)
	}
	return w.Bytes()
}

// DecodeBatch parses a transaction batch. SizeLimit is the account size.
func DecodeBatch(address domain.Pubkey, data []byte) (*domain.TransactionBatch, error) {
	r := codec.NewReader(data)
	if !r.ExpectDiscriminator(batchDiscriminator) {
		return nil, fmt.Errorf("%w: %s is not a transaction batch", ledger.ErrInvalidAccountData, address)
	}
	b := &domain.TransactionBatch{Address: address, SizeLimit: uint32(len(data))}
	b.Timelock = r.Pubkey()
	b.TransactionBatchAuthority = r.Pubkey()
	b.Status = domain.BatchStatus(r.U8())
	b.EnqueuedSlot = r.OptionU64()
	b.ReadySlot = r.OptionU64()
	b.ExecutedSlot = r.OptionU64()
	n := int(r.U32())
	for i := 0; i < n && r.Err() == nil; i++ {
		b.Transactions = append(b.Transactions, domain.BatchTransaction{
			ProgramID: r.Pubkey(),
			Accounts:  r.AccountMetas(),
			Data:      r.Bytes32Len(),
		})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: batch %s: %v", ledger.ErrInvalidAccountData, address, err)
	}
	if b.Status > domain.BatchStatusExecuted {
		return nil, fmt.Errorf("%w: batch %s: status %d", ledger.ErrInvalidAccountData, address, b.Status)
	}
	return b, nil
}
