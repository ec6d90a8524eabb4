package domain

// Timelock is a delayed-execution authority. Its address is derived from ID.
type Timelock struct {
	Address      Pubkey   // derived: ["timelock", id_le]
	ID           uint64   // caller-chosen or random
	PdaBump      uint8    // canonical bump of Address
	SignerBump   uint8    // canonical bump of the signer address derived from Address
	Enqueuers    []Pubkey // identities allowed to seal batches
	MaxEnqueuers uint16   // capacity fixed at creation
	Admin        Pubkey   // may mutate enqueuers, delay and admin
	DelayInSlots uint64   // minimum slots between enqueue and execute
}

// IsEnqueuer reports whether pk may seal batches under this timelock.
func (t *Timelock) IsEnqueuer(pk Pubkey) bool {
	for _, e := range t.Enqueuers {
		if e == pk {
			return true
		}
	}
	return false
}

// BatchStatus is the lifecycle state of a transaction batch.
type BatchStatus uint8

const (
	BatchStatusAssembling BatchStatus = iota // accepting transactions
	BatchStatusEnqueued                      // sealed, waiting for the delay to elapse
	BatchStatusExecuted                      // all transactions ran (terminal)
)

// String returns the status name.
func (s BatchStatus) String() string {
	switch s {
	case BatchStatusAssembling:
		return "ASSEMBLING"
	case BatchStatusEnqueued:
		return "ENQUEUED"
	case BatchStatusExecuted:
		return "EXECUTED"
	default:
		return "UNKNOWN"
	}
}

// BatchTransaction is one instruction stored in a batch.
type BatchTransaction struct {
	ProgramID Pubkey        `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

// Instruction converts the stored transaction back to an invocable instruction.
func (t BatchTransaction) Instruction() *Instruction {
	ix := &Instruction{
		ProgramID: t.ProgramID,
		Accounts:  make([]AccountMeta, len(t.Accounts)),
		Data:      make([]byte, len(t.Data)),
	}
	copy(ix.Accounts, t.Accounts)
	copy(ix.Data, t.Data)
	return ix
}

// TransactionBatch is an append-only, pre-sized list of instructions tied to a timelock.
type TransactionBatch struct {
	Address                   Pubkey // keypair address chosen by the creator
	Timelock                  Pubkey // back-reference to the owning timelock
	TransactionBatchAuthority Pubkey // may append transactions
	Status                    BatchStatus
	EnqueuedSlot              *uint64 // nil until sealed
	ReadySlot                 *uint64 // earliest execution slot, fixed when sealed
	ExecutedSlot              *uint64 // nil until executed
	Transactions              []BatchTransaction
	SizeLimit                 uint32 // account size in bytes, fixed at creation
}
