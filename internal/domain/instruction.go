package domain

// AccountMeta describes one account referenced by an instruction.
type AccountMeta struct {
	Pubkey     Pubkey `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// Instruction is a single program invocation: program, ordered accounts, opaque data.
type Instruction struct {
	ProgramID Pubkey        `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

// Meta is shorthand for a read-only, non-signer account reference.
func Meta(pk Pubkey) AccountMeta {
	return AccountMeta{Pubkey: pk}
}

// WritableMeta is shorthand for a writable, non-signer account reference.
func WritableMeta(pk Pubkey) AccountMeta {
	return AccountMeta{Pubkey: pk, IsWritable: true}
}

// SignerMeta is shorthand for a signer account reference.
func SignerMeta(pk Pubkey, writable bool) AccountMeta {
	return AccountMeta{Pubkey: pk, IsSigner: true, IsWritable: writable}
}

// Clone returns a deep copy of the instruction.
func (ix *Instruction) Clone() *Instruction {
	out := &Instruction{
		ProgramID: ix.ProgramID,
		Accounts:  make([]AccountMeta, len(ix.Accounts)),
		Data:      make([]byte, len(ix.Data)),
	}
	copy(out.Accounts, ix.Accounts)
	copy(out.Data, ix.Data)
	return out
}
