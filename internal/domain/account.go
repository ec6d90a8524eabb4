package domain

// Account is a ledger record: an address, its owning program, and fixed-size data.
// Corresponds to the accounts table in PostgreSQL.
type Account struct {
	Address     Pubkey // PRIMARY KEY
	Owner       Pubkey // program allowed to write Data
	Data        []byte // length fixed at creation
	CreatedSlot uint64 // slot of the bundle that allocated the account
	UpdatedSlot uint64 // slot of the last bundle that wrote the account
	Version     uint64 // bumped by the store on every committed write
}

// Clone returns a deep copy so callers never share Data with a store.
func (a *Account) Clone() *Account {
	out := *a
	out.Data = make([]byte, len(a.Data))
	copy(out.Data, a.Data)
	return &out
}
