package domain

// Mint is the on-ledger state of a token mint (SPL layout).
type Mint struct {
	Address         Pubkey
	MintAuthority   *Pubkey // nil when supply is fixed
	Supply          uint64  // base units
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *Pubkey // nil when accounts can never be frozen
}

// TokenAccountState mirrors the SPL account state byte.
type TokenAccountState uint8

const (
	TokenAccountUninitialized TokenAccountState = iota
	TokenAccountInitialized
	TokenAccountFrozen
)

// TokenAccount holds a balance of one mint for one owner.
type TokenAccount struct {
	Address Pubkey
	Mint    Pubkey
	Owner   Pubkey
	Amount  uint64
	State   TokenAccountState
}
