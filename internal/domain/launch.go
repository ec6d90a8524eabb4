package domain

// LaunchState is the lifecycle state of a fundraising round.
type LaunchState uint8

const (
	LaunchStateOpen      LaunchState = iota // accepting commitments
	LaunchStateFinalized                    // proceeds sent to treasury, sale minted to the launch vault (terminal)
	LaunchStateRefunded                     // raise failed, commitments returned (terminal)
)

// String returns the state name.
func (s LaunchState) String() string {
	switch s {
	case LaunchStateOpen:
		return "OPEN"
	case LaunchStateFinalized:
		return "FINALIZED"
	case LaunchStateRefunded:
		return "REFUNDED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s LaunchState) IsTerminal() bool {
	return s == LaunchStateFinalized || s == LaunchStateRefunded
}

// Launch is one fundraising round for a DAO. Its address is derived from the DAO,
// so a DAO can have at most one.
type Launch struct {
	Address            Pubkey      // derived: ["launch", dao]
	Dao                Pubkey      // owning DAO (immutable)
	DaoTreasury        Pubkey      // receives proceeds on finalize (immutable)
	Creator            Pubkey      // signer that initialized the round
	FundingMint        Pubkey      // quote asset accepted for commitments
	SaleMint           Pubkey      // token being sold; mint authority is the launch
	FundingVault       Pubkey      // launch-owned associated token account for FundingMint
	SaleVault          Pubkey      // launch-owned associated token account for SaleMint
	MinimumRaiseAmount uint64      // quote units
	MaximumRaiseAmount uint64      // quote units
	CommittedAmount    uint64      // quote units currently escrowed
	FundingEndSlot     uint64      // commitments accepted while slot < FundingEndSlot
	State              LaunchState // OPEN | FINALIZED | REFUNDED
	PdaBump            uint8       // canonical bump of Address
	SeqNum             uint64      // incremented on every mutation
}

// RemainingRaise returns how many quote units can still be committed.
func (l *Launch) RemainingRaise() uint64 {
	if l.CommittedAmount >= l.MaximumRaiseAmount {
		return 0
	}
	return l.MaximumRaiseAmount - l.CommittedAmount
}

// FundingRecord is the cumulative commitment of one funder to one launch.
type FundingRecord struct {
	Address         Pubkey // derived: ["funding_record", launch, funder]
	Launch          Pubkey
	Funder          Pubkey
	CommittedAmount uint64 // cumulative quote units committed
	CommitCount     uint32 // number of commit calls
	Refunded        bool   // set once the commitment has been returned
	Claimed         bool   // set once the sale allocation has been paid out
	TokensAllocated uint64 // sale tokens paid to the funder by claim
	PdaBump         uint8
}
