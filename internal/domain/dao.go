package domain

// DAO is the governance identity a launch raises for. Vote counting lives elsewhere;
// the launch only needs the identity, the treasury, and the configured mints.
type DAO struct {
	Address      Pubkey // DAO account (keypair address)
	Treasury     Pubkey // derived: [dao] under the autocrat program
	TreasuryBump uint8
	TokenMint    Pubkey // governance / sale token mint
	USDCMint     Pubkey // quote mint accepted by the DAO's launch
	SeqNum       uint64
}
