package launchpad

import (
	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/token"
)

// InitializeLaunchArgs are the initialize_launch arguments.
type InitializeLaunchArgs struct {
	MinimumRaiseAmount uint64
	MaximumRaiseAmount uint64
	SlotsForLaunch     uint64 // zero selects DefaultSlotsForLaunch
}

// InitializeLaunch builds an initialize_launch instruction signed by creator.
func InitializeLaunch(creator, dao, daoTreasury, fundingMint, saleMint domain.Pubkey, args InitializeLaunchArgs) *domain.Instruction {
	launch, _ := LaunchAddress(dao)
	fundingVault, _ := token.AssociatedAddress(launch, fundingMint)
	saleVault, _ := token.AssociatedAddress(launch, saleMint)

	w := codec.NewWriter()
	w.Discriminator(initializeLaunchDiscriminator)
	w.U64(args.MinimumRaiseAmount)
	w.U64(args.MaximumRaiseAmount)
	w.U64(args.SlotsForLaunch)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(launch),
			domain.SignerMeta(creator, true),
			domain.Meta(dao),
			domain.Meta(daoTreasury),
			domain.Meta(fundingMint),
			domain.Meta(saleMint),
			domain.WritableMeta(fundingVault),
			domain.WritableMeta(saleVault),
		},
		Data: w.Bytes(),
	}
}

// Commit builds a commit instruction moving amount from funder's associated
// funding account into the launch vault.
func Commit(l *domain.Launch, funder domain.Pubkey, amount uint64) *domain.Instruction {
	record, _ := FundingRecordAddress(l.Address, funder)
	source, _ := token.AssociatedAddress(funder, l.FundingMint)

	w := codec.NewWriter()
	w.Discriminator(commitDiscriminator)
	w.U64(amount)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(l.Address),
			domain.WritableMeta(record),
			domain.SignerMeta(funder, true),
			domain.WritableMeta(source),
			domain.WritableMeta(l.FundingVault),
		},
		Data: w.Bytes(),
	}
}

// Finalize builds a finalize instruction. Anyone may submit it.
func Finalize(l *domain.Launch) *domain.Instruction {
	treasuryAccount, _ := token.AssociatedAddress(l.DaoTreasury, l.FundingMint)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(l.Address),
			domain.WritableMeta(l.FundingVault),
			domain.WritableMeta(treasuryAccount),
			domain.WritableMeta(l.SaleMint),
			domain.WritableMeta(l.SaleVault),
		},
		Data: discriminatorOnly(finalizeDiscriminator),
	}
}

// StartRefund builds a start_refund instruction. Anyone may submit it.
func StartRefund(launch domain.Pubkey) *domain.Instruction {
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts:  []domain.AccountMeta{domain.WritableMeta(launch)},
		Data:      discriminatorOnly(startRefundDiscriminator),
	}
}

// Refund builds a refund instruction returning funder's commitment to their
// associated funding account. Anyone may submit it.
func Refund(l *domain.Launch, funder domain.Pubkey) *domain.Instruction {
	record, _ := FundingRecordAddress(l.Address, funder)
	destination, _ := token.AssociatedAddress(funder, l.FundingMint)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(l.Address),
			domain.WritableMeta(record),
			domain.WritableMeta(l.FundingVault),
			domain.WritableMeta(destination),
		},
		Data: discriminatorOnly(refundDiscriminator),
	}
}

// Claim builds a claim instruction paying funder's sale allocation to their
// associated sale account. Anyone may submit it.
func Claim(l *domain.Launch, funder domain.Pubkey) *domain.Instruction {
	record, _ := FundingRecordAddress(l.Address, funder)
	destination, _ := token.AssociatedAddress(funder, l.SaleMint)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.Meta(l.Address),
			domain.WritableMeta(record),
			domain.WritableMeta(l.SaleVault),
			domain.WritableMeta(destination),
		},
		Data: discriminatorOnly(claimDiscriminator),
	}
}

func discriminatorOnly(d [codec.DiscriminatorSize]byte) []byte {
	return append([]byte(nil), d[:]...)
}
