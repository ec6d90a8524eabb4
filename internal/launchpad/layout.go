package launchpad

import (
	"fmt"

	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
)

// Encoded account sizes.
const (
	LaunchSize        = codec.DiscriminatorSize + 7*32 + 4*8 + 1 + 1 + 8
	FundingRecordSize = codec.DiscriminatorSize + 2*32 + 8 + 4 + 1 + 1 + 8 + 1
)

var (
	launchDiscriminator        = codec.Discriminator("account", "Launch")
	fundingRecordDiscriminator = codec.Discriminator("account", "FundingRecord")
)

// EncodeLaunch serializes a launch account.
func EncodeLaunch(l *domain.Launch) []byte {
	w := codec.NewWriter()
	w.Discriminator(launchDiscriminator)
	w.Pubkey(l.Dao)
	w.Pubkey(l.DaoTreasury)
	w.Pubkey(l.Creator)
	w.Pubkey(l.FundingMint)
	w.Pubkey(l.SaleMint)
	w.Pubkey(l.FundingVault)
	w.Pubkey(l.SaleVault)
	w.U64(l.MinimumRaiseAmount)
	w.U64(l.MaximumRaiseAmount)
	w.U64(l.CommittedAmount)
	w.U64(l.FundingEndSlot)
	w.U8(uint8(l.State))
	w.U8(l.PdaBump)
	w.U64(l.SeqNum)
	return w.Bytes()
}

// DecodeLaunch parses a launch account.
func DecodeLaunch(address domain.Pubkey, data []byte) (*domain.Launch, error) {
	r := codec.NewReader(data)
	if !r.ExpectDiscriminator(launchDiscriminator) {
		return nil, fmt.Errorf("%w: %s is not a launch", ledger.ErrInvalidAccountData, address)
	}
	l := &domain.Launch{Address: address}
	l.Dao = r.Pubkey()
	l.DaoTreasury = r.Pubkey()
	l.Creator = r.Pubkey()
	l.FundingMint = r.Pubkey()
	l.SaleMint = r.Pubkey()
	l.FundingVault = r.Pubkey()
	l.SaleVault = r.Pubkey()
	l.MinimumRaiseAmount = r.U64()
	l.MaximumRaiseAmount = r.U64()
	l.CommittedAmount = r.U64()
	l.FundingEndSlot = r.U64()
	l.State = domain.LaunchState(r.U8())
	l.PdaBump = r.U8()
	l.SeqNum = r.U64()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: launch %s: %v", ledger.ErrInvalidAccountData, address, err)
	}
	return l, nil
}

// EncodeFundingRecord serializes a funding record account.
func EncodeFundingRecord(f *domain.FundingRecord) []byte {
	w := codec.NewWriter()
	w.Discriminator(fundingRecordDiscriminator)
	w.Pubkey(f.Launch)
	w.Pubkey(f.Funder)
	w.U64(f.CommittedAmount)
	w.U32(f.CommitCount)
	w.Bool(f.Refunded)
	w.Bool(f.Claimed)
	w.U64(f.TokensAllocated)
	w.U8(f.PdaBump)
	return w.Bytes()
}

// DecodeFundingRecord parses a funding record account.
func DecodeFundingRecord(address domain.Pubkey, data []byte) (*domain.FundingRecord, error) {
	r := codec.NewReader(data)
	if !r.ExpectDiscriminator(fundingRecordDiscriminator) {
		return nil, fmt.Errorf("%w: %s is not a funding record", ledger.ErrInvalidAccountData, address)
	}
	f := &domain.FundingRecord{Address: address}
	f.Launch = r.Pubkey()
	f.Funder = r.Pubkey()
	f.CommittedAmount = r.U64()
	f.CommitCount = r.U32()
	f.Refunded = r.Bool()
	f.Claimed = r.Bool()
	f.TokensAllocated = r.U64()
	f.PdaBump = r.U8()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: funding record %s: %v", ledger.ErrInvalidAccountData, address, err)
	}
	return f, nil
}

func isFundingRecord(data []byte) bool {
	return len(data) >= codec.DiscriminatorSize && [codec.DiscriminatorSize]byte(data[:codec.DiscriminatorSize]) == fundingRecordDiscriminator
}
