// Package launchpad runs one fundraising round per DAO: it validates the sale
// mint, escrows commitments in launch-owned vaults, and either pays the raise
// to the DAO treasury and lets funders claim the sale pro-rata, or refunds
// every funder.
package launchpad

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"

	"solana-dao-lab/internal/autocrat"
	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/pda"
	"solana-dao-lab/internal/token"
)

// ProgramID is the launchpad program id.
var ProgramID = domain.MustParsePubkey("LaunchPadDAoRa1sezHw7qf3VYbKtMS9xpNnEgcJuT2")

const (
	// RequiredDecimals applies to both the funding and the sale mint.
	RequiredDecimals = 6

	// TokensForSale is the sale supply minted on finalize, in base units.
	TokensForSale uint64 = 10_000_000 * 1_000_000

	// DefaultSlotsForLaunch is used when initialize_launch passes zero (about five days).
	DefaultSlotsForLaunch uint64 = 1_080_000
)

var (
	launchSeed        = []byte("launch")
	fundingRecordSeed = []byte("funding_record")
)

var (
	initializeLaunchDiscriminator = codec.Discriminator("global", "initialize_launch")
	commitDiscriminator           = codec.Discriminator("global", "commit")
	finalizeDiscriminator         = codec.Discriminator("global", "finalize")
	startRefundDiscriminator      = codec.Discriminator("global", "start_refund")
	refundDiscriminator           = codec.Discriminator("global", "refund")
	claimDiscriminator            = codec.Discriminator("global", "claim")
)

// LaunchAddress returns the launch of dao: PDA(["launch", dao]).
func LaunchAddress(dao domain.Pubkey) (domain.Pubkey, uint8) {
	return pda.MustFind([][]byte{launchSeed, dao[:]}, ProgramID)
}

// FundingRecordAddress returns the record of funder: PDA(["funding_record", launch, funder]).
func FundingRecordAddress(launch, funder domain.Pubkey) (domain.Pubkey, uint8) {
	return pda.MustFind([][]byte{fundingRecordSeed, launch[:], funder[:]}, ProgramID)
}

func launchSeeds(dao domain.Pubkey, bump uint8) [][]byte {
	return [][]byte{launchSeed, dao[:], {bump}}
}

// Allocation returns the sale tokens owed for committed out of total: floor(TokensForSale*committed/total).
func Allocation(committed, total uint64) uint64 {
	if total == 0 || committed > total {
		return 0
	}
	hi, lo := bits.Mul64(TokensForSale, committed)
	q, _ := bits.Div64(hi, lo, total)
	return q
}

// Program is the launchpad program.
type Program struct{}

var _ ledger.Program = Program{}

func (Program) ID() domain.Pubkey { return ProgramID }
func (Program) Name() string      { return "launchpad" }

// Process dispatches on the instruction discriminator.
func (p Program) Process(tx *ledger.Tx, ix *domain.Instruction) error {
	if len(ix.Data) < codec.DiscriminatorSize {
		return fmt.Errorf("%w: missing discriminator", ledger.ErrInvalidInstructionData)
	}
	r := codec.NewReader(ix.Data[codec.DiscriminatorSize:])

	switch [codec.DiscriminatorSize]byte(ix.Data[:codec.DiscriminatorSize]) {
	case initializeLaunchDiscriminator:
		return p.initializeLaunch(tx, ix, r)
	case commitDiscriminator:
		return p.commit(tx, ix, r)
	case finalizeDiscriminator:
		return p.finalize(tx, ix)
	case startRefundDiscriminator:
		return p.startRefund(tx, ix)
	case refundDiscriminator:
		return p.refund(tx, ix)
	case claimDiscriminator:
		return p.claim(tx, ix)
	default:
		return fmt.Errorf("%w: unknown launchpad instruction", ledger.ErrInvalidInstructionData)
	}
}

func loadLaunch(tx *ledger.Tx, address domain.Pubkey) (*domain.Launch, error) {
	acct, err := tx.LoadOwned(address, ProgramID)
	if err != nil {
		return nil, err
	}
	return DecodeLaunch(address, acct.Data)
}

func loadFundingRecord(tx *ledger.Tx, address domain.Pubkey) (*domain.FundingRecord, error) {
	acct, err := tx.LoadOwned(address, ProgramID)
	if err != nil {
		return nil, err
	}
	return DecodeFundingRecord(address, acct.Data)
}

func decodeArgs(r *codec.Reader) error {
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidInstructionData, err)
	}
	return nil
}

func checkVault(got, owner, mint domain.Pubkey) error {
	want, _ := token.AssociatedAddress(owner, mint)
	if got != want {
		return fmt.Errorf("%w: got %s, want %s", ErrInvalidVault, got, want)
	}
	return nil
}

// initializeLaunch: accounts [launch (writable), creator (signer), dao, dao treasury,
// funding mint, sale mint, funding vault (writable), sale vault (writable)].
func (Program) initializeLaunch(tx *ledger.Tx, ix *domain.Instruction, r *codec.Reader) error {
	minRaise := r.U64()
	maxRaise := r.U64()
	slotsForLaunch := r.U64()
	if err := decodeArgs(r); err != nil {
		return err
	}
	keys, err := ledger.Keys(ix, 8)
	if err != nil {
		return err
	}
	address, creator, daoAddress, treasury := keys[0], keys[1], keys[2], keys[3]
	fundingMint, saleMint, fundingVault, saleVault := keys[4], keys[5], keys[6], keys[7]

	if err := tx.RequireSigner(creator); err != nil {
		return err
	}
	expected, bump := LaunchAddress(daoAddress)
	if address != expected {
		return fmt.Errorf("%w: launch %s, want %s", ledger.ErrInvalidSeeds, address, expected)
	}

	// One launch per dao: a second initialization collides here.
	if err := tx.InvokeSigned(ledger.CreateAccount(address, LaunchSize, ProgramID), launchSeeds(daoAddress, bump)); err != nil {
		return err
	}

	dao, err := autocrat.LoadDAO(tx, daoAddress)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDAO, err)
	}
	if dao.Treasury != treasury {
		return fmt.Errorf("%w: treasury %s, want %s", ErrInvalidDAO, treasury, dao.Treasury)
	}
	if dao.USDCMint != fundingMint {
		return fmt.Errorf("%w: got %s, want %s", ErrFundingMintMismatch, fundingMint, dao.USDCMint)
	}

	fm, err := token.LoadMint(tx, fundingMint)
	if err != nil {
		return err
	}
	if fm.Decimals != RequiredDecimals {
		return fmt.Errorf("%w: funding mint has %d", ErrInvalidMintDecimals, fm.Decimals)
	}
	sm, err := token.LoadMint(tx, saleMint)
	if err != nil {
		return err
	}
	if sm.Decimals != RequiredDecimals {
		return fmt.Errorf("%w: sale mint has %d", ErrInvalidMintDecimals, sm.Decimals)
	}
	if err := CheckMint(sm, address); err != nil {
		return err
	}

	if minRaise == 0 || minRaise > maxRaise {
		return fmt.Errorf("%w: min %d, max %d", ErrMinMaxRaiseInvalid, minRaise, maxRaise)
	}

	if err := checkVault(fundingVault, address, fundingMint); err != nil {
		return err
	}
	if err := checkVault(saleVault, address, saleMint); err != nil {
		return err
	}
	if err := tx.Invoke(token.CreateAssociatedAccount(address, fundingMint)); err != nil {
		return err
	}
	if err := tx.Invoke(token.CreateAssociatedAccount(address, saleMint)); err != nil {
		return err
	}

	if slotsForLaunch == 0 {
		slotsForLaunch = DefaultSlotsForLaunch
	}
	if slotsForLaunch > math.MaxUint64-tx.Slot() {
		return fmt.Errorf("%w: funding window overflows", ledger.ErrInvalidInstructionData)
	}

	l := &domain.Launch{
		Address:            address,
		Dao:                daoAddress,
		DaoTreasury:        dao.Treasury,
		Creator:            creator,
		FundingMint:        fundingMint,
		SaleMint:           saleMint,
		FundingVault:       fundingVault,
		SaleVault:          saleVault,
		MinimumRaiseAmount: minRaise,
		MaximumRaiseAmount: maxRaise,
		FundingEndSlot:     tx.Slot() + slotsForLaunch,
		State:              domain.LaunchStateOpen,
		PdaBump:            bump,
	}
	if err := tx.Store(address, EncodeLaunch(l)); err != nil {
		return err
	}

	tx.Log("initialized launch %s for dao %s", address, daoAddress)
	tx.Emit(domain.EventLaunchInitialized, address, map[string]string{
		"dao":              daoAddress.String(),
		"dao_treasury":     dao.Treasury.String(),
		"creator":          creator.String(),
		"funding_mint":     fundingMint.String(),
		"sale_mint":        saleMint.String(),
		"minimum_raise":    strconv.FormatUint(minRaise, 10),
		"maximum_raise":    strconv.FormatUint(maxRaise, 10),
		"funding_end_slot": strconv.FormatUint(l.FundingEndSlot, 10),
		"pda_bump":         strconv.Itoa(int(bump)),
	})
	return nil
}

// commit: accounts [launch (writable), funding record (writable), funder (signer),
// funder token account (writable), funding vault (writable)].
func (Program) commit(tx *ledger.Tx, ix *domain.Instruction, r *codec.Reader) error {
	amount := r.U64()
	if err := decodeArgs(r); err != nil {
		return err
	}
	keys, err := ledger.Keys(ix, 5)
	if err != nil {
		return err
	}
	funder, funderAccount := keys[2], keys[3]

	if err := tx.RequireSigner(funder); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}

	l, err := loadLaunch(tx, keys[0])
	if err != nil {
		return err
	}
	if l.State != domain.LaunchStateOpen {
		return fmt.Errorf("%w: launch is %s", ErrInvalidLaunchState, l.State)
	}
	if tx.Slot() >= l.FundingEndSlot {
		return fmt.Errorf("%w: slot %d, window ended at %d", ErrFundingWindowClosed, tx.Slot(), l.FundingEndSlot)
	}
	if keys[4] != l.FundingVault {
		return fmt.Errorf("%w: %s", ErrInvalidVault, keys[4])
	}
	if amount > l.RemainingRaise() {
		return fmt.Errorf("%w: committed %d, max %d, amount %d", ErrRaiseCapExceeded, l.CommittedAmount, l.MaximumRaiseAmount, amount)
	}

	recordAddress, bump := FundingRecordAddress(l.Address, funder)
	if keys[1] != recordAddress {
		return fmt.Errorf("%w: got %s, want %s", ErrInvalidFundingRecord, keys[1], recordAddress)
	}
	exists, err := tx.Exists(recordAddress)
	if err != nil {
		return err
	}
	var rec *domain.FundingRecord
	if exists {
		if rec, err = loadFundingRecord(tx, recordAddress); err != nil {
			return err
		}
	} else {
		seeds := [][]byte{fundingRecordSeed, l.Address[:], funder[:], {bump}}
		if err := tx.InvokeSigned(ledger.CreateAccount(recordAddress, FundingRecordSize, ProgramID), seeds); err != nil {
			return err
		}
		rec = &domain.FundingRecord{Address: recordAddress, Launch: l.Address, Funder: funder, PdaBump: bump}
	}

	if err := tx.Invoke(token.Transfer(funderAccount, l.FundingVault, funder, amount)); err != nil {
		return err
	}

	rec.CommittedAmount += amount
	rec.CommitCount++
	l.CommittedAmount += amount
	l.SeqNum++
	if err := tx.Store(recordAddress, EncodeFundingRecord(rec)); err != nil {
		return err
	}
	if err := tx.Store(l.Address, EncodeLaunch(l)); err != nil {
		return err
	}

	tx.Emit(domain.EventFundsCommitted, l.Address, map[string]string{
		"funder":           funder.String(),
		"amount":           strconv.FormatUint(amount, 10),
		"funder_committed": strconv.FormatUint(rec.CommittedAmount, 10),
		"total_committed":  strconv.FormatUint(l.CommittedAmount, 10),
		"seq_num":          strconv.FormatUint(l.SeqNum, 10),
	})
	return nil
}

// finalize: accounts [launch (writable), funding vault (writable), treasury funding
// account (writable), sale mint (writable), sale vault (writable)].
func (Program) finalize(tx *ledger.Tx, ix *domain.Instruction) error {
	keys, err := ledger.Keys(ix, 5)
	if err != nil {
		return err
	}

	l, err := loadLaunch(tx, keys[0])
	if err != nil {
		return err
	}
	switch l.State {
	case domain.LaunchStateFinalized:
		return ErrAlreadyFinalized
	case domain.LaunchStateRefunded:
		return fmt.Errorf("%w: launch is %s", ErrInvalidLaunchState, l.State)
	}
	if tx.Slot() < l.FundingEndSlot {
		return fmt.Errorf("%w: slot %d, window ends at %d", ErrFundingWindowOpen, tx.Slot(), l.FundingEndSlot)
	}
	if l.CommittedAmount < l.MinimumRaiseAmount {
		return fmt.Errorf("%w: committed %d, minimum %d", ErrMinimumRaiseNotMet, l.CommittedAmount, l.MinimumRaiseAmount)
	}
	if keys[1] != l.FundingVault || keys[3] != l.SaleMint || keys[4] != l.SaleVault {
		return fmt.Errorf("%w: finalize accounts do not match launch", ErrInvalidVault)
	}
	treasuryAccount := keys[2]
	if err := checkVault(treasuryAccount, l.DaoTreasury, l.FundingMint); err != nil {
		return err
	}

	signer := launchSeeds(l.Dao, l.PdaBump)
	if err := tx.Invoke(token.CreateAssociatedAccount(l.DaoTreasury, l.FundingMint)); err != nil {
		return err
	}
	if err := tx.InvokeSigned(token.Transfer(l.FundingVault, treasuryAccount, l.Address, l.CommittedAmount), signer); err != nil {
		return err
	}

	// The whole sale goes to the launch vault; funders claim their share one by one.
	if err := tx.InvokeSigned(token.MintTo(l.SaleMint, l.SaleVault, l.Address, TokensForSale), signer); err != nil {
		return err
	}

	l.State = domain.LaunchStateFinalized
	l.SeqNum++
	if err := tx.Store(l.Address, EncodeLaunch(l)); err != nil {
		return err
	}

	tx.Log("finalized launch %s: %d to treasury", l.Address, l.CommittedAmount)
	tx.Emit(domain.EventLaunchFinalized, l.Address, map[string]string{
		"dao_treasury":    l.DaoTreasury.String(),
		"total_committed": strconv.FormatUint(l.CommittedAmount, 10),
		"tokens_minted":   strconv.FormatUint(TokensForSale, 10),
		"seq_num":         strconv.FormatUint(l.SeqNum, 10),
	})
	return nil
}

// startRefund: accounts [launch (writable)].
func (Program) startRefund(tx *ledger.Tx, ix *domain.Instruction) error {
	keys, err := ledger.Keys(ix, 1)
	if err != nil {
		return err
	}

	l, err := loadLaunch(tx, keys[0])
	if err != nil {
		return err
	}
	switch l.State {
	case domain.LaunchStateFinalized:
		return ErrAlreadyFinalized
	case domain.LaunchStateRefunded:
		return fmt.Errorf("%w: launch is %s", ErrInvalidLaunchState, l.State)
	}
	if tx.Slot() < l.FundingEndSlot {
		return fmt.Errorf("%w: slot %d, window ends at %d", ErrFundingWindowOpen, tx.Slot(), l.FundingEndSlot)
	}
	if l.CommittedAmount >= l.MinimumRaiseAmount {
		return fmt.Errorf("%w: committed %d, minimum %d", ErrMinimumRaiseMet, l.CommittedAmount, l.MinimumRaiseAmount)
	}

	l.State = domain.LaunchStateRefunded
	l.SeqNum++
	if err := tx.Store(l.Address, EncodeLaunch(l)); err != nil {
		return err
	}
	tx.Emit(domain.EventLaunchRefundStarted, l.Address, map[string]string{
		"total_committed": strconv.FormatUint(l.CommittedAmount, 10),
		"seq_num":         strconv.FormatUint(l.SeqNum, 10),
	})
	return nil
}

// refund: accounts [launch (writable), funding record (writable), funding vault (writable),
// funder token account (writable)].
func (Program) refund(tx *ledger.Tx, ix *domain.Instruction) error {
	keys, err := ledger.Keys(ix, 4)
	if err != nil {
		return err
	}

	l, err := loadLaunch(tx, keys[0])
	if err != nil {
		return err
	}
	if l.State != domain.LaunchStateRefunded {
		return fmt.Errorf("%w: launch is %s", ErrInvalidLaunchState, l.State)
	}
	if keys[2] != l.FundingVault {
		return fmt.Errorf("%w: %s", ErrInvalidVault, keys[2])
	}
	rec, err := loadFundingRecord(tx, keys[1])
	if err != nil {
		return err
	}
	if rec.Launch != l.Address {
		return fmt.Errorf("%w: %s", ErrInvalidFundingRecord, rec.Address)
	}
	if rec.Refunded {
		return fmt.Errorf("%w: %s", ErrAlreadyRefunded, rec.Funder)
	}
	dst, err := token.LoadAccount(tx, keys[3])
	if err != nil {
		return err
	}
	if dst.Owner != rec.Funder || dst.Mint != l.FundingMint {
		return fmt.Errorf("%w: refund destination %s is not the funder's %s account", ErrInvalidVault, dst.Address, l.FundingMint)
	}

	if err := tx.InvokeSigned(token.Transfer(l.FundingVault, dst.Address, l.Address, rec.CommittedAmount), launchSeeds(l.Dao, l.PdaBump)); err != nil {
		return err
	}

	rec.Refunded = true
	l.CommittedAmount -= rec.CommittedAmount
	l.SeqNum++
	if err := tx.Store(rec.Address, EncodeFundingRecord(rec)); err != nil {
		return err
	}
	if err := tx.Store(l.Address, EncodeLaunch(l)); err != nil {
		return err
	}
	tx.Emit(domain.EventFunderRefunded, l.Address, map[string]string{
		"funder":  rec.Funder.String(),
		"amount":  strconv.FormatUint(rec.CommittedAmount, 10),
		"seq_num": strconv.FormatUint(l.SeqNum, 10),
	})
	return nil
}

// claim: accounts [launch, funding record (writable), sale vault (writable),
// funder sale account (writable)]. Anyone may submit it.
func (Program) claim(tx *ledger.Tx, ix *domain.Instruction) error {
	keys, err := ledger.Keys(ix, 4)
	if err != nil {
		return err
	}

	l, err := loadLaunch(tx, keys[0])
	if err != nil {
		return err
	}
	if l.State != domain.LaunchStateFinalized {
		return fmt.Errorf("%w: launch is %s", ErrInvalidLaunchState, l.State)
	}
	if keys[2] != l.SaleVault {
		return fmt.Errorf("%w: %s", ErrInvalidVault, keys[2])
	}
	rec, err := loadFundingRecord(tx, keys[1])
	if err != nil {
		return err
	}
	if rec.Launch != l.Address {
		return fmt.Errorf("%w: %s", ErrInvalidFundingRecord, rec.Address)
	}
	if rec.Claimed {
		return fmt.Errorf("%w: %s", ErrAlreadyClaimed, rec.Funder)
	}
	dst, err := token.LoadAccount(tx, keys[3])
	if err != nil {
		return err
	}
	if dst.Owner != rec.Funder || dst.Mint != l.SaleMint {
		return fmt.Errorf("%w: claim destination %s is not the funder's %s account", ErrInvalidVault, dst.Address, l.SaleMint)
	}

	alloc := Allocation(rec.CommittedAmount, l.CommittedAmount)
	if alloc > 0 {
		if err := tx.InvokeSigned(token.Transfer(l.SaleVault, dst.Address, l.Address, alloc), launchSeeds(l.Dao, l.PdaBump)); err != nil {
			return err
		}
	}

	rec.Claimed = true
	rec.TokensAllocated = alloc
	if err := tx.Store(rec.Address, EncodeFundingRecord(rec)); err != nil {
		return err
	}
	tx.Emit(domain.EventFunderClaimed, l.Address, map[string]string{
		"funder": rec.Funder.String(),
		"tokens": strconv.FormatUint(alloc, 10),
	})
	return nil
}

// filterFundingRecords returns the records of launch in address order.
func filterFundingRecords(accts []*domain.Account, launch domain.Pubkey) ([]*domain.FundingRecord, error) {
	var out []*domain.FundingRecord
	for _, a := range accts {
		if !isFundingRecord(a.Data) {
			continue
		}
		rec, err := DecodeFundingRecord(a.Address, a.Data)
		if err != nil {
			return nil, err
		}
		if rec.Launch == launch {
			out = append(out, rec)
		}
	}
	return out, nil
}
