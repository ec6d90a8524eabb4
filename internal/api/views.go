package api

import (
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/launchpad"
	"solana-dao-lab/internal/timelock"
	"solana-dao-lab/internal/token"
)

// Amounts are reported twice: base units for machines, UI strings for people.
// Both launch mints are required to carry launchpad.RequiredDecimals.

type accountView struct {
	Address     domain.Pubkey `json:"address"`
	Owner       domain.Pubkey `json:"owner"`
	Size        int           `json:"size"`
	Data        []byte        `json:"data"`
	CreatedSlot uint64        `json:"created_slot"`
	UpdatedSlot uint64        `json:"updated_slot"`
	Version     uint64        `json:"version"`
}

func newAccountView(a *domain.Account) accountView {
	return accountView{
		Address:     a.Address,
		Owner:       a.Owner,
		Size:        len(a.Data),
		Data:        a.Data,
		CreatedSlot: a.CreatedSlot,
		UpdatedSlot: a.UpdatedSlot,
		Version:     a.Version,
	}
}

type launchView struct {
	Address             domain.Pubkey `json:"address"`
	DAO                 domain.Pubkey `json:"dao"`
	DAOTreasury         domain.Pubkey `json:"dao_treasury"`
	Creator             domain.Pubkey `json:"creator"`
	FundingMint         domain.Pubkey `json:"funding_mint"`
	SaleMint            domain.Pubkey `json:"sale_mint"`
	FundingVault        domain.Pubkey `json:"funding_vault"`
	SaleVault           domain.Pubkey `json:"sale_vault"`
	State               string        `json:"state"`
	MinimumRaise        string        `json:"minimum_raise"`
	MaximumRaise        string        `json:"maximum_raise"`
	Committed           string        `json:"committed"`
	Remaining           string        `json:"remaining"`
	CommittedBaseUnits  uint64        `json:"committed_base_units"`
	FundingEndSlot      uint64        `json:"funding_end_slot"`
	FundingWindowOpen   bool          `json:"funding_window_open"`
	MinimumRaiseReached bool          `json:"minimum_raise_reached"`
	TokensForSale       string        `json:"tokens_for_sale"`
	SeqNum              uint64        `json:"seq_num"`
}

func newLaunchView(l *domain.Launch, slot uint64) launchView {
	ui := func(v uint64) string { return token.FormatAmount(v, launchpad.RequiredDecimals) }
	return launchView{
		Address:             l.Address,
		DAO:                 l.Dao,
		DAOTreasury:         l.DaoTreasury,
		Creator:             l.Creator,
		FundingMint:         l.FundingMint,
		SaleMint:            l.SaleMint,
		FundingVault:        l.FundingVault,
		SaleVault:           l.SaleVault,
		State:               l.State.String(),
		MinimumRaise:        ui(l.MinimumRaiseAmount),
		MaximumRaise:        ui(l.MaximumRaiseAmount),
		Committed:           ui(l.CommittedAmount),
		Remaining:           ui(l.RemainingRaise()),
		CommittedBaseUnits:  l.CommittedAmount,
		FundingEndSlot:      l.FundingEndSlot,
		FundingWindowOpen:   l.State == domain.LaunchStateOpen && slot < l.FundingEndSlot,
		MinimumRaiseReached: l.CommittedAmount >= l.MinimumRaiseAmount,
		TokensForSale:       ui(launchpad.TokensForSale),
		SeqNum:              l.SeqNum,
	}
}

type fundingRecordView struct {
	Address            domain.Pubkey `json:"address"`
	Funder             domain.Pubkey `json:"funder"`
	Committed          string        `json:"committed"`
	CommittedBaseUnits uint64        `json:"committed_base_units"`
	CommitCount        uint32        `json:"commit_count"`
	Refunded           bool          `json:"refunded"`
	Claimed            bool          `json:"claimed"`
	TokensAllocated    string        `json:"tokens_allocated"`
}

func newFundingRecordView(r *domain.FundingRecord) fundingRecordView {
	return fundingRecordView{
		Address:            r.Address,
		Funder:             r.Funder,
		Committed:          token.FormatAmount(r.CommittedAmount, launchpad.RequiredDecimals),
		CommittedBaseUnits: r.CommittedAmount,
		CommitCount:        r.CommitCount,
		Refunded:           r.Refunded,
		Claimed:            r.Claimed,
		TokensAllocated:    token.FormatAmount(r.TokensAllocated, launchpad.RequiredDecimals),
	}
}

type timelockView struct {
	Address      domain.Pubkey   `json:"address"`
	ID           uint64          `json:"id"`
	Signer       domain.Pubkey   `json:"signer"`
	Admin        domain.Pubkey   `json:"admin"`
	Enqueuers    []domain.Pubkey `json:"enqueuers"`
	MaxEnqueuers uint16          `json:"max_enqueuers"`
	DelayInSlots uint64          `json:"delay_in_slots"`
}

func newTimelockView(t *domain.Timelock) timelockView {
	signer, _ := timelock.SignerAddress(t.Address)
	enqueuers := t.Enqueuers
	if enqueuers == nil {
		enqueuers = []domain.Pubkey{}
	}
	return timelockView{
		Address:      t.Address,
		ID:           t.ID,
		Signer:       signer,
		Admin:        t.Admin,
		Enqueuers:    enqueuers,
		MaxEnqueuers: t.MaxEnqueuers,
		DelayInSlots: t.DelayInSlots,
	}
}

type batchView struct {
	Address      domain.Pubkey             `json:"address"`
	Timelock     domain.Pubkey             `json:"timelock"`
	Authority    domain.Pubkey             `json:"authority"`
	Status       string                    `json:"status"`
	EnqueuedSlot *uint64                   `json:"enqueued_slot"`
	ExecutedSlot *uint64                   `json:"executed_slot"`
	ExecutableAt *uint64                   `json:"executable_at"`
	Executable   bool                      `json:"executable"`
	SizeLimit    uint32                    `json:"size_limit"`
	Transactions []domain.BatchTransaction `json:"transactions"`
}

func newBatchView(b *domain.TransactionBatch, t *domain.Timelock, slot uint64) batchView {
	v := batchView{
		Address:      b.Address,
		Timelock:     b.Timelock,
		Authority:    b.TransactionBatchAuthority,
		Status:       b.Status.String(),
		EnqueuedSlot: b.EnqueuedSlot,
		ExecutedSlot: b.ExecutedSlot,
		SizeLimit:    b.SizeLimit,
		Transactions: b.Transactions,
	}
	if v.Transactions == nil {
		v.Transactions = []domain.BatchTransaction{}
	}
	if b.Status == domain.BatchStatusEnqueued && b.ReadySlot != nil {
		at := timelock.ExecutableAt(b, t)
		v.ExecutableAt = &at
		v.Executable = slot >= at
	}
	return v
}

type eventView struct {
	EventID   string            `json:"event_id"`
	Kind      domain.EventKind  `json:"kind"`
	ProgramID domain.Pubkey     `json:"program_id"`
	Address   domain.Pubkey     `json:"address"`
	Slot      uint64            `json:"slot"`
	Seq       int               `json:"seq"`
	Fields    map[string]string `json:"fields"`
}

func newEventView(e *domain.Event) eventView {
	return eventView{
		EventID:   e.EventID,
		Kind:      e.Kind,
		ProgramID: e.ProgramID,
		Address:   e.Address,
		Slot:      e.Slot,
		Seq:       e.Seq,
		Fields:    e.Fields,
	}
}
