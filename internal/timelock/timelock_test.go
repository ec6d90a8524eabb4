package timelock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/storage/memory"
	"solana-dao-lab/internal/token"
)

type fixture struct {
	rt     *ledger.Runtime
	clock  *ledger.ManualClock
	events *memory.EventStore
	tokens *token.Client
	client *Client

	payer    domain.Pubkey
	admin    domain.Pubkey
	enqueuer domain.Pubkey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := ledger.NewManualClock(100)
	events := memory.NewEventStore()
	rt := ledger.NewRuntime(memory.NewAccountStore(), clock, ledger.WithEventStore(events))
	rt.Register(token.Program{}, token.AssociatedProgram{}, Program{})
	return &fixture{
		rt:       rt,
		clock:    clock,
		events:   events,
		tokens:   token.NewClient(rt),
		client:   NewClient(rt, nil),
		payer:    domain.NewRandomPubkey(),
		admin:    domain.NewRandomPubkey(),
		enqueuer: domain.NewRandomPubkey(),
	}
}

func (f *fixture) timelock(t *testing.T, delay uint64) *domain.Timelock {
	t.Helper()
	tl, err := f.client.CreateTimelock(context.Background(), f.payer, CreateTimelockParams{
		RandomID:     true,
		Admin:        f.admin,
		Enqueuers:    []domain.Pubkey{f.enqueuer},
		DelayInSlots: delay,
		MaxEnqueuers: 3,
	})
	require.NoError(t, err)
	return tl
}

// payout funds an account owned by the timelock signer and returns a transfer
// of amount from it to a fresh recipient.
type payout struct {
	mint, authority, source, recipient domain.Pubkey
}

func (f *fixture) payout(t *testing.T, tl *domain.Timelock, balance uint64) payout {
	t.Helper()
	ctx := context.Background()
	authority := domain.NewRandomPubkey()
	signer, _ := SignerAddress(tl.Address)

	mint, err := f.tokens.CreateMint(ctx, 6, authority, nil)
	require.NoError(t, err)
	source, err := f.tokens.CreateAssociatedAccount(ctx, signer, mint)
	require.NoError(t, err)
	require.NoError(t, f.tokens.MintTo(ctx, mint, source, authority, balance))
	recipient, err := f.tokens.CreateAssociatedAccount(ctx, domain.NewRandomPubkey(), mint)
	require.NoError(t, err)
	return payout{mint: mint, authority: authority, source: source, recipient: recipient}
}

func (p payout) transfer(tl *domain.Timelock, amount uint64) *domain.Instruction {
	signer, _ := SignerAddress(tl.Address)
	return token.Transfer(p.source, p.recipient, signer, amount)
}

func (f *fixture) balance(t *testing.T, account domain.Pubkey) uint64 {
	t.Helper()
	bal, err := f.tokens.Balance(context.Background(), account)
	require.NoError(t, err)
	return bal
}

// batch creates a batch with room for ixs and appends them.
func (f *fixture) batch(t *testing.T, tl *domain.Timelock, ixs ...*domain.Instruction) domain.Pubkey {
	t.Helper()
	ctx := context.Background()
	b, err := f.client.CreateTransactionBatch(ctx, tl.Address, f.payer, nil, RequiredCapacity(ixs...))
	require.NoError(t, err)
	for i, ix := range ixs {
		idx, err := f.client.AddTransaction(ctx, b, f.payer, ix)
		require.NoError(t, err)
		require.Equal(t, i, idx)
	}
	return b
}

func TestLayoutSizes(t *testing.T) {
	slot := uint64(1)
	empty := EncodeBatch(&domain.TransactionBatch{EnqueuedSlot: &slot, ReadySlot: &slot, ExecutedSlot: &slot})
	assert.Len(t, empty, MinBatchSize)

	ix := token.Transfer(domain.NewRandomPubkey(), domain.NewRandomPubkey(), domain.NewRandomPubkey(), 5)
	full := EncodeBatch(&domain.TransactionBatch{
		EnqueuedSlot: &slot,
		ReadySlot:    &slot,
		ExecutedSlot: &slot,
		Transactions: []domain.BatchTransaction{{ProgramID: ix.ProgramID, Accounts: ix.Accounts, Data: ix.Data}},
	})
	assert.Len(t, full, RequiredCapacity(ix))

	tl := EncodeTimelock(&domain.Timelock{MaxEnqueuers: 2, Enqueuers: make([]domain.Pubkey, 2)})
	assert.Len(t, tl, TimelockSize(2))
}

func TestCreateTimelock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tl, err := f.client.CreateTimelock(ctx, f.payer, CreateTimelockParams{
		ID:           7,
		Admin:        f.admin,
		Enqueuers:    []domain.Pubkey{f.enqueuer},
		DelayInSlots: 10,
		MaxEnqueuers: 2,
	})
	require.NoError(t, err)

	address, bump := Address(7)
	_, signerBump := SignerAddress(address)
	assert.Equal(t, address, tl.Address)
	assert.Equal(t, bump, tl.PdaBump)
	assert.Equal(t, signerBump, tl.SignerBump)
	assert.Equal(t, f.admin, tl.Admin)
	assert.Equal(t, []domain.Pubkey{f.enqueuer}, tl.Enqueuers)
	assert.Equal(t, uint64(10), tl.DelayInSlots)

	acct, err := f.rt.Account(ctx, address)
	require.NoError(t, err)
	assert.Len(t, acct.Data, TimelockSize(2))

	got, err := f.events.GetByAddress(ctx, address)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.EventTimelockCreated, got[0].Kind)

	_, err = f.client.CreateTimelock(ctx, f.payer, CreateTimelockParams{ID: 7, Admin: f.admin, MaxEnqueuers: 1})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateTimelock_IDSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	zero, err := f.client.CreateTimelock(ctx, f.payer, CreateTimelockParams{ID: 0, Admin: f.admin, MaxEnqueuers: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), zero.ID)
	address, _ := Address(0)
	assert.Equal(t, address, zero.Address)

	_, err = f.client.CreateTimelock(ctx, f.payer, CreateTimelockParams{Admin: f.admin, MaxEnqueuers: 1})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	random, err := f.client.CreateTimelock(ctx, f.payer, CreateTimelockParams{ID: 0, RandomID: true, Admin: f.admin, MaxEnqueuers: 1})
	require.NoError(t, err)
	assert.NotEqual(t, zero.Address, random.Address)
	address, _ = Address(random.ID)
	assert.Equal(t, address, random.Address)
}

func TestCreateTimelock_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := domain.NewRandomPubkey(), domain.NewRandomPubkey()

	tests := []struct {
		name   string
		params CreateTimelockParams
		want   error
	}{
		{
			name:   "more enqueuers than capacity",
			params: CreateTimelockParams{ID: 1, Enqueuers: []domain.Pubkey{a, b}, MaxEnqueuers: 1},
			want:   ErrTooManyEnqueuers,
		},
		{
			name:   "duplicate enqueuer",
			params: CreateTimelockParams{ID: 2, Enqueuers: []domain.Pubkey{a, a}, MaxEnqueuers: 2},
			want:   ErrDuplicateEnqueuer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.client.CreateTimelock(ctx, f.payer, tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("payer must sign", func(t *testing.T) {
		_, err := f.rt.Submit(ctx, nil, CreateTimelock(f.payer, CreateTimelockParams{ID: 3}))
		assert.ErrorIs(t, err, ledger.ErrMissingSignature)
	})
}

func TestNewTimelockID(t *testing.T) {
	a, err := NewTimelockID()
	require.NoError(t, err)
	b, err := NewTimelockID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tl := f.timelock(t, 10)
	outsider := domain.NewRandomPubkey()

	err := f.client.SetDelayInSlots(ctx, tl.Address, outsider, 0)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, ledger.KindAuthorization, ledger.KindOf(err))
	assert.ErrorIs(t, f.client.AddEnqueuer(ctx, tl.Address, f.enqueuer, outsider), ErrUnauthorized)

	require.NoError(t, f.client.SetDelayInSlots(ctx, tl.Address, f.admin, 20))
	second, third := domain.NewRandomPubkey(), domain.NewRandomPubkey()
	require.NoError(t, f.client.AddEnqueuer(ctx, tl.Address, f.admin, second))
	assert.ErrorIs(t, f.client.AddEnqueuer(ctx, tl.Address, f.admin, second), ErrDuplicateEnqueuer)
	require.NoError(t, f.client.AddEnqueuer(ctx, tl.Address, f.admin, third))
	assert.ErrorIs(t, f.client.AddEnqueuer(ctx, tl.Address, f.admin, outsider), ErrTooManyEnqueuers)

	require.NoError(t, f.client.RemoveEnqueuer(ctx, tl.Address, f.admin, second))
	assert.ErrorIs(t, f.client.RemoveEnqueuer(ctx, tl.Address, f.admin, second), ErrEnqueuerNotFound)

	got, err := f.client.Timelock(ctx, tl.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), got.DelayInSlots)
	assert.Equal(t, []domain.Pubkey{f.enqueuer, third}, got.Enqueuers)

	newAdmin := domain.NewRandomPubkey()
	require.NoError(t, f.client.SetAdmin(ctx, tl.Address, f.admin, newAdmin))
	assert.ErrorIs(t, f.client.SetDelayInSlots(ctx, tl.Address, f.admin, 1), ErrUnauthorized)
	require.NoError(t, f.client.SetDelayInSlots(ctx, tl.Address, newAdmin, 1))
}

func TestCreateTransactionBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tl := f.timelock(t, 0)

	// The creator need not be an enqueuer.
	b, err := f.client.CreateTransactionBatch(ctx, tl.Address, f.payer, nil, 512)
	require.NoError(t, err)
	batch, err := f.client.Batch(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, f.payer, batch.TransactionBatchAuthority)
	assert.Equal(t, tl.Address, batch.Timelock)
	assert.Equal(t, domain.BatchStatusAssembling, batch.Status)
	assert.Nil(t, batch.EnqueuedSlot)
	assert.Equal(t, uint32(512), batch.SizeLimit)

	delegate := domain.NewRandomPubkey()
	b, err = f.client.CreateTransactionBatch(ctx, tl.Address, f.payer, &delegate, MinBatchSize)
	require.NoError(t, err)
	batch, err = f.client.Batch(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, delegate, batch.TransactionBatchAuthority)

	_, err = f.client.CreateTransactionBatch(ctx, tl.Address, f.payer, nil, MinBatchSize-1)
	assert.ErrorIs(t, err, ErrBatchTooSmall)

	_, err = f.client.CreateTransactionBatch(ctx, domain.NewRandomPubkey(), f.payer, nil, 512)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestAddTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tl := f.timelock(t, 0)
	p := f.payout(t, tl, 100)
	ix := p.transfer(tl, 1)

	b, err := f.client.CreateTransactionBatch(ctx, tl.Address, f.payer, nil, RequiredCapacity(ix, ix))
	require.NoError(t, err)

	_, err = f.client.AddTransaction(ctx, b, f.enqueuer, ix)
	assert.ErrorIs(t, err, ErrUnauthorized)

	idx, err := f.client.AddTransaction(ctx, b, f.payer, ix)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	idx, err = f.client.AddTransaction(ctx, b, f.payer, ix)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = f.client.AddTransaction(ctx, b, f.payer, ix)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, ledger.KindCapacity, ledger.KindOf(err))

	batch, err := f.client.Batch(ctx, b)
	require.NoError(t, err)
	require.Len(t, batch.Transactions, 2)
	assert.Equal(t, ix.Data, batch.Transactions[1].Data)
	assert.Equal(t, ix.Accounts, batch.Transactions[1].Accounts)
}

func TestAddTransaction_AfterEnqueueIsSealed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tl := f.timelock(t, 0)
	p := f.payout(t, tl, 100)

	b, err := f.client.CreateTransactionBatch(ctx, tl.Address, f.payer, nil, 4096)
	require.NoError(t, err)
	require.NoError(t, f.client.Enqueue(ctx, b, f.enqueuer))

	_, err = f.client.AddTransaction(ctx, b, f.payer, p.transfer(tl, 1))
	require.ErrorIs(t, err, ErrBatchSealed)
	assert.Equal(t, ledger.KindStateConflict, ledger.KindOf(err))

	// Also for a caller that is not the authority.
	_, err = f.client.AddTransaction(ctx, b, f.enqueuer, p.transfer(tl, 1))
	assert.ErrorIs(t, err, ErrBatchSealed)
}

func TestEnqueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tl := f.timelock(t, 5)

	b := f.batch(t, tl)
	assert.ErrorIs(t, f.client.Execute(ctx, b), ErrBatchNotEnqueued)
	assert.ErrorIs(t, f.client.Enqueue(ctx, b, f.payer), ErrUnauthorized)

	require.NoError(t, f.client.Enqueue(ctx, b, f.enqueuer))
	assert.ErrorIs(t, f.client.Enqueue(ctx, b, f.enqueuer), ErrBatchSealed)

	batch, err := f.client.Batch(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusEnqueued, batch.Status)
	require.NotNil(t, batch.EnqueuedSlot)
	assert.Equal(t, uint64(100), *batch.EnqueuedSlot)
	require.NotNil(t, batch.ReadySlot)
	assert.Equal(t, uint64(105), *batch.ReadySlot)

	// The admin may enqueue without being listed.
	b2 := f.batch(t, tl)
	require.NoError(t, f.client.Enqueue(ctx, b2, f.admin))

	// A batch can only be sealed against the timelock it was created for.
	other, err := f.client.CreateTimelock(ctx, f.payer, CreateTimelockParams{RandomID: true, Admin: f.admin, Enqueuers: []domain.Pubkey{f.enqueuer}, MaxEnqueuers: 1})
	require.NoError(t, err)
	b3 := f.batch(t, tl)
	_, err = f.rt.Submit(ctx, []domain.Pubkey{f.enqueuer}, EnqueueTransactionBatch(b3, other.Address, f.enqueuer))
	assert.ErrorIs(t, err, ErrTimelockMismatch)
}

func TestExecute_DelayBoundary(t *testing.T) {
	const delay = 10
	f := newFixture(t)
	ctx := context.Background()
	tl := f.timelock(t, delay)
	p := f.payout(t, tl, 100)

	b := f.batch(t, tl, p.transfer(tl, 40), p.transfer(tl, 2))
	require.NoError(t, f.client.Enqueue(ctx, b, f.enqueuer))
	sealed := f.clock.Slot()

	for slot := sealed; slot < sealed+delay; slot++ {
		f.clock.Set(slot)
		err := f.client.Execute(ctx, b)
		require.ErrorIs(t, err, ErrDelayNotElapsed, "slot %d", slot)
		assert.Equal(t, ledger.KindTiming, ledger.KindOf(err))
	}
	assert.Zero(t, f.balance(t, p.recipient))

	f.clock.Set(sealed + delay)
	require.NoError(t, f.client.Execute(ctx, b))
	assert.Equal(t, uint64(42), f.balance(t, p.recipient))
	assert.Equal(t, uint64(58), f.balance(t, p.source))

	batch, err := f.client.Batch(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusExecuted, batch.Status)
	require.NotNil(t, batch.ExecutedSlot)
	assert.Equal(t, sealed+delay, *batch.ExecutedSlot)

	err = f.client.Execute(ctx, b)
	require.ErrorIs(t, err, ErrAlreadyExecuted)
	assert.Equal(t, uint64(42), f.balance(t, p.recipient))
	assert.ErrorIs(t, f.client.Enqueue(ctx, b, f.enqueuer), ErrAlreadyExecuted)

	got, err := f.events.GetByAddress(ctx, b)
	require.NoError(t, err)
	kinds := make([]domain.EventKind, 0, len(got))
	for _, e := range got {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []domain.EventKind{
		domain.EventBatchCreated,
		domain.EventTransactionAdded,
		domain.EventTransactionAdded,
		domain.EventBatchEnqueued,
		domain.EventBatchExecuted,
	}, kinds)
}

func TestExecute_InnerFailureKeepsBatchEnqueued(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tl := f.timelock(t, 0)
	p := f.payout(t, tl, 50)

	b := f.batch(t, tl, p.transfer(tl, 30), p.transfer(tl, 30))
	require.NoError(t, f.client.Enqueue(ctx, b, f.enqueuer))

	err := f.client.Execute(ctx, b)
	require.Error(t, err)
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 1, execErr.Index)
	assert.Equal(t, token.ProgramID, execErr.ProgramID)
	assert.ErrorIs(t, err, token.ErrInsufficientFunds)

	// The first transfer was rolled back with the bundle.
	assert.Zero(t, f.balance(t, p.recipient))
	batch, err := f.client.Batch(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusEnqueued, batch.Status)

	// Topping up the source lets the same batch go through.
	require.NoError(t, f.tokens.MintTo(ctx, p.mint, p.source, p.authority, 10))
	require.NoError(t, f.client.Execute(ctx, b))
	assert.Equal(t, uint64(60), f.balance(t, p.recipient))
	assert.Zero(t, f.balance(t, p.source))
}

func TestExecute_SelfReconfiguration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := NewTimelockID()
	require.NoError(t, err)
	address, _ := Address(id)
	signer, _ := SignerAddress(address)

	tl, err := f.client.CreateTimelock(ctx, f.payer, CreateTimelockParams{
		ID:           id,
		Admin:        signer,
		Enqueuers:    []domain.Pubkey{f.enqueuer},
		DelayInSlots: 50,
		MaxEnqueuers: 2,
	})
	require.NoError(t, err)

	// Nobody outside the program can sign as the timelock.
	assert.ErrorIs(t, f.client.SetDelayInSlots(ctx, address, signer, 0), ledger.ErrMissingSignature)

	newEnqueuer := domain.NewRandomPubkey()
	b := f.batch(t, tl,
		SetDelayInSlots(address, signer, 5),
		AddEnqueuer(address, signer, newEnqueuer),
	)
	require.NoError(t, f.client.Enqueue(ctx, b, f.enqueuer))
	f.clock.Advance(50)
	require.NoError(t, f.client.Execute(ctx, b))

	got, err := f.client.Timelock(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.DelayInSlots)
	assert.True(t, got.IsEnqueuer(newEnqueuer))
	assert.Equal(t, signer, got.Admin)

	updates, err := f.events.GetByAddress(ctx, address)
	require.NoError(t, err)
	require.Len(t, updates, 3)
	assert.Equal(t, "delay_in_slots", updates[1].Fields["change"])
	assert.Equal(t, "add_enqueuer", updates[2].Fields["change"])
}

func TestExecute_LoweringDelayKeepsReadySlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tl := f.timelock(t, 100)
	p := f.payout(t, tl, 10)

	b := f.batch(t, tl, p.transfer(tl, 10))
	require.NoError(t, f.client.Enqueue(ctx, b, f.enqueuer))
	f.clock.Advance(5)

	// The admin cannot shorten the wait of a batch already enqueued.
	require.NoError(t, f.client.SetDelayInSlots(ctx, tl.Address, f.admin, 5))
	assert.ErrorIs(t, f.client.Execute(ctx, b), ErrDelayNotElapsed)
	assert.Zero(t, f.balance(t, p.recipient))

	f.clock.Advance(94)
	assert.ErrorIs(t, f.client.Execute(ctx, b), ErrDelayNotElapsed)
	f.clock.Advance(1)
	require.NoError(t, f.client.Execute(ctx, b))
	assert.Equal(t, uint64(10), f.balance(t, p.recipient))
}

func TestExecute_RaisingDelayPushesReadySlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tl := f.timelock(t, 10)
	p := f.payout(t, tl, 10)

	b := f.batch(t, tl, p.transfer(tl, 10))
	require.NoError(t, f.client.Enqueue(ctx, b, f.enqueuer))
	require.NoError(t, f.client.SetDelayInSlots(ctx, tl.Address, f.admin, 30))

	f.clock.Advance(10)
	assert.ErrorIs(t, f.client.Execute(ctx, b), ErrDelayNotElapsed)
	f.clock.Advance(20)
	require.NoError(t, f.client.Execute(ctx, b))
}

func TestExecutableAt(t *testing.T) {
	enqueued, ready := uint64(100), uint64(150)
	b := &domain.TransactionBatch{EnqueuedSlot: &enqueued, ReadySlot: &ready}

	assert.Equal(t, uint64(150), ExecutableAt(b, &domain.Timelock{DelayInSlots: 0}))
	assert.Equal(t, uint64(150), ExecutableAt(b, &domain.Timelock{DelayInSlots: 50}))
	assert.Equal(t, uint64(180), ExecutableAt(b, &domain.Timelock{DelayInSlots: 80}))
	assert.Equal(t, uint64(math.MaxUint64), ExecutableAt(b, &domain.Timelock{DelayInSlots: math.MaxUint64}))
	assert.Equal(t, uint64(math.MaxUint64), ExecutableAt(&domain.TransactionBatch{}, &domain.Timelock{}))
}
