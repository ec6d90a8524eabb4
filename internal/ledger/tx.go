package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/pda"
	"solana-dao-lab/internal/storage"
)

type signerSet map[domain.Pubkey]struct{}

type frame struct {
	program domain.Pubkey
	signers signerSet
}

// Tx is the bundle context handed to programs. Reads see the bundle's own
// uncommitted writes; nothing reaches the store until the bundle commits.
type Tx struct {
	ctx  context.Context
	rt   *Runtime
	slot uint64

	signers signerSet
	stack   []frame

	overlay map[domain.Pubkey]*domain.Account
	created map[domain.Pubkey]bool
	order   []domain.Pubkey

	logs       []string
	events     []*domain.Event
	returnData []byte
}

func newTx(ctx context.Context, rt *Runtime, slot uint64, signers []domain.Pubkey) *Tx {
	set := make(signerSet, len(signers))
	for _, s := range signers {
		set[s] = struct{}{}
	}
	return &Tx{
		ctx:     ctx,
		rt:      rt,
		slot:    slot,
		signers: set,
		overlay: make(map[domain.Pubkey]*domain.Account),
		created: make(map[domain.Pubkey]bool),
	}
}

// Context returns the bundle's context.
func (tx *Tx) Context() context.Context { return tx.ctx }

// Slot returns the slot observed by the whole bundle.
func (tx *Tx) Slot() uint64 { return tx.slot }

// ProgramID returns the currently executing program.
func (tx *Tx) ProgramID() domain.Pubkey { return tx.current().program }

func (tx *Tx) current() *frame { return &tx.stack[len(tx.stack)-1] }

// IsSigner reports whether pk signed the current instruction.
func (tx *Tx) IsSigner(pk domain.Pubkey) bool {
	_, ok := tx.current().signers[pk]
	return ok
}

// RequireSigner fails with ErrMissingSignature unless pk signed the current instruction.
func (tx *Tx) RequireSigner(pk domain.Pubkey) error {
	if !tx.IsSigner(pk) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, pk)
	}
	return nil
}

// Load returns a copy of the account at address.
func (tx *Tx) Load(address domain.Pubkey) (*domain.Account, error) {
	if acct, ok := tx.overlay[address]; ok {
		return acct.Clone(), nil
	}
	acct, err := tx.rt.accounts.Get(tx.ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
		}
		return nil, fmt.Errorf("load %s: %w", address, err)
	}
	return acct, nil
}

// LoadOwned loads an account and checks it is owned by owner.
func (tx *Tx) LoadOwned(address, owner domain.Pubkey) (*domain.Account, error) {
	acct, err := tx.Load(address)
	if err != nil {
		return nil, err
	}
	if acct.Owner != owner {
		return nil, fmt.Errorf("%w: %s is owned by %s, want %s", ErrInvalidAccountData, address, acct.Owner, owner)
	}
	return acct, nil
}

// Exists reports whether an account is allocated at address.
func (tx *Tx) Exists(address domain.Pubkey) (bool, error) {
	_, err := tx.Load(address)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	return false, err
}

// Create allocates a zeroed account of size bytes at address, owned by owner.
// address must sign the current instruction, either directly or through a
// derived-address grant.
func (tx *Tx) Create(address, owner domain.Pubkey, size int) error {
	if size <= 0 || size > MaxAccountSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidAccountSize, size)
	}
	if err := tx.RequireSigner(address); err != nil {
		return err
	}
	exists, err := tx.Exists(address)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAccountExists, address)
	}

	tx.overlay[address] = &domain.Account{
		Address:     address,
		Owner:       owner,
		Data:        make([]byte, size),
		CreatedSlot: tx.slot,
		UpdatedSlot: tx.slot,
	}
	tx.created[address] = true
	tx.order = append(tx.order, address)
	return nil
}

// Store overwrites an account's data. Only the owning program may write, and
// data may not exceed the size fixed at creation; a shorter write zero-fills the tail.
func (tx *Tx) Store(address domain.Pubkey, data []byte) error {
	acct, err := tx.Load(address)
	if err != nil {
		return err
	}
	if acct.Owner != tx.ProgramID() {
		return fmt.Errorf("%w: %s", ErrIllegalOwner, address)
	}
	if !codec.PutInto(acct.Data, data) {
		return fmt.Errorf("%w: %s holds %d bytes, write is %d", ErrAccountDataTooSmall, address, len(acct.Data), len(data))
	}
	acct.UpdatedSlot = tx.slot

	if _, seen := tx.overlay[address]; !seen {
		tx.order = append(tx.order, address)
	}
	tx.overlay[address] = acct
	return nil
}

// ProgramAccounts returns every account owned by owner as seen by this bundle,
// ordered by address.
func (tx *Tx) ProgramAccounts(owner domain.Pubkey) ([]*domain.Account, error) {
	committed, err := tx.rt.accounts.GetByOwner(tx.ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("program accounts %s: %w", owner, err)
	}

	byAddr := make(map[domain.Pubkey]*domain.Account, len(committed))
	for _, a := range committed {
		byAddr[a.Address] = a
	}
	for addr, a := range tx.overlay {
		if a.Owner == owner {
			byAddr[addr] = a.Clone()
		}
	}

	out := make([]*domain.Account, 0, len(byAddr))
	for _, a := range byAddr {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Compare(out[j].Address) < 0
	})
	return out, nil
}

// Invoke calls another program. Signatures on the current instruction carry over.
func (tx *Tx) Invoke(ix *domain.Instruction) error {
	return tx.InvokeSigned(ix)
}

// InvokeSigned calls another program, additionally signing for every address
// derived from signerSeeds and the calling program's id. Each seed set must
// include its bump.
func (tx *Tx) InvokeSigned(ix *domain.Instruction, signerSeeds ...[][]byte) error {
	caller := tx.current()
	available := make(signerSet, len(caller.signers)+len(signerSeeds))
	for s := range caller.signers {
		available[s] = struct{}{}
	}
	for _, seeds := range signerSeeds {
		addr, err := pda.CreateProgramAddress(seeds, caller.program)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
		}
		available[addr] = struct{}{}
	}
	return tx.call(ix, available)
}

// call pushes a frame for ix. Accounts marked as signers must be in available.
func (tx *Tx) call(ix *domain.Instruction, available signerSet) error {
	if len(tx.stack) >= MaxInvokeDepth {
		return ErrCallDepth
	}
	prog, ok := tx.rt.programs[ix.ProgramID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
	}

	signers := make(signerSet)
	for _, m := range ix.Accounts {
		if !m.IsSigner {
			continue
		}
		if _, ok := available[m.Pubkey]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingSignature, m.Pubkey)
		}
		signers[m.Pubkey] = struct{}{}
	}

	tx.stack = append(tx.stack, frame{program: ix.ProgramID, signers: signers})
	defer func() { tx.stack = tx.stack[:len(tx.stack)-1] }()

	return prog.Process(tx, ix)
}

// Log records a program log line in the receipt.
func (tx *Tx) Log(format string, args ...any) {
	tx.logs = append(tx.logs, fmt.Sprintf("%s: %s", tx.rt.programName(tx.ProgramID()), fmt.Sprintf(format, args...)))
}

// Emit records a program event. Events are only visible if the bundle commits.
func (tx *Tx) Emit(kind domain.EventKind, address domain.Pubkey, fields map[string]string) {
	tx.events = append(tx.events, &domain.Event{
		Kind:      kind,
		ProgramID: tx.ProgramID(),
		Address:   address,
		Slot:      tx.slot,
		Seq:       len(tx.events),
		Fields:    fields,
	})
}

// SetReturnData sets the bundle's return data. The last call wins.
func (tx *Tx) SetReturnData(data []byte) {
	tx.returnData = append([]byte(nil), data...)
}

// writes splits the overlay into creates and updates in first-touch order.
func (tx *Tx) writes() (creates, updates []*domain.Account) {
	for _, addr := range tx.order {
		acct := tx.overlay[addr]
		if tx.created[addr] {
			creates = append(creates, acct)
		} else {
			updates = append(updates, acct)
		}
	}
	return creates, updates
}
