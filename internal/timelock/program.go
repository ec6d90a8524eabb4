// Package timelock delays execution of instruction batches. A timelock is a
// derived address with an admin, a set of enqueuers and a delay in slots; a
// batch is assembled by its authority, sealed by an enqueuer and executed by
// anyone once the delay has elapsed, signing as the timelock. The ready slot is
// fixed when a batch is sealed, so an admin cannot shorten the wait of a batch
// already in the queue.
package timelock

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/pda"
)

// ProgramID is the timelock program id.
var ProgramID = domain.MustParsePubkey("tiME1hz9F5C5ZecbvE5z6Msjy8PKfTqo1UuRYXfndKF")

var timelockSeed = []byte("timelock")

var (
	createTimelockDiscriminator = codec.Discriminator("global", "create_timelock")
	setDelayDiscriminator       = codec.Discriminator("global", "set_delay_in_slots")
	setAdminDiscriminator       = codec.Discriminator("global", "set_admin")
	addEnqueuerDiscriminator    = codec.Discriminator("global", "add_enqueuer")
	removeEnqueuerDiscriminator = codec.Discriminator("global", "remove_enqueuer")
	createBatchDiscriminator    = codec.Discriminator("global", "create_transaction_batch")
	addTransactionDiscriminator = codec.Discriminator("global", "add_transaction")
	enqueueBatchDiscriminator   = codec.Discriminator("global", "enqueue_transaction_batch")
	executeBatchDiscriminator   = codec.Discriminator("global", "execute_transaction_batch")
)

func idSeed(id uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	return b[:]
}

// Address returns the timelock for id: PDA(["timelock", id_le]).
func Address(id uint64) (domain.Pubkey, uint8) {
	return pda.MustFind([][]byte{timelockSeed, idSeed(id)}, ProgramID)
}

// SignerAddress returns the identity a timelock signs inner transactions as: PDA([timelock]).
func SignerAddress(timelock domain.Pubkey) (domain.Pubkey, uint8) {
	return pda.MustFind([][]byte{timelock[:]}, ProgramID)
}

// Program is the timelock program.
type Program struct{}

var _ ledger.Program = Program{}

func (Program) ID() domain.Pubkey { return ProgramID }
func (Program) Name() string      { return "timelock" }

// Process dispatches on the instruction discriminator.
func (p Program) Process(tx *ledger.Tx, ix *domain.Instruction) error {
	if len(ix.Data) < codec.DiscriminatorSize {
		return fmt.Errorf("%w: missing discriminator", ledger.ErrInvalidInstructionData)
	}
	r := codec.NewReader(ix.Data[codec.DiscriminatorSize:])

	switch [codec.DiscriminatorSize]byte(ix.Data[:codec.DiscriminatorSize]) {
	case createTimelockDiscriminator:
		return p.createTimelock(tx, ix, r)
	case setDelayDiscriminator, setAdminDiscriminator, addEnqueuerDiscriminator, removeEnqueuerDiscriminator:
		return p.administer(tx, ix, r)
	case createBatchDiscriminator:
		return p.createBatch(tx, ix, r)
	case addTransactionDiscriminator:
		return p.addTransaction(tx, ix, r)
	case enqueueBatchDiscriminator:
		return p.enqueue(tx, ix)
	case executeBatchDiscriminator:
		return p.execute(tx, ix)
	default:
		return fmt.Errorf("%w: unknown timelock instruction", ledger.ErrInvalidInstructionData)
	}
}

func decodeArgs(r *codec.Reader) error {
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidInstructionData, err)
	}
	return nil
}

func loadTimelock(tx *ledger.Tx, address domain.Pubkey) (*domain.Timelock, error) {
	acct, err := tx.LoadOwned(address, ProgramID)
	if err != nil {
		return nil, err
	}
	return DecodeTimelock(address, acct.Data)
}

func loadBatch(tx *ledger.Tx, address domain.Pubkey) (*domain.TransactionBatch, error) {
	acct, err := tx.LoadOwned(address, ProgramID)
	if err != nil {
		return nil, err
	}
	return DecodeBatch(address, acct.Data)
}

func checkEnqueuers(enqueuers []domain.Pubkey, max uint16) error {
	if len(enqueuers) > int(max) {
		return fmt.Errorf("%w: %d > %d", ErrTooManyEnqueuers, len(enqueuers), max)
	}
	seen := make(map[domain.Pubkey]struct{}, len(enqueuers))
	for _, e := range enqueuers {
		if _, dup := seen[e]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateEnqueuer, e)
		}
		seen[e] = struct{}{}
	}
	return nil
}

// createTimelock: accounts [timelock (writable), payer (signer)].
func (Program) createTimelock(tx *ledger.Tx, ix *domain.Instruction, r *codec.Reader) error {
	id := r.U64()
	admin := r.Pubkey()
	delay := r.U64()
	maxEnqueuers := r.U16()
	enqueuers := r.Pubkeys()
	if err := decodeArgs(r); err != nil {
		return err
	}
	keys, err := ledger.Keys(ix, 2)
	if err != nil {
		return err
	}
	if err := tx.RequireSigner(keys[1]); err != nil {
		return err
	}
	if err := checkEnqueuers(enqueuers, maxEnqueuers); err != nil {
		return err
	}

	address, bump := Address(id)
	if keys[0] != address {
		return fmt.Errorf("%w: timelock %s, want %s", ledger.ErrInvalidSeeds, keys[0], address)
	}
	seeds := [][]byte{timelockSeed, idSeed(id), {bump}}
	if err := tx.InvokeSigned(ledger.CreateAccount(address, uint64(TimelockSize(maxEnqueuers)), ProgramID), seeds); err != nil {
		return err
	}

	signer, signerBump := SignerAddress(address)
	t := &domain.Timelock{
		Address:      address,
		ID:           id,
		PdaBump:      bump,
		SignerBump:   signerBump,
		Enqueuers:    enqueuers,
		MaxEnqueuers: maxEnqueuers,
		Admin:        admin,
		DelayInSlots: delay,
	}
	if err := tx.Store(address, EncodeTimelock(t)); err != nil {
		return err
	}

	tx.Log("created timelock %s id %d", address, id)
	tx.Emit(domain.EventTimelockCreated, address, map[string]string{
		"id":             strconv.FormatUint(id, 10),
		"admin":          admin.String(),
		"signer":         signer.String(),
		"delay_in_slots": strconv.FormatUint(delay, 10),
		"max_enqueuers":  strconv.Itoa(int(maxEnqueuers)),
		"enqueuers":      strconv.Itoa(len(enqueuers)),
	})
	return nil
}

// administer handles the admin-only mutations: accounts [timelock (writable), admin (signer)].
func (Program) administer(tx *ledger.Tx, ix *domain.Instruction, r *codec.Reader) error {
	keys, err := ledger.Keys(ix, 2)
	if err != nil {
		return err
	}
	t, err := loadTimelock(tx, keys[0])
	if err != nil {
		return err
	}
	if keys[1] != t.Admin || !tx.IsSigner(keys[1]) {
		return fmt.Errorf("%w: %s is not the admin of %s", ErrUnauthorized, keys[1], t.Address)
	}

	var change, value string
	switch [codec.DiscriminatorSize]byte(ix.Data[:codec.DiscriminatorSize]) {
	case setDelayDiscriminator:
		delay := r.U64()
		if err := decodeArgs(r); err != nil {
			return err
		}
		t.DelayInSlots = delay
		change, value = "delay_in_slots", strconv.FormatUint(delay, 10)
	case setAdminDiscriminator:
		admin := r.Pubkey()
		if err := decodeArgs(r); err != nil {
			return err
		}
		t.Admin = admin
		change, value = "admin", admin.String()
	case addEnqueuerDiscriminator:
		e := r.Pubkey()
		if err := decodeArgs(r); err != nil {
			return err
		}
		next := append(append([]domain.Pubkey(nil), t.Enqueuers...), e)
		if err := checkEnqueuers(next, t.MaxEnqueuers); err != nil {
			return err
		}
		t.Enqueuers = next
		change, value = "add_enqueuer", e.String()
	case removeEnqueuerDiscriminator:
		e := r.Pubkey()
		if err := decodeArgs(r); err != nil {
			return err
		}
		idx := -1
		for i, x := range t.Enqueuers {
			if x == e {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrEnqueuerNotFound, e)
		}
		t.Enqueuers = append(t.Enqueuers[:idx], t.Enqueuers[idx+1:]...)
		change, value = "remove_enqueuer", e.String()
	}

	if err := tx.Store(t.Address, EncodeTimelock(t)); err != nil {
		return err
	}
	tx.Log("timelock %s: %s=%s", t.Address, change, value)
	tx.Emit(domain.EventTimelockUpdated, t.Address, map[string]string{
		"change": change,
		"value":  value,
	})
	return nil
}

// createBatch: accounts [batch (signer, writable), timelock, creator (signer)].
// Enqueuer membership is not checked here; it is checked when the batch is sealed.
func (Program) createBatch(tx *ledger.Tx, ix *domain.Instruction, r *codec.Reader) error {
	authority := r.OptionPubkey()
	capacity := r.U32()
	if err := decodeArgs(r); err != nil {
		return err
	}
	keys, err := ledger.Keys(ix, 3)
	if err != nil {
		return err
	}
	address, creator := keys[0], keys[2]
	if err := tx.RequireSigner(creator); err != nil {
		return err
	}
	if capacity < MinBatchSize {
		return fmt.Errorf("%w: %d < %d", ErrBatchTooSmall, capacity, MinBatchSize)
	}
	t, err := loadTimelock(tx, keys[1])
	if err != nil {
		return err
	}

	if err := tx.Invoke(ledger.CreateAccount(address, uint64(capacity), ProgramID)); err != nil {
		return err
	}

	b := &domain.TransactionBatch{
		Address:                   address,
		Timelock:                  t.Address,
		TransactionBatchAuthority: creator,
		Status:                    domain.BatchStatusAssembling,
		SizeLimit:                 capacity,
	}
	if authority != nil {
		b.TransactionBatchAuthority = *authority
	}
	if err := tx.Store(address, EncodeBatch(b)); err != nil {
		return err
	}

	tx.Emit(domain.EventBatchCreated, address, map[string]string{
		"timelock":  t.Address.String(),
		"authority": b.TransactionBatchAuthority.String(),
		"capacity":  strconv.FormatUint(uint64(capacity), 10),
	})
	return nil
}

// addTransaction: accounts [batch (writable), authority (signer)].
// Sets the return data to the new transaction's index (u32 LE).
func (Program) addTransaction(tx *ledger.Tx, ix *domain.Instruction, r *codec.Reader) error {
	t := domain.BatchTransaction{
		ProgramID: r.Pubkey(),
		Accounts:  r.AccountMetas(),
		Data:      r.Bytes32Len(),
	}
	if err := decodeArgs(r); err != nil {
		return err
	}
	keys, err := ledger.Keys(ix, 2)
	if err != nil {
		return err
	}

	b, err := loadBatch(tx, keys[0])
	if err != nil {
		return err
	}
	if b.Status != domain.BatchStatusAssembling {
		return fmt.Errorf("%w: batch is %s", ErrBatchSealed, b.Status)
	}
	if keys[1] != b.TransactionBatchAuthority || !tx.IsSigner(keys[1]) {
		return fmt.Errorf("%w: %s is not the batch authority", ErrUnauthorized, keys[1])
	}

	need := batchUsage(b) + TransactionSize(t.Instruction())
	if need > int(b.SizeLimit) {
		return fmt.Errorf("%w: need %d bytes, capacity %d", ErrCapacityExceeded, need, b.SizeLimit)
	}

	index := len(b.Transactions)
	b.Transactions = append(b.Transactions, t)
	if err := tx.Store(b.Address, EncodeBatch(b)); err != nil {
		return err
	}

	var ret [4]byte
	binary.LittleEndian.PutUint32(ret[:], uint32(index))
	tx.SetReturnData(ret[:])
	tx.Emit(domain.EventTransactionAdded, b.Address, map[string]string{
		"index":      strconv.Itoa(index),
		"program_id": t.ProgramID.String(),
		"accounts":   strconv.Itoa(len(t.Accounts)),
		"data_len":   strconv.Itoa(len(t.Data)),
	})
	return nil
}

// enqueue seals a batch: accounts [batch (writable), timelock, enqueuer (signer)].
func (Program) enqueue(tx *ledger.Tx, ix *domain.Instruction) error {
	keys, err := ledger.Keys(ix, 3)
	if err != nil {
		return err
	}
	b, err := loadBatch(tx, keys[0])
	if err != nil {
		return err
	}
	if b.Timelock != keys[1] {
		return fmt.Errorf("%w: batch %s, timelock %s", ErrTimelockMismatch, b.Address, keys[1])
	}
	t, err := loadTimelock(tx, keys[1])
	if err != nil {
		return err
	}

	switch b.Status {
	case domain.BatchStatusEnqueued:
		return fmt.Errorf("%w: already enqueued", ErrBatchSealed)
	case domain.BatchStatusExecuted:
		return ErrAlreadyExecuted
	}

	enqueuer := keys[2]
	if !tx.IsSigner(enqueuer) || (!t.IsEnqueuer(enqueuer) && enqueuer != t.Admin) {
		return fmt.Errorf("%w: %s may not enqueue under %s", ErrUnauthorized, enqueuer, t.Address)
	}

	slot := tx.Slot()
	ready := readySlot(slot, t.DelayInSlots)
	b.Status = domain.BatchStatusEnqueued
	b.EnqueuedSlot = &slot
	b.ReadySlot = &ready
	if err := tx.Store(b.Address, EncodeBatch(b)); err != nil {
		return err
	}
	tx.Emit(domain.EventBatchEnqueued, b.Address, map[string]string{
		"timelock":      t.Address.String(),
		"enqueuer":      enqueuer.String(),
		"enqueued_slot": strconv.FormatUint(slot, 10),
		"ready_slot":    strconv.FormatUint(ready, 10),
	})
	return nil
}

func readySlot(enqueued, delay uint64) uint64 {
	if enqueued > math.MaxUint64-delay {
		return math.MaxUint64
	}
	return enqueued + delay
}

// ExecutableAt returns the first slot at which an enqueued batch may run. The
// ready slot fixed at enqueue is a floor: lowering the timelock delay later
// does not bring it forward, raising it pushes it back.
func ExecutableAt(b *domain.TransactionBatch, t *domain.Timelock) uint64 {
	if b.EnqueuedSlot == nil || b.ReadySlot == nil {
		return math.MaxUint64
	}
	ready := *b.ReadySlot
	if current := readySlot(*b.EnqueuedSlot, t.DelayInSlots); current > ready {
		ready = current
	}
	return ready
}

// execute runs every transaction of an enqueued batch in order, signing as the
// timelock signer. Anyone may call it: accounts [batch (writable), timelock, timelock signer].
func (Program) execute(tx *ledger.Tx, ix *domain.Instruction) error {
	keys, err := ledger.Keys(ix, 3)
	if err != nil {
		return err
	}
	b, err := loadBatch(tx, keys[0])
	if err != nil {
		return err
	}
	switch b.Status {
	case domain.BatchStatusExecuted:
		return ErrAlreadyExecuted
	case domain.BatchStatusAssembling:
		return ErrBatchNotEnqueued
	}
	if b.EnqueuedSlot == nil || b.ReadySlot == nil {
		return fmt.Errorf("%w: batch %s has no enqueue slot", ErrBatchNotEnqueued, b.Address)
	}
	if b.Timelock != keys[1] {
		return fmt.Errorf("%w: batch %s, timelock %s", ErrTimelockMismatch, b.Address, keys[1])
	}
	t, err := loadTimelock(tx, keys[1])
	if err != nil {
		return err
	}

	ready := ExecutableAt(b, t)
	if tx.Slot() < ready {
		return fmt.Errorf("%w: ready at %d, slot %d", ErrDelayNotElapsed, ready, tx.Slot())
	}

	signer := [][]byte{t.Address[:], {t.SignerBump}}
	signerAddress, err := pda.CreateProgramAddress(signer, ProgramID)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidSeeds, err)
	}
	for i, bt := range b.Transactions {
		inner := bt.Instruction()
		for j := range inner.Accounts {
			if inner.Accounts[j].Pubkey == signerAddress {
				inner.Accounts[j].IsSigner = true
			}
		}
		if err := tx.InvokeSigned(inner, signer); err != nil {
			return &ExecutionError{Index: i, ProgramID: bt.ProgramID, Err: err}
		}
	}

	// Inner transactions may have rewritten the timelock but never the batch.
	slot := tx.Slot()
	b.Status = domain.BatchStatusExecuted
	b.ExecutedSlot = &slot
	if err := tx.Store(b.Address, EncodeBatch(b)); err != nil {
		return err
	}
	tx.Log("executed batch %s: %d transactions", b.Address, len(b.Transactions))
	tx.Emit(domain.EventBatchExecuted, b.Address, map[string]string{
		"timelock":      t.Address.String(),
		"transactions":  strconv.Itoa(len(b.Transactions)),
		"executed_slot": strconv.FormatUint(slot, 10),
	})
	return nil
}
