// Package ledger is an account-based execution runtime. Programs own accounts,
// instructions are grouped into atomic bundles, and every bundle observes a
// single slot. Bundles are serialized, so no program needs its own locking.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/idhash"
	"solana-dao-lab/internal/observability"
	"solana-dao-lab/internal/pda"
	"solana-dao-lab/internal/storage"
)

const (
	// MaxAccountSize is the largest account that can be created.
	MaxAccountSize = 10 * 1024 * 1024

	// MaxInvokeDepth bounds nesting of cross-program invocations,
	// counting the top-level instruction.
	MaxInvokeDepth = 5
)

// Program is an on-ledger program. Process runs one instruction addressed to it.
type Program interface {
	ID() domain.Pubkey
	Name() string
	Process(tx *Tx, ix *domain.Instruction) error
}

// Receipt describes a committed bundle.
type Receipt struct {
	BundleID   string
	Slot       uint64
	Logs       []string
	Events     []*domain.Event
	ReturnData []byte
	Duration   time.Duration
}

// Runtime executes bundles against an account store.
type Runtime struct {
	mu       deadlock.Mutex
	accounts storage.AccountStore
	events   storage.EventStore
	clock    Clock
	programs map[domain.Pubkey]Program
	nonce    uint64
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithEventStore persists program events after each committed bundle.
func WithEventStore(s storage.EventStore) Option {
	return func(r *Runtime) { r.events = s }
}

// WithLogger sets the runtime logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// NewRuntime creates a runtime with the system program registered.
func NewRuntime(accounts storage.AccountStore, clock Clock, opts ...Option) *Runtime {
	r := &Runtime{
		accounts: accounts,
		clock:    clock,
		programs: make(map[domain.Pubkey]Program),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.programs[SystemProgramID] = SystemProgram{}
	return r
}

// Register makes a program invocable. Registering the same id twice replaces it.
func (r *Runtime) Register(programs ...Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range programs {
		r.programs[p.ID()] = p
	}
}

// Slot returns the clock's current slot.
func (r *Runtime) Slot() uint64 { return r.clock.Slot() }

// Clock returns the runtime clock.
func (r *Runtime) Clock() Clock { return r.clock }

// EventStore returns the configured event store, or nil.
func (r *Runtime) EventStore() storage.EventStore { return r.events }

// Account reads a committed account.
func (r *Runtime) Account(ctx context.Context, address domain.Pubkey) (*domain.Account, error) {
	acct, err := r.accounts.Get(ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
		}
		return nil, fmt.Errorf("get account %s: %w", address, err)
	}
	return acct, nil
}

// AccountsByOwner reads every committed account owned by a program.
func (r *Runtime) AccountsByOwner(ctx context.Context, owner domain.Pubkey) ([]*domain.Account, error) {
	accts, err := r.accounts.GetByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get accounts by owner %s: %w", owner, err)
	}
	return accts, nil
}

// Submit runs instructions in order as one atomic bundle. Signers are the
// identities that signed the bundle. Either every instruction succeeds and all
// writes commit, or nothing is written and the first error is returned.
func (r *Runtime) Submit(ctx context.Context, signers []domain.Pubkey, instructions ...*domain.Instruction) (*Receipt, error) {
	if len(instructions) == 0 {
		return nil, ErrEmptyBundle
	}
	for _, s := range signers {
		// Program derived addresses have no private key.
		if !pda.IsOnCurve(s[:]) {
			return nil, fmt.Errorf("%w: %s is not a keypair address", ErrMissingSignature, s)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.now()
	slot := r.clock.Slot()
	r.nonce++
	bundleID := idhash.ComputeBundleID(slot, r.nonce, signers, instructions)

	tx := newTx(ctx, r, slot, signers)
	for i, ix := range instructions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := tx.call(ix, tx.signers); err != nil {
			name := r.programName(ix.ProgramID)
			observability.RecordInstruction(name, "error")
			observability.RecordBundle("failed", time.Since(start).Seconds(), slot)
			r.logger.Info("bundle failed",
				zap.String("bundle_id", bundleID),
				zap.Uint64("slot", slot),
				zap.Int("instruction", i),
				zap.String("program", name),
				zap.Error(err),
			)
			return nil, fmt.Errorf("instruction %d (%s): %w", i, name, err)
		}
	}

	creates, updates := tx.writes()
	applyStart := time.Now()
	err := r.accounts.Apply(ctx, creates, updates)
	observability.RecordDBQuery("accounts", "apply", time.Since(applyStart).Seconds(), err)
	if err != nil {
		observability.RecordBundle("failed", time.Since(start).Seconds(), slot)
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("commit bundle: %w", ErrAccountExists)
		}
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("commit bundle: %w: %v", ErrWriteConflict, err)
		}
		return nil, fmt.Errorf("commit bundle: %w", err)
	}

	for _, ix := range instructions {
		observability.RecordInstruction(r.programName(ix.ProgramID), "ok")
	}

	createdAt := start.UnixMilli()
	for _, e := range tx.events {
		e.EventID = idhash.ComputeEventID(bundleID, e.Seq, e.Kind, e.Address)
		e.CreatedAt = createdAt
	}
	r.persistEvents(ctx, bundleID, tx.events)

	receipt := &Receipt{
		BundleID:   bundleID,
		Slot:       slot,
		Logs:       tx.logs,
		Events:     tx.events,
		ReturnData: tx.returnData,
		Duration:   time.Since(start),
	}
	observability.RecordBundle("committed", receipt.Duration.Seconds(), slot)
	r.logger.Debug("bundle committed",
		zap.String("bundle_id", bundleID),
		zap.Uint64("slot", slot),
		zap.Int("instructions", len(instructions)),
		zap.Int("creates", len(creates)),
		zap.Int("updates", len(updates)),
		zap.Duration("duration", receipt.Duration),
	)
	return receipt, nil
}

// persistEvents writes events to the event store. A failure here never
// un-commits the bundle; it is logged and counted.
func (r *Runtime) persistEvents(ctx context.Context, bundleID string, events []*domain.Event) {
	if r.events == nil || len(events) == 0 {
		return
	}
	err := r.events.InsertBulk(ctx, events)
	observability.RecordEventsPersisted(len(events), err)
	if err != nil {
		r.logger.Warn("persist program events",
			zap.String("bundle_id", bundleID),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}

func (r *Runtime) programName(id domain.Pubkey) string {
	if p, ok := r.programs[id]; ok {
		return p.Name()
	}
	return id.String()
}

// Keys returns the account keys of ix, failing if fewer than n are present.
func Keys(ix *domain.Instruction, n int) ([]domain.Pubkey, error) {
	if len(ix.Accounts) < n {
		return nil, fmt.Errorf("%w: need %d, got %d", ErrNotEnoughAccountKeys, n, len(ix.Accounts))
	}
	keys := make([]domain.Pubkey, len(ix.Accounts))
	for i, m := range ix.Accounts {
		keys[i] = m.Pubkey
	}
	return keys, nil
}
