package timelock

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/observability"
)

// NewTimelockID draws a random timelock id.
func NewTimelockID() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("timelock id: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Client drives timelocks and batches. Each call is one bundle.
type Client struct {
	rt     *ledger.Runtime
	logger *zap.Logger
}

// NewClient creates a timelock client. A nil logger disables logging.
func NewClient(rt *ledger.Runtime, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{rt: rt, logger: logger}
}

// CreateTimelock creates a timelock. With p.RandomID set, p.ID is ignored and
// a random id is drawn; otherwise p.ID is used as given, zero included.
func (c *Client) CreateTimelock(ctx context.Context, payer domain.Pubkey, p CreateTimelockParams) (*domain.Timelock, error) {
	if p.RandomID {
		id, err := NewTimelockID()
		if err != nil {
			return nil, err
		}
		p.ID = id
	}
	if _, err := c.rt.Submit(ctx, []domain.Pubkey{payer}, CreateTimelock(payer, p)); err != nil {
		return nil, fmt.Errorf("create timelock: %w", err)
	}
	address, _ := Address(p.ID)
	return c.Timelock(ctx, address)
}

// SetDelayInSlots changes the delay of timelock.
func (c *Client) SetDelayInSlots(ctx context.Context, timelock, admin domain.Pubkey, delay uint64) error {
	return c.submit(ctx, "set delay", admin, SetDelayInSlots(timelock, admin, delay))
}

// SetAdmin hands timelock to newAdmin.
func (c *Client) SetAdmin(ctx context.Context, timelock, admin, newAdmin domain.Pubkey) error {
	return c.submit(ctx, "set admin", admin, SetAdmin(timelock, admin, newAdmin))
}

// AddEnqueuer adds an enqueuer to timelock.
func (c *Client) AddEnqueuer(ctx context.Context, timelock, admin, enqueuer domain.Pubkey) error {
	return c.submit(ctx, "add enqueuer", admin, AddEnqueuer(timelock, admin, enqueuer))
}

// RemoveEnqueuer removes an enqueuer from timelock.
func (c *Client) RemoveEnqueuer(ctx context.Context, timelock, admin, enqueuer domain.Pubkey) error {
	return c.submit(ctx, "remove enqueuer", admin, RemoveEnqueuer(timelock, admin, enqueuer))
}

// CreateTransactionBatch allocates an empty batch of capacity bytes at a fresh
// keypair address. A nil authority makes creator the batch authority.
func (c *Client) CreateTransactionBatch(ctx context.Context, timelock, creator domain.Pubkey, authority *domain.Pubkey, capacity int) (domain.Pubkey, error) {
	if capacity < 0 || capacity > ledger.MaxAccountSize {
		return domain.Pubkey{}, fmt.Errorf("create transaction batch: %w: %d bytes", ledger.ErrInvalidAccountSize, capacity)
	}
	batch := domain.NewRandomPubkey()
	ix := CreateTransactionBatch(batch, timelock, creator, authority, uint32(capacity))
	if _, err := c.rt.Submit(ctx, []domain.Pubkey{batch, creator}, ix); err != nil {
		return domain.Pubkey{}, fmt.Errorf("create transaction batch: %w", err)
	}
	return batch, nil
}

// AddTransaction appends ix to batch and returns its index.
func (c *Client) AddTransaction(ctx context.Context, batch, authority domain.Pubkey, ix *domain.Instruction) (int, error) {
	receipt, err := c.rt.Submit(ctx, []domain.Pubkey{authority}, AddTransaction(batch, authority, ix))
	if err != nil {
		return 0, fmt.Errorf("add transaction: %w", err)
	}
	if len(receipt.ReturnData) != 4 {
		return 0, fmt.Errorf("add transaction: unexpected return data %x", receipt.ReturnData)
	}
	return int(binary.LittleEndian.Uint32(receipt.ReturnData)), nil
}

// Enqueue seals batch under its timelock.
func (c *Client) Enqueue(ctx context.Context, batch, enqueuer domain.Pubkey) error {
	b, err := c.Batch(ctx, batch)
	if err != nil {
		return err
	}
	return c.submit(ctx, "enqueue", enqueuer, EnqueueTransactionBatch(batch, b.Timelock, enqueuer))
}

// Execute runs an enqueued batch. On an inner failure the returned error wraps
// an *ExecutionError and the batch stays enqueued.
func (c *Client) Execute(ctx context.Context, batch domain.Pubkey) error {
	b, err := c.Batch(ctx, batch)
	if err != nil {
		return err
	}
	_, err = c.rt.Submit(ctx, nil, ExecuteTransactionBatch(batch, b.Timelock))
	observability.RecordBatchExecution(err)
	if err != nil {
		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			c.logger.Warn("batch transaction failed",
				zap.String("batch", batch.String()),
				zap.Int("index", execErr.Index),
				zap.String("program", execErr.ProgramID.String()),
				zap.Error(execErr.Err),
			)
		}
		return fmt.Errorf("execute: %w", err)
	}
	c.logger.Info("batch executed",
		zap.String("batch", batch.String()),
		zap.String("timelock", b.Timelock.String()),
		zap.Int("transactions", len(b.Transactions)),
	)
	return nil
}

// Timelock reads a committed timelock.
func (c *Client) Timelock(ctx context.Context, address domain.Pubkey) (*domain.Timelock, error) {
	acct, err := c.rt.Account(ctx, address)
	if err != nil {
		return nil, err
	}
	if acct.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s is not a timelock", ledger.ErrInvalidAccountData, address)
	}
	return DecodeTimelock(address, acct.Data)
}

// Batch reads a committed transaction batch.
func (c *Client) Batch(ctx context.Context, address domain.Pubkey) (*domain.TransactionBatch, error) {
	acct, err := c.rt.Account(ctx, address)
	if err != nil {
		return nil, err
	}
	if acct.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s is not a transaction batch", ledger.ErrInvalidAccountData, address)
	}
	return DecodeBatch(address, acct.Data)
}

func (c *Client) submit(ctx context.Context, op string, signer domain.Pubkey, ix *domain.Instruction) error {
	if _, err := c.rt.Submit(ctx, []domain.Pubkey{signer}, ix); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
