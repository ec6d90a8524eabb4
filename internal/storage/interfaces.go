package storage

import (
	"context"

	"solana-dao-lab/internal/domain"
)

// AccountStore persists ledger accounts keyed by address.
// The runtime is the only writer; every bundle lands through a single Apply call.
type AccountStore interface {
	// Get retrieves an account by address.
	// Returns ErrNotFound if the account does not exist.
	Get(ctx context.Context, address domain.Pubkey) (*domain.Account, error)

	// GetByOwner retrieves every account owned by a program, ordered by address.
	GetByOwner(ctx context.Context, owner domain.Pubkey) ([]*domain.Account, error)

	// Apply inserts creates and overwrites updates atomically: either every
	// record is written or none is. Returns ErrDuplicateKey if a created address
	// already exists and ErrNotFound if an updated address does not. An update
	// carries the Version it was read at; if the stored version differs Apply
	// returns ErrConflict. Every written account's stored Version is bumped.
	Apply(ctx context.Context, creates, updates []*domain.Account) error
}

// EventStore provides append-only storage for program events.
type EventStore interface {
	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate EventID.
	InsertBulk(ctx context.Context, events []*domain.Event) error

	// GetByAddress retrieves events about an account, ordered by (slot, seq) ASC.
	GetByAddress(ctx context.Context, address domain.Pubkey) ([]*domain.Event, error)

	// GetBySlotRange retrieves events within [from, to] (inclusive), ordered by (slot, seq) ASC.
	GetBySlotRange(ctx context.Context, from, to uint64) ([]*domain.Event, error)
}
