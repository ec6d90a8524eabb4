package solana

import (
	"context"
	"errors"

	"solana-dao-lab/internal/domain"
)

// ErrAccountNotFound is returned when the cluster has no account at an address.
var ErrAccountNotFound = errors.New("solana: account not found")

// RPCClient defines the Solana RPC HTTP methods used for preflight checks
// against a live cluster.
type RPCClient interface {
	// GetAccountInfo retrieves an account. Returns ErrAccountNotFound if it does not exist.
	GetAccountInfo(ctx context.Context, address domain.Pubkey) (*AccountInfo, error)

	// GetMultipleAccounts retrieves several accounts in one call.
	// Missing accounts are nil in the result.
	GetMultipleAccounts(ctx context.Context, addresses []domain.Pubkey) ([]*AccountInfo, error)

	// GetSlot retrieves the current slot at confirmed commitment.
	GetSlot(ctx context.Context) (uint64, error)
}

// AccountInfo is a decoded account as reported by the cluster.
type AccountInfo struct {
	Address    domain.Pubkey
	Lamports   uint64
	Owner      domain.Pubkey
	Data       []byte
	Executable bool
	RentEpoch  uint64
}
