package token

import (
	"context"
	"fmt"

	"solana-dao-lab/internal/domain"
)

// MintReader reads the current state of a mint.
type MintReader interface {
	GetMint(ctx context.Context, address domain.Pubkey) (*domain.Mint, error)
}

// AccountReader reads committed accounts. *ledger.Runtime satisfies it.
type AccountReader interface {
	Account(ctx context.Context, address domain.Pubkey) (*domain.Account, error)
}

// LedgerReader decodes token state from committed ledger accounts.
type LedgerReader struct {
	accounts AccountReader
}

var _ MintReader = (*LedgerReader)(nil)

// NewLedgerReader creates a reader over committed accounts.
func NewLedgerReader(accounts AccountReader) *LedgerReader {
	return &LedgerReader{accounts: accounts}
}

// GetMint returns the mint at address.
func (r *LedgerReader) GetMint(ctx context.Context, address domain.Pubkey) (*domain.Mint, error) {
	acct, err := r.accounts.Account(ctx, address)
	if err != nil {
		return nil, err
	}
	if acct.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s not owned by token program", ErrInvalidMint, address)
	}
	return DecodeMint(address, acct.Data)
}

// GetAccount returns the token account at address.
func (r *LedgerReader) GetAccount(ctx context.Context, address domain.Pubkey) (*domain.TokenAccount, error) {
	acct, err := r.accounts.Account(ctx, address)
	if err != nil {
		return nil, err
	}
	if acct.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s not owned by token program", ErrUninitializedState, address)
	}
	return DecodeAccount(address, acct.Data)
}

// Balance returns the amount held by a token account.
func (r *LedgerReader) Balance(ctx context.Context, address domain.Pubkey) (uint64, error) {
	a, err := r.GetAccount(ctx, address)
	if err != nil {
		return 0, err
	}
	return a.Amount, nil
}
