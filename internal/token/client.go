package token

import (
	"context"
	"fmt"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
)

// Client submits token instructions to a runtime. Each call is one bundle.
type Client struct {
	rt *ledger.Runtime
	*LedgerReader
}

// NewClient creates a token client.
func NewClient(rt *ledger.Runtime) *Client {
	return &Client{rt: rt, LedgerReader: NewLedgerReader(rt)}
}

// CreateMint allocates and initializes a new mint at a fresh keypair address.
func (c *Client) CreateMint(ctx context.Context, decimals uint8, mintAuthority domain.Pubkey, freezeAuthority *domain.Pubkey) (domain.Pubkey, error) {
	mint := domain.NewRandomPubkey()
	_, err := c.rt.Submit(ctx, []domain.Pubkey{mint},
		ledger.CreateAccount(mint, MintSize, ProgramID),
		InitializeMint(mint, decimals, mintAuthority, freezeAuthority),
	)
	if err != nil {
		return domain.Pubkey{}, fmt.Errorf("create mint: %w", err)
	}
	return mint, nil
}

// CreateAssociatedAccount creates (or confirms) wallet's associated account for mint.
func (c *Client) CreateAssociatedAccount(ctx context.Context, wallet, mint domain.Pubkey) (domain.Pubkey, error) {
	address, _ := AssociatedAddress(wallet, mint)
	if _, err := c.rt.Submit(ctx, nil, CreateAssociatedAccount(wallet, mint)); err != nil {
		return domain.Pubkey{}, fmt.Errorf("create associated account: %w", err)
	}
	return address, nil
}

// MintTo mints amount to destination.
func (c *Client) MintTo(ctx context.Context, mint, destination, authority domain.Pubkey, amount uint64) error {
	return c.submit(ctx, "mint to", authority, MintTo(mint, destination, authority, amount))
}

// Transfer moves amount between token accounts.
func (c *Client) Transfer(ctx context.Context, source, destination, authority domain.Pubkey, amount uint64) error {
	return c.submit(ctx, "transfer", authority, Transfer(source, destination, authority, amount))
}

// SetAuthority changes or removes an authority.
func (c *Client) SetAuthority(ctx context.Context, target, current domain.Pubkey, authorityType AuthorityType, newAuthority *domain.Pubkey) error {
	return c.submit(ctx, "set authority", current, SetAuthority(target, current, authorityType, newAuthority))
}

// Burn destroys amount from account.
func (c *Client) Burn(ctx context.Context, account, mint, owner domain.Pubkey, amount uint64) error {
	return c.submit(ctx, "burn", owner, Burn(account, mint, owner, amount))
}

// Freeze freezes a token account.
func (c *Client) Freeze(ctx context.Context, account, mint, authority domain.Pubkey) error {
	return c.submit(ctx, "freeze", authority, FreezeAccount(account, mint, authority))
}

// Thaw unfreezes a token account.
func (c *Client) Thaw(ctx context.Context, account, mint, authority domain.Pubkey) error {
	return c.submit(ctx, "thaw", authority, ThawAccount(account, mint, authority))
}

func (c *Client) submit(ctx context.Context, op string, signer domain.Pubkey, ix *domain.Instruction) error {
	if _, err := c.rt.Submit(ctx, []domain.Pubkey{signer}, ix); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
