package autocrat

import (
	"context"
	"fmt"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
)

// Client creates and reads DAOs.
type Client struct {
	rt *ledger.Runtime
}

// NewClient creates an autocrat client.
func NewClient(rt *ledger.Runtime) *Client {
	return &Client{rt: rt}
}

// InitializeDAO creates a DAO at a fresh keypair address.
func (c *Client) InitializeDAO(ctx context.Context, tokenMint, usdcMint domain.Pubkey) (*domain.DAO, error) {
	address := domain.NewRandomPubkey()
	if _, err := c.rt.Submit(ctx, []domain.Pubkey{address}, InitializeDAO(address, tokenMint, usdcMint)); err != nil {
		return nil, fmt.Errorf("initialize dao: %w", err)
	}
	return c.GetDAO(ctx, address)
}

// GetDAO reads a committed DAO.
func (c *Client) GetDAO(ctx context.Context, address domain.Pubkey) (*domain.DAO, error) {
	acct, err := c.rt.Account(ctx, address)
	if err != nil {
		return nil, err
	}
	if acct.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s is not a dao", ledger.ErrInvalidAccountData, address)
	}
	return DecodeDAO(address, acct.Data)
}
