package solana

import (
	"context"
	"fmt"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/token"
)

// RPCMintReader reads SPL mints from a live cluster.
type RPCMintReader struct {
	client RPCClient
}

var _ token.MintReader = (*RPCMintReader)(nil)

// NewRPCMintReader creates a mint reader backed by client.
func NewRPCMintReader(client RPCClient) *RPCMintReader {
	return &RPCMintReader{client: client}
}

// GetMint fetches and decodes the mint at address.
func (r *RPCMintReader) GetMint(ctx context.Context, address domain.Pubkey) (*domain.Mint, error) {
	info, err := r.client.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if info.Owner != token.ProgramID {
		return nil, fmt.Errorf("%w: %s owned by %s", token.ErrInvalidMint, address, info.Owner)
	}
	return token.DecodeMint(address, info.Data)
}
