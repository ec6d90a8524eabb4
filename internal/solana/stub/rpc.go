// Package stub provides an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"fmt"
	"sync"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu       sync.RWMutex
	accounts map[domain.Pubkey]*solana.AccountInfo
	slot     uint64
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{accounts: make(map[domain.Pubkey]*solana.AccountInfo)}
}

// GetAccountInfo returns the stored account or solana.ErrAccountNotFound.
func (c *RPCClient) GetAccountInfo(_ context.Context, address domain.Pubkey) (*solana.AccountInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", solana.ErrAccountNotFound, address)
	}
	return clone(info), nil
}

// GetMultipleAccounts returns stored accounts, nil for missing ones.
func (c *RPCClient) GetMultipleAccounts(_ context.Context, addresses []domain.Pubkey) ([]*solana.AccountInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*solana.AccountInfo, len(addresses))
	for i, a := range addresses {
		if info, ok := c.accounts[a]; ok {
			out[i] = clone(info)
		}
	}
	return out, nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slot, nil
}

// SetAccount stores an account owned by owner.
func (c *RPCClient) SetAccount(address, owner domain.Pubkey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[address] = &solana.AccountInfo{
		Address: address,
		Owner:   owner,
		Data:    append([]byte(nil), data...),
	}
}

// SetSlot sets the slot reported by GetSlot.
func (c *RPCClient) SetSlot(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = slot
}

func clone(info *solana.AccountInfo) *solana.AccountInfo {
	cp := *info
	cp.Data = append([]byte(nil), info.Data...)
	return &cp
}
