package memory

import (
	"context"
	"sort"
	"sync"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	mu   sync.RWMutex
	data map[domain.Pubkey]*domain.Account
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		data: make(map[domain.Pubkey]*domain.Account),
	}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Get retrieves an account by address.
func (s *AccountStore) Get(_ context.Context, address domain.Pubkey) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.data[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return acct.Clone(), nil
}

// GetByOwner retrieves every account owned by a program, ordered by address.
func (s *AccountStore) GetByOwner(_ context.Context, owner domain.Pubkey) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Account
	for _, acct := range s.data {
		if acct.Owner == owner {
			result = append(result, acct.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address.Compare(result[j].Address) < 0
	})

	return result, nil
}

// Apply writes creates and updates atomically.
func (s *AccountStore) Apply(_ context.Context, creates, updates []*domain.Account) error {
	if len(creates) == 0 && len(updates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before touching the map.
	batch := make(map[domain.Pubkey]struct{}, len(creates))
	for _, acct := range creates {
		if acct == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[acct.Address]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[acct.Address]; exists {
			return storage.ErrDuplicateKey
		}
		batch[acct.Address] = struct{}{}
	}
	for _, acct := range updates {
		if acct == nil {
			return storage.ErrInvalidInput
		}
		current, exists := s.data[acct.Address]
		if !exists {
			return storage.ErrNotFound
		}
		if current.Version != acct.Version {
			return storage.ErrConflict
		}
	}

	for _, acct := range creates {
		stored := acct.Clone()
		stored.Version = 1
		s.data[acct.Address] = stored
	}
	for _, acct := range updates {
		stored := acct.Clone()
		stored.Version++
		s.data[acct.Address] = stored
	}
	return nil
}

// Count returns the number of stored accounts.
func (s *AccountStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
