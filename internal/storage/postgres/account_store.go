package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Get retrieves an account by address.
func (s *AccountStore) Get(ctx context.Context, address domain.Pubkey) (*domain.Account, error) {
	query := `
		SELECT address, owner, data, created_slot, updated_slot, version
		FROM accounts
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address.String())
	acct, err := scanAccount(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

// GetByOwner retrieves every account owned by a program, ordered by address.
// Addresses are compared bytewise, so ordering is done after decoding.
func (s *AccountStore) GetByOwner(ctx context.Context, owner domain.Pubkey) ([]*domain.Account, error) {
	query := `
		SELECT address, owner, data, created_slot, updated_slot, version
		FROM accounts
		WHERE owner = $1
	`

	rows, err := s.pool.Query(ctx, query, owner.String())
	if err != nil {
		return nil, fmt.Errorf("get accounts by owner: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}

	sortAccounts(accounts)
	return accounts, nil
}

// Apply writes creates and updates in one transaction.
func (s *AccountStore) Apply(ctx context.Context, creates, updates []*domain.Account) error {
	if len(creates) == 0 && len(updates) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO accounts (address, owner, data, created_slot, updated_slot, version)
		VALUES ($1, $2, $3, $4, $5, 1)
	`
	for _, a := range creates {
		if a == nil {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insert,
			a.Address.String(),
			a.Owner.String(),
			a.Data,
			int64(a.CreatedSlot),
			int64(a.UpdatedSlot),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert account: %w", err)
		}
	}

	// Compare-and-swap on version: a row rewritten since it was read is a conflict.
	update := `
		UPDATE accounts
		SET owner = $2, data = $3, updated_slot = $4, version = version + 1
		WHERE address = $1 AND version = $5
	`
	for _, a := range updates {
		if a == nil {
			return storage.ErrInvalidInput
		}
		tag, err := tx.Exec(ctx, update,
			a.Address.String(),
			a.Owner.String(),
			a.Data,
			int64(a.UpdatedSlot),
			int64(a.Version),
		)
		if err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		if tag.RowsAffected() == 1 {
			continue
		}
		var exists bool
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE address = $1)`, a.Address.String()).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check account: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return fmt.Errorf("%w: %s", storage.ErrConflict, a.Address)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		address, owner                    string
		data                              []byte
		createdSlot, updatedSlot, version int64
	)
	if err := row.Scan(&address, &owner, &data, &createdSlot, &updatedSlot, &version); err != nil {
		return nil, err
	}

	addr, err := domain.ParsePubkey(address)
	if err != nil {
		return nil, err
	}
	own, err := domain.ParsePubkey(owner)
	if err != nil {
		return nil, err
	}

	return &domain.Account{
		Address:     addr,
		Owner:       own,
		Data:        data,
		CreatedSlot: uint64(createdSlot),
		UpdatedSlot: uint64(updatedSlot),
		Version:     uint64(version),
	}, nil
}
