package memory

import (
	"context"
	"errors"
	"testing"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/storage"
)

func testAccount(owner domain.Pubkey, size int) *domain.Account {
	return &domain.Account{
		Address:     domain.NewRandomPubkey(),
		Owner:       owner,
		Data:        make([]byte, size),
		CreatedSlot: 10,
		UpdatedSlot: 10,
	}
}

func TestAccountStore_ApplyAndGet(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()
	owner := domain.NewRandomPubkey()

	acct := testAccount(owner, 16)
	acct.Data[0] = 7

	if err := store.Apply(ctx, []*domain.Account{acct}, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	got, err := store.Get(ctx, acct.Address)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Owner != owner {
		t.Errorf("Owner mismatch: got %s, want %s", got.Owner, owner)
	}
	if len(got.Data) != 16 || got.Data[0] != 7 {
		t.Errorf("Data mismatch: %v", got.Data)
	}

	// Returned copies must not alias stored data.
	got.Data[0] = 99
	again, _ := store.Get(ctx, acct.Address)
	if again.Data[0] != 7 {
		t.Errorf("Store data was mutated through returned copy")
	}
}

func TestAccountStore_GetNotFound(t *testing.T) {
	store := NewAccountStore()
	_, err := store.Get(context.Background(), domain.NewRandomPubkey())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAccountStore_DuplicateCreate(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()
	acct := testAccount(domain.NewRandomPubkey(), 8)

	if err := store.Apply(ctx, []*domain.Account{acct}, nil); err != nil {
		t.Fatalf("First apply failed: %v", err)
	}

	err := store.Apply(ctx, []*domain.Account{acct}, nil)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Intra-batch duplicate
	other := testAccount(domain.NewRandomPubkey(), 8)
	err = store.Apply(ctx, []*domain.Account{other, other}, nil)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 account after failed apply, got %d", store.Count())
	}
}

func TestAccountStore_ApplyIsAtomic(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()
	owner := domain.NewRandomPubkey()

	fresh := testAccount(owner, 8)
	missing := testAccount(owner, 8)

	err := store.Apply(ctx, []*domain.Account{fresh}, []*domain.Account{missing})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing update, got %v", err)
	}

	if _, err := store.Get(ctx, fresh.Address); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Create must be discarded when the batch fails, got %v", err)
	}
}

func TestAccountStore_Update(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()
	acct := testAccount(domain.NewRandomPubkey(), 4)

	if err := store.Apply(ctx, []*domain.Account{acct}, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	updated, err := store.Get(ctx, acct.Address)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	updated.Data = []byte{1, 2, 3, 4}
	updated.UpdatedSlot = 20
	if err := store.Apply(ctx, nil, []*domain.Account{updated}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := store.Get(ctx, acct.Address)
	if got.UpdatedSlot != 20 || got.CreatedSlot != 10 || got.Data[3] != 4 {
		t.Errorf("Unexpected account after update: %+v", got)
	}
	if got.Version != 2 {
		t.Errorf("Expected version 2 after one update, got %d", got.Version)
	}
}

func TestAccountStore_StaleUpdateConflicts(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()
	acct := testAccount(domain.NewRandomPubkey(), 4)
	if err := store.Apply(ctx, []*domain.Account{acct}, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Two writers read the same version in the same slot.
	first, _ := store.Get(ctx, acct.Address)
	second, _ := store.Get(ctx, acct.Address)

	first.Data = []byte{1, 1, 1, 1}
	if err := store.Apply(ctx, nil, []*domain.Account{first}); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	second.Data = []byte{2, 2, 2, 2}
	if err := store.Apply(ctx, nil, []*domain.Account{second}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	got, _ := store.Get(ctx, acct.Address)
	if got.Data[0] != 1 {
		t.Errorf("Stale write must not land, got %v", got.Data)
	}
}

func TestAccountStore_GetByOwnerSorted(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()
	owner := domain.NewRandomPubkey()

	var creates []*domain.Account
	for i := 0; i < 5; i++ {
		creates = append(creates, testAccount(owner, 1))
	}
	creates = append(creates, testAccount(domain.NewRandomPubkey(), 1))

	if err := store.Apply(ctx, creates, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	got, err := store.GetByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("GetByOwner failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Expected 5 accounts, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Address.Compare(got[i].Address) >= 0 {
			t.Errorf("Accounts not sorted by address at %d", i)
		}
	}
}
