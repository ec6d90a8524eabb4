package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/storage"
)

func TestEventStore_InsertAndQuery(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	launch := domain.NewRandomPubkey()
	other := domain.NewRandomPubkey()

	events := []*domain.Event{
		{EventID: "e3", Kind: domain.EventFundsCommitted, Address: launch, Slot: 30, Fields: map[string]string{"amount": "5"}},
		{EventID: "e1", Kind: domain.EventLaunchInitialized, Address: launch, Slot: 10},
		{EventID: "e2", Kind: domain.EventTimelockCreated, Address: other, Slot: 20},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	byAddr, err := store.GetByAddress(ctx, launch)
	require.NoError(t, err)
	require.Len(t, byAddr, 2)
	assert.Equal(t, "e1", byAddr[0].EventID)
	assert.Equal(t, "e3", byAddr[1].EventID)
	assert.Equal(t, "5", byAddr[1].Fields["amount"])

	byRange, err := store.GetBySlotRange(ctx, 15, 30)
	require.NoError(t, err)
	require.Len(t, byRange, 2)
	assert.Equal(t, "e2", byRange[0].EventID)
	assert.Equal(t, "e3", byRange[1].EventID)

	_, err = store.GetBySlotRange(ctx, 30, 15)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestEventStore_Duplicates(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Event{{EventID: "a", Slot: 1}}))

	err := store.InsertBulk(ctx, []*domain.Event{{EventID: "b", Slot: 2}, {EventID: "a", Slot: 2}})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))

	// The failed batch must not leave "b" behind.
	got, err := store.GetBySlotRange(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	err = store.InsertBulk(ctx, []*domain.Event{{EventID: ""}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
