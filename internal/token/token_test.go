package token

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/storage/memory"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	rt := ledger.NewRuntime(memory.NewAccountStore(), ledger.NewManualClock(1))
	rt.Register(Program{}, AssociatedProgram{})
	return NewClient(rt)
}

func TestMintLayoutOffsets(t *testing.T) {
	authority := domain.NewRandomPubkey()
	data := EncodeMint(&domain.Mint{
		MintAuthority: &authority,
		Supply:        1_000_000,
		Decimals:      6,
		IsInitialized: true,
	})
	require.Len(t, data, MintSize)

	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, authority[:], data[4:36])
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(data[36:44]))
	assert.Equal(t, byte(6), data[44])
	assert.Equal(t, byte(1), data[45])
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[46:50]))

	m, err := DecodeMint(domain.Pubkey{}, data)
	require.NoError(t, err)
	assert.Nil(t, m.FreezeAuthority)
	assert.Equal(t, authority, *m.MintAuthority)

	data[0] = 7
	_, err = DecodeMint(domain.Pubkey{}, data)
	assert.ErrorIs(t, err, ErrInvalidMint)
}

func TestAccountLayoutOffsets(t *testing.T) {
	mint, owner := domain.NewRandomPubkey(), domain.NewRandomPubkey()
	data := EncodeAccount(&domain.TokenAccount{Mint: mint, Owner: owner, Amount: 42, State: domain.TokenAccountFrozen})
	require.Len(t, data, AccountSize)
	assert.Equal(t, mint[:], data[0:32])
	assert.Equal(t, owner[:], data[32:64])
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(data[64:72]))
	assert.Equal(t, byte(domain.TokenAccountFrozen), data[108])
}

func TestMintAndTransfer(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	authority := domain.NewRandomPubkey()
	alice, bob := domain.NewRandomPubkey(), domain.NewRandomPubkey()

	mint, err := c.CreateMint(ctx, 6, authority, nil)
	require.NoError(t, err)

	aliceATA, err := c.CreateAssociatedAccount(ctx, alice, mint)
	require.NoError(t, err)
	bobATA, err := c.CreateAssociatedAccount(ctx, bob, mint)
	require.NoError(t, err)

	require.NoError(t, c.MintTo(ctx, mint, aliceATA, authority, 500))

	m, err := c.GetMint(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), m.Supply)
	assert.Equal(t, uint8(6), m.Decimals)

	require.NoError(t, c.Transfer(ctx, aliceATA, bobATA, alice, 200))

	bal, err := c.Balance(ctx, bobATA)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), bal)

	err = c.Transfer(ctx, aliceATA, bobATA, alice, 301)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	err = c.Transfer(ctx, aliceATA, bobATA, bob, 1)
	assert.ErrorIs(t, err, ErrOwnerMismatch)

	err = c.MintTo(ctx, mint, aliceATA, alice, 1)
	assert.ErrorIs(t, err, ErrOwnerMismatch)

	require.NoError(t, c.Burn(ctx, bobATA, mint, bob, 50))
	m, err = c.GetMint(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(450), m.Supply)
}

func TestAssociatedAccountIdempotent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	wallet := domain.NewRandomPubkey()

	mint, err := c.CreateMint(ctx, 6, wallet, nil)
	require.NoError(t, err)

	first, err := c.CreateAssociatedAccount(ctx, wallet, mint)
	require.NoError(t, err)
	second, err := c.CreateAssociatedAccount(ctx, wallet, mint)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	a, err := c.GetAccount(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, wallet, a.Owner)
	assert.Equal(t, mint, a.Mint)

	// A non-canonical address is rejected.
	ix := CreateAssociatedAccount(wallet, mint)
	ix.Accounts[0].Pubkey = domain.NewRandomPubkey()
	_, err = c.rt.Submit(ctx, nil, ix)
	assert.ErrorIs(t, err, ErrInvalidAssociatedAddress)
}

func TestFreezeBlocksTransfers(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	authority, freezer := domain.NewRandomPubkey(), domain.NewRandomPubkey()
	alice, bob := domain.NewRandomPubkey(), domain.NewRandomPubkey()

	mint, err := c.CreateMint(ctx, 6, authority, &freezer)
	require.NoError(t, err)
	aliceATA, err := c.CreateAssociatedAccount(ctx, alice, mint)
	require.NoError(t, err)
	bobATA, err := c.CreateAssociatedAccount(ctx, bob, mint)
	require.NoError(t, err)
	require.NoError(t, c.MintTo(ctx, mint, aliceATA, authority, 100))

	assert.ErrorIs(t, c.Freeze(ctx, bobATA, mint, alice), ErrOwnerMismatch)
	require.NoError(t, c.Freeze(ctx, bobATA, mint, freezer))
	assert.ErrorIs(t, c.Freeze(ctx, bobATA, mint, freezer), ErrInvalidState)

	err = c.Transfer(ctx, aliceATA, bobATA, alice, 10)
	assert.ErrorIs(t, err, ErrAccountFrozen)
	assert.Equal(t, ledger.KindPolicyViolation, ledger.KindOf(err))

	require.NoError(t, c.Thaw(ctx, bobATA, mint, freezer))
	require.NoError(t, c.Transfer(ctx, aliceATA, bobATA, alice, 10))
}

func TestSetAuthority(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	authority, next := domain.NewRandomPubkey(), domain.NewRandomPubkey()
	mint, err := c.CreateMint(ctx, 6, authority, nil)
	require.NoError(t, err)

	err = c.SetAuthority(ctx, mint, authority, AuthorityFreezeAccount, &next)
	assert.ErrorIs(t, err, ErrMintCannotFreeze)

	require.NoError(t, c.SetAuthority(ctx, mint, authority, AuthorityMintTokens, &next))
	m, err := c.GetMint(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, next, *m.MintAuthority)

	// Removing the authority fixes the supply.
	require.NoError(t, c.SetAuthority(ctx, mint, next, AuthorityMintTokens, nil))
	ata, err := c.CreateAssociatedAccount(ctx, next, mint)
	require.NoError(t, err)
	assert.ErrorIs(t, c.MintTo(ctx, mint, ata, next, 1), ErrFixedSupply)
}

func TestUIAmount(t *testing.T) {
	assert.Equal(t, "1000.000000", FormatAmount(1_000_000_000, 6))
	assert.Equal(t, "0.000001", FormatAmount(1, 6))
	assert.Equal(t, "18446744073709.551615", FormatAmount(^uint64(0), 6))

	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "1500.25", want: 1_500_250_000},
		{in: "0", want: 0},
		{in: "0.0000001", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "18446744073709.551616", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseUIAmount(tt.in, 6)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidAmount, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
