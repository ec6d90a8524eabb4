package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-dao-lab/internal/domain"
)

func TestWriterReader_Layout(t *testing.T) {
	pk := domain.NewRandomPubkey()
	slot := uint64(42)

	w := NewWriter()
	w.Discriminator(Discriminator("account", "Thing"))
	w.U8(7)
	w.Bool(true)
	w.U16(0xBEEF)
	w.U32(1 << 20)
	w.U64(1_000_000_000_000)
	w.Pubkey(pk)
	w.OptionPubkey(nil)
	w.OptionPubkey(&pk)
	w.OptionU64(&slot)
	w.Bytes32Len([]byte{1, 2, 3})
	w.Pubkeys([]domain.Pubkey{pk, pk})
	w.AccountMetas([]domain.AccountMeta{{Pubkey: pk, IsSigner: true}})

	// 8 + 1 + 1 + 2 + 4 + 8 + 32 + 1 + 33 + 9 + 7 + 68 + 38
	assert.Equal(t, 212, w.Len())

	r := NewReader(w.Bytes())
	require.True(t, r.ExpectDiscriminator(Discriminator("account", "Thing")))
	assert.Equal(t, uint8(7), r.U8())
	assert.True(t, r.Bool())
	assert.Equal(t, uint16(0xBEEF), r.U16())
	assert.Equal(t, uint32(1<<20), r.U32())
	assert.Equal(t, uint64(1_000_000_000_000), r.U64())
	assert.Equal(t, pk, r.Pubkey())
	assert.Nil(t, r.OptionPubkey())
	got := r.OptionPubkey()
	require.NotNil(t, got)
	assert.Equal(t, pk, *got)
	gotSlot := r.OptionU64()
	require.NotNil(t, gotSlot)
	assert.Equal(t, slot, *gotSlot)
	assert.Equal(t, []byte{1, 2, 3}, r.Bytes32Len())
	assert.Equal(t, []domain.Pubkey{pk, pk}, r.Pubkeys())
	metas := r.AccountMetas()
	require.Len(t, metas, 1)
	assert.True(t, metas[0].IsSigner)
	assert.False(t, metas[0].IsWritable)

	require.NoError(t, r.Err())
	assert.Equal(t, 0, r.Remaining())
}

func TestReader_LittleEndian(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0x04})
	assert.Equal(t, uint32(0x04030201), r.U32())
	require.NoError(t, r.Err())
}

func TestReader_ShortBufferIsSticky(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	assert.Equal(t, uint64(0), r.U64())
	assert.ErrorIs(t, r.Err(), ErrShortBuffer)

	// Subsequent reads keep returning zero values and the first error.
	assert.Equal(t, uint8(0), r.U8())
	assert.ErrorIs(t, r.Err(), ErrShortBuffer)
}

func TestReader_InvalidBool(t *testing.T) {
	r := NewReader([]byte{2})
	r.Bool()
	assert.ErrorIs(t, r.Err(), ErrInvalidBool)
}

func TestReader_LengthPrefixOverflow(t *testing.T) {
	w := NewWriter()
	w.U32(1000)
	w.Raw([]byte{1, 2})

	r := NewReader(w.Bytes())
	assert.Nil(t, r.Bytes32Len())
	assert.ErrorIs(t, r.Err(), ErrLengthOverflow)
}

func TestDiscriminator_Distinct(t *testing.T) {
	a := Discriminator("account", "Launch")
	b := Discriminator("account", "Timelock")
	c := Discriminator("global", "Launch")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, Discriminator("account", "Launch"))
}

func TestPutInto(t *testing.T) {
	dst := []byte{9, 9, 9, 9, 9}
	require.True(t, PutInto(dst, []byte{1, 2}))
	assert.Equal(t, []byte{1, 2, 0, 0, 0}, dst)

	assert.False(t, PutInto(dst, make([]byte, 6)))
}
