// Package codec implements the little-endian, length-prefixed binary layout used by
// every account and instruction in the ledger (borsh compatible for the types used).
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"solana-dao-lab/internal/domain"
)

// DiscriminatorSize is the length of the type tag prefixed to accounts and instructions.
const DiscriminatorSize = 8

var (
	// ErrShortBuffer is returned when a read runs past the end of the input.
	ErrShortBuffer = errors.New("codec: short buffer")

	// ErrInvalidBool is returned when a bool byte is neither 0 nor 1.
	ErrInvalidBool = errors.New("codec: invalid bool")

	// ErrLengthOverflow is returned when a length prefix exceeds the remaining input.
	ErrLengthOverflow = errors.New("codec: length prefix exceeds input")
)

// Discriminator returns the 8-byte tag for a namespaced name,
// e.g. Discriminator("account", "Launch") or Discriminator("global", "commit").
func Discriminator(namespace, name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// Writer accumulates an encoding.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the encoded bytes.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

func (w *Writer) Raw(b []byte) { w.buf.Write(b) }

func (w *Writer) Discriminator(d [DiscriminatorSize]byte) { w.buf.Write(d[:]) }

func (w *Writer) U8(v uint8) { w.buf.WriteByte(v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *Writer) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) Pubkey(pk domain.Pubkey) { w.buf.Write(pk[:]) }

// OptionPubkey writes a 1-byte presence tag followed by the key when present.
func (w *Writer) OptionPubkey(pk *domain.Pubkey) {
	if pk == nil {
		w.U8(0)
		return
	}
	w.U8(1)
	w.Pubkey(*pk)
}

// OptionU64 writes a 1-byte presence tag followed by the value when present.
func (w *Writer) OptionU64(v *uint64) {
	if v == nil {
		w.U8(0)
		return
	}
	w.U8(1)
	w.U64(*v)
}

// Bytes32Len writes a u32 length prefix followed by b.
func (w *Writer) Bytes32Len(b []byte) {
	w.U32(uint32(len(b)))
	w.buf.Write(b)
}

// Pubkeys writes a u32 count followed by the keys.
func (w *Writer) Pubkeys(pks []domain.Pubkey) {
	w.U32(uint32(len(pks)))
	for _, pk := range pks {
		w.Pubkey(pk)
	}
}

// AccountMetas writes a u32 count followed by (pubkey, is_signer, is_writable) triples.
func (w *Writer) AccountMetas(metas []domain.AccountMeta) {
	w.U32(uint32(len(metas)))
	for _, m := range metas {
		w.Pubkey(m.Pubkey)
		w.Bool(m.IsSigner)
		w.Bool(m.IsWritable)
	}
}

// Reader decodes from a byte slice. The first error is sticky: later reads
// return zero values and Err reports the original failure.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader wraps data.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// Err returns the first decoding error.
func (r *Reader) Err() error { return r.err }

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, r.off, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ExpectDiscriminator consumes 8 bytes and reports whether they equal d.
func (r *Reader) ExpectDiscriminator(d [DiscriminatorSize]byte) bool {
	b := r.take(DiscriminatorSize)
	if b == nil {
		return false
	}
	return bytes.Equal(b, d[:])
}

func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool {
	v := r.U8()
	if v > 1 && r.err == nil {
		r.err = fmt.Errorf("%w: %d at offset %d", ErrInvalidBool, v, r.off-1)
	}
	return v == 1
}

func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) Pubkey() domain.Pubkey {
	var pk domain.Pubkey
	b := r.take(domain.PubkeySize)
	if b != nil {
		copy(pk[:], b)
	}
	return pk
}

func (r *Reader) OptionPubkey() *domain.Pubkey {
	if !r.Bool() {
		return nil
	}
	pk := r.Pubkey()
	if r.err != nil {
		return nil
	}
	return &pk
}

func (r *Reader) OptionU64() *uint64 {
	if !r.Bool() {
		return nil
	}
	v := r.U64()
	if r.err != nil {
		return nil
	}
	return &v
}

// count reads a u32 length and checks that count*elemSize bytes remain.
func (r *Reader) count(elemSize int) int {
	n := int(r.U32())
	if r.err != nil {
		return 0
	}
	if n*elemSize > r.Remaining() {
		r.err = fmt.Errorf("%w: %d elements of %d bytes", ErrLengthOverflow, n, elemSize)
		return 0
	}
	return n
}

func (r *Reader) Bytes32Len() []byte {
	n := r.count(1)
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (r *Reader) Pubkeys() []domain.Pubkey {
	n := r.count(domain.PubkeySize)
	out := make([]domain.Pubkey, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.Pubkey())
	}
	return out
}

func (r *Reader) AccountMetas() []domain.AccountMeta {
	n := r.count(domain.PubkeySize + 2)
	out := make([]domain.AccountMeta, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, domain.AccountMeta{
			Pubkey:     r.Pubkey(),
			IsSigner:   r.Bool(),
			IsWritable: r.Bool(),
		})
	}
	return out
}

// PutInto copies src into the fixed-size account buffer dst and zeroes the tail.
// Returns false when src does not fit.
func PutInto(dst, src []byte) bool {
	if len(src) > len(dst) {
		return false
	}
	n := copy(dst, src)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return true
}
