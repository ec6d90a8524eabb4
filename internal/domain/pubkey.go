package domain

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize is the length of an account address in bytes.
const PubkeySize = 32

// ErrInvalidPubkey is returned when a string is not a base58 encoded 32-byte address.
var ErrInvalidPubkey = errors.New("invalid pubkey")

// Pubkey is a 32-byte account address. Its text form is base58 (Bitcoin alphabet).
type Pubkey [PubkeySize]byte

// ParsePubkey decodes a base58 address.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	decoded, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %s: %v", ErrInvalidPubkey, s, err)
	}
	if len(decoded) != PubkeySize {
		return pk, fmt.Errorf("%w: %s decodes to %d bytes", ErrInvalidPubkey, s, len(decoded))
	}
	copy(pk[:], decoded)
	return pk, nil
}

// MustParsePubkey is ParsePubkey for package-level program ids. It panics on error.
func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes copies b into a Pubkey. b must be exactly 32 bytes.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeySize {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidPubkey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// NewRandomPubkey returns the public half of a fresh ed25519 keypair.
// Used for keypair-addressed accounts (transaction batches, wallets in simulations).
func NewRandomPubkey() Pubkey {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(fmt.Sprintf("generate keypair: %v", err))
	}
	var pk Pubkey
	copy(pk[:], pub)
	return pk
}

// String returns the base58 form.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the raw address bytes.
func (p Pubkey) Bytes() []byte {
	b := make([]byte, PubkeySize)
	copy(b, p[:])
	return b
}

// IsZero reports whether p is the all-zero address (the system program id).
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// Compare orders pubkeys bytewise.
func (p Pubkey) Compare(o Pubkey) int {
	return bytes.Compare(p[:], o[:])
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	pk, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// SystemProgramID owns every address that has not been allocated.
var SystemProgramID = Pubkey{}
