package token

import (
	"fmt"

	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
)

// SPL account sizes.
const (
	MintSize    = 82
	AccountSize = 165
)

// DecodeMint parses the 82-byte SPL mint layout.
//
//	0   mint_authority   COption<Pubkey> (u32 tag + 32)
//	36  supply           u64
//	44  decimals         u8
//	45  is_initialized   bool
//	46  freeze_authority COption<Pubkey> (u32 tag + 32)
func DecodeMint(address domain.Pubkey, data []byte) (*domain.Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint %s has %d bytes", ErrInvalidMint, address, len(data))
	}

	r := codec.NewReader(data)
	m := &domain.Mint{Address: address}
	var ok1, ok2 bool
	m.MintAuthority, ok1 = readCOptionPubkey(r)
	m.Supply = r.U64()
	m.Decimals = r.U8()
	m.IsInitialized = r.Bool()
	m.FreezeAuthority, ok2 = readCOptionPubkey(r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: mint %s: %v", ErrInvalidMint, address, err)
	}
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: mint %s: bad option tag", ErrInvalidMint, address)
	}
	return m, nil
}

// EncodeMint serializes m into the SPL mint layout.
func EncodeMint(m *domain.Mint) []byte {
	w := codec.NewWriter()
	writeCOptionPubkey(w, m.MintAuthority)
	w.U64(m.Supply)
	w.U8(m.Decimals)
	w.Bool(m.IsInitialized)
	writeCOptionPubkey(w, m.FreezeAuthority)
	return w.Bytes()
}

// DecodeAccount parses the 165-byte SPL token account layout. Delegation,
// native balances and close authorities are not supported and must be unset.
//
//	0    mint             Pubkey
//	32   owner            Pubkey
//	64   amount           u64
//	72   delegate         COption<Pubkey>
//	108  state            u8
//	109  is_native        COption<u64>
//	121  delegated_amount u64
//	129  close_authority  COption<Pubkey>
func DecodeAccount(address domain.Pubkey, data []byte) (*domain.TokenAccount, error) {
	if len(data) != AccountSize {
		return nil, fmt.Errorf("%w: token account %s has %d bytes", ledger.ErrInvalidAccountData, address, len(data))
	}

	r := codec.NewReader(data)
	a := &domain.TokenAccount{Address: address}
	a.Mint = r.Pubkey()
	a.Owner = r.Pubkey()
	a.Amount = r.U64()
	_, okDelegate := readCOptionPubkey(r)
	a.State = domain.TokenAccountState(r.U8())
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: token account %s: %v", ledger.ErrInvalidAccountData, address, err)
	}
	if !okDelegate || a.State > domain.TokenAccountFrozen {
		return nil, fmt.Errorf("%w: token account %s: bad layout", ledger.ErrInvalidAccountData, address)
	}
	return a, nil
}

// EncodeAccount serializes a into the SPL token account layout.
func EncodeAccount(a *domain.TokenAccount) []byte {
	w := codec.NewWriter()
	w.Pubkey(a.Mint)
	w.Pubkey(a.Owner)
	w.U64(a.Amount)
	writeCOptionPubkey(w, nil) // delegate
	w.U8(uint8(a.State))
	w.U32(0) // is_native
	w.U64(0)
	w.U64(0) // delegated_amount
	writeCOptionPubkey(w, nil) // close_authority
	return w.Bytes()
}

func writeCOptionPubkey(w *codec.Writer, pk *domain.Pubkey) {
	if pk == nil {
		w.U32(0)
		w.Pubkey(domain.Pubkey{})
		return
	}
	w.U32(1)
	w.Pubkey(*pk)
}

func readCOptionPubkey(r *codec.Reader) (*domain.Pubkey, bool) {
	tag := r.U32()
	pk := r.Pubkey()
	switch tag {
	case 0:
		return nil, true
	case 1:
		return &pk, true
	default:
		return nil, false
	}
}
