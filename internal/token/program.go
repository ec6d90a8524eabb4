// Package token implements an SPL-compatible token program and associated
// token account program on the ledger runtime, plus client helpers.
package token

import (
	"fmt"

	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
)

// Program ids.
var (
	ProgramID           = domain.MustParsePubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedProgramID = domain.MustParsePubkey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// Instruction tags, as assigned by SPL Token.
const (
	tagInitializeMint    uint8 = 0
	tagInitializeAccount uint8 = 1
	tagTransfer          uint8 = 3
	tagSetAuthority      uint8 = 6
	tagMintTo            uint8 = 7
	tagBurn              uint8 = 8
	tagFreezeAccount     uint8 = 10
	tagThawAccount       uint8 = 11
)

// AuthorityType selects which authority SetAuthority changes.
type AuthorityType uint8

const (
	AuthorityMintTokens AuthorityType = iota
	AuthorityFreezeAccount
	AuthorityAccountOwner
	AuthorityCloseAccount
)

// Program is the token program.
type Program struct{}

var _ ledger.Program = Program{}

func (Program) ID() domain.Pubkey { return ProgramID }
func (Program) Name() string      { return "token" }

// Process dispatches on the first data byte.
func (p Program) Process(tx *ledger.Tx, ix *domain.Instruction) error {
	r := codec.NewReader(ix.Data)
	tag := r.U8()
	if r.Err() != nil {
		return fmt.Errorf("%w: empty token instruction", ledger.ErrInvalidInstructionData)
	}

	switch tag {
	case tagInitializeMint:
		return p.initializeMint(tx, ix, r)
	case tagInitializeAccount:
		return p.initializeAccount(tx, ix)
	case tagTransfer:
		return p.transfer(tx, ix, r)
	case tagSetAuthority:
		return p.setAuthority(tx, ix, r)
	case tagMintTo:
		return p.mintTo(tx, ix, r)
	case tagBurn:
		return p.burn(tx, ix, r)
	case tagFreezeAccount:
		return p.setFrozen(tx, ix, true)
	case tagThawAccount:
		return p.setFrozen(tx, ix, false)
	default:
		return fmt.Errorf("%w: token instruction %d", ledger.ErrInvalidInstructionData, tag)
	}
}

// LoadMint reads an initialized mint inside a bundle.
func LoadMint(tx *ledger.Tx, address domain.Pubkey) (*domain.Mint, error) {
	acct, err := tx.Load(address)
	if err != nil {
		return nil, err
	}
	if acct.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s not owned by token program", ErrInvalidMint, address)
	}
	m, err := DecodeMint(address, acct.Data)
	if err != nil {
		return nil, err
	}
	if !m.IsInitialized {
		return nil, fmt.Errorf("%w: mint %s", ErrUninitializedState, address)
	}
	return m, nil
}

// LoadAccount reads an initialized token account inside a bundle.
func LoadAccount(tx *ledger.Tx, address domain.Pubkey) (*domain.TokenAccount, error) {
	acct, err := tx.LoadOwned(address, ProgramID)
	if err != nil {
		return nil, err
	}
	a, err := DecodeAccount(address, acct.Data)
	if err != nil {
		return nil, err
	}
	if a.State == domain.TokenAccountUninitialized {
		return nil, fmt.Errorf("%w: account %s", ErrUninitializedState, address)
	}
	return a, nil
}

func decodeArgs(r *codec.Reader) error {
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidInstructionData, err)
	}
	return nil
}

func requireAuthority(tx *ledger.Tx, expected *domain.Pubkey, got domain.Pubkey) error {
	if expected == nil || *expected != got {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, got)
	}
	return tx.RequireSigner(got)
}

// initializeMint: accounts [mint (writable)].
func (Program) initializeMint(tx *ledger.Tx, ix *domain.Instruction, r *codec.Reader) error {
	decimals := r.U8()
	mintAuthority := r.Pubkey()
	freezeAuthority := r.OptionPubkey()
	if err := decodeArgs(r); err != nil {
		return err
	}
	keys, err := ledger.Keys(ix, 1)
	if err != nil {
		return err
	}

	acct, err := tx.LoadOwned(keys[0], ProgramID)
	if err != nil {
		return err
	}
	existing, err := DecodeMint(keys[0], acct.Data)
	if err != nil {
		return err
	}
	if existing.IsInitialized {
		return fmt.Errorf("%w: mint %s", ErrAlreadyInUse, keys[0])
	}

	m := &domain.Mint{
		Address:         keys[0],
		MintAuthority:   &mintAuthority,
		Decimals:        decimals,
		IsInitialized:   true,
		FreezeAuthority: freezeAuthority,
	}
	return tx.Store(keys[0], EncodeMint(m))
}

// initializeAccount: accounts [account (writable), mint, owner].
func (Program) initializeAccount(tx *ledger.Tx, ix *domain.Instruction) error {
	keys, err := ledger.Keys(ix, 3)
	if err != nil {
		return err
	}

	acct, err := tx.LoadOwned(keys[0], ProgramID)
	if err != nil {
		return err
	}
	existing, err := DecodeAccount(keys[0], acct.Data)
	if err != nil {
		return err
	}
	if existing.State != domain.TokenAccountUninitialized {
		return fmt.Errorf("%w: account %s", ErrAlreadyInUse, keys[0])
	}
	if _, err := LoadMint(tx, keys[1]); err != nil {
		return err
	}

	a := &domain.TokenAccount{
		Address: keys[0],
		Mint:    keys[1],
		Owner:   keys[2],
		State:   domain.TokenAccountInitialized,
	}
	return tx.Store(keys[0], EncodeAccount(a))
}

// transfer: accounts [source (writable), destination (writable), authority (signer)].
func (Program) transfer(tx *ledger.Tx, ix *domain.Instruction, r *codec.Reader) error {
	amount := r.U64()
	if err := decodeArgs(r); err != nil {
		return err
	}
	keys, err := ledger.Keys(ix, 3)
	if err != nil {
		return err
	}

	src, err := LoadAccount(tx, keys[0])
	if err != nil {
		return err
	}
	dst, err := LoadAccount(tx, keys[1])
	if err != nil {
		return err
	}
	if src.State == domain.TokenAccountFrozen || dst.State == domain.TokenAccountFrozen {
		return ErrAccountFrozen
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	if err := requireAuthority(tx, &src.Owner, keys[2]); err != nil {
		return err
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: balance %d, transfer %d", ErrInsufficientFunds, src.Amount, amount)
	}
	if src.Address == dst.Address {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}

	src.Amount -= amount
	dst.Amount += amount
	if err := tx.Store(src.Address, EncodeAccount(src)); err != nil {
		return err
	}
	return tx.Store(dst.Address, EncodeAccount(dst))
}

// setAuthority: accounts [mint or account (writable), current authority (signer)].
func (Program) setAuthority(tx *ledger.Tx, ix *domain.Instruction, r *codec.Reader) error {
	authorityType := AuthorityType(r.U8())
	newAuthority := r.OptionPubkey()
	if err := decodeArgs(r); err != nil {
		return err
	}
	keys, err := ledger.Keys(ix, 2)
	if err != nil {
		return err
	}

	acct, err := tx.LoadOwned(keys[0], ProgramID)
	if err != nil {
		return err
	}

	if len(acct.Data) == MintSize {
		m, err := LoadMint(tx, keys[0])
		if err != nil {
			return err
		}
		switch authorityType {
		case AuthorityMintTokens:
			if m.MintAuthority == nil {
				return ErrFixedSupply
			}
			if err := requireAuthority(tx, m.MintAuthority, keys[1]); err != nil {
				return err
			}
			m.MintAuthority = newAuthority
		case AuthorityFreezeAccount:
			if m.FreezeAuthority == nil {
				return ErrMintCannotFreeze
			}
			if err := requireAuthority(tx, m.FreezeAuthority, keys[1]); err != nil {
				return err
			}
			m.FreezeAuthority = newAuthority
		default:
			return fmt.Errorf("%w: %d on mint", ErrAuthorityTypeNotSupported, authorityType)
		}
		return tx.Store(keys[0], EncodeMint(m))
	}

	a, err := LoadAccount(tx, keys[0])
	if err != nil {
		return err
	}
	if authorityType != AuthorityAccountOwner {
		return fmt.Errorf("%w: %d on account", ErrAuthorityTypeNotSupported, authorityType)
	}
	if newAuthority == nil {
		return fmt.Errorf("%w: account owner cannot be unset", ledger.ErrInvalidInstructionData)
	}
	if err := requireAuthority(tx, &a.Owner, keys[1]); err != nil {
		return err
	}
	a.Owner = *newAuthority
	return tx.Store(keys[0], EncodeAccount(a))
}

// mintTo: accounts [mint (writable), destination (writable), mint authority (signer)].
func (Program) mintTo(tx *ledger.Tx, ix *domain.Instruction, r *codec.Reader) error {
	amount := r.U64()
	if err := decodeArgs(r); err != nil {
		return err
	}
	keys, err := ledger.Keys(ix, 3)
	if err != nil {
		return err
	}

	m, err := LoadMint(tx, keys[0])
	if err != nil {
		return err
	}
	dst, err := LoadAccount(tx, keys[1])
	if err != nil {
		return err
	}
	if dst.State == domain.TokenAccountFrozen {
		return ErrAccountFrozen
	}
	if dst.Mint != m.Address {
		return ErrMintMismatch
	}
	if m.MintAuthority == nil {
		return ErrFixedSupply
	}
	if err := requireAuthority(tx, m.MintAuthority, keys[2]); err != nil {
		return err
	}
	if m.Supply+amount < m.Supply || dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}

	m.Supply += amount
	dst.Amount += amount
	if err := tx.Store(m.Address, EncodeMint(m)); err != nil {
		return err
	}
	return tx.Store(dst.Address, EncodeAccount(dst))
}

// burn: accounts [account (writable), mint (writable), owner (signer)].
func (Program) burn(tx *ledger.Tx, ix *domain.Instruction, r *codec.Reader) error {
	amount := r.U64()
	if err := decodeArgs(r); err != nil {
		return err
	}
	keys, err := ledger.Keys(ix, 3)
	if err != nil {
		return err
	}

	a, err := LoadAccount(tx, keys[0])
	if err != nil {
		return err
	}
	m, err := LoadMint(tx, keys[1])
	if err != nil {
		return err
	}
	if a.State == domain.TokenAccountFrozen {
		return ErrAccountFrozen
	}
	if a.Mint != m.Address {
		return ErrMintMismatch
	}
	if err := requireAuthority(tx, &a.Owner, keys[2]); err != nil {
		return err
	}
	if a.Amount < amount {
		return fmt.Errorf("%w: balance %d, burn %d", ErrInsufficientFunds, a.Amount, amount)
	}

	a.Amount -= amount
	m.Supply -= amount
	if err := tx.Store(a.Address, EncodeAccount(a)); err != nil {
		return err
	}
	return tx.Store(m.Address, EncodeMint(m))
}

// setFrozen: accounts [account (writable), mint, freeze authority (signer)].
func (Program) setFrozen(tx *ledger.Tx, ix *domain.Instruction, freeze bool) error {
	keys, err := ledger.Keys(ix, 3)
	if err != nil {
		return err
	}

	a, err := LoadAccount(tx, keys[0])
	if err != nil {
		return err
	}
	m, err := LoadMint(tx, keys[1])
	if err != nil {
		return err
	}
	if a.Mint != m.Address {
		return ErrMintMismatch
	}
	if m.FreezeAuthority == nil {
		return ErrMintCannotFreeze
	}
	if err := requireAuthority(tx, m.FreezeAuthority, keys[2]); err != nil {
		return err
	}

	want := domain.TokenAccountInitialized
	next := domain.TokenAccountFrozen
	if !freeze {
		want, next = next, want
	}
	if a.State != want {
		return ErrInvalidState
	}
	a.State = next
	return tx.Store(a.Address, EncodeAccount(a))
}
