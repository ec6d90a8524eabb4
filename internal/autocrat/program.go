// Package autocrat holds the DAO identity a launch raises for: the DAO record,
// its derived treasury and the mints it is configured with. Proposal and vote
// handling are not part of this program.
package autocrat

import (
	"fmt"
	"strconv"

	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/pda"
	"solana-dao-lab/internal/token"
)

// ProgramID is the autocrat program id.
var ProgramID = domain.MustParsePubkey("autoQP9RmUNkzzKRXsMkWicDVZ3h29vvyMDcAYjCxxg")

// DAOSize is the encoded size of a DAO account.
const DAOSize = codec.DiscriminatorSize + 32 + 1 + 32 + 32 + 8

var (
	daoDiscriminator           = codec.Discriminator("account", "Dao")
	initializeDAODiscriminator = codec.Discriminator("global", "initialize_dao")
)

// TreasuryAddress returns the treasury of dao: PDA([dao]) under the autocrat program.
func TreasuryAddress(dao domain.Pubkey) (domain.Pubkey, uint8) {
	return pda.MustFind([][]byte{dao[:]}, ProgramID)
}

// Program is the autocrat program.
type Program struct{}

var _ ledger.Program = Program{}

func (Program) ID() domain.Pubkey { return ProgramID }
func (Program) Name() string      { return "autocrat" }

// Process handles initialize_dao: accounts [dao (signer, writable), token mint, usdc mint].
func (Program) Process(tx *ledger.Tx, ix *domain.Instruction) error {
	r := codec.NewReader(ix.Data)
	if !r.ExpectDiscriminator(initializeDAODiscriminator) {
		return fmt.Errorf("%w: unknown autocrat instruction", ledger.ErrInvalidInstructionData)
	}
	keys, err := ledger.Keys(ix, 3)
	if err != nil {
		return err
	}
	address, tokenMint, usdcMint := keys[0], keys[1], keys[2]

	if _, err := token.LoadMint(tx, tokenMint); err != nil {
		return fmt.Errorf("token mint: %w", err)
	}
	if _, err := token.LoadMint(tx, usdcMint); err != nil {
		return fmt.Errorf("usdc mint: %w", err)
	}

	if err := tx.Invoke(ledger.CreateAccount(address, DAOSize, ProgramID)); err != nil {
		return err
	}

	treasury, bump := TreasuryAddress(address)
	dao := &domain.DAO{
		Address:      address,
		Treasury:     treasury,
		TreasuryBump: bump,
		TokenMint:    tokenMint,
		USDCMint:     usdcMint,
	}
	if err := tx.Store(address, EncodeDAO(dao)); err != nil {
		return err
	}

	tx.Log("initialized dao %s treasury %s", address, treasury)
	tx.Emit(domain.EventDAOInitialized, address, map[string]string{
		"treasury":      treasury.String(),
		"token_mint":    tokenMint.String(),
		"usdc_mint":     usdcMint.String(),
		"treasury_bump": strconv.Itoa(int(bump)),
	})
	return nil
}

// EncodeDAO serializes a DAO account.
func EncodeDAO(d *domain.DAO) []byte {
	w := codec.NewWriter()
	w.Discriminator(daoDiscriminator)
	w.Pubkey(d.Treasury)
	w.U8(d.TreasuryBump)
	w.Pubkey(d.TokenMint)
	w.Pubkey(d.USDCMint)
	w.U64(d.SeqNum)
	return w.Bytes()
}

// DecodeDAO parses a DAO account.
func DecodeDAO(address domain.Pubkey, data []byte) (*domain.DAO, error) {
	r := codec.NewReader(data)
	if !r.ExpectDiscriminator(daoDiscriminator) {
		return nil, fmt.Errorf("%w: %s is not a dao", ledger.ErrInvalidAccountData, address)
	}
	d := &domain.DAO{Address: address}
	d.Treasury = r.Pubkey()
	d.TreasuryBump = r.U8()
	d.TokenMint = r.Pubkey()
	d.USDCMint = r.Pubkey()
	d.SeqNum = r.U64()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: dao %s: %v", ledger.ErrInvalidAccountData, address, err)
	}
	return d, nil
}

// LoadDAO reads a DAO inside a bundle, checking it is owned by the autocrat program.
func LoadDAO(tx *ledger.Tx, address domain.Pubkey) (*domain.DAO, error) {
	acct, err := tx.LoadOwned(address, ProgramID)
	if err != nil {
		return nil, err
	}
	return DecodeDAO(address, acct.Data)
}

// InitializeDAO builds an initialize_dao instruction. dao must sign.
func InitializeDAO(dao, tokenMint, usdcMint domain.Pubkey) *domain.Instruction {
	w := codec.NewWriter()
	w.Discriminator(initializeDAODiscriminator)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.SignerMeta(dao, true),
			domain.Meta(tokenMint),
			domain.Meta(usdcMint),
		},
		Data: w.Bytes(),
	}
}
