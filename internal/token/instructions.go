package token

import (
	"solana-dao-lab/internal/codec"
	"solana-dao-lab/internal/domain"
)

// InitializeMint builds an InitializeMint instruction. The mint account must
// already be allocated with MintSize bytes and owned by the token program.
func InitializeMint(mint domain.Pubkey, decimals uint8, mintAuthority domain.Pubkey, freezeAuthority *domain.Pubkey) *domain.Instruction {
	w := codec.NewWriter()
	w.U8(tagInitializeMint)
	w.U8(decimals)
	w.Pubkey(mintAuthority)
	w.OptionPubkey(freezeAuthority)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts:  []domain.AccountMeta{domain.WritableMeta(mint)},
		Data:      w.Bytes(),
	}
}

// InitializeAccount builds an InitializeAccount instruction.
func InitializeAccount(account, mint, owner domain.Pubkey) *domain.Instruction {
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(account),
			domain.Meta(mint),
			domain.Meta(owner),
		},
		Data: []byte{tagInitializeAccount},
	}
}

// Transfer builds a Transfer instruction signed by the source owner.
func Transfer(source, destination, authority domain.Pubkey, amount uint64) *domain.Instruction {
	return amountInstruction(tagTransfer, amount,
		domain.WritableMeta(source),
		domain.WritableMeta(destination),
		domain.SignerMeta(authority, false),
	)
}

// SetAuthority builds a SetAuthority instruction. A nil newAuthority removes
// the authority permanently.
func SetAuthority(target, currentAuthority domain.Pubkey, authorityType AuthorityType, newAuthority *domain.Pubkey) *domain.Instruction {
	w := codec.NewWriter()
	w.U8(tagSetAuthority)
	w.U8(uint8(authorityType))
	w.OptionPubkey(newAuthority)
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(target),
			domain.SignerMeta(currentAuthority, false),
		},
		Data: w.Bytes(),
	}
}

// MintTo builds a MintTo instruction signed by the mint authority.
func MintTo(mint, destination, authority domain.Pubkey, amount uint64) *domain.Instruction {
	return amountInstruction(tagMintTo, amount,
		domain.WritableMeta(mint),
		domain.WritableMeta(destination),
		domain.SignerMeta(authority, false),
	)
}

// Burn builds a Burn instruction signed by the account owner.
func Burn(account, mint, owner domain.Pubkey, amount uint64) *domain.Instruction {
	return amountInstruction(tagBurn, amount,
		domain.WritableMeta(account),
		domain.WritableMeta(mint),
		domain.SignerMeta(owner, false),
	)
}

// FreezeAccount builds a FreezeAccount instruction signed by the freeze authority.
func FreezeAccount(account, mint, authority domain.Pubkey) *domain.Instruction {
	return freezeInstruction(tagFreezeAccount, account, mint, authority)
}

// ThawAccount builds a ThawAccount instruction signed by the freeze authority.
func ThawAccount(account, mint, authority domain.Pubkey) *domain.Instruction {
	return freezeInstruction(tagThawAccount, account, mint, authority)
}

// CreateAssociatedAccount builds an idempotent associated token account creation.
func CreateAssociatedAccount(wallet, mint domain.Pubkey) *domain.Instruction {
	address, _ := AssociatedAddress(wallet, mint)
	return &domain.Instruction{
		ProgramID: AssociatedProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(address),
			domain.Meta(wallet),
			domain.Meta(mint),
		},
		Data: []byte{tagAssociatedCreateIdempotent},
	}
}

func amountInstruction(tag uint8, amount uint64, accounts ...domain.AccountMeta) *domain.Instruction {
	w := codec.NewWriter()
	w.U8(tag)
	w.U64(amount)
	return &domain.Instruction{ProgramID: ProgramID, Accounts: accounts, Data: w.Bytes()}
}

func freezeInstruction(tag uint8, account, mint, authority domain.Pubkey) *domain.Instruction {
	return &domain.Instruction{
		ProgramID: ProgramID,
		Accounts: []domain.AccountMeta{
			domain.WritableMeta(account),
			domain.Meta(mint),
			domain.SignerMeta(authority, false),
		},
		Data: []byte{tag},
	}
}
