package token

import "solana-dao-lab/internal/ledger"

// Token program errors.
var (
	ErrInsufficientFunds         = ledger.NewError(ledger.KindPolicyViolation, "token: insufficient funds")
	ErrOwnerMismatch             = ledger.NewError(ledger.KindAuthorization, "token: owner does not match")
	ErrMintMismatch              = ledger.NewError(ledger.KindValidation, "token: account not associated with this mint")
	ErrFixedSupply               = ledger.NewError(ledger.KindPolicyViolation, "token: fixed supply")
	ErrMintCannotFreeze          = ledger.NewError(ledger.KindPolicyViolation, "token: mint cannot freeze accounts")
	ErrAccountFrozen             = ledger.NewError(ledger.KindPolicyViolation, "token: account is frozen")
	ErrInvalidState              = ledger.NewError(ledger.KindStateConflict, "token: invalid account state for operation")
	ErrOverflow                  = ledger.NewError(ledger.KindCapacity, "token: operation overflowed")
	ErrUninitializedState        = ledger.NewError(ledger.KindValidation, "token: state is uninitialized")
	ErrAlreadyInUse              = ledger.NewError(ledger.KindStateConflict, "token: account or mint already in use")
	ErrInvalidMint               = ledger.NewError(ledger.KindValidation, "token: invalid mint")
	ErrAuthorityTypeNotSupported = ledger.NewError(ledger.KindValidation, "token: authority type not supported")
	ErrInvalidAssociatedAddress  = ledger.NewError(ledger.KindValidation, "token: associated address does not match seed derivation")
)
