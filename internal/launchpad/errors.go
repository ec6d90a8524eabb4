package launchpad

import "solana-dao-lab/internal/ledger"

// Sale mint validation.
var (
	ErrConstraintMintMintAuthority = ledger.NewError(ledger.KindValidation, "launchpad: sale mint authority is not the launch")
	ErrFreezeAuthoritySet          = ledger.NewError(ledger.KindValidation, "launchpad: sale mint has a freeze authority")
	ErrSupplyNonZero               = ledger.NewError(ledger.KindValidation, "launchpad: sale mint supply is not zero")
	ErrInvalidMintDecimals         = ledger.NewError(ledger.KindValidation, "launchpad: mint decimals must be 6")
	ErrFundingMintMismatch         = ledger.NewError(ledger.KindValidation, "launchpad: funding mint is not the dao's usdc mint")
	ErrInvalidDAO                  = ledger.NewError(ledger.KindValidation, "launchpad: dao or treasury mismatch")
	ErrInvalidVault                = ledger.NewError(ledger.KindValidation, "launchpad: vault does not belong to launch")
	ErrInvalidFundingRecord        = ledger.NewError(ledger.KindValidation, "launchpad: funding record does not belong to launch")
	ErrInvalidAmount               = ledger.NewError(ledger.KindValidation, "launchpad: amount must be positive")
)

// Raise policy.
var (
	ErrMinMaxRaiseInvalid = ledger.NewError(ledger.KindPolicyViolation, "launchpad: raise bounds must satisfy 0 < min <= max")
	ErrRaiseCapExceeded   = ledger.NewError(ledger.KindPolicyViolation, "launchpad: commitment exceeds maximum raise")
	ErrMinimumRaiseNotMet = ledger.NewError(ledger.KindPolicyViolation, "launchpad: minimum raise not met")
	ErrMinimumRaiseMet    = ledger.NewError(ledger.KindPolicyViolation, "launchpad: minimum raise met, refunds not allowed")
)

// Lifecycle.
var (
	// ErrAlreadyExists is returned when a launch already exists for the dao.
	ErrAlreadyExists = ledger.ErrAccountExists

	ErrAlreadyFinalized   = ledger.NewError(ledger.KindStateConflict, "launchpad: launch already finalized")
	ErrInvalidLaunchState = ledger.NewError(ledger.KindStateConflict, "launchpad: invalid launch state")
	ErrAlreadyRefunded    = ledger.NewError(ledger.KindStateConflict, "launchpad: funder already refunded")
	ErrAlreadyClaimed     = ledger.NewError(ledger.KindStateConflict, "launchpad: funder already claimed")
)

// Funding window.
var (
	ErrFundingWindowClosed = ledger.NewError(ledger.KindTiming, "launchpad: funding window closed")
	ErrFundingWindowOpen   = ledger.NewError(ledger.KindTiming, "launchpad: funding window still open")
)
