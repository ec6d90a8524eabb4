package ledger

import (
	"errors"
)

// Kind classifies a program error so callers can decide how to react without
// matching every sentinel.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindPolicyViolation
	KindStateConflict
	KindAuthorization
	KindCapacity
	KindTiming
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindPolicyViolation:
		return "PolicyViolation"
	case KindStateConflict:
		return "StateConflict"
	case KindAuthorization:
		return "Authorization"
	case KindCapacity:
		return "Capacity"
	case KindTiming:
		return "Timing"
	default:
		return "Unknown"
	}
}

// Error is a sentinel program error carrying a Kind.
// Sentinels are compared by identity, so errors.Is works through wrapping.
type Error struct {
	kind Kind
	msg  string
}

// NewError creates a sentinel error of the given kind.
func NewError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the error kind.
func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// Runtime errors.
var (
	// ErrAccountExists is returned when creating an account at an occupied address.
	ErrAccountExists = NewError(KindStateConflict, "account already exists")

	// ErrWriteConflict is returned when another runtime committed to an account
	// this bundle read. Nothing was written; the bundle may be resubmitted.
	ErrWriteConflict = NewError(KindStateConflict, "account changed by a concurrent bundle")

	// ErrAccountNotFound is returned when loading an address that holds no account.
	ErrAccountNotFound = NewError(KindValidation, "account not found")

	// ErrMissingSignature is returned when an instruction marks an account as signer
	// but no matching signature or derived-address grant exists.
	ErrMissingSignature = NewError(KindAuthorization, "missing required signature")

	// ErrIllegalOwner is returned when a program writes an account it does not own.
	ErrIllegalOwner = NewError(KindAuthorization, "account not owned by calling program")

	// ErrAccountDataTooSmall is returned when a write exceeds the size fixed at creation.
	ErrAccountDataTooSmall = NewError(KindCapacity, "account data too small")

	// ErrInvalidAccountSize is returned when an account is created with a non-positive
	// size or one above MaxAccountSize.
	ErrInvalidAccountSize = NewError(KindCapacity, "invalid account size")

	// ErrUnknownProgram is returned when an instruction targets an unregistered program.
	ErrUnknownProgram = NewError(KindValidation, "unknown program")

	// ErrCallDepth is returned when cross-program invocations nest too deeply.
	ErrCallDepth = NewError(KindCapacity, "cross-program invocation depth exceeded")

	// ErrInvalidSeeds is returned when signer seeds do not derive a valid address.
	ErrInvalidSeeds = NewError(KindAuthorization, "invalid signer seeds")

	// ErrNotEnoughAccountKeys is returned when an instruction lists too few accounts.
	ErrNotEnoughAccountKeys = NewError(KindValidation, "not enough account keys")

	// ErrInvalidInstructionData is returned when instruction data cannot be decoded.
	ErrInvalidInstructionData = NewError(KindValidation, "invalid instruction data")

	// ErrInvalidAccountData is returned when account data does not decode as the expected type.
	ErrInvalidAccountData = NewError(KindValidation, "invalid account data")

	// ErrEmptyBundle is returned when Submit is called without instructions.
	ErrEmptyBundle = NewError(KindValidation, "bundle has no instructions")
)
