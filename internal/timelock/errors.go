package timelock

import (
	"fmt"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
)

var (
	// ErrAlreadyExists is returned when a timelock id is already taken.
	ErrAlreadyExists = ledger.ErrAccountExists

	ErrAlreadyExecuted   = ledger.NewError(ledger.KindStateConflict, "timelock: batch already executed")
	ErrBatchSealed       = ledger.NewError(ledger.KindStateConflict, "timelock: batch is sealed")
	ErrBatchNotEnqueued  = ledger.NewError(ledger.KindStateConflict, "timelock: batch is not enqueued")
	ErrUnauthorized      = ledger.NewError(ledger.KindAuthorization, "timelock: unauthorized")
	ErrCapacityExceeded  = ledger.NewError(ledger.KindCapacity, "timelock: batch capacity exceeded")
	ErrBatchTooSmall     = ledger.NewError(ledger.KindCapacity, "timelock: batch capacity below header size")
	ErrTooManyEnqueuers  = ledger.NewError(ledger.KindCapacity, "timelock: too many enqueuers")
	ErrDelayNotElapsed   = ledger.NewError(ledger.KindTiming, "timelock: delay has not elapsed")
	ErrDuplicateEnqueuer = ledger.NewError(ledger.KindValidation, "timelock: duplicate enqueuer")
	ErrEnqueuerNotFound  = ledger.NewError(ledger.KindValidation, "timelock: enqueuer not found")
	ErrTimelockMismatch  = ledger.NewError(ledger.KindValidation, "timelock: batch belongs to another timelock")
)

// ExecutionError identifies the inner transaction that failed during execute.
// The batch stays enqueued and execute can be retried.
type ExecutionError struct {
	Index     int
	ProgramID domain.Pubkey
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("timelock: transaction %d (program %s) failed: %v", e.Index, e.ProgramID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
