package domain

// EventKind identifies what a program event records.
type EventKind string

const (
	EventLaunchInitialized   EventKind = "LAUNCH_INITIALIZED"
	EventFundsCommitted      EventKind = "FUNDS_COMMITTED"
	EventLaunchFinalized     EventKind = "LAUNCH_FINALIZED"
	EventLaunchRefundStarted EventKind = "LAUNCH_REFUND_STARTED"
	EventFunderRefunded      EventKind = "FUNDER_REFUNDED"
	EventFunderClaimed       EventKind = "FUNDER_CLAIMED"
	EventDAOInitialized      EventKind = "DAO_INITIALIZED"
	EventTimelockCreated     EventKind = "TIMELOCK_CREATED"
	EventTimelockUpdated     EventKind = "TIMELOCK_UPDATED"
	EventBatchCreated        EventKind = "BATCH_CREATED"
	EventTransactionAdded    EventKind = "TRANSACTION_ADDED"
	EventBatchEnqueued       EventKind = "BATCH_ENQUEUED"
	EventBatchExecuted       EventKind = "BATCH_EXECUTED"
)

// Event is an append-only record emitted by a program inside a committed bundle.
// Corresponds to the program_events table.
type Event struct {
	EventID   string            // PRIMARY KEY, deterministic hash
	Kind      EventKind         // what happened
	ProgramID Pubkey            // emitting program
	Address   Pubkey            // primary account the event is about
	Slot      uint64            // bundle slot
	Seq       int               // position within the bundle
	Fields    map[string]string // event-specific attributes
	CreatedAt int64             // record creation timestamp (ms)
}
