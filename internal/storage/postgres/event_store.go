package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO program_events (
			event_id, kind, program_id, address, slot, seq, fields, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		fields := e.Fields
		if fields == nil {
			fields = map[string]string{}
		}
		_, err := tx.Exec(ctx, query,
			e.EventID,
			string(e.Kind),
			e.ProgramID.String(),
			e.Address.String(),
			int64(e.Slot),
			e.Seq,
			fields,
			e.CreatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert program event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByAddress retrieves events about an account, ordered by (slot, insertion) ASC.
func (s *EventStore) GetByAddress(ctx context.Context, address domain.Pubkey) ([]*domain.Event, error) {
	query := `
		SELECT event_id, kind, program_id, address, slot, seq, fields, created_at
		FROM program_events
		WHERE address = $1
		ORDER BY slot ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, address.String())
	if err != nil {
		return nil, fmt.Errorf("get program events by address: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetBySlotRange retrieves events within [from, to] (inclusive).
func (s *EventStore) GetBySlotRange(ctx context.Context, from, to uint64) ([]*domain.Event, error) {
	if from > to {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT event_id, kind, program_id, address, slot, seq, fields, created_at
		FROM program_events
		WHERE slot >= $1 AND slot <= $2
		ORDER BY slot ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(from), int64(to))
	if err != nil {
		return nil, fmt.Errorf("get program events by slot range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var (
			e                  domain.Event
			kind               string
			programID, address string
			slot               int64
		)
		err := rows.Scan(
			&e.EventID,
			&kind,
			&programID,
			&address,
			&slot,
			&e.Seq,
			&e.Fields,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan program event row: %w", err)
		}

		e.Kind = domain.EventKind(kind)
		e.Slot = uint64(slot)
		if e.ProgramID, err = domain.ParsePubkey(programID); err != nil {
			return nil, fmt.Errorf("scan program event row: %w", err)
		}
		if e.Address, err = domain.ParsePubkey(address); err != nil {
			return nil, fmt.Errorf("scan program event row: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate program event rows: %w", err)
	}

	return events, nil
}
