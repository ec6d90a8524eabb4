package clickhouse

import (
	"context"
	"fmt"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicates are checked before insert.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// InsertBulk adds multiple events. Fails entire batch on duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(events))
	ids := make([]string, 0, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
		ids = append(ids, e.EventID)
	}

	exists, err := s.anyExists(ctx, ids)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO program_events (
			event_id, kind, program_id, address, slot, seq, fields, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		fields := e.Fields
		if fields == nil {
			fields = map[string]string{}
		}
		err = batch.Append(
			e.EventID, string(e.Kind), e.ProgramID.String(), e.Address.String(),
			e.Slot, uint32(e.Seq), fields, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByAddress retrieves events about an account, ordered by (slot, created_at, seq) ASC.
func (s *EventStore) GetByAddress(ctx context.Context, address domain.Pubkey) ([]*domain.Event, error) {
	query := `
		SELECT event_id, kind, program_id, address, slot, seq, fields, created_at
		FROM program_events
		WHERE address = ?
		ORDER BY slot ASC, created_at ASC, seq ASC
	`

	rows, err := s.conn.Query(ctx, query, address.String())
	if err != nil {
		return nil, fmt.Errorf("query by address: %w", err)
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
		WHERE slot >= ? AND slot <= ?
		ORDER BY slot ASC, created_at ASC, seq ASC
	`

	rows, err := s.conn.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query by slot range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *EventStore) anyExists(ctx context.Context, ids []string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM program_events WHERE has(?, event_id)`, ids).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanEvents(rows chRows) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var (
			e                  domain.Event
			kind               string
			programID, address string
			seq                uint32
			fields             map[string]string
		)
		if err := rows.Scan(&e.EventID, &kind, &programID, &address, &e.Slot, &seq, &fields, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan program event row: %w", err)
		}

		var err error
		if e.ProgramID, err = domain.ParsePubkey(programID); err != nil {
			return nil, fmt.Errorf("scan program event row: %w", err)
		}
		if e.Address, err = domain.ParsePubkey(address); err != nil {
			return nil, fmt.Errorf("scan program event row: %w", err)
		}
		e.Kind = domain.EventKind(kind)
		e.Seq = int(seq)
		e.Fields = fields

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate program event rows: %w", err)
	}

	return events, nil
}
