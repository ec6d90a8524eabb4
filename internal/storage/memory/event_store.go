package memory

import (
	"context"
	"sort"
	"sync"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
// Events are kept in insertion order; reads sort stably by slot.
type EventStore struct {
	mu     sync.RWMutex
	events []*domain.Event
	ids    map[string]struct{}
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		ids: make(map[string]struct{}),
	}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchIDs := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.ids[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchIDs[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		batchIDs[e.EventID] = struct{}{}
	}

	for _, e := range events {
		s.ids[e.EventID] = struct{}{}
		s.events = append(s.events, cloneEvent(e))
	}
	return nil
}

// GetByAddress retrieves events about an account, ordered by slot.
func (s *EventStore) GetByAddress(_ context.Context, address domain.Pubkey) ([]*domain.Event, error) {
	return s.filter(func(e *domain.Event) bool { return e.Address == address }), nil
}

// GetBySlotRange retrieves events within [from, to] (inclusive).
func (s *EventStore) GetBySlotRange(_ context.Context, from, to uint64) ([]*domain.Event, error) {
	if from > to {
		return nil, storage.ErrInvalidInput
	}
	return s.filter(func(e *domain.Event) bool { return e.Slot >= from && e.Slot <= to }), nil
}

func (s *EventStore) filter(match func(*domain.Event) bool) []*domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, e := range s.events {
		if match(e) {
			result = append(result, cloneEvent(e))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Slot < result[j].Slot
	})
	return result
}

func cloneEvent(e *domain.Event) *domain.Event {
	out := *e
	if e.Fields != nil {
		out.Fields = make(map[string]string, len(e.Fields))
		for k, v := range e.Fields {
			out.Fields[k] = v
		}
	}
	return &out
}
