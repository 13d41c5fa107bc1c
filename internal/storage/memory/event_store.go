package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Event // keyed by event_id
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[string]*domain.Event),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(_ context.Context, e *domain.Event) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[e.EventID] = copyEvent(e)
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before writing anything
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	for _, e := range events {
		s.data[e.EventID] = copyEvent(e)
	}
	return nil
}

// GetByMint retrieves all events of a mint, ordered by (timestamp, sequence) ASC.
func (s *EventStore) GetByMint(_ context.Context, mint string) ([]*domain.Event, error) {
	return s.filter(func(e *domain.Event) bool {
		return e.Mint == mint
	}), nil
}

// GetByAccount retrieves all events touching a record address.
func (s *EventStore) GetByAccount(_ context.Context, address string) ([]*domain.Event, error) {
	return s.filter(func(e *domain.Event) bool {
		return e.Touches(address)
	}), nil
}

// GetByTimeRange retrieves events committed within [start, end] (inclusive).
func (s *EventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Event, error) {
	return s.filter(func(e *domain.Event) bool {
		return e.Timestamp >= start && e.Timestamp <= end
	}), nil
}

func (s *EventStore) filter(match func(*domain.Event) bool) []*domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, e := range s.data {
		if match(e) {
			result = append(result, copyEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].Sequence < result[j].Sequence
	})

	return result
}

func copyEvent(e *domain.Event) *domain.Event {
	c := *e
	c.Accounts = append([]string(nil), e.Accounts...)
	return &c
}

var _ storage.EventStore = (*EventStore)(nil)
