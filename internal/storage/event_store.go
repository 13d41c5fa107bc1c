package storage

import (
	"context"

	"solana-token-craft/internal/domain"
)

// EventStore provides access to the append-only operation journal.
type EventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.Event) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.Event) error

	// GetByMint retrieves all events of a mint, ordered by (timestamp, sequence) ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Event, error)

	// GetByAccount retrieves all events touching a record address, ordered by (timestamp, sequence) ASC.
	GetByAccount(ctx context.Context, address string) ([]*domain.Event, error)

	// GetByTimeRange retrieves events committed within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error)
}
