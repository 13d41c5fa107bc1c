package clickhouse

import (
	"context"
	"fmt"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
// MergeTree does not enforce uniqueness, so event ids are checked before insert.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `event_id, sequence, operation, mint, accounts, authority, amount, detail, timestamp_ms`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.Event) error {
	return s.InsertBulk(ctx, []*domain.Event{e})
}

// InsertBulk adds multiple events in one batch. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]string, 0, len(events))
	seen := make(map[string]struct{}, len(events))
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

	var existing uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM ledger_events WHERE event_id IN (?)`, ids,
	).Scan(&existing); err != nil {
		return fmt.Errorf("check existing events: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO ledger_events (`+eventColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		accounts := e.Accounts
		if accounts == nil {
			accounts = []string{}
		}
		if err := batch.Append(
			e.EventID, e.Sequence, string(e.Operation), e.Mint, accounts,
			e.Authority, e.Amount, e.Detail, e.Timestamp,
		); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves all events of a mint, ordered by (timestamp, sequence) ASC.
func (s *EventStore) GetByMint(ctx context.Context, mint string) ([]*domain.Event, error) {
	return s.query(ctx, "get events by mint", `
		SELECT `+eventColumns+`
		FROM ledger_events
		WHERE mint = ?
		ORDER BY timestamp_ms ASC, sequence ASC
	`, mint)
}

// GetByAccount retrieves all events touching a record address, ordered by (timestamp, sequence) ASC.
func (s *EventStore) GetByAccount(ctx context.Context, address string) ([]*domain.Event, error) {
	return s.query(ctx, "get events by account", `
		SELECT `+eventColumns+`
		FROM ledger_events
		WHERE has(accounts, ?)
		ORDER BY timestamp_ms ASC, sequence ASC
	`, address)
}

// GetByTimeRange retrieves events committed within [start, end] (inclusive).
func (s *EventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error) {
	return s.query(ctx, "get events by time range", `
		SELECT `+eventColumns+`
		FROM ledger_events
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, sequence ASC
	`, start, end)
}

func (s *EventStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.Event, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*domain.Event
	for rows.Next() {
		var (
			e         domain.Event
			operation string
		)
		if err := rows.Scan(
			&e.EventID, &e.Sequence, &operation, &e.Mint, &e.Accounts,
			&e.Authority, &e.Amount, &e.Detail, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Operation = domain.Operation(operation)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return result, nil
}
