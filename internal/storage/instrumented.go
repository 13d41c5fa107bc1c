package storage

import (
	"context"
	"errors"
	"time"

	"solana-token-craft/internal/domain"
)

// QueryRecorder receives the duration and outcome of store calls.
type QueryRecorder interface {
	RecordDBQuery(database, operation string, seconds float64, err error)
}

// Rejection is implemented by errors that refuse a request rather than
// report a failure of the store. Returned from a transaction callback, they
// are not counted as query errors.
type Rejection interface {
	Rejected() bool
}

// queryErr drops errors that only reject the request.
func queryErr(err error) error {
	var r Rejection
	if errors.As(err, &r) && r.Rejected() {
		return nil
	}
	return err
}

// InstrumentedRecordStore times every Update and View of the wrapped store.
type InstrumentedRecordStore struct {
	RecordStore
	database string
	rec      QueryRecorder
}

// InstrumentRecordStore wraps store so each transaction is reported to rec
// under the given database label.
func InstrumentRecordStore(store RecordStore, database string, rec QueryRecorder) *InstrumentedRecordStore {
	return &InstrumentedRecordStore{RecordStore: store, database: database, rec: rec}
}

func (s *InstrumentedRecordStore) Update(ctx context.Context, fn func(tx Txn) error) error {
	start := time.Now()
	err := s.RecordStore.Update(ctx, fn)
	s.rec.RecordDBQuery(s.database, "update", time.Since(start).Seconds(), queryErr(err))
	return err
}

func (s *InstrumentedRecordStore) View(ctx context.Context, fn func(r Reader) error) error {
	start := time.Now()
	err := s.RecordStore.View(ctx, fn)
	s.rec.RecordDBQuery(s.database, "view", time.Since(start).Seconds(), queryErr(err))
	return err
}

// InstrumentedEventStore times every call of the wrapped journal.
type InstrumentedEventStore struct {
	store    EventStore
	database string
	rec      QueryRecorder
}

// InstrumentEventStore wraps store so each call is reported to rec.
func InstrumentEventStore(store EventStore, database string, rec QueryRecorder) *InstrumentedEventStore {
	return &InstrumentedEventStore{store: store, database: database, rec: rec}
}

func (s *InstrumentedEventStore) observe(op string, start time.Time, err error) {
	s.rec.RecordDBQuery(s.database, op, time.Since(start).Seconds(), err)
}

func (s *InstrumentedEventStore) Insert(ctx context.Context, e *domain.Event) error {
	start := time.Now()
	err := s.store.Insert(ctx, e)
	s.observe("insert_event", start, err)
	return err
}

func (s *InstrumentedEventStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	start := time.Now()
	err := s.store.InsertBulk(ctx, events)
	s.observe("insert_events", start, err)
	return err
}

func (s *InstrumentedEventStore) GetByMint(ctx context.Context, mint string) ([]*domain.Event, error) {
	start := time.Now()
	out, err := s.store.GetByMint(ctx, mint)
	s.observe("events_by_mint", start, err)
	return out, err
}

func (s *InstrumentedEventStore) GetByAccount(ctx context.Context, address string) ([]*domain.Event, error) {
	start := time.Now()
	out, err := s.store.GetByAccount(ctx, address)
	s.observe("events_by_account", start, err)
	return out, err
}

func (s *InstrumentedEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error) {
	began := time.Now()
	out, err := s.store.GetByTimeRange(ctx, start, end)
	s.observe("events_by_time_range", began, err)
	return out, err
}

var (
	_ RecordStore = (*InstrumentedRecordStore)(nil)
	_ EventStore  = (*InstrumentedEventStore)(nil)
)
