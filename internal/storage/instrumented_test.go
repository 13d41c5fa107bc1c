package storage_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/storage"
	"solana-token-craft/internal/storage/memory"
)

type call struct {
	database, operation string
	failed              bool
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *fakeRecorder) RecordDBQuery(database, operation string, _ float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{database, operation, err != nil})
}

func TestInstrumentRecordStore(t *testing.T) {
	rec := &fakeRecorder{}
	store := storage.InstrumentRecordStore(memory.NewRecordStore(), "memory", rec)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx storage.Txn) error {
		return tx.InsertMint(ctx, &domain.Mint{Address: "m"})
	}))
	boom := errors.New("boom")
	assert.ErrorIs(t, store.Update(ctx, func(storage.Txn) error { return boom }), boom)
	require.NoError(t, store.View(ctx, func(r storage.Reader) error {
		_, err := r.GetMint(ctx, "m")
		return err
	}))

	assert.Equal(t, []call{
		{"memory", "update", false},
		{"memory", "update", true},
		{"memory", "view", false},
	}, rec.calls)
}

type refusal struct{ internal bool }

func (r refusal) Error() string  { return "refused" }
func (r refusal) Rejected() bool { return !r.internal }

func TestInstrumentRecordStore_RejectionsAreNotQueryErrors(t *testing.T) {
	rec := &fakeRecorder{}
	store := storage.InstrumentRecordStore(memory.NewRecordStore(), "memory", rec)
	ctx := context.Background()

	err := store.Update(ctx, func(storage.Txn) error { return fmt.Errorf("transfer: %w", refusal{}) })
	assert.ErrorAs(t, err, new(refusal))
	err = store.View(ctx, func(storage.Reader) error { return refusal{} })
	assert.Error(t, err)
	err = store.Update(ctx, func(storage.Txn) error { return refusal{internal: true} })
	assert.Error(t, err)
	err = store.Update(ctx, func(tx storage.Txn) error {
		return tx.InsertMint(ctx, nil)
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	assert.Equal(t, []call{
		{"memory", "update", false},
		{"memory", "view", false},
		{"memory", "update", true},
		{"memory", "update", true},
	}, rec.calls)
}

func TestInstrumentEventStore(t *testing.T) {
	rec := &fakeRecorder{}
	store := storage.InstrumentEventStore(memory.NewEventStore(), "clickhouse", rec)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.Event{EventID: "e1", Mint: "m", Accounts: []string{"a"}, Timestamp: 5}))
	assert.ErrorIs(t, store.Insert(ctx, &domain.Event{EventID: "e1"}), storage.ErrDuplicateKey)
	require.NoError(t, store.InsertBulk(ctx, []*domain.Event{{EventID: "e2", Mint: "m", Timestamp: 6}}))

	byMint, err := store.GetByMint(ctx, "m")
	require.NoError(t, err)
	assert.Len(t, byMint, 2)
	byAccount, err := store.GetByAccount(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, byAccount, 1)
	inRange, err := store.GetByTimeRange(ctx, 6, 10)
	require.NoError(t, err)
	assert.Len(t, inRange, 1)

	ops := make([]string, 0, len(rec.calls))
	for _, c := range rec.calls {
		assert.Equal(t, "clickhouse", c.database)
		ops = append(ops, c.operation)
	}
	assert.Equal(t, []string{"insert_event", "insert_event", "insert_events", "events_by_mint", "events_by_account", "events_by_time_range"}, ops)
	assert.True(t, rec.calls[1].failed)
}
