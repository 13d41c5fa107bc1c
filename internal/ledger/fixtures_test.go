package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"solana-token-craft/internal/address"
	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/storage"
	"solana-token-craft/internal/storage/memory"
)

var (
	ownerID    = address.FromSeed("owner")
	holderID   = address.FromSeed("holder")
	delegateID = address.FromSeed("delegate")
	strangerID = address.FromSeed("stranger")
)

// recordingSink keeps every published event.
type recordingSink struct {
	mu     sync.Mutex
	events []*domain.Event
	fail   error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []*domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Event(nil), s.events...)
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *memory.RecordStore
	sink    *recordingSink
	program *Program
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.NewRecordStore(), opts...)
}

func newFixtureWithStore(t *testing.T, store *memory.RecordStore, opts ...Option) *fixture {
	t.Helper()

	sink := &recordingSink{}
	clock := time.UnixMilli(1_700_000_000_000)
	base := []Option{
		WithEventSinks(sink),
		WithClock(func() time.Time { return clock }),
	}
	return &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   store,
		sink:    sink,
		program: New(store, append(base, opts...)...),
	}
}

// issue creates the CRAFT asset owned by ownerID.
func (f *fixture) issue() *IssueResult {
	f.t.Helper()
	res, err := f.program.Issue(f.ctx, NewSigners(ownerID), IssueRequest{
		Name:   "Craft Token",
		Symbol: "CRAFT",
		URI:    "https://example.com/craft.json",
		Owner:  ownerID,
	})
	require.NoError(f.t, err)
	return res
}

// open creates owner's empty account for mint.
func (f *fixture) open(owner, mint string) string {
	f.t.Helper()
	res, err := f.program.OpenAccount(f.ctx, NewSigners(), OpenAccountRequest{Owner: owner, Mint: mint})
	require.NoError(f.t, err)
	return res.Address
}

func (f *fixture) account(addr string) *domain.TokenAccount {
	f.t.Helper()
	a, err := f.program.GetTokenAccount(f.ctx, addr)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) balance(addr string) uint64 {
	f.t.Helper()
	return f.account(addr).Amount
}

func (f *fixture) mint(addr string) *domain.Mint {
	f.t.Helper()
	m, err := f.program.GetMint(f.ctx, addr)
	require.NoError(f.t, err)
	return m
}

func (f *fixture) freeze(account, mint string) {
	f.t.Helper()
	_, err := f.program.Freeze(f.ctx, NewSigners(ownerID), FreezeRequest{Account: account, Mint: mint})
	require.NoError(f.t, err)
}

// requireKind asserts err is a ledger error of the given kind.
func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	var le *Error
	require.True(t, errors.As(err, &le), "expected *ledger.Error, got %T: %v", err, err)
	require.Equal(t, kind, le.Kind, "unexpected kind: %v", err)
}

// failingStore makes every Update fail after fn ran, to check nothing leaks.
type failingStore struct {
	storage.RecordStore
	err error
}

func (s failingStore) Update(ctx context.Context, fn func(tx storage.Txn) error) error {
	return s.RecordStore.Update(ctx, func(tx storage.Txn) error {
		if err := fn(tx); err != nil {
			return err
		}
		return s.err
	})
}
