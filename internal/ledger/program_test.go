package ledger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/observability"
	"solana-token-craft/internal/storage/memory"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, c.Write(&out))
	return out.GetCounter().GetValue()
}

func TestProgram_EventsInCommitOrder(t *testing.T) {
	f := newFixture(t)
	res := f.issue()
	b := f.open(holderID, res.Mint)

	r1, err := f.program.Transfer(f.ctx, NewSigners(ownerID), TransferRequest{From: res.TokenAccount, To: b, Amount: 7})
	require.NoError(t, err)
	r2, err := f.program.Freeze(f.ctx, NewSigners(ownerID), FreezeRequest{Account: b, Mint: res.Mint})
	require.NoError(t, err)

	events := f.sink.Events()
	require.Len(t, events, 4)
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Sequence)
		assert.Equal(t, int64(1_700_000_000_000), e.Timestamp)
		assert.NotEmpty(t, e.EventID)
	}
	assert.Equal(t, r1.EventID, events[2].EventID)
	assert.Equal(t, r2.Sequence, events[3].Sequence)

	transfer := events[2]
	assert.Equal(t, domain.OpTransfer, transfer.Operation)
	assert.Equal(t, res.Mint, transfer.Mint)
	assert.Equal(t, []string{res.TokenAccount, b}, transfer.Accounts)
	assert.Equal(t, ownerID, transfer.Authority)
	assert.Equal(t, uint64(7), transfer.Amount)
	assert.True(t, transfer.Touches(b))
}

func TestProgram_SinkFailureDoesNotFailOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	var logs bytes.Buffer

	f := newFixture(t, WithMetrics(metrics), WithLogger(zerolog.New(&logs)))
	f.sink.fail = errors.New("sink offline")

	res, err := f.program.Issue(f.ctx, NewSigners(ownerID), IssueRequest{Name: "Craft", Symbol: "CRAFT", Owner: ownerID})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, DefaultStartingSupply, f.balance(res.TokenAccount))

	assert.Equal(t, 1.0, counterValue(t, metrics.SinkErrors.WithLabelValues("recording")))
	assert.Contains(t, logs.String(), "event delivery failed")
}

func TestProgram_Metrics(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	f := newFixture(t, WithMetrics(metrics))
	res := f.issue()

	_, err := f.program.Transfer(f.ctx, NewSigners(holderID), TransferRequest{From: res.TokenAccount, To: res.TokenAccount, Amount: 1})
	requireKind(t, err, KindUnauthorized)

	assert.Equal(t, 1.0, counterValue(t, metrics.OperationsTotal.WithLabelValues("issue", observability.ResultOK)))
	assert.Equal(t, 1.0, counterValue(t, metrics.OperationsTotal.WithLabelValues("transfer", observability.ResultRejected)))
	assert.Equal(t, 1.0, counterValue(t, metrics.RejectionsTotal.WithLabelValues("transfer", "Unauthorized")))
	assert.Equal(t, 1.0, counterValue(t, metrics.EventsPublished.WithLabelValues("recording")))
}

func TestProgram_SinksReceiveCopies(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	program := New(memory.NewRecordStore(), WithEventSinks(first, second))

	_, err := program.Issue(context.Background(), NewSigners(ownerID), IssueRequest{Name: "Craft", Symbol: "CRAFT", Owner: ownerID})
	require.NoError(t, err)

	a, b := first.Events()[0], second.Events()[0]
	assert.Equal(t, a.EventID, b.EventID)
	a.Accounts[0] = "mutated"
	assert.NotEqual(t, "mutated", b.Accounts[0])
}

func TestProgram_JournalSink(t *testing.T) {
	journal := memory.NewEventStore()
	f := newFixture(t, WithEventSinks(NewJournalSink(journal)))
	res := f.issue()
	b := f.open(holderID, res.Mint)

	_, err := f.program.Transfer(f.ctx, NewSigners(ownerID), TransferRequest{From: res.TokenAccount, To: b, Amount: 1})
	require.NoError(t, err)

	byMint, err := journal.GetByMint(f.ctx, res.Mint)
	require.NoError(t, err)
	require.Len(t, byMint, 3)
	assert.Equal(t, domain.OpIssue, byMint[0].Operation)
	assert.Equal(t, domain.OpOpenAccount, byMint[1].Operation)
	assert.Equal(t, domain.OpTransfer, byMint[2].Operation)

	byAccount, err := journal.GetByAccount(f.ctx, b)
	require.NoError(t, err)
	assert.Len(t, byAccount, 2)

	// Replaying an event id is rejected by the journal.
	sink := NewJournalSink(journal)
	err = sink.Publish(f.ctx, byMint[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), byMint[0].EventID)
}

func TestProgram_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.program.Issue(ctx, NewSigners(ownerID), IssueRequest{Name: "Craft", Symbol: "CRAFT", Owner: ownerID})
	requireKind(t, err, KindInternal)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.store.Len())
}

func TestProgram_ProgramID(t *testing.T) {
	custom := ownerID
	a := New(memory.NewRecordStore())
	b := New(memory.NewRecordStore(), WithProgramID(custom))
	assert.Equal(t, custom, b.ProgramID())

	req := IssueRequest{Name: "Craft", Symbol: "CRAFT", Owner: holderID}
	ra, err := a.Issue(context.Background(), NewSigners(holderID), req)
	require.NoError(t, err)
	rb, err := b.Issue(context.Background(), NewSigners(holderID), req)
	require.NoError(t, err)
	assert.NotEqual(t, ra.Mint, rb.Mint)
}

func TestSigners(t *testing.T) {
	s := NewSigners(strangerID, ownerID, strangerID, "")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has(ownerID))
	assert.False(t, s.Has(holderID))
	assert.False(t, s.Has(""))
	assert.IsNonDecreasing(t, s.List())
}

func TestQueries_NotFound(t *testing.T) {
	f := newFixture(t)
	missing := holderID

	_, err := f.program.GetMint(f.ctx, missing)
	requireKind(t, err, KindNotFound)
	_, err = f.program.GetTokenAccount(f.ctx, missing)
	requireKind(t, err, KindNotFound)
	_, err = f.program.GetMetadata(f.ctx, missing)
	requireKind(t, err, KindNotFound)
	_, err = f.program.GetSupplyCap(f.ctx, missing)
	requireKind(t, err, KindNotFound)

	accounts, err := f.program.TokenAccountsByOwner(f.ctx, missing)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
