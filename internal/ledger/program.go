// Package ledger validates and applies token operations against a record store.
//
// Every mutating operation runs its checks and writes inside one
// storage.RecordStore.Update call, in this order: request validation, record
// loads, authority, frozen state, mint consistency, arithmetic. The first
// failing check aborts the transaction and is returned as an *Error.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solana-token-craft/internal/address"
	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/observability"
	"solana-token-craft/internal/storage"
)

// Defaults applied by New.
const (
	DefaultStartingSupply uint64 = 1_000_000_000
	DefaultDecimals       uint8  = 9
)

// EventSink receives the event of every committed operation.
// Publish runs after commit; its error is logged and counted, never returned.
type EventSink interface {
	Name() string
	Publish(ctx context.Context, e *domain.Event) error
}

// Option configures Program.
type Option func(*Program)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Program) {
		p.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Program) {
		p.metrics = m
	}
}

// WithEventSinks appends event sinks.
func WithEventSinks(sinks ...EventSink) Option {
	return func(p *Program) {
		p.sinks = append(p.sinks, sinks...)
	}
}

// WithClock overrides the time source for record and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Program) {
		p.now = now
	}
}

// WithProgramID sets the program identity mint addresses are derived under.
func WithProgramID(id string) Option {
	return func(p *Program) {
		p.programID = id
	}
}

// WithStartingSupply sets the amount credited to the owner at issuance.
func WithStartingSupply(n uint64) Option {
	return func(p *Program) {
		p.startingSupply = n
	}
}

// WithDecimals sets the decimal precision of issued mints.
func WithDecimals(d uint8) Option {
	return func(p *Program) {
		p.decimals = d
	}
}

// WithLenientClose lets Close destroy accounts that still hold a balance.
// The remainder is burned from the mint supply.
func WithLenientClose() Option {
	return func(p *Program) {
		p.lenientClose = true
	}
}

// Program is the ledger core. It holds no locks; serialization is the record
// store's job.
type Program struct {
	store   storage.RecordStore
	logger  zerolog.Logger
	metrics *observability.Metrics
	sinks   []EventSink
	now     func() time.Time

	programID      string
	startingSupply uint64
	decimals       uint8
	lenientClose   bool

	validate *validator.Validate
	seq      atomic.Uint64
}

// New creates a Program over store.
func New(store storage.RecordStore, opts ...Option) *Program {
	p := &Program{
		store:          store,
		logger:         zerolog.Nop(),
		now:            time.Now,
		programID:      address.CraftProgramID,
		startingSupply: DefaultStartingSupply,
		decimals:       DefaultDecimals,
		validate:       newValidator(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProgramID returns the identity mint addresses are derived under.
func (p *Program) ProgramID() string {
	return p.programID
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("pubkey", func(fl validator.FieldLevel) bool {
		return address.IsValid(fl.Field().String())
	})
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return v
}

func (p *Program) validateRequest(op string, req any) error {
	err := p.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		detail := fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			detail = fmt.Sprintf("%s failed %q (%s)", fe.Field(), fe.Tag(), fe.Param())
		}
		return &Error{Op: op, Kind: KindInvalidArgument, Detail: detail}
	}
	return &Error{Op: op, Kind: KindInvalidArgument, Err: err}
}

// Receipt describes a successful operation.
type Receipt struct {
	Operation domain.Operation
	Changed   bool   // false for idempotent no-ops, which write nothing
	EventID   string // empty when Changed is false
	Sequence  uint64
	Timestamp int64 // ms
}

// effect collects what an operation did inside its transaction.
type effect struct {
	event     domain.Event
	unchanged bool
}

// execute runs fn inside one store transaction and handles everything around
// it: validation, error translation, metrics, logging and event delivery.
func (p *Program) execute(ctx context.Context, op domain.Operation, req any,
	fn func(tx storage.Txn, now int64, fx *effect) error,
) (*Receipt, error) {
	start := time.Now()
	name := op.String()

	if err := p.validateRequest(name, req); err != nil {
		p.observe(name, start, 0, err)
		return nil, err
	}

	now := p.now().UnixMilli()
	var fx effect
	err := p.store.Update(ctx, func(tx storage.Txn) error {
		// The store may re-run fn after a serialization conflict.
		fx = effect{event: domain.Event{Operation: op}}
		return fn(tx, now, &fx)
	})
	if err != nil {
		err = fromStorage(name, "transaction", err)
		p.observe(name, start, 0, err)
		return nil, err
	}

	receipt := &Receipt{Operation: op, Changed: !fx.unchanged, Timestamp: now}
	if fx.unchanged {
		p.logger.Debug().Str("op", name).Msg("operation was a no-op")
		p.observe(name, start, now, nil)
		return receipt, nil
	}

	ev := fx.event
	ev.EventID = uuid.NewString()
	ev.Sequence = p.seq.Add(1)
	ev.Timestamp = now
	receipt.EventID = ev.EventID
	receipt.Sequence = ev.Sequence

	p.logger.Debug().
		Str("op", name).
		Str("event_id", ev.EventID).
		Uint64("seq", ev.Sequence).
		Str("mint", ev.Mint).
		Msg("operation applied")
	p.observe(name, start, now, nil)
	p.publish(ctx, &ev)

	return receipt, nil
}

func (p *Program) observe(op string, start time.Time, committedAt int64, err error) {
	elapsed := time.Since(start).Seconds()
	if err == nil {
		p.metrics.RecordOperation(op, observability.ResultOK, "", elapsed, committedAt)
		return
	}

	kind := KindOf(err)
	if kind == KindInternal {
		p.logger.Error().Err(err).Str("op", op).Msg("operation failed")
		p.metrics.RecordOperation(op, observability.ResultError, "", elapsed, 0)
		return
	}
	p.logger.Info().Str("op", op).Str("kind", kind.String()).Err(err).Msg("operation rejected")
	p.metrics.RecordOperation(op, observability.ResultRejected, kind.String(), elapsed, 0)
}

// publish hands a committed event to every sink. The operation is already
// committed, so delivery ignores the caller's cancellation.
func (p *Program) publish(ctx context.Context, ev *domain.Event) {
	ctx = context.WithoutCancel(ctx)
	for _, sink := range p.sinks {
		cp := *ev
		cp.Accounts = append([]string(nil), ev.Accounts...)

		err := sink.Publish(ctx, &cp)
		p.metrics.RecordSink(sink.Name(), err)
		if err != nil {
			p.logger.Warn().Err(err).
				Str("sink", sink.Name()).
				Str("event_id", ev.EventID).
				Msg("event delivery failed")
		}
	}
}

// JournalSink appends events to an EventStore.
type JournalSink struct {
	store storage.EventStore
}

// NewJournalSink creates a JournalSink.
func NewJournalSink(store storage.EventStore) *JournalSink {
	return &JournalSink{store: store}
}

// Name implements EventSink.
func (s *JournalSink) Name() string {
	return "journal"
}

// Publish implements EventSink.
func (s *JournalSink) Publish(ctx context.Context, e *domain.Event) error {
	if err := s.store.Insert(ctx, e); err != nil {
		return fmt.Errorf("journal event %s: %w", e.EventID, err)
	}
	return nil
}
