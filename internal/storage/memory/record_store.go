package memory

import (
	"context"
	"math/bits"
	"sync"
	"time"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/storage"
)

// RecordStore is an in-memory implementation of storage.RecordStore.
// Update calls are serialized by a single writer lock; writes are staged and
// only become visible when the transaction function returns nil.
type RecordStore struct {
	mu         sync.RWMutex
	mints      map[string]*domain.Mint
	accounts   map[string]*domain.TokenAccount
	metadata   map[string]*domain.MetadataRecord
	supplyCaps map[string]*domain.SupplyCapRecord
	reclaims   []storage.Reclaim

	capacity int // max live records, 0 = unlimited
}

// RecordStoreOption configures RecordStore.
type RecordStoreOption func(*RecordStore)

// WithCapacity limits the number of live records. Inserts beyond the limit
// fail with storage.ErrStorageFull.
func WithCapacity(n int) RecordStoreOption {
	return func(s *RecordStore) {
		s.capacity = n
	}
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore(opts ...RecordStoreOption) *RecordStore {
	s := &RecordStore{
		mints:      make(map[string]*domain.Mint),
		accounts:   make(map[string]*domain.TokenAccount),
		metadata:   make(map[string]*domain.MetadataRecord),
		supplyCaps: make(map[string]*domain.SupplyCapRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update runs fn in a staged transaction and commits only if fn returns nil.
func (s *RecordStore) Update(ctx context.Context, fn func(tx storage.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.newTxn(false)
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx.mints.commit()
	tx.accounts.commit()
	tx.metadata.commit()
	tx.supplyCaps.commit()
	s.reclaims = append(s.reclaims, tx.reclaims...)
	return nil
}

// View runs fn against the committed state.
func (s *RecordStore) View(ctx context.Context, fn func(r storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(s.newTxn(true))
}

// Reclaims returns the destroyed-record log in commit order.
func (s *RecordStore) Reclaims() []storage.Reclaim {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.Reclaim, len(s.reclaims))
	copy(out, s.reclaims)
	return out
}

// Len returns the number of live records of all kinds.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.liveRecords()
}

func (s *RecordStore) liveRecords() int {
	return len(s.mints) + len(s.accounts) + len(s.metadata) + len(s.supplyCaps)
}

func (s *RecordStore) newTxn(readOnly bool) *txn {
	return &txn{
		store:      s,
		readOnly:   readOnly,
		mints:      newOverlay(s.mints, (*domain.Mint).Clone),
		accounts:   newOverlay(s.accounts, (*domain.TokenAccount).Clone),
		metadata:   newOverlay(s.metadata, (*domain.MetadataRecord).Clone),
		supplyCaps: newOverlay(s.supplyCaps, (*domain.SupplyCapRecord).Clone),
	}
}

// txn implements storage.Txn over staged overlays.
type txn struct {
	store    *RecordStore
	readOnly bool

	mints      *overlay[domain.Mint]
	accounts   *overlay[domain.TokenAccount]
	metadata   *overlay[domain.MetadataRecord]
	supplyCaps *overlay[domain.SupplyCapRecord]

	created  int
	reclaims []storage.Reclaim
}

// Compile-time interface checks.
var (
	_ storage.RecordStore = (*RecordStore)(nil)
	_ storage.Txn         = (*txn)(nil)
)

func (t *txn) GetMint(_ context.Context, address string) (*domain.Mint, error) {
	m, ok := t.mints.get(address)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return m.Clone(), nil
}

func (t *txn) GetTokenAccount(_ context.Context, address string) (*domain.TokenAccount, error) {
	a, ok := t.accounts.get(address)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return a.Clone(), nil
}

func (t *txn) GetMetadata(_ context.Context, address string) (*domain.MetadataRecord, error) {
	m, ok := t.metadata.get(address)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return m.Clone(), nil
}

func (t *txn) GetSupplyCap(_ context.Context, address string) (*domain.SupplyCapRecord, error) {
	c, ok := t.supplyCaps.get(address)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return c.Clone(), nil
}

func (t *txn) TokenAccountsByOwner(_ context.Context, owner string) ([]*domain.TokenAccount, error) {
	var result []*domain.TokenAccount
	t.accounts.each(func(_ string, a *domain.TokenAccount) {
		if a.Owner == owner {
			result = append(result, a.Clone())
		}
	})
	return result, nil
}

// allocate reserves room for one more record.
func (t *txn) allocate() error {
	if t.readOnly {
		return storage.ErrInvalidInput
	}
	if t.store.capacity > 0 && t.store.liveRecords()+t.created >= t.store.capacity {
		return storage.ErrStorageFull
	}
	t.created++
	return nil
}

func (t *txn) InsertMint(_ context.Context, m *domain.Mint) error {
	if m == nil || m.Address == "" {
		return storage.ErrInvalidInput
	}
	if _, exists := t.mints.get(m.Address); exists {
		return storage.ErrDuplicateKey
	}
	if err := t.allocate(); err != nil {
		return err
	}
	t.mints.put(m.Address, m)
	return nil
}

func (t *txn) InsertTokenAccount(_ context.Context, a *domain.TokenAccount) error {
	if a == nil || a.Address == "" {
		return storage.ErrInvalidInput
	}
	if _, exists := t.accounts.get(a.Address); exists {
		return storage.ErrDuplicateKey
	}
	if err := t.allocate(); err != nil {
		return err
	}
	t.accounts.put(a.Address, a)
	return nil
}

func (t *txn) InsertMetadata(_ context.Context, m *domain.MetadataRecord) error {
	if m == nil || m.Address == "" {
		return storage.ErrInvalidInput
	}
	if _, exists := t.metadata.get(m.Address); exists {
		return storage.ErrDuplicateKey
	}
	if err := t.allocate(); err != nil {
		return err
	}
	t.metadata.put(m.Address, m)
	return nil
}

func (t *txn) InsertSupplyCap(_ context.Context, c *domain.SupplyCapRecord) error {
	if c == nil || c.Address == "" {
		return storage.ErrInvalidInput
	}
	if _, exists := t.supplyCaps.get(c.Address); exists {
		return storage.ErrDuplicateKey
	}
	if err := t.allocate(); err != nil {
		return err
	}
	t.supplyCaps.put(c.Address, c)
	return nil
}

func (t *txn) UpdateMint(_ context.Context, m *domain.Mint) error {
	if t.readOnly || m == nil {
		return storage.ErrInvalidInput
	}
	cur, ok := t.mints.mutable(m.Address)
	if !ok {
		return storage.ErrNotFound
	}
	// Supply only moves through CreditSupply/DebitSupply.
	supply := cur.Supply
	*cur = *m.Clone()
	cur.Supply = supply
	return nil
}

func (t *txn) UpdateTokenAccount(_ context.Context, a *domain.TokenAccount) error {
	if t.readOnly || a == nil {
		return storage.ErrInvalidInput
	}
	cur, ok := t.accounts.mutable(a.Address)
	if !ok {
		return storage.ErrNotFound
	}
	// Balance only moves through Credit/Debit.
	amount := cur.Amount
	*cur = *a.Clone()
	cur.Amount = amount
	return nil
}

func (t *txn) UpdateMetadata(_ context.Context, m *domain.MetadataRecord) error {
	if t.readOnly || m == nil {
		return storage.ErrInvalidInput
	}
	if _, ok := t.metadata.get(m.Address); !ok {
		return storage.ErrNotFound
	}
	t.metadata.put(m.Address, m)
	return nil
}

func (t *txn) UpdateSupplyCap(_ context.Context, c *domain.SupplyCapRecord) error {
	if t.readOnly || c == nil {
		return storage.ErrInvalidInput
	}
	if _, ok := t.supplyCaps.get(c.Address); !ok {
		return storage.ErrNotFound
	}
	t.supplyCaps.put(c.Address, c)
	return nil
}

func (t *txn) Credit(_ context.Context, account string, amount uint64) error {
	if t.readOnly {
		return storage.ErrInvalidInput
	}
	a, ok := t.accounts.mutable(account)
	if !ok {
		return storage.ErrNotFound
	}
	sum, carry := bits.Add64(a.Amount, amount, 0)
	if carry != 0 {
		return storage.ErrOverflow
	}
	a.Amount = sum
	return nil
}

func (t *txn) Debit(_ context.Context, account string, amount uint64) error {
	if t.readOnly {
		return storage.ErrInvalidInput
	}
	a, ok := t.accounts.mutable(account)
	if !ok {
		return storage.ErrNotFound
	}
	if a.Amount < amount {
		return storage.ErrUnderflow
	}
	a.Amount -= amount
	return nil
}

func (t *txn) CreditSupply(_ context.Context, mint string, amount uint64) error {
	if t.readOnly {
		return storage.ErrInvalidInput
	}
	m, ok := t.mints.mutable(mint)
	if !ok {
		return storage.ErrNotFound
	}
	sum, carry := bits.Add64(m.Supply, amount, 0)
	if carry != 0 {
		return storage.ErrOverflow
	}
	m.Supply = sum
	return nil
}

func (t *txn) DebitSupply(_ context.Context, mint string, amount uint64) error {
	if t.readOnly {
		return storage.ErrInvalidInput
	}
	m, ok := t.mints.mutable(mint)
	if !ok {
		return storage.ErrNotFound
	}
	if m.Supply < amount {
		return storage.ErrUnderflow
	}
	m.Supply -= amount
	return nil
}

func (t *txn) Destroy(_ context.Context, kind domain.RecordKind, address, creditDestination string) error {
	if t.readOnly || creditDestination == "" {
		return storage.ErrInvalidInput
	}

	var exists bool
	switch kind {
	case domain.RecordMint:
		_, exists = t.mints.get(address)
	case domain.RecordTokenAccount:
		_, exists = t.accounts.get(address)
	case domain.RecordMetadata:
		_, exists = t.metadata.get(address)
	case domain.RecordSupplyCap:
		_, exists = t.supplyCaps.get(address)
	default:
		return storage.ErrInvalidInput
	}
	if !exists {
		return storage.ErrNotFound
	}

	switch kind {
	case domain.RecordMint:
		t.mints.del(address)
	case domain.RecordTokenAccount:
		t.accounts.del(address)
	case domain.RecordMetadata:
		t.metadata.del(address)
	case domain.RecordSupplyCap:
		t.supplyCaps.del(address)
	}

	t.created--
	t.reclaims = append(t.reclaims, storage.Reclaim{
		Kind:        kind,
		Address:     address,
		Destination: creditDestination,
		ReclaimedAt: time.Now().UnixMilli(),
	})
	return nil
}
