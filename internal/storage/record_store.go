package storage

import (
	"context"

	"solana-token-craft/internal/domain"
)

// RecordStore is the capability the ledger core consumes for persistence and
// balance arithmetic. Implementations guarantee that every Update call is
// applied atomically and serialized against other Update calls touching the
// same records: either every write made through the Txn commits, or none does.
type RecordStore interface {
	// Update runs fn inside one read-write transaction.
	// If fn returns an error nothing is committed and the error is returned as is.
	Update(ctx context.Context, fn func(tx Txn) error) error

	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(r Reader) error) error
}

// Reader provides record lookups. Every getter returns a copy and
// ErrNotFound when the slot is empty.
type Reader interface {
	GetMint(ctx context.Context, address string) (*domain.Mint, error)
	GetTokenAccount(ctx context.Context, address string) (*domain.TokenAccount, error)
	GetMetadata(ctx context.Context, address string) (*domain.MetadataRecord, error)
	GetSupplyCap(ctx context.Context, address string) (*domain.SupplyCapRecord, error)

	// TokenAccountsByOwner returns all accounts of owner, ordered by address ASC.
	TokenAccountsByOwner(ctx context.Context, owner string) ([]*domain.TokenAccount, error)
}

// Txn is the read-write view handed to RecordStore.Update.
type Txn interface {
	Reader

	// Insert* create a record. Returns ErrDuplicateKey if the slot is occupied
	// and ErrStorageFull if the backend cannot allocate it.
	InsertMint(ctx context.Context, m *domain.Mint) error
	InsertTokenAccount(ctx context.Context, a *domain.TokenAccount) error
	InsertMetadata(ctx context.Context, m *domain.MetadataRecord) error
	InsertSupplyCap(ctx context.Context, s *domain.SupplyCapRecord) error

	// Update* overwrite an existing record's non-balance fields.
	// Returns ErrNotFound if the slot is empty.
	UpdateMint(ctx context.Context, m *domain.Mint) error
	UpdateTokenAccount(ctx context.Context, a *domain.TokenAccount) error
	UpdateMetadata(ctx context.Context, m *domain.MetadataRecord) error
	UpdateSupplyCap(ctx context.Context, s *domain.SupplyCapRecord) error

	// Credit adds amount to a token account balance. Returns ErrOverflow on wrap.
	Credit(ctx context.Context, account string, amount uint64) error

	// Debit subtracts amount from a token account balance.
	// Returns ErrUnderflow if the balance is smaller than amount.
	Debit(ctx context.Context, account string, amount uint64) error

	// CreditSupply and DebitSupply adjust a mint's supply with the same rules.
	CreditSupply(ctx context.Context, mint string, amount uint64) error
	DebitSupply(ctx context.Context, mint string, amount uint64) error

	// Destroy removes a record and returns its storage credit to creditDestination.
	Destroy(ctx context.Context, kind domain.RecordKind, address, creditDestination string) error
}

// Reclaim records one destroyed record and where its storage credit went.
type Reclaim struct {
	Kind        domain.RecordKind
	Address     string
	Destination string
	ReclaimedAt int64 // ms
}
