package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/storage"
)

// maxUpdateAttempts bounds how often Update re-runs fn after a serialization conflict.
const maxUpdateAttempts = 3

// RecordStore implements storage.RecordStore using PostgreSQL.
// Update runs at serializable isolation and locks every record it reads.
type RecordStore struct {
	pool *Pool
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(pool *Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.RecordStore = (*RecordStore)(nil)
	_ storage.Txn         = (*txn)(nil)
)

// Update runs fn in a serializable transaction. fn is re-run when the
// transaction loses a serialization conflict, so it must not have side effects
// outside tx.
func (s *RecordStore) Update(ctx context.Context, fn func(tx storage.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err = s.update(ctx, fn)
		if !isRetryableError(err) {
			return err
		}
	}
	return fmt.Errorf("update: %w", err)
}

func (s *RecordStore) update(ctx context.Context, fn func(tx storage.Txn) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txn{tx: tx, lock: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isStorageFullError(err) {
			return storage.ErrStorageFull
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs fn in a read-only repeatable-read transaction.
func (s *RecordStore) View(ctx context.Context, fn func(r storage.Reader) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	return fn(&txn{tx: tx})
}

// Reclaims returns the destroyed-record log ordered by reclaim time.
func (s *RecordStore) Reclaims(ctx context.Context) ([]storage.Reclaim, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, address, destination, reclaimed_at
		FROM reclaimed_records
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get reclaims: %w", err)
	}
	defer rows.Close()

	var out []storage.Reclaim
	for rows.Next() {
		var (
			r    storage.Reclaim
			kind string
		)
		if err := rows.Scan(&kind, &r.Address, &r.Destination, &r.ReclaimedAt); err != nil {
			return nil, fmt.Errorf("scan reclaim: %w", err)
		}
		r.Kind = parseRecordKind(kind)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reclaims: %w", err)
	}
	return out, nil
}

// txn implements storage.Txn over a pgx transaction.
// lock adds FOR UPDATE to reads so concurrent writers queue on the same rows.
type txn struct {
	tx   pgx.Tx
	lock bool
}

func (t *txn) forUpdate() string {
	if t.lock {
		return " FOR UPDATE"
	}
	return ""
}

// writeErr maps driver errors shared by every write.
func writeErr(op string, err error) error {
	switch {
	case isDuplicateKeyError(err):
		return storage.ErrDuplicateKey
	case isStorageFullError(err):
		return storage.ErrStorageFull
	case isRetryableError(err):
		// Returned unwrapped so Update can recognize and retry it.
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetMint retrieves a mint by address. Returns ErrNotFound if not exists.
func (t *txn) GetMint(ctx context.Context, address string) (*domain.Mint, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT address, decimals, mint_authority, freeze_authority, supply, created_at
		FROM mints
		WHERE address = $1`+t.forUpdate(), address)

	var (
		m        domain.Mint
		decimals int16
		supply   pgtype.Numeric
	)
	err := row.Scan(&m.Address, &decimals, &m.MintAuthority, &m.FreezeAuthority, &supply, &m.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, writeErr("get mint", err)
	}
	m.Decimals = uint8(decimals)
	if m.Supply, err = toUint64(supply); err != nil {
		return nil, fmt.Errorf("mint %s supply: %w", address, err)
	}
	return &m, nil
}

const tokenAccountColumns = `address, mint, owner, amount, delegate, delegated_amount, frozen, created_at`

func scanTokenAccount(row pgx.Row) (*domain.TokenAccount, error) {
	var (
		a                 domain.TokenAccount
		amount, delegated pgtype.Numeric
	)
	if err := row.Scan(&a.Address, &a.Mint, &a.Owner, &amount, &a.Delegate, &delegated, &a.Frozen, &a.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.Amount, err = toUint64(amount); err != nil {
		return nil, fmt.Errorf("account %s amount: %w", a.Address, err)
	}
	if a.DelegatedAmount, err = toUint64(delegated); err != nil {
		return nil, fmt.Errorf("account %s delegated amount: %w", a.Address, err)
	}
	return &a, nil
}

// GetTokenAccount retrieves a token account by address. Returns ErrNotFound if not exists.
func (t *txn) GetTokenAccount(ctx context.Context, address string) (*domain.TokenAccount, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+tokenAccountColumns+`
		FROM token_accounts
		WHERE address = $1`+t.forUpdate(), address)

	a, err := scanTokenAccount(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, writeErr("get token account", err)
	}
	return a, nil
}

// TokenAccountsByOwner retrieves all accounts of owner, ordered by address ASC.
func (t *txn) TokenAccountsByOwner(ctx context.Context, owner string) ([]*domain.TokenAccount, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+tokenAccountColumns+`
		FROM token_accounts
		WHERE owner = $1
		ORDER BY address ASC`, owner)
	if err != nil {
		return nil, writeErr("get token accounts by owner", err)
	}
	defer rows.Close()

	var out []*domain.TokenAccount
	for rows.Next() {
		a, err := scanTokenAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token accounts: %w", err)
	}
	return out, nil
}

// creatorJSON and collectionJSON are the JSONB shapes of the metadata extensions.
type creatorJSON struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Share    uint8  `json:"share"`
}

type collectionJSON struct {
	Key      string `json:"key"`
	Verified bool   `json:"verified"`
}

func encodeExtensions(m *domain.MetadataRecord) (creators, collection []byte, err error) {
	if m.Creators != nil {
		list := make([]creatorJSON, len(m.Creators))
		for i, c := range m.Creators {
			list[i] = creatorJSON{Address: c.Address, Verified: c.Verified, Share: c.Share}
		}
		if creators, err = json.Marshal(list); err != nil {
			return nil, nil, fmt.Errorf("encode creators: %w", err)
		}
	}
	if m.Collection != nil {
		if collection, err = json.Marshal(collectionJSON{Key: m.Collection.Key, Verified: m.Collection.Verified}); err != nil {
			return nil, nil, fmt.Errorf("encode collection: %w", err)
		}
	}
	return creators, collection, nil
}

func decodeExtensions(m *domain.MetadataRecord, creators, collection []byte) error {
	if creators != nil {
		var list []creatorJSON
		if err := json.Unmarshal(creators, &list); err != nil {
			return fmt.Errorf("decode creators: %w", err)
		}
		m.Creators = make([]domain.Creator, len(list))
		for i, c := range list {
			m.Creators[i] = domain.Creator{Address: c.Address, Verified: c.Verified, Share: c.Share}
		}
	}
	if collection != nil {
		var c collectionJSON
		if err := json.Unmarshal(collection, &c); err != nil {
			return fmt.Errorf("decode collection: %w", err)
		}
		m.Collection = &domain.Collection{Key: c.Key, Verified: c.Verified}
	}
	return nil
}

// GetMetadata retrieves a metadata record by address. Returns ErrNotFound if not exists.
func (t *txn) GetMetadata(ctx context.Context, address string) (*domain.MetadataRecord, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT address, mint, name, symbol, uri, seller_fee_basis_points,
			creators, collection, update_authority, is_mutable, created_at
		FROM metadata_records
		WHERE address = $1`+t.forUpdate(), address)

	var (
		m                    domain.MetadataRecord
		fee                  int32
		creators, collection []byte
	)
	err := row.Scan(&m.Address, &m.Mint, &m.Name, &m.Symbol, &m.URI, &fee,
		&creators, &collection, &m.UpdateAuthority, &m.IsMutable, &m.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, writeErr("get metadata", err)
	}
	m.SellerFeeBasisPoints = uint16(fee)
	if err := decodeExtensions(&m, creators, collection); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetSupplyCap retrieves a supply cap record by address. Returns ErrNotFound if not exists.
func (t *txn) GetSupplyCap(ctx context.Context, address string) (*domain.SupplyCapRecord, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT address, mint, max_supply, minted, update_authority, created_at
		FROM supply_caps
		WHERE address = $1`+t.forUpdate(), address)

	var (
		c                 domain.SupplyCapRecord
		maxSupply, minted pgtype.Numeric
	)
	err := row.Scan(&c.Address, &c.Mint, &maxSupply, &minted, &c.UpdateAuthority, &c.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, writeErr("get supply cap", err)
	}
	if c.MaxSupply, err = toUint64Ptr(maxSupply); err != nil {
		return nil, fmt.Errorf("supply cap %s max supply: %w", address, err)
	}
	if c.Minted, err = toUint64(minted); err != nil {
		return nil, fmt.Errorf("supply cap %s minted: %w", address, err)
	}
	return &c, nil
}

// InsertMint adds a new mint. Returns ErrDuplicateKey if the address exists.
func (t *txn) InsertMint(ctx context.Context, m *domain.Mint) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO mints (address, decimals, mint_authority, freeze_authority, supply, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.Address, int16(m.Decimals), m.MintAuthority, m.FreezeAuthority, numeric(m.Supply), m.CreatedAt,
	)
	if err != nil {
		return writeErr("insert mint", err)
	}
	return nil
}

// InsertTokenAccount adds a new token account. Returns ErrDuplicateKey if the address exists.
func (t *txn) InsertTokenAccount(ctx context.Context, a *domain.TokenAccount) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO token_accounts (`+tokenAccountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.Address, a.Mint, a.Owner, numeric(a.Amount), a.Delegate, numeric(a.DelegatedAmount), a.Frozen, a.CreatedAt,
	)
	if err != nil {
		return writeErr("insert token account", err)
	}
	return nil
}

// InsertMetadata adds a new metadata record. Returns ErrDuplicateKey if the address or mint exists.
func (t *txn) InsertMetadata(ctx context.Context, m *domain.MetadataRecord) error {
	creators, collection, err := encodeExtensions(m)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO metadata_records (
			address, mint, name, symbol, uri, seller_fee_basis_points,
			creators, collection, update_authority, is_mutable, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.Address, m.Mint, m.Name, m.Symbol, m.URI, int32(m.SellerFeeBasisPoints),
		creators, collection, m.UpdateAuthority, m.IsMutable, m.CreatedAt,
	)
	if err != nil {
		return writeErr("insert metadata", err)
	}
	return nil
}

// InsertSupplyCap adds a new supply cap record. Returns ErrDuplicateKey if the address or mint exists.
func (t *txn) InsertSupplyCap(ctx context.Context, c *domain.SupplyCapRecord) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO supply_caps (address, mint, max_supply, minted, update_authority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.Address, c.Mint, numericPtr(c.MaxSupply), numeric(c.Minted), c.UpdateAuthority, c.CreatedAt,
	)
	if err != nil {
		return writeErr("insert supply cap", err)
	}
	return nil
}

// execOne runs a single-row update and returns ErrNotFound when no row matched.
func (t *txn) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return writeErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateMint overwrites the authorities of a mint. Supply moves only through
// CreditSupply and DebitSupply.
func (t *txn) UpdateMint(ctx context.Context, m *domain.Mint) error {
	return t.execOne(ctx, "update mint", `
		UPDATE mints SET mint_authority = $2, freeze_authority = $3
		WHERE address = $1`,
		m.Address, m.MintAuthority, m.FreezeAuthority,
	)
}

// UpdateTokenAccount overwrites delegate and freeze state. Amount moves only
// through Credit and Debit.
func (t *txn) UpdateTokenAccount(ctx context.Context, a *domain.TokenAccount) error {
	return t.execOne(ctx, "update token account", `
		UPDATE token_accounts SET delegate = $2, delegated_amount = $3, frozen = $4
		WHERE address = $1`,
		a.Address, a.Delegate, numeric(a.DelegatedAmount), a.Frozen,
	)
}

// UpdateMetadata overwrites the descriptive fields of a metadata record.
func (t *txn) UpdateMetadata(ctx context.Context, m *domain.MetadataRecord) error {
	creators, collection, err := encodeExtensions(m)
	if err != nil {
		return err
	}
	return t.execOne(ctx, "update metadata", `
		UPDATE metadata_records SET
			name = $2, symbol = $3, uri = $4, seller_fee_basis_points = $5,
			creators = $6, collection = $7, update_authority = $8, is_mutable = $9
		WHERE address = $1`,
		m.Address, m.Name, m.Symbol, m.URI, int32(m.SellerFeeBasisPoints),
		creators, collection, m.UpdateAuthority, m.IsMutable,
	)
}

// UpdateSupplyCap overwrites cap, minted counter and authority.
func (t *txn) UpdateSupplyCap(ctx context.Context, c *domain.SupplyCapRecord) error {
	return t.execOne(ctx, "update supply cap", `
		UPDATE supply_caps SET max_supply = $2, minted = $3, update_authority = $4
		WHERE address = $1`,
		c.Address, numericPtr(c.MaxSupply), numeric(c.Minted), c.UpdateAuthority,
	)
}

const maxUint64SQL = "18446744073709551615"

// adjust applies a guarded balance delta. A miss is resolved into
// ErrNotFound or the given bound error by checking whether the row exists.
func (t *txn) adjust(ctx context.Context, op, table, column, address string, amount uint64, credit bool, bound error) error {
	var query string
	if credit {
		query = fmt.Sprintf(`UPDATE %s SET %s = %s + $2 WHERE address = $1 AND %s + $2 <= %s`,
			table, column, column, column, maxUint64SQL)
	} else {
		query = fmt.Sprintf(`UPDATE %s SET %s = %s - $2 WHERE address = $1 AND %s >= $2`,
			table, column, column, column)
	}

	err := t.execOne(ctx, op, query, address, numeric(amount))
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	var exists bool
	if err := t.tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE address = $1)`, table), address,
	).Scan(&exists); err != nil {
		return writeErr(op, err)
	}
	if exists {
		return bound
	}
	return storage.ErrNotFound
}

// Credit adds amount to a token account balance.
func (t *txn) Credit(ctx context.Context, account string, amount uint64) error {
	return t.adjust(ctx, "credit", "token_accounts", "amount", account, amount, true, storage.ErrOverflow)
}

// Debit subtracts amount from a token account balance.
func (t *txn) Debit(ctx context.Context, account string, amount uint64) error {
	return t.adjust(ctx, "debit", "token_accounts", "amount", account, amount, false, storage.ErrUnderflow)
}

// CreditSupply adds amount to a mint's supply.
func (t *txn) CreditSupply(ctx context.Context, mint string, amount uint64) error {
	return t.adjust(ctx, "credit supply", "mints", "supply", mint, amount, true, storage.ErrOverflow)
}

// DebitSupply subtracts amount from a mint's supply.
func (t *txn) DebitSupply(ctx context.Context, mint string, amount uint64) error {
	return t.adjust(ctx, "debit supply", "mints", "supply", mint, amount, false, storage.ErrUnderflow)
}

var recordTables = map[domain.RecordKind]string{
	domain.RecordMint:         "mints",
	domain.RecordTokenAccount: "token_accounts",
	domain.RecordMetadata:     "metadata_records",
	domain.RecordSupplyCap:    "supply_caps",
}

func parseRecordKind(s string) domain.RecordKind {
	for kind := range recordTables {
		if kind.String() == s {
			return kind
		}
	}
	return 0
}

// Destroy deletes a record and logs where its storage credit went.
func (t *txn) Destroy(ctx context.Context, kind domain.RecordKind, address, creditDestination string) error {
	table, ok := recordTables[kind]
	if !ok || creditDestination == "" {
		return storage.ErrInvalidInput
	}

	if err := t.execOne(ctx, "destroy "+kind.String(),
		fmt.Sprintf(`DELETE FROM %s WHERE address = $1`, table), address,
	); err != nil {
		return err
	}

	_, err := t.tx.Exec(ctx, `
		INSERT INTO reclaimed_records (kind, address, destination, reclaimed_at)
		VALUES ($1, $2, $3, $4)`,
		kind.String(), address, creditDestination, time.Now().UnixMilli(),
	)
	if err != nil {
		return writeErr("log reclaim", err)
	}
	return nil
}
