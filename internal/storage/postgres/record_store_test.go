package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/storage"
)

func TestToUint64(t *testing.T) {
	tests := []struct {
		name    string
		in      pgtype.Numeric
		want    uint64
		wantErr bool
	}{
		{"plain", numeric(42), 42, false},
		{"max", numeric(^uint64(0)), ^uint64(0), false},
		{"positive exponent", pgtype.Numeric{Int: numeric(12).Int, Exp: 3, Valid: true}, 12000, false},
		{"negative exponent whole", pgtype.Numeric{Int: numeric(1200).Int, Exp: -2, Valid: true}, 12, false},
		{"fractional", pgtype.Numeric{Int: numeric(1201).Int, Exp: -2, Valid: true}, 0, true},
		{"null", pgtype.Numeric{}, 0, true},
		{"nan", pgtype.Numeric{NaN: true, Valid: true}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toUint64(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordStore_IssueRecordsRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecordStore(pool)
	ctx := context.Background()

	seedMint(t, store, "mint1", "acct1", "owner", ^uint64(0))

	err := store.Update(ctx, func(tx storage.Txn) error {
		if err := tx.InsertMetadata(ctx, &domain.MetadataRecord{
			Address:         "meta1",
			Mint:            "mint1",
			Name:            "Craft",
			Symbol:          "CRAFT",
			URI:             "https://example.com/craft.json",
			Creators:        []domain.Creator{{Address: "owner", Verified: true, Share: 100}},
			Collection:      &domain.Collection{Key: "coll"},
			UpdateAuthority: ptr("owner"),
			IsMutable:       true,
			CreatedAt:       1000,
		}); err != nil {
			return err
		}
		return tx.InsertSupplyCap(ctx, &domain.SupplyCapRecord{
			Address:         "cap1",
			Mint:            "mint1",
			MaxSupply:       ptr(uint64(0)),
			UpdateAuthority: ptr("owner"),
			CreatedAt:       1000,
		})
	})
	require.NoError(t, err)

	err = store.View(ctx, func(r storage.Reader) error {
		m, err := r.GetMint(ctx, "mint1")
		require.NoError(t, err)
		assert.Equal(t, uint8(9), m.Decimals)
		assert.Equal(t, ^uint64(0), m.Supply)
		assert.Equal(t, "owner", *m.MintAuthority)

		md, err := r.GetMetadata(ctx, "meta1")
		require.NoError(t, err)
		assert.Equal(t, "CRAFT", md.Symbol)
		require.Len(t, md.Creators, 1)
		assert.Equal(t, uint8(100), md.Creators[0].Share)
		require.NotNil(t, md.Collection)
		assert.Equal(t, "coll", md.Collection.Key)

		c, err := r.GetSupplyCap(ctx, "cap1")
		require.NoError(t, err)
		require.NotNil(t, c.MaxSupply)
		assert.Equal(t, uint64(0), *c.MaxSupply)
		return nil
	})
	require.NoError(t, err)
}

func TestRecordStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecordStore(pool)
	ctx := context.Background()
	seedMint(t, store, "mint1", "acct1", "owner", 10)

	err := store.Update(ctx, func(tx storage.Txn) error {
		return tx.InsertMint(ctx, &domain.Mint{Address: "mint1", CreatedAt: 1})
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRecordStore_RollbackOnError(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecordStore(pool)
	ctx := context.Background()
	seedMint(t, store, "mint1", "acct1", "owner", 100)

	boom := errors.New("boom")
	err := store.Update(ctx, func(tx storage.Txn) error {
		if err := tx.Debit(ctx, "acct1", 60); err != nil {
			return err
		}
		if err := tx.InsertTokenAccount(ctx, &domain.TokenAccount{Address: "acct2", Mint: "mint1", Owner: "other", CreatedAt: 1}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.View(ctx, func(r storage.Reader) error {
		a, err := r.GetTokenAccount(ctx, "acct1")
		require.NoError(t, err)
		assert.Equal(t, uint64(100), a.Amount)

		_, err = r.GetTokenAccount(ctx, "acct2")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestRecordStore_BalanceBounds(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecordStore(pool)
	ctx := context.Background()
	seedMint(t, store, "mint1", "acct1", "owner", 100)

	err := store.Update(ctx, func(tx storage.Txn) error {
		return tx.Debit(ctx, "acct1", 101)
	})
	assert.ErrorIs(t, err, storage.ErrUnderflow)

	err = store.Update(ctx, func(tx storage.Txn) error {
		return tx.CreditSupply(ctx, "mint1", ^uint64(0))
	})
	assert.ErrorIs(t, err, storage.ErrOverflow)

	err = store.Update(ctx, func(tx storage.Txn) error {
		return tx.Credit(ctx, "missing", 1)
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordStore_UpdateKeepsBalance(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecordStore(pool)
	ctx := context.Background()
	seedMint(t, store, "mint1", "acct1", "owner", 100)

	err := store.Update(ctx, func(tx storage.Txn) error {
		a, err := tx.GetTokenAccount(ctx, "acct1")
		if err != nil {
			return err
		}
		a.Amount = 5
		a.Frozen = true
		a.Delegate = ptr("delegate")
		a.DelegatedAmount = 500
		return tx.UpdateTokenAccount(ctx, a)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(r storage.Reader) error {
		a, err := r.GetTokenAccount(ctx, "acct1")
		require.NoError(t, err)
		assert.Equal(t, uint64(100), a.Amount)
		assert.True(t, a.Frozen)
		assert.Equal(t, "delegate", *a.Delegate)
		assert.Equal(t, uint64(500), a.DelegatedAmount)
		return nil
	})
	require.NoError(t, err)
}

func TestRecordStore_DestroyAndReclaims(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecordStore(pool)
	ctx := context.Background()
	seedMint(t, store, "mint1", "acct1", "owner", 0)

	err := store.Update(ctx, func(tx storage.Txn) error {
		return tx.Destroy(ctx, domain.RecordTokenAccount, "acct1", "owner")
	})
	require.NoError(t, err)

	reclaims, err := store.Reclaims(ctx)
	require.NoError(t, err)
	require.Len(t, reclaims, 1)
	assert.Equal(t, domain.RecordTokenAccount, reclaims[0].Kind)
	assert.Equal(t, "owner", reclaims[0].Destination)

	err = store.Update(ctx, func(tx storage.Txn) error {
		return tx.Destroy(ctx, domain.RecordTokenAccount, "acct1", "owner")
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordStore_TokenAccountsByOwner(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecordStore(pool)
	ctx := context.Background()
	seedMint(t, store, "mint1", "c-acct", "alice", 1)

	err := store.Update(ctx, func(tx storage.Txn) error {
		for _, addr := range []string{"a-acct", "b-acct"} {
			if err := tx.InsertTokenAccount(ctx, &domain.TokenAccount{Address: addr, Mint: "mint1", Owner: "alice", CreatedAt: 1}); err != nil {
				return err
			}
		}
		return tx.InsertTokenAccount(ctx, &domain.TokenAccount{Address: "z-acct", Mint: "mint1", Owner: "bob", CreatedAt: 1})
	})
	require.NoError(t, err)

	err = store.View(ctx, func(r storage.Reader) error {
		accounts, err := r.TokenAccountsByOwner(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, accounts, 3)
		assert.Equal(t, "a-acct", accounts[0].Address)
		assert.Equal(t, "b-acct", accounts[1].Address)
		assert.Equal(t, "c-acct", accounts[2].Address)
		return nil
	})
	require.NoError(t, err)
}

func TestRecordStore_ConcurrentTransfersConserveTotal(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecordStore(pool)
	ctx := context.Background()
	seedMint(t, store, "mint1", "x", "owner", 1000)

	err := store.Update(ctx, func(tx storage.Txn) error {
		return tx.InsertTokenAccount(ctx, &domain.TokenAccount{Address: "y", Mint: "mint1", Owner: "owner", CreatedAt: 1})
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := "x", "y"
			if i%2 == 1 {
				from, to = to, from
			}
			_ = store.Update(ctx, func(tx storage.Txn) error {
				// Lock both rows in a fixed order before moving funds.
				if _, err := tx.GetTokenAccount(ctx, "x"); err != nil {
					return err
				}
				if _, err := tx.GetTokenAccount(ctx, "y"); err != nil {
					return err
				}
				if err := tx.Debit(ctx, from, 3); err != nil {
					return err
				}
				return tx.Credit(ctx, to, 3)
			})
		}(i)
	}
	wg.Wait()

	err = store.View(ctx, func(r storage.Reader) error {
		x, err := r.GetTokenAccount(ctx, "x")
		require.NoError(t, err)
		y, err := r.GetTokenAccount(ctx, "y")
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), x.Amount+y.Amount)
		return nil
	})
	require.NoError(t, err)
}
