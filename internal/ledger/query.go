package ledger

import (
	"context"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/storage"
)

// GetMint returns the mint at address.
func (p *Program) GetMint(ctx context.Context, address string) (*domain.Mint, error) {
	var out *domain.Mint
	err := p.store.View(ctx, func(r storage.Reader) error {
		m, err := r.GetMint(ctx, address)
		if err != nil {
			return fromStorage("get_mint", "mint "+address, err)
		}
		out = m
		return nil
	})
	return out, viewErr("get_mint", err)
}

// GetTokenAccount returns the token account at address.
func (p *Program) GetTokenAccount(ctx context.Context, address string) (*domain.TokenAccount, error) {
	var out *domain.TokenAccount
	err := p.store.View(ctx, func(r storage.Reader) error {
		a, err := r.GetTokenAccount(ctx, address)
		if err != nil {
			return fromStorage("get_token_account", "token account "+address, err)
		}
		out = a
		return nil
	})
	return out, viewErr("get_token_account", err)
}

// GetMetadata returns the metadata record of mint.
func (p *Program) GetMetadata(ctx context.Context, mint string) (*domain.MetadataRecord, error) {
	var out *domain.MetadataRecord
	err := p.store.View(ctx, func(r storage.Reader) error {
		md, err := loadMetadata(ctx, r, "get_metadata", mint)
		out = md
		return err
	})
	return out, viewErr("get_metadata", err)
}

// GetSupplyCap returns the supply cap record of mint.
func (p *Program) GetSupplyCap(ctx context.Context, mint string) (*domain.SupplyCapRecord, error) {
	var out *domain.SupplyCapRecord
	err := p.store.View(ctx, func(r storage.Reader) error {
		c, err := loadSupplyCap(ctx, r, "get_supply_cap", mint)
		out = c
		return err
	})
	return out, viewErr("get_supply_cap", err)
}

// TokenAccountsByOwner returns every account of owner, ordered by address.
func (p *Program) TokenAccountsByOwner(ctx context.Context, owner string) ([]*domain.TokenAccount, error) {
	var out []*domain.TokenAccount
	err := p.store.View(ctx, func(r storage.Reader) error {
		accounts, err := r.TokenAccountsByOwner(ctx, owner)
		if err != nil {
			return fromStorage("get_token_accounts_by_owner", "accounts of "+owner, err)
		}
		out = accounts
		return nil
	})
	return out, viewErr("get_token_accounts_by_owner", err)
}

func viewErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fromStorage(op, "snapshot", err)
}
